package economy

import (
	"context"
	"database/sql"
	"log/slog"
	"sync"

	"github.com/onnwee/chat-tender/telemetry"
)

// Reputation tracks a signed social score per user. Unknown users read as 0.
// The score is unbounded in both directions; only the title table below has a
// floor.
type Reputation struct {
	db *sql.DB

	mu     sync.Mutex
	scores map[string]int64
	dirty  map[string]struct{}
}

// NewReputation loads all scores into memory. A nil dbx runs memory-only.
func NewReputation(ctx context.Context, dbx *sql.DB) (*Reputation, error) {
	r := &Reputation{
		db:     dbx,
		scores: make(map[string]int64),
		dirty:  make(map[string]struct{}),
	}
	if dbx == nil {
		return r, nil
	}
	rows, err := dbx.QueryContext(ctx, `SELECT username, score FROM reputation`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err))
		}
	}()
	for rows.Next() {
		var user string
		var score int64
		if err := rows.Scan(&user, &score); err != nil {
			return nil, err
		}
		r.scores[user] = score
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slog.Info("reputation loaded", slog.Int("users", len(r.scores)))
	return r, nil
}

// Get returns the user's current score.
func (r *Reputation) Get(user string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scores[normalize(user)]
}

// Modify adds delta to the user's score and returns the new value.
func (r *Reputation) Modify(ctx context.Context, user string, delta int64) int64 {
	user = normalize(user)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores[user] += delta
	r.persistLocked(ctx, user)
	return r.scores[user]
}

// Set overwrites the user's score.
func (r *Reputation) Set(ctx context.Context, user string, score int64) {
	user = normalize(user)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scores[user] = score
	r.persistLocked(ctx, user)
}

// Count returns the number of tracked scores.
func (r *Reputation) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.scores)
}

// repTier maps a score floor to the title shown in chat. Ordered from best to
// worst; the first floor the score clears wins.
type repTier struct {
	floor int64
	title string
}

var repTiers = []repTier{
	{200, "Deity 🌠"},
	{150, "Mythical Figure 🦄"},
	{100, "Legend 🌟"},
	{75, "Hero 🦸‍♂️"},
	{50, "Saint 😇"},
	{30, "Righteous One 🙏"},
	{10, "Good Person 😊"},
	{0, "Decent Fellow 👍"},
	{-10, "Wet Bandage 💦"},
	{-20, "Rotten Tooth 🦷"},
	{-30, "Mold of the Universe 🍄"},
	{-50, "Chat Leprosy 🦠"},
	{-75, "Toxic Sludge ☢️"},
	{-100, "Emergency Discharge 💨"},
	{-125, "Biohazard ☣️"},
	{-150, "Plague Bubo 🐭"},
	{-175, "Radioactive Slag ☢️💀"},
	{-200, "Infernal Rot 🔥"},
	{-225, "Apocalyptic Garbage 🌌🗑️"},
	{-275, "Black Hole Slime 🕳️"},
	{-300, "Ever-Suffering Corpse ☠️"},
	{-350, "Galactic Infection 🌌☣️"},
	{-400, "Quantum Dust of Oblivion ⚛️💨"},
	{-550, "Putrid Refuse in a Vacuum 🦠🚮"},
	{-600, "Terminal Stage of Degradation 🧠💀"},
	{-650, "Living Corpse Without Hope ⚰️💔"},
	{-700, "Continental Psychic Garbage 🧠🗑️"},
	{-750, "Antimatter of Shame ⚛️🤢"},
	{-800, "Cosmic Vomit of the Universe 🌌🤮"},
	{-850, "Nuclear Disgrace ☢️👎"},
	{-900, "Bio-Bag of Waste 🧬🗑️"},
	{-950, "Wormhole of Despair 🕳️😭"},
	{-1000, "Plasma Burst of Shame 🔥😳"},
	{-1050, "Crypto-Garbage of the Blockchain 💩🔗"},
	{-1100, "Genetic Defect of Evolution 🧬❌"},
	{-1150, "Neutron Dumpster of Time ⏳🗑️"},
	{-1200, "Quantum Trash of Existence ⚛️🚮"},
	{-1250, "Thermonuclear Reactor Disgrace ☢️🤦"},
	{-1300, "Galactic Junk DNA 🌌🧬"},
	{-1350, "Black Hole Bottom of Reality 🕳️⬇️"},
	{-1400, "Astral Slag of Creation 🌠🗑️"},
	{-1450, "Chronos Dump of the Time Loop ⏳🌀"},
	{-1500, "Final Chord of the Apocalypse 🎵💥"},
}

// repFloorTitle is what anyone below the lowest tier gets.
const repFloorTitle = "Absolute Zero of Existence ❄️💀"

// Status translates a score into its chat title.
func Status(score int64) string {
	for _, t := range repTiers {
		if score >= t.floor {
			return t.title
		}
	}
	return repFloorTitle
}

func (r *Reputation) persistLocked(ctx context.Context, user string) {
	for u := range r.dirty {
		if u == user {
			continue
		}
		if err := r.upsert(ctx, u); err != nil {
			break
		}
		delete(r.dirty, u)
	}
	if err := r.upsert(ctx, user); err != nil {
		slog.Error("reputation persist failed; deferring", slog.String("user", user), slog.Any("err", err))
		telemetry.CountPersistFailure("reputation")
		r.dirty[user] = struct{}{}
	}
}

func (r *Reputation) upsert(ctx context.Context, user string) error {
	if r.db == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO reputation(username, score, updated_at) VALUES($1,$2,NOW())
		 ON CONFLICT(username) DO UPDATE SET score=EXCLUDED.score, updated_at=NOW()`,
		user, r.scores[user])
	return err
}
