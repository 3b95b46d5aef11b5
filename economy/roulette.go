package economy

import (
	"context"
	"database/sql"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/onnwee/chat-tender/telemetry"
)

const (
	// chambers per cylinder; exactly one holds the bullet.
	rouletteChambers = 6
	// timeout duration bounds in seconds, pre-rolled at cylinder init.
	rouletteTimeoutMin = 1
	rouletteTimeoutMax = 70
	// stop-game reward bounds.
	rouletteRewardMin = 50
	rouletteRewardMax = 200
)

// Cylinder is one user's roulette state. The bullet/position/shots/timeout
// fields describe the current "life" and reset on every reinit; the lifetime
// counters survive across reinits.
type Cylinder struct {
	BulletPosition  int
	CurrentPosition int
	ShotsFired      int
	// TimeoutSeconds is rolled when the cylinder is loaded, not when the
	// shot goes off; the same hidden duration rides along for the whole life.
	TimeoutSeconds int

	TotalGames int64
	Deaths     int64
	Wins       int64
}

// RouletteStats is the lifetime stats snapshot exposed to chat.
type RouletteStats struct {
	TotalGames int64
	Deaths     int64
	Wins       int64
	ShotsFired int
}

// StopResult is the outcome of voluntarily stopping a game.
type StopResult struct {
	Win             bool
	Reward          int64
	RemainingShots  int
	ShotsUntilDeath int
}

// Roulette is the per-user "loaded cylinder" game. A cylinder is created
// lazily on first interaction and fully reinitialized after every fatal pull
// and after every stop; TotalGames counts cylinder creations (one per life).
type Roulette struct {
	db  *sql.DB
	rng *rand.Rand

	mu        sync.Mutex
	cylinders map[string]*Cylinder
	dirty     map[string]struct{}
}

// NewRoulette loads all cylinders into memory. A nil dbx runs memory-only.
func NewRoulette(ctx context.Context, dbx *sql.DB) (*Roulette, error) {
	r := &Roulette{
		db: dbx,
		//nolint:gosec // G404: game randomness, not used for security
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		cylinders: make(map[string]*Cylinder),
		dirty:     make(map[string]struct{}),
	}
	if dbx == nil {
		return r, nil
	}
	rows, err := dbx.QueryContext(ctx, `SELECT username, bullet_position, current_position, shots_fired, timeout_duration, total_games, deaths, wins FROM roulette_cylinders`)
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
		c := &Cylinder{}
		if err := rows.Scan(&user, &c.BulletPosition, &c.CurrentPosition, &c.ShotsFired, &c.TimeoutSeconds, &c.TotalGames, &c.Deaths, &c.Wins); err != nil {
			return nil, err
		}
		r.cylinders[user] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slog.Info("roulette cylinders loaded", slog.Int("users", len(r.cylinders)))
	return r, nil
}

// PullTrigger fires the current chamber. On a shot it returns the cylinder's
// pre-rolled timeout duration and reloads; on a safe pull the cylinder
// advances one chamber.
func (r *Roulette) PullTrigger(ctx context.Context, user string) (shot bool, timeoutSeconds int) {
	user = normalize(user)
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.getOrCreateLocked(ctx, user)

	shot = c.CurrentPosition == c.BulletPosition
	if shot {
		timeoutSeconds = c.TimeoutSeconds
	}
	c.ShotsFired++

	if shot {
		c.Deaths++
		r.reloadLocked(c)
	} else {
		c.CurrentPosition = (c.CurrentPosition + 1) % rouletteChambers
	}
	r.persistLocked(ctx, user)

	if telemetry.RouletteShots != nil {
		outcome := "safe"
		if shot {
			outcome = "shot"
		}
		telemetry.RouletteShots.WithLabelValues(outcome).Inc()
	}
	return shot, timeoutSeconds
}

// RemainingShots reports how many pulls are left in the current cylinder.
func (r *Roulette) RemainingShots(ctx context.Context, user string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.getOrCreateLocked(ctx, normalize(user))
	return rouletteChambers - c.ShotsFired
}

// StopGame ends the current life. The player wins only when the bullet sits
// in the exact chamber they would have fired next — the dramatic last-second
// stop; any earlier chamber is a plain bail-out. The cylinder reloads either
// way. The caller credits the reward to the ledger.
func (r *Roulette) StopGame(ctx context.Context, user string) StopResult {
	user = normalize(user)
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.getOrCreateLocked(ctx, user)

	win := c.CurrentPosition == c.BulletPosition

	shotsUntilDeath := 0
	if !win {
		if c.BulletPosition > c.CurrentPosition {
			shotsUntilDeath = c.BulletPosition - c.CurrentPosition
		} else {
			shotsUntilDeath = (rouletteChambers - c.CurrentPosition) + c.BulletPosition
		}
	}

	var reward int64
	if win {
		reward = int64(rouletteRewardMin + r.rng.Intn(rouletteRewardMax-rouletteRewardMin+1))
		c.Wins++
	}
	remaining := rouletteChambers - c.ShotsFired

	r.reloadLocked(c)
	r.persistLocked(ctx, user)

	return StopResult{Win: win, Reward: reward, RemainingShots: remaining, ShotsUntilDeath: shotsUntilDeath}
}

// Stats returns the lifetime counters plus the live cylinder's shot count.
func (r *Roulette) Stats(ctx context.Context, user string) RouletteStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.getOrCreateLocked(ctx, normalize(user))
	return RouletteStats{TotalGames: c.TotalGames, Deaths: c.Deaths, Wins: c.Wins, ShotsFired: c.ShotsFired}
}

// Count returns the number of tracked cylinders.
func (r *Roulette) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cylinders)
}

// reloadLocked spins a fresh cylinder for the next life: new bullet chamber,
// new hidden timeout, position and shot count back to zero. Lifetime counters
// carry over; TotalGames ticks once per load.
func (r *Roulette) reloadLocked(c *Cylinder) {
	c.BulletPosition = r.rng.Intn(rouletteChambers)
	c.CurrentPosition = 0
	c.ShotsFired = 0
	c.TimeoutSeconds = rouletteTimeoutMin + r.rng.Intn(rouletteTimeoutMax-rouletteTimeoutMin+1)
	c.TotalGames++
}

func (r *Roulette) getOrCreateLocked(ctx context.Context, user string) *Cylinder {
	c, ok := r.cylinders[user]
	if !ok {
		c = &Cylinder{}
		r.reloadLocked(c)
		r.cylinders[user] = c
		r.persistLocked(ctx, user)
	}
	return c
}

func (r *Roulette) persistLocked(ctx context.Context, user string) {
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
		slog.Error("roulette persist failed; deferring", slog.String("user", user), slog.Any("err", err))
		telemetry.CountPersistFailure("roulette")
		r.dirty[user] = struct{}{}
	}
}

func (r *Roulette) upsert(ctx context.Context, user string) error {
	if r.db == nil {
		return nil
	}
	c := r.cylinders[user]
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO roulette_cylinders(username, bullet_position, current_position, shots_fired, timeout_duration, total_games, deaths, wins, updated_at)
		 VALUES($1,$2,$3,$4,$5,$6,$7,$8,NOW())
		 ON CONFLICT(username) DO UPDATE SET
		   bullet_position=EXCLUDED.bullet_position,
		   current_position=EXCLUDED.current_position,
		   shots_fired=EXCLUDED.shots_fired,
		   timeout_duration=EXCLUDED.timeout_duration,
		   total_games=EXCLUDED.total_games,
		   deaths=EXCLUDED.deaths,
		   wins=EXCLUDED.wins,
		   updated_at=NOW()`,
		user, c.BulletPosition, c.CurrentPosition, c.ShotsFired, c.TimeoutSeconds, c.TotalGames, c.Deaths, c.Wins)
	return err
}
