package economy

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	"github.com/onnwee/chat-tender/telemetry"
)

// DefaultStealChance is the base theft success probability when neither the
// thief nor the victim carries an override.
const DefaultStealChance = 0.40

const (
	chanceKindSteal  = "steal"
	chanceKindVictim = "victim"
)

// ChanceProfile holds admin-configured per-user probabilities that replace
// the default steal chance: one map for thieves (chance to succeed) and one
// for victims (chance of being robbed). Absence means "use default".
type ChanceProfile struct {
	db   *sql.DB
	base float64

	mu     sync.Mutex
	steal  map[string]float64
	victim map[string]float64
	dirty  map[[2]string]struct{}
}

// NewChanceProfile loads both override maps. A nil dbx runs memory-only.
// base is the default chance used when no override applies; pass 0 to use
// DefaultStealChance.
func NewChanceProfile(ctx context.Context, dbx *sql.DB, base float64) (*ChanceProfile, error) {
	if base <= 0 {
		base = DefaultStealChance
	}
	p := &ChanceProfile{
		db:     dbx,
		base:   base,
		steal:  make(map[string]float64),
		victim: make(map[string]float64),
		dirty:  make(map[[2]string]struct{}),
	}
	if dbx == nil {
		return p, nil
	}
	rows, err := dbx.QueryContext(ctx, `SELECT kind, username, chance FROM chance_overrides`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err))
		}
	}()
	for rows.Next() {
		var kind, user string
		var chance float64
		if err := rows.Scan(&kind, &user, &chance); err != nil {
			return nil, err
		}
		switch kind {
		case chanceKindSteal:
			p.steal[user] = chance
		case chanceKindVictim:
			p.victim[user] = chance
		default:
			slog.Warn("unknown chance override kind; skipping", slog.String("kind", kind), slog.String("user", user))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slog.Info("chance overrides loaded", slog.Int("steal", len(p.steal)), slog.Int("victim", len(p.victim)))
	return p, nil
}

// SetStealChance sets a thief-side override in [0,1].
func (p *ChanceProfile) SetStealChance(ctx context.Context, user string, chance float64) error {
	return p.set(ctx, chanceKindSteal, user, chance)
}

// SetVictimChance sets a victim-side override in [0,1].
func (p *ChanceProfile) SetVictimChance(ctx context.Context, user string, chance float64) error {
	return p.set(ctx, chanceKindVictim, user, chance)
}

func (p *ChanceProfile) set(ctx context.Context, kind, user string, chance float64) error {
	if chance < 0 || chance > 1 {
		return fmt.Errorf("chance must be in [0,1], got %v", chance)
	}
	user = normalize(user)
	p.mu.Lock()
	defer p.mu.Unlock()
	switch kind {
	case chanceKindSteal:
		p.steal[user] = chance
	case chanceKindVictim:
		p.victim[user] = chance
	}
	p.persistLocked(ctx, kind, user)
	return nil
}

// StealChance returns the thief-side override for a user, if any.
func (p *ChanceProfile) StealChance(user string) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.steal[normalize(user)]
	return c, ok
}

// VictimChance returns the victim-side override for a user, if any.
func (p *ChanceProfile) VictimChance(user string) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	c, ok := p.victim[normalize(user)]
	return c, ok
}

// FinalStealChance resolves the effective theft probability for a
// thief/victim pair. The order is deliberately asymmetric and must not be
// simplified:
//
//  1. victim override of exactly 0 makes theft impossible, whatever the thief has
//  2. thief override of exactly 1 guarantees success against any other victim
//  3. any other victim override wins over the thief's
//  4. then the thief's override
//  5. then the base chance
func (p *ChanceProfile) FinalStealChance(thief, victim string) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	victimChance, victimSet := p.victim[normalize(victim)]
	thiefChance, thiefSet := p.steal[normalize(thief)]

	if victimSet && victimChance == 0.0 {
		return 0.0
	}
	if thiefSet && thiefChance == 1.0 {
		return 1.0
	}
	if victimSet {
		return victimChance
	}
	if thiefSet {
		return thiefChance
	}
	return p.base
}

func (p *ChanceProfile) persistLocked(ctx context.Context, kind, user string) {
	key := [2]string{kind, user}
	for k := range p.dirty {
		if k == key {
			continue
		}
		if err := p.upsert(ctx, k[0], k[1]); err != nil {
			break
		}
		delete(p.dirty, k)
	}
	if err := p.upsert(ctx, kind, user); err != nil {
		slog.Error("chance override persist failed; deferring", slog.String("kind", kind), slog.String("user", user), slog.Any("err", err))
		telemetry.CountPersistFailure("chances")
		p.dirty[key] = struct{}{}
	}
}

func (p *ChanceProfile) upsert(ctx context.Context, kind, user string) error {
	if p.db == nil {
		return nil
	}
	var chance float64
	switch kind {
	case chanceKindSteal:
		chance = p.steal[user]
	case chanceKindVictim:
		chance = p.victim[user]
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO chance_overrides(kind, username, chance, updated_at) VALUES($1,$2,$3,NOW())
		 ON CONFLICT(kind, username) DO UPDATE SET chance=EXCLUDED.chance, updated_at=NOW()`,
		kind, user, chance)
	return err
}
