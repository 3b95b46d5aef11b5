package economy

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/onnwee/chat-tender/telemetry"
)

// DefaultCasinoWinChance is the fixed house probability. It does not depend
// on reputation, balance, or overrides.
const DefaultCasinoWinChance = 0.10

var (
	// ErrInvalidPercentage rejects bets outside [1,100].
	ErrInvalidPercentage = errors.New("bet percentage must be between 1 and 100")
	// ErrInsufficientFunds rejects bets from empty accounts.
	ErrInsufficientFunds = errors.New("no funds to bet")
)

// CasinoResult is the settled outcome of a single bet.
type CasinoResult struct {
	Win        bool
	Bet        int64
	NewBalance int64
}

// Casino resolves single-shot percentage-of-balance bets against the ledger.
type Casino struct {
	ledger    *Ledger
	winChance float64
	rng       *rand.Rand
}

// NewCasino returns a casino with the given win probability; pass 0 for the default.
func NewCasino(ledger *Ledger, winChance float64) *Casino {
	if winChance <= 0 {
		winChance = DefaultCasinoWinChance
	}
	return &Casino{
		ledger:    ledger,
		winChance: winChance,
		//nolint:gosec // G404: game randomness, not used for security
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Play stakes percentage% of the user's balance (minimum bet 1). A win
// credits the stake, a loss debits it; there is no extra penalty. Expected
// failures come back as ErrInvalidPercentage / ErrInsufficientFunds.
func (c *Casino) Play(ctx context.Context, user string, percentage int) (CasinoResult, error) {
	if percentage < 1 || percentage > 100 {
		return CasinoResult{}, ErrInvalidPercentage
	}
	user = normalize(user)
	balance := c.ledger.GetBalance(user)
	if balance <= 0 {
		return CasinoResult{}, ErrInsufficientFunds
	}

	bet := balance * int64(percentage) / 100
	if bet < 1 {
		bet = 1
	}

	win := c.rng.Float64() < c.winChance
	delta := bet
	if !win {
		delta = -bet
	}
	newBalance := c.ledger.AdjustBalance(ctx, user, delta)

	if telemetry.CasinoBets != nil {
		outcome := "loss"
		if win {
			outcome = "win"
		}
		telemetry.CasinoBets.WithLabelValues(outcome).Inc()
	}
	return CasinoResult{Win: win, Bet: bet, NewBalance: newBalance}, nil
}
