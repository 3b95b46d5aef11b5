package economy

import (
	"context"
	"math/rand"
	"time"

	"github.com/onnwee/chat-tender/telemetry"
)

// StealOutcome classifies the result of a theft attempt.
type StealOutcome int

const (
	// StealSuccess: the roll passed; Amount moved victim -> thief.
	StealSuccess StealOutcome = iota
	// StealVictimBroke: the victim had nothing to take; no state changed.
	StealVictimBroke
	// StealFailed: the roll failed; Penalty moved thief -> victim.
	StealFailed
	// StealThiefBroke: the roll failed but the thief had nothing to lose.
	StealThiefBroke
)

func (o StealOutcome) String() string {
	switch o {
	case StealSuccess:
		return "success"
	case StealVictimBroke:
		return "victim_broke"
	case StealFailed:
		return "failed"
	case StealThiefBroke:
		return "thief_broke"
	default:
		return "unknown"
	}
}

// StealResult carries the outcome and the balances after any transfer.
type StealResult struct {
	Outcome       StealOutcome
	Amount        int64
	Penalty       int64
	ThiefBalance  int64
	VictimBalance int64
}

const (
	// starterStealChance is the flat success chance for brand-new or broke thieves.
	starterStealChance = 0.20
	// privilegedStealBonus is added (capped at 1.0) for moderators/allow-listed thieves.
	privilegedStealBonus = 0.20
	// stealFraction caps both the haul and the penalty at 30% of the target balance.
	stealFraction = 0.30
)

// TheftEngine computes steal outcomes against the ledger using the chance
// profile. Self-theft and stealing from the bot are the caller's problem;
// the engine assumes the pair is legal.
type TheftEngine struct {
	ledger  *Ledger
	chances *ChanceProfile
	rng     *rand.Rand
}

// NewTheftEngine returns an engine with a time-seeded rng.
func NewTheftEngine(ledger *Ledger, chances *ChanceProfile) *TheftEngine {
	return &TheftEngine{
		ledger:  ledger,
		chances: chances,
		//nolint:gosec // G404: game randomness, not used for security
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// TrySteal attempts a theft. starterChance forces the flat 20% roll used for
// zero-balance thieves (a successful starter steal takes exactly 1).
// privileged adds +20% to whatever chance applies, capped at 100%.
func (e *TheftEngine) TrySteal(ctx context.Context, thief, victim string, privileged, starterChance bool) StealResult {
	thief = normalize(thief)
	victim = normalize(victim)

	thiefBalance := e.ledger.GetBalance(thief)
	victimBalance := e.ledger.GetBalance(victim)

	if victimBalance == 0 {
		res := StealResult{Outcome: StealVictimBroke, ThiefBalance: thiefBalance}
		count(res.Outcome)
		return res
	}
	e.ledger.TouchStealAttempt(ctx, thief, time.Now())

	chance := e.chances.FinalStealChance(thief, victim)
	if starterChance {
		chance = starterStealChance
	}
	if privileged {
		chance += privilegedStealBonus
		if chance > 1.0 {
			chance = 1.0
		}
	}

	if e.rng.Float64() < chance {
		var amount int64 = 1
		if !starterChance {
			maxSteal := int64(float64(victimBalance) * stealFraction)
			if maxSteal < 1 {
				maxSteal = 1
			}
			amount = 1 + e.rng.Int63n(maxSteal)
		}
		// amount never exceeds the victim's balance, so the transfer cannot fail
		_, victimAfter, thiefAfter := e.ledger.Transfer(ctx, victim, thief, amount)
		res := StealResult{
			Outcome:       StealSuccess,
			Amount:        amount,
			ThiefBalance:  thiefAfter,
			VictimBalance: victimAfter,
		}
		count(res.Outcome)
		return res
	}

	// Failed attempt: the thief pays a penalty to the victim, if they can.
	var penalty int64
	if thiefBalance > 0 {
		maxPenalty := int64(float64(thiefBalance) * stealFraction)
		if maxPenalty < 1 {
			maxPenalty = 1
		}
		penalty = 1 + e.rng.Int63n(maxPenalty)
		e.ledger.Transfer(ctx, thief, victim, penalty)
	}

	outcome := StealFailed
	if thiefBalance == 0 {
		outcome = StealThiefBroke
	}
	res := StealResult{
		Outcome:       outcome,
		Penalty:       penalty,
		ThiefBalance:  e.ledger.GetBalance(thief),
		VictimBalance: e.ledger.GetBalance(victim),
	}
	count(res.Outcome)
	return res
}

func count(o StealOutcome) {
	if telemetry.StealAttempts != nil {
		telemetry.StealAttempts.WithLabelValues(o.String()).Inc()
	}
}
