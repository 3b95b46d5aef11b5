package chat

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/onnwee/chat-tender/economy"
	"github.com/onnwee/chat-tender/gate"
	"github.com/onnwee/chat-tender/telemetry"
)

func (b *Bot) cmdSteal(ctx context.Context, req gate.Request) {
	thief := req.User.Name
	victim := mentionFromArgs(ctx, req.Args)
	if victim == "" {
		b.say(thief, fmt.Sprintf("name a victim! Example: %ssteal @username", b.cfg.CommandPrefix))
		return
	}
	if victim == thief {
		b.say(thief, "you can't steal from yourself!")
		return
	}

	thiefBalance := b.eng.Ledger.GetBalance(thief)

	// newcomers get seed money before their life of crime begins
	if thiefBalance == 0 && !b.eng.Ledger.HasReceivedStarter(thief) {
		b.eng.Ledger.GiveStarterBalance(ctx, thief, b.cfg.StarterBalance)
		thiefBalance = b.cfg.StarterBalance
		b.say(thief, fmt.Sprintf("welcome! You get %s coins before starting your criminal career.", formatAmount(b.cfg.StarterBalance)))
	}

	// stealing from the bot never ends well
	if victim == b.botName {
		if thiefBalance > 0 {
			b.eng.Ledger.AdjustBalance(ctx, thief, -thiefBalance)
			b.eng.Ledger.AdjustBalance(ctx, b.botName, thiefBalance)
			b.say(thief, fmt.Sprintf("for mysterious reasons your balance (%s coins) vanished and ended up in the bot's account!", formatAmount(thiefBalance)))
			telemetry.LoggerWithCorr(ctx).Info("bot theft backfired",
				slog.String("thief", thief), slog.Int64("confiscated", thiefBalance))
		} else {
			b.say(thief, "you can't steal from the bot! The bot is always watching.")
		}
		return
	}

	privileged := req.User.Moderator() || slices.Contains(b.cfg.PrivilegedUsers, thief)
	res := b.eng.Theft.TrySteal(ctx, thief, victim, privileged, thiefBalance == 0)

	switch res.Outcome {
	case economy.StealSuccess:
		b.say(thief, fmt.Sprintf(b.pick(stealSuccessPhrases), formatAmount(res.Amount), victim))
	case economy.StealVictimBroke:
		b.say(thief, fmt.Sprintf(b.pick(stealVictimBrokePhrases), victim))
	case economy.StealFailed:
		b.say(thief, fmt.Sprintf(b.pick(stealFailurePhrases), victim, formatAmount(res.Penalty)))
	case economy.StealThiefBroke:
		b.say(thief, fmt.Sprintf(b.pick(stealThiefBrokePhrases), victim))
	}
	telemetry.LoggerWithCorr(ctx).Info("steal attempt",
		slog.String("thief", thief), slog.String("victim", victim),
		slog.String("outcome", res.Outcome.String()),
		slog.Int64("amount", res.Amount), slog.Int64("penalty", res.Penalty))
}

func (b *Bot) cmdStealChance(ctx context.Context, req gate.Request) {
	b.setChance(ctx, req, "steal", b.eng.Chances.SetStealChance)
}

func (b *Bot) cmdVictimChance(ctx context.Context, req gate.Request) {
	b.setChance(ctx, req, "victim", b.eng.Chances.SetVictimChance)
}

// setChance handles the two mod-only override commands; pct is 0-100.
func (b *Bot) setChance(ctx context.Context, req gate.Request, kind string, set func(context.Context, string, float64) error) {
	user := req.User.Name
	target := mentionFromArgs(ctx, req.Args)
	pct, hasPct := intFromArgs(req.Args)
	if target == "" || !hasPct {
		b.say(user, fmt.Sprintf("usage: %s%schance @username 0-100", b.cfg.CommandPrefix, kind))
		return
	}
	if pct < 0 || pct > 100 {
		b.say(user, "the chance must be between 0 and 100")
		return
	}
	if err := set(ctx, target, float64(pct)/100); err != nil {
		b.say(user, "could not set the chance")
		return
	}
	b.say(user, fmt.Sprintf("%s chance for @%s set to %d%%", kind, target, pct))
	telemetry.LoggerWithCorr(ctx).Info("chance override set",
		slog.String("by", user), slog.String("kind", kind), slog.String("target", target), slog.Int64("pct", pct))
}
