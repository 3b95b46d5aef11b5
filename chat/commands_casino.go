package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/onnwee/chat-tender/economy"
	"github.com/onnwee/chat-tender/gate"
	"github.com/onnwee/chat-tender/telemetry"
)

func (b *Bot) cmdCasino(ctx context.Context, req gate.Request) {
	user := req.User.Name
	pct, hasPct := intFromArgs(req.Args)
	if !hasPct {
		b.say(user, fmt.Sprintf("name a percentage of your balance to bet (1-100). Example: %scasino 50", b.cfg.CommandPrefix))
		return
	}

	res, err := b.eng.Casino.Play(ctx, user, int(pct))
	switch {
	case errors.Is(err, economy.ErrInvalidPercentage):
		b.say(user, "the percentage must be between 1 and 100.")
		return
	case errors.Is(err, economy.ErrInsufficientFunds):
		b.say(user, "you have no coins to gamble with.")
		return
	case err != nil:
		b.say(user, "something went wrong at the casino.")
		telemetry.LoggerWithCorr(ctx).Error("casino play failed", slog.String("user", user), slog.Any("err", err))
		return
	}

	if res.Win {
		b.sender.Say(b.channel, fmt.Sprintf("🎰 @%s WON at the casino! Bet: %s coins (%d%%). New balance: %s coins (+%s)",
			user, formatAmount(res.Bet), pct, formatAmount(res.NewBalance), formatAmount(res.Bet)))
	} else {
		b.sender.Say(b.channel, fmt.Sprintf("🎰 @%s lost at the casino. Bet: %s coins (%d%%). New balance: %s coins (-%s)",
			user, formatAmount(res.Bet), pct, formatAmount(res.NewBalance), formatAmount(res.Bet)))
	}
	telemetry.LoggerWithCorr(ctx).Info("casino bet",
		slog.String("user", user), slog.Bool("win", res.Win),
		slog.Int64("bet", res.Bet), slog.Int64("balance", res.NewBalance))
}
