package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/onnwee/chat-tender/economy"
	"github.com/onnwee/chat-tender/gate"
	"github.com/onnwee/chat-tender/telemetry"
)

func (b *Bot) cmdPray(ctx context.Context, req gate.Request) {
	user := req.User.Name
	target := targetFromArgs(ctx, req.Args, user)

	score := b.eng.Reputation.Modify(ctx, target, 1)
	status := economy.Status(score)
	if target == user {
		b.say(user, fmt.Sprintf("prayed and cleansed their karma! Reputation: %d (%s)", score, status))
	} else {
		b.say(user, fmt.Sprintf("prayed for @%s! Their reputation: %d (%s)", target, score, status))
	}
	telemetry.LoggerWithCorr(ctx).Info("pray",
		slog.String("user", user), slog.String("target", target), slog.Int64("score", score))
}

func (b *Bot) cmdRep(ctx context.Context, req gate.Request) {
	target := targetFromArgs(ctx, req.Args, req.User.Name)
	score := b.eng.Reputation.Get(target)
	b.say(req.User.Name, fmt.Sprintf("@%s has reputation %d (%s)", target, score, economy.Status(score)))
}

func (b *Bot) cmdSetRep(ctx context.Context, req gate.Request) {
	target := mentionFromArgs(ctx, req.Args)
	score, hasScore := intFromArgs(req.Args)
	if target == "" || !hasScore {
		b.say(req.User.Name, fmt.Sprintf("usage: %ssetrep @username <score>", b.cfg.CommandPrefix))
		return
	}

	old := b.eng.Reputation.Get(target)
	b.eng.Reputation.Set(ctx, target, score)
	b.say(req.User.Name, fmt.Sprintf("changed @%s's reputation from %d to %d (%s)",
		target, old, score, economy.Status(score)))
	telemetry.LoggerWithCorr(ctx).Info("reputation set",
		slog.String("by", req.User.Name), slog.String("target", target),
		slog.Int64("old", old), slog.Int64("new", score))
}
