package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/chat-tender/economy"
	"github.com/onnwee/chat-tender/gate"
	"github.com/onnwee/chat-tender/telemetry"
)

// observeActivity accrues chat XP for plain (non-command) messages and
// announces level-ups. The bot's own messages never count.
func (b *Bot) observeActivity(ctx context.Context, msg twitch.PrivateMessage) {
	if b.eng.Activity == nil {
		return
	}
	user := strings.ToLower(msg.User.Name)
	if user == b.botName {
		return
	}
	up, ok := b.eng.Activity.RecordMessage(ctx, user, msg.Message)
	if !ok {
		return
	}
	b.say(user, fmt.Sprintf("🎉 reached level %d (%s)! Total messages: %s",
		up.Level.Level, up.Level.Title, formatAmount(up.Messages)))
	telemetry.LoggerWithCorr(ctx).Info("chat level up",
		slog.String("user", user), slog.Int("level", up.Level.Level), slog.Int64("messages", up.Messages))
}

func (b *Bot) cmdChatStats(ctx context.Context, req gate.Request) {
	target := targetFromArgs(ctx, req.Args, req.User.Name)
	st := b.eng.Activity.Stats(target)

	xp := fmt.Sprintf("%s XP", formatAmount(st.XP))
	if next, ok := economy.NextActivityLevel(st.Level); ok {
		xp = fmt.Sprintf("%s/%s XP", formatAmount(st.XP), formatAmount(next.XP))
	}
	b.say(req.User.Name, fmt.Sprintf("@%s is level %d (%s) with %s over %s messages",
		target, st.Level.Level, st.Level.Title, xp, formatAmount(st.Messages)))
}
