package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/onnwee/chat-tender/gate"
	"github.com/onnwee/chat-tender/telemetry"
)

func (b *Bot) cmdCooldowns(ctx context.Context, req gate.Request) {
	user := req.User.Name
	action := ""
	if len(req.Args) > 0 {
		action = strings.ToLower(req.Args[0])
	}

	switch action {
	case "", "status":
		b.say(user, cooldownStatus(b.gate.Cooldowns.Enabled()))
	case "off", "stop":
		b.gate.Cooldowns.SetEnabled(ctx, false)
		b.say(user, "Cooldown system disabled")
		telemetry.LoggerWithCorr(ctx).Info("cooldowns disabled", slog.String("by", user))
	case "on", "start":
		b.gate.Cooldowns.SetEnabled(ctx, true)
		b.say(user, "Cooldown system enabled")
		telemetry.LoggerWithCorr(ctx).Info("cooldowns enabled", slog.String("by", user))
	case "toggle":
		enabled := !b.gate.Cooldowns.Enabled()
		b.gate.Cooldowns.SetEnabled(ctx, enabled)
		b.say(user, cooldownStatus(enabled))
		telemetry.LoggerWithCorr(ctx).Info("cooldowns toggled",
			slog.String("by", user), slog.Bool("enabled", enabled))
	default:
		b.say(user, "unknown action. Use: "+b.cfg.CommandPrefix+"cooldowns status/on/off/toggle")
	}
}

func cooldownStatus(enabled bool) string {
	if enabled {
		return "Cooldown system is enabled"
	}
	return "Cooldown system is disabled"
}
