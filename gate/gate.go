package gate

import (
	"context"
	"time"

	"github.com/onnwee/chat-tender/telemetry"
)

// Request is one parsed chat command on its way to a handler.
type Request struct {
	Command string
	User    User
	Args    []string
	// MessageID is the IRC message id, used for threaded replies.
	MessageID string
}

// Handler executes a command for a request.
type Handler func(ctx context.Context, req Request)

// Spec declares a command's gating requirements.
type Spec struct {
	UserCooldown   time.Duration
	GlobalCooldown time.Duration
	ModOnly        bool
}

// Gate wraps handlers with the cooldown and permission checks. OnBlocked is
// called (after notice dedup) when a cooldown rejection deserves a chat
// reply; OnDenied when a non-mod hits a mod-only command.
type Gate struct {
	Cooldowns *Cooldowns
	Perms     *Permissions

	OnBlocked func(ctx context.Context, req Request, kind BlockKind, remaining time.Duration)
	OnDenied  func(ctx context.Context, req Request)
}

// Wrap builds the middleware chain for one command: cooldown check, then
// permission check, then the handler. Cooldowns are stamped only when the
// handler actually runs.
func (g *Gate) Wrap(spec Spec, h Handler) Handler {
	return func(ctx context.Context, req Request) {
		blocked, remaining, kind := g.Cooldowns.Check(req.Command, req.User.Name, spec.UserCooldown, spec.GlobalCooldown, req.User.Moderator())
		if blocked {
			telemetry.CountBlocked(req.Command, string(kind))
			if g.OnBlocked != nil && g.Cooldowns.ShouldNotify(req.Command, req.User.Name, kind) {
				g.OnBlocked(ctx, req, kind, remaining)
			}
			return
		}

		if spec.ModOnly && !req.User.Moderator() {
			if g.OnDenied != nil {
				g.OnDenied(ctx, req)
			}
			return
		}
		if !g.Perms.Permitted(req.Command, req.User) {
			if g.OnDenied != nil {
				g.OnDenied(ctx, req)
			}
			return
		}

		g.Cooldowns.Stamp(req.Command, req.User.Name, req.User.Moderator())
		telemetry.CountCommand(req.Command)
		h(ctx, req)
	}
}
