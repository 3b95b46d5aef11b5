package server

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/onnwee/chat-tender/economy"
	"github.com/onnwee/chat-tender/gate"
)

// Deps is everything the HTTP handlers read. DB may be nil (memory-only runs);
// the probes then report not ready but /status still serves.
type Deps struct {
	DB         *sql.DB
	Ledger     *economy.Ledger
	Roulette   *economy.Roulette
	Reputation *economy.Reputation
	Cooldowns  *gate.Cooldowns
}

// Handlers carries the dependencies plus the process start time for uptime.
type Handlers struct {
	deps      Deps
	startedAt time.Time
}

func NewHandlers(deps Deps) *Handlers {
	return &Handlers{deps: deps, startedAt: time.Now()}
}

// HandleHealthz is the liveness probe: the process is up and the database
// answers a ping.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	if h.deps.DB == nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	if err := h.deps.DB.PingContext(r.Context()); err != nil {
		http.Error(w, "unhealthy", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// HandleReadyz is the readiness probe: database reachable and a Twitch user
// token on file so moderation calls can succeed.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"database", func() error {
			if h.deps.DB == nil {
				return fmt.Errorf("no database configured")
			}
			return h.deps.DB.PingContext(r.Context())
		}},
		{"credentials", func() error {
			var count int
			err := h.deps.DB.QueryRowContext(r.Context(),
				"SELECT COUNT(*) FROM oauth_tokens WHERE provider='twitch'").Scan(&count)
			if err != nil {
				return err
			}
			if count < 1 {
				return fmt.Errorf("missing twitch OAuth token")
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

// HandleStatus returns a lightweight summary: uptime, per-store sizes, and the
// cooldown kill-switch state.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := map[string]any{
		"uptime": time.Since(h.startedAt).Round(time.Second).String(),
	}
	if h.deps.Ledger != nil {
		resp["accounts"] = h.deps.Ledger.Count()
	}
	if h.deps.Roulette != nil {
		resp["roulette_cylinders"] = h.deps.Roulette.Count()
	}
	if h.deps.Reputation != nil {
		resp["reputation_scores"] = h.deps.Reputation.Count()
	}
	if h.deps.Cooldowns != nil {
		resp["cooldowns_enabled"] = h.deps.Cooldowns.Enabled()
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
