// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	CommandsProcessed *prometheus.CounterVec
	CommandsBlocked   *prometheus.CounterVec
	StealAttempts     *prometheus.CounterVec
	CasinoBets        *prometheus.CounterVec
	RouletteShots     *prometheus.CounterVec
	PersistFailures   *prometheus.CounterVec
	ModerationCalls   *prometheus.CounterVec

	// Histograms (seconds)
	CommandDuration prometheus.Observer

	// Gauges
	TrackedAccountsGauge  prometheus.Gauge
	CooldownsEnabledGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		CommandsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_commands_processed_total", Help: "Commands dispatched to a handler, by command name"}, []string{"command"})
		CommandsBlocked = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_commands_blocked_total", Help: "Commands rejected by the cooldown gate, by cooldown type (user|global)"}, []string{"command", "type"})
		StealAttempts = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_steal_attempts_total", Help: "Steal attempts by outcome"}, []string{"outcome"})
		CasinoBets = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_casino_bets_total", Help: "Casino bets by outcome (win|loss)"}, []string{"outcome"})
		RouletteShots = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_roulette_shots_total", Help: "Roulette trigger pulls by outcome (safe|shot)"}, []string{"outcome"})
		PersistFailures = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_persist_failures_total", Help: "Store write failures deferred to the dirty-set retry, by store"}, []string{"store"})
		ModerationCalls = promauto.NewCounterVec(prometheus.CounterOpts{Name: "bot_moderation_calls_total", Help: "Helix moderation calls by kind and result (ok|error)"}, []string{"kind", "result"})
		CommandDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bot_command_duration_seconds", Help: "End-to-end command handling duration", Buckets: prometheus.DefBuckets})
		TrackedAccountsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_tracked_accounts", Help: "Number of accounts in the ledger"})
		CooldownsEnabledGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_cooldowns_enabled", Help: "Cooldown subsystem enabled=1 disabled=0"})
	})
}

// CountCommand increments the processed counter for a command; nil-safe before Init.
func CountCommand(name string) {
	if CommandsProcessed != nil {
		CommandsProcessed.WithLabelValues(name).Inc()
	}
}

// CountBlocked increments the cooldown-block counter; nil-safe before Init.
func CountBlocked(command, cooldownType string) {
	if CommandsBlocked != nil {
		CommandsBlocked.WithLabelValues(command, cooldownType).Inc()
	}
}

// CountPersistFailure records a deferred store write; nil-safe before Init.
func CountPersistFailure(store string) {
	if PersistFailures != nil {
		PersistFailures.WithLabelValues(store).Inc()
	}
}

// SetTrackedAccounts records the current ledger size.
func SetTrackedAccounts(n int) {
	if TrackedAccountsGauge != nil {
		TrackedAccountsGauge.Set(float64(n))
	}
}

// SetCooldownsEnabled mirrors the gate kill-switch into a gauge.
func SetCooldownsEnabled(enabled bool) {
	if CooldownsEnabledGauge != nil {
		if enabled {
			CooldownsEnabledGauge.Set(1)
		} else {
			CooldownsEnabledGauge.Set(0)
		}
	}
}

// ModerationCall records a Helix moderation call result; nil-safe before Init.
func ModerationCall(kind string, ok bool) {
	if ModerationCalls != nil {
		result := "error"
		if ok {
			result = "ok"
		}
		ModerationCalls.WithLabelValues(kind, result).Inc()
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------

type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns the default logger with the correlation id attached when present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if corr := GetCorrelation(ctx); corr != "" {
		return slog.Default().With(slog.String("corr_id", corr))
	}
	return slog.Default()
}
