// Package oauth keeps the bot's user token alive: a background loop watches
// the oauth_tokens row and refreshes it before expiry so Helix moderation
// calls never run on a stale token.
package oauth

import (
	"context"
	"database/sql"
	"log/slog"
	"math/rand"
	"strings"
	"time"
)

// RefreshFunc performs the provider-specific refresh and returns the new
// access token, refresh token, expiry, and scope.
type RefreshFunc func(ctx context.Context, refreshToken string) (string, string, time.Time, string, error)

// StartRefresher launches a goroutine that wakes up every interval and
// refreshes the provider's token once its remaining lifetime drops inside
// window. All sleeps are jittered so multiple replicas don't refresh in
// lockstep against the same row.
func StartRefresher(ctx context.Context, dbx *sql.DB, provider string, interval, window time.Duration, fn RefreshFunc) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	go func() {
		//nolint:gosec // G404: scheduling jitter, not used for security
		if !sleep(ctx, time.Duration(rand.Int63n(int64(interval/2)))) {
			return
		}
		for {
			if !sleep(ctx, jittered(interval)) {
				return
			}
			refreshOnce(ctx, dbx, provider, window, fn)
		}
	}()
}

// refreshOnce checks the stored token and refreshes it when due.
func refreshOnce(ctx context.Context, dbx *sql.DB, provider string, window time.Duration, fn RefreshFunc) {
	row := dbx.QueryRowContext(ctx,
		`SELECT refresh_token, expires_at, scope FROM oauth_tokens WHERE provider=$1 LIMIT 1`, provider)
	var refresh, scope string
	var expiry time.Time
	if err := row.Scan(&refresh, &expiry, &scope); err != nil {
		return
	}
	if refresh == "" || time.Until(expiry) > window {
		return
	}

	// short pre-refresh jitter against stampedes on a shared expiry
	//nolint:gosec // G404: scheduling jitter, not used for security
	if !sleep(ctx, time.Duration(rand.Int63n(int64(5*time.Second)))) {
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	newAccess, newRefresh, newExpiry, newScope, err := fn(callCtx, refresh)
	cancel()
	if err != nil {
		slog.Warn("token refresh failed", slog.String("provider", provider), slog.Any("err", err))
		return
	}
	if newRefresh == "" {
		newRefresh = refresh
	}
	if newScope == "" {
		newScope = scope
	}
	_, err = dbx.ExecContext(ctx,
		`UPDATE oauth_tokens SET access_token=$1, refresh_token=$2, expires_at=$3, scope=$4, updated_at=NOW() WHERE provider=$5`,
		newAccess, newRefresh, newExpiry, strings.TrimSpace(newScope), provider)
	if err != nil {
		slog.Warn("token persist failed", slog.String("provider", provider), slog.Any("err", err))
		return
	}
	slog.Info("token refreshed", slog.String("provider", provider))
}

// jittered spreads interval by +/-20%, floored at half the interval.
func jittered(interval time.Duration) time.Duration {
	span := int64(interval / 5)
	//nolint:gosec // G404: scheduling jitter, not used for security
	d := interval + time.Duration(rand.Int63n(span*2)-span)
	if d < interval/2 {
		d = interval / 2
	}
	return d
}

// sleep waits for d or until ctx is cancelled; reports whether to keep going.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
