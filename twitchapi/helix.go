// Package twitchapi contains minimal helpers for the Twitch Helix endpoints
// the bot needs: login/id resolution on an app access token, and moderation
// (timeouts, whispers) on the bot's user token.
package twitchapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/onnwee/chat-tender/telemetry"
)

// UserTokenFunc returns the bot's user OAuth token. Moderation endpoints
// require it; the background refresher keeps it fresh.
type UserTokenFunc func(ctx context.Context) (string, error)

// HelixClient provides the lookup and moderation methods used by commands.
type HelixClient struct {
	AppTokenSource *TokenSource
	UserToken      UserTokenFunc
	ClientID       string
	// BroadcasterID is the channel the bot moderates; BotUserID is the bot's
	// own id, sent as moderator_id on moderation calls.
	BroadcasterID string
	BotUserID     string
	HTTPClient    *http.Client
}

func (hc *HelixClient) http() *http.Client {
	if hc.HTTPClient != nil {
		return hc.HTTPClient
	}
	return http.DefaultClient
}

// GetUserID resolves a login name to its user ID.
func (hc *HelixClient) GetUserID(ctx context.Context, login string) (string, error) {
	if login == "" {
		return "", fmt.Errorf("login empty")
	}
	var body struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := hc.getApp(ctx, "https://api.twitch.tv/helix/users", url.Values{"login": {login}}, &body); err != nil {
		return "", err
	}
	if len(body.Data) == 0 {
		return "", fmt.Errorf("user not found")
	}
	return body.Data[0].ID, nil
}

// GetUsername resolves a user ID back to its login name.
func (hc *HelixClient) GetUsername(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("userID empty")
	}
	var body struct {
		Data []struct {
			Login string `json:"login"`
		} `json:"data"`
	}
	if err := hc.getApp(ctx, "https://api.twitch.tv/helix/users", url.Values{"id": {userID}}, &body); err != nil {
		return "", err
	}
	if len(body.Data) == 0 {
		return "", fmt.Errorf("user not found")
	}
	return body.Data[0].Login, nil
}

// TimeoutUser mutes a user in the channel for durationSeconds via
// POST /moderation/bans. Requires the bot's user token with
// moderator:manage:banned_users and the bot modded in the channel.
func (hc *HelixClient) TimeoutUser(ctx context.Context, targetUserID string, durationSeconds int, reason string) error {
	if targetUserID == "" {
		return fmt.Errorf("targetUserID empty")
	}
	if durationSeconds <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	if reason == "" {
		reason = "No reason provided"
	}
	payload := map[string]any{
		"data": map[string]any{
			"user_id":  targetUserID,
			"duration": durationSeconds,
			"reason":   reason,
		},
	}
	q := url.Values{
		"broadcaster_id": {hc.BroadcasterID},
		"moderator_id":   {hc.BotUserID},
	}
	err := hc.postUser(ctx, "https://api.twitch.tv/helix/moderation/bans", q, payload)
	telemetry.ModerationCall("timeout", err == nil)
	if err != nil {
		return err
	}
	slog.Info("timed out user", slog.String("user_id", targetUserID), slog.Int("seconds", durationSeconds))
	return nil
}

// SendWhisper sends a private message from the bot to a user. Twitch rate
// limits whispers aggressively, so callers treat failure as non-fatal.
func (hc *HelixClient) SendWhisper(ctx context.Context, toUserID, message string) error {
	if toUserID == "" {
		return fmt.Errorf("toUserID empty")
	}
	q := url.Values{
		"from_user_id": {hc.BotUserID},
		"to_user_id":   {toUserID},
	}
	err := hc.postUser(ctx, "https://api.twitch.tv/helix/whispers", q, map[string]any{"message": message})
	telemetry.ModerationCall("whisper", err == nil)
	return err
}

func (hc *HelixClient) getApp(ctx context.Context, rawURL string, q url.Values, out any) error {
	tok, err := hc.AppTokenSource.Get(ctx)
	if err != nil {
		return err
	}
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("helix request failed: %s: %s", resp.Status, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (hc *HelixClient) postUser(ctx context.Context, rawURL string, q url.Values, payload any) error {
	if hc.UserToken == nil {
		return fmt.Errorf("no user token source configured")
	}
	tok, err := hc.UserToken(ctx)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, &buf)
	if err != nil {
		return err
	}
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Client-Id", hc.ClientID)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	resp, err := hc.http().Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("helix request failed: %s: %s", resp.Status, string(b))
	}
	return nil
}
