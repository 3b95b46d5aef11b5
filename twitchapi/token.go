package twitchapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/oauth2/twitch"
)

// TokenSource yields a cached Twitch app access (client credentials) token.
// NOTE: this token works for Helix lookups but CANNOT be used for IRC chat or
// moderation; those need the bot's user OAuth token with the right scopes.
type TokenSource struct {
	ClientID     string
	ClientSecret string
	// TokenURL overrides the Twitch IDP endpoint; tests point it at a fake.
	TokenURL   string
	HTTPClient *http.Client

	mu  sync.Mutex
	src oauth2.TokenSource
}

// Get returns a valid (fresh or cached) app access token.
func (ts *TokenSource) Get(ctx context.Context) (string, error) {
	ts.mu.Lock()
	if ts.src == nil {
		cfg := &clientcredentials.Config{
			ClientID:     ts.ClientID,
			ClientSecret: ts.ClientSecret,
			TokenURL:     ts.TokenURL,
		}
		if cfg.TokenURL == "" {
			cfg.TokenURL = twitch.Endpoint.TokenURL
		}
		// the source outlives any single request, so it carries its own ctx
		cctx := context.Background()
		if ts.HTTPClient != nil {
			cctx = context.WithValue(cctx, oauth2.HTTPClient, ts.HTTPClient)
		}
		ts.src = oauth2.ReuseTokenSource(nil, cfg.TokenSource(cctx))
	}
	src := ts.src
	ts.mu.Unlock()

	tok, err := src.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// SetToken pins a static token until expiry; tests use it to skip the grant.
func (ts *TokenSource) SetToken(token string, expiry time.Time) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.src = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, Expiry: expiry})
}
