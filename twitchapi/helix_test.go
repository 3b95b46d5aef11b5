package twitchapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// rewriteTransport rewrites all requests to use the test server
type rewriteTransport struct {
	Transport http.RoundTripper
	host      string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	if t.host != "" {
		host := t.host
		host = strings.TrimPrefix(host, "http://")
		host = strings.TrimPrefix(host, "https://")
		req.URL.Host = host
	}
	return t.Transport.RoundTrip(req)
}

func testClient(server *httptest.Server) *HelixClient {
	ts := &TokenSource{ClientID: "test-client-id", ClientSecret: "test-secret"}
	ts.SetToken("test-token", time.Now().Add(1*time.Hour))
	return &HelixClient{
		AppTokenSource: ts,
		UserToken: func(ctx context.Context) (string, error) {
			return "user-token", nil
		},
		ClientID:      "test-client-id",
		BroadcasterID: "b-1",
		BotUserID:     "bot-1",
		HTTPClient: &http.Client{
			Transport: &rewriteTransport{Transport: http.DefaultTransport, host: server.URL},
		},
	}
}

func TestHelixClient_GetUserID(t *testing.T) {
	tests := []struct {
		response    interface{}
		name        string
		login       string
		wantUserID  string
		errContains string
		wantErr     bool
	}{
		{
			name:  "successful user lookup",
			login: "testuser",
			response: map[string]interface{}{
				"data": []map[string]string{{"id": "12345", "login": "testuser"}},
			},
			wantUserID: "12345",
		},
		{
			name:        "user not found",
			login:       "nonexistent",
			response:    map[string]interface{}{"data": []map[string]string{}},
			wantErr:     true,
			errContains: "user not found",
		},
		{
			name:        "empty login",
			login:       "",
			wantErr:     true,
			errContains: "login empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Client-Id") != "test-client-id" {
					t.Errorf("missing or wrong Client-Id header")
				}
				if r.Header.Get("Authorization") != "Bearer test-token" {
					t.Errorf("missing or wrong Authorization header")
				}
				if tt.login != "" && r.URL.Query().Get("login") != tt.login {
					t.Errorf("login query param = %s, want %s", r.URL.Query().Get("login"), tt.login)
				}
				w.WriteHeader(http.StatusOK)
				if tt.response != nil {
					_ = json.NewEncoder(w).Encode(tt.response)
				}
			}))
			defer server.Close()

			userID, err := testClient(server).GetUserID(context.Background(), tt.login)
			if tt.wantErr {
				if err == nil {
					t.Errorf("GetUserID() error = nil, want error containing %q", tt.errContains)
				} else if tt.errContains != "" && !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("GetUserID() error = %v, want error containing %q", err, tt.errContains)
				}
				return
			}
			if err != nil {
				t.Errorf("GetUserID() unexpected error = %v", err)
				return
			}
			if userID != tt.wantUserID {
				t.Errorf("GetUserID() = %s, want %s", userID, tt.wantUserID)
			}
		})
	}
}

func TestHelixClient_GetUsername(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("id"); got != "12345" {
			t.Errorf("id query param = %s, want 12345", got)
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]string{{"id": "12345", "login": "testuser"}},
		})
	}))
	defer server.Close()

	login, err := testClient(server).GetUsername(context.Background(), "12345")
	if err != nil {
		t.Fatalf("GetUsername() error = %v", err)
	}
	if login != "testuser" {
		t.Fatalf("GetUsername() = %s, want testuser", login)
	}
}

func TestHelixClient_TimeoutUser(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/helix/moderation/bans" {
			t.Errorf("path = %s, want /helix/moderation/bans", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer user-token" {
			t.Errorf("moderation call auth = %q, want the user token", got)
		}
		if got := r.URL.Query().Get("broadcaster_id"); got != "b-1" {
			t.Errorf("broadcaster_id = %s, want b-1", got)
		}
		if got := r.URL.Query().Get("moderator_id"); got != "bot-1" {
			t.Errorf("moderator_id = %s, want bot-1", got)
		}
		var body struct {
			Data struct {
				UserID   string `json:"user_id"`
				Duration int    `json:"duration"`
				Reason   string `json:"reason"`
			} `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Data.UserID != "victim-1" || body.Data.Duration != 42 {
			t.Errorf("body = %+v, want victim-1 for 42s", body.Data)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := testClient(server).TimeoutUser(context.Background(), "victim-1", 42, "lost at roulette")
	if err != nil {
		t.Fatalf("TimeoutUser() error = %v", err)
	}
}

func TestHelixClient_TimeoutUserRejectsBadArgs(t *testing.T) {
	client := &HelixClient{}
	if err := client.TimeoutUser(context.Background(), "", 10, ""); err == nil {
		t.Error("empty target accepted")
	}
	if err := client.TimeoutUser(context.Background(), "u-1", 0, ""); err == nil {
		t.Error("zero duration accepted")
	}
}

func TestHelixClient_SendWhisper(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/helix/whispers" {
			t.Errorf("path = %s, want /helix/whispers", r.URL.Path)
		}
		if got := r.URL.Query().Get("from_user_id"); got != "bot-1" {
			t.Errorf("from_user_id = %s, want bot-1", got)
		}
		if got := r.URL.Query().Get("to_user_id"); got != "u-9" {
			t.Errorf("to_user_id = %s, want u-9", got)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	if err := testClient(server).SendWhisper(context.Background(), "u-9", "hi"); err != nil {
		t.Fatalf("SendWhisper() error = %v", err)
	}
}

func TestHelixClient_ModerationWithoutUserToken(t *testing.T) {
	client := &HelixClient{ClientID: "c", BroadcasterID: "b", BotUserID: "m"}
	if err := client.TimeoutUser(context.Background(), "u-1", 10, ""); err == nil {
		t.Error("moderation call without a user token source succeeded")
	}
}
