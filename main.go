// Command chat-tender runs the Twitch economy bot. It:
//   - Loads configuration and initializes structured logging.
//   - Connects to Postgres, runs idempotent migrations, and loads the
//     economy stores into memory.
//   - Joins the configured Twitch channel and dispatches chat commands
//     through the cooldown/permission gate.
//   - Keeps the moderation user token fresh with a background refresher.
//   - Exposes a minimal HTTP server with /healthz, /readyz, /status, /metrics.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/joho/godotenv"

	"github.com/onnwee/chat-tender/chat"
	"github.com/onnwee/chat-tender/config"
	"github.com/onnwee/chat-tender/db"
	"github.com/onnwee/chat-tender/economy"
	"github.com/onnwee/chat-tender/gate"
	"github.com/onnwee/chat-tender/oauth"
	"github.com/onnwee/chat-tender/server"
	"github.com/onnwee/chat-tender/telemetry"
	"github.com/onnwee/chat-tender/twitchapi"
)

func main() {
	// .env is a local dev convenience; production relies on real env
	_ = godotenv.Load()

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("chat-tender", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	database, err := db.Connect()
	if err != nil {
		slog.Error("failed to open db", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close database", slog.Any("err", err))
		}
	}()

	// Versioned migrations first; fall back to the embedded SQL for
	// deployments predating the schema_migrations table.
	slog.Info("running database migrations", slog.String("component", "db_migrate"))
	if err := db.RunMigrations(database); err != nil {
		slog.Warn("versioned migrations failed, falling back to embedded SQL",
			slog.Any("err", err), slog.String("component", "db_migrate"))
		if err := db.Migrate(context.Background(), database); err != nil {
			slog.Error("failed to migrate db", slog.Any("err", err))
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Economy stores load their full working set up front.
	ledger, err := economy.NewLedger(ctx, database)
	if err != nil {
		slog.Error("ledger load failed", slog.Any("err", err))
		os.Exit(1)
	}
	chances, err := economy.NewChanceProfile(ctx, database, cfg.BaseStealChance)
	if err != nil {
		slog.Error("chance overrides load failed", slog.Any("err", err))
		os.Exit(1)
	}
	roulette, err := economy.NewRoulette(ctx, database)
	if err != nil {
		slog.Error("roulette load failed", slog.Any("err", err))
		os.Exit(1)
	}
	reputation, err := economy.NewReputation(ctx, database)
	if err != nil {
		slog.Error("reputation load failed", slog.Any("err", err))
		os.Exit(1)
	}
	activity, err := economy.NewActivity(ctx, database)
	if err != nil {
		slog.Error("chat activity load failed", slog.Any("err", err))
		os.Exit(1)
	}
	engines := chat.Engines{
		Ledger:     ledger,
		Chances:    chances,
		Theft:      economy.NewTheftEngine(ledger, chances),
		Casino:     economy.NewCasino(ledger, cfg.CasinoWinChance),
		Roulette:   roulette,
		Reputation: reputation,
		Activity:   activity,
	}

	cooldowns := gate.NewCooldowns(ctx, database, cfg.DefaultUserCooldown, cfg.DefaultGlobalCooldown, cfg.PrivilegedUsers)
	g := &gate.Gate{Cooldowns: cooldowns, Perms: gate.NewPermissions()}

	helix := buildHelix(ctx, cfg, database)

	// Keep the moderation user token fresh.
	oauth.StartRefresher(ctx, database, "twitch", 5*time.Minute, 15*time.Minute,
		func(rctx context.Context, refreshToken string) (string, string, time.Time, string, error) {
			res, err := twitchapi.RefreshToken(rctx, cfg.TwitchClientID, cfg.TwitchClientSecret, refreshToken)
			if err != nil {
				return "", "", time.Time{}, "", err
			}
			return res.AccessToken, res.RefreshToken, twitchapi.ComputeExpiry(res.ExpiresIn), strings.Join(res.Scope, " "), nil
		})

	// Chat bot
	if err := cfg.ValidateChatReady(); err != nil {
		slog.Warn("chat bot disabled", slog.Any("err", err))
	} else {
		client := twitch.NewClient(cfg.TwitchBotUsername, cfg.TwitchOAuthToken)
		bot := chat.NewBot(cfg, client, engines, g, helix)
		go func() {
			if err := bot.Run(ctx, client); err != nil {
				slog.Error("chat bot exited with error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server (health/status/metrics)
	addr := os.Getenv("HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	deps := server.Deps{
		DB:         database,
		Ledger:     ledger,
		Roulette:   roulette,
		Reputation: reputation,
		Cooldowns:  cooldowns,
	}
	go func() {
		if err := server.Start(ctx, deps, addr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
}

// setupLogging configures slog from LOG_LEVEL and LOG_FORMAT (text | json).
func setupLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))
}

// buildHelix assembles the moderation client. Returns nil when the required
// credentials are missing; roulette then degrades to chat-only responses.
func buildHelix(ctx context.Context, cfg *config.Config, database *sql.DB) *twitchapi.HelixClient {
	if err := cfg.ValidateModerationReady(); err != nil {
		slog.Warn("helix moderation disabled", slog.Any("err", err))
		return nil
	}

	// The user token lives in oauth_tokens, kept fresh by the refresher.
	// Fall back to the IRC token, which for this bot carries the moderation
	// scopes as well.
	userToken := func(tctx context.Context) (string, error) {
		var tok sql.NullString
		err := database.QueryRowContext(tctx,
			`SELECT access_token FROM oauth_tokens WHERE provider='twitch'`).Scan(&tok)
		if err == nil && tok.String != "" {
			return tok.String, nil
		}
		return strings.TrimPrefix(cfg.TwitchOAuthToken, "oauth:"), nil
	}

	helix := &twitchapi.HelixClient{
		AppTokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
		UserToken:      userToken,
		ClientID:       cfg.TwitchClientID,
		BroadcasterID:  cfg.TwitchBroadcasterID,
	}

	// Resolve the bot's own id; it rides along as moderator_id on bans.
	lookupCtx, cancel := context.WithTimeout(ctx, 8*time.Second)
	defer cancel()
	botID, err := helix.GetUserID(lookupCtx, cfg.TwitchBotUsername)
	if err != nil {
		slog.Warn("bot user id lookup failed; moderation disabled", slog.Any("err", err))
		return nil
	}
	helix.BotUserID = botID
	slog.Info("helix moderation ready", slog.String("bot_user_id", botID))
	return helix
}
