// Package chat wires the Twitch IRC client to the economy engines: it parses
// prefix commands out of channel messages, runs them through the cooldown and
// permission gate, and formats the replies.
package chat

import (
	"context"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"
	"github.com/google/uuid"

	"github.com/onnwee/chat-tender/config"
	"github.com/onnwee/chat-tender/economy"
	"github.com/onnwee/chat-tender/gate"
	"github.com/onnwee/chat-tender/telemetry"
	"github.com/onnwee/chat-tender/twitchapi"
)

// Sender abstracts the outbound side of the IRC client so tests can capture
// messages. *twitch.Client satisfies it.
type Sender interface {
	Say(channel, text string)
	Reply(channel, parentID, text string)
}

// Engines bundles the stores and game engines the handlers act on.
type Engines struct {
	Ledger     *economy.Ledger
	Chances    *economy.ChanceProfile
	Theft      *economy.TheftEngine
	Casino     *economy.Casino
	Roulette   *economy.Roulette
	Reputation *economy.Reputation
	Activity   *economy.Activity
}

// Bot is the chat front end: one IRC connection, one channel, a static
// command registry dispatched through the gate.
type Bot struct {
	cfg     *config.Config
	sender  Sender
	channel string
	botName string

	eng   Engines
	gate  *gate.Gate
	helix *twitchapi.HelixClient

	commands map[string]gate.Handler
	rng      *rand.Rand
}

// NewBot assembles the bot and registers every command. helix may be nil;
// moderation-dependent paths then degrade to chat-only responses.
func NewBot(cfg *config.Config, sender Sender, eng Engines, g *gate.Gate, helix *twitchapi.HelixClient) *Bot {
	b := &Bot{
		cfg:     cfg,
		sender:  sender,
		channel: cfg.TwitchChannel,
		botName: strings.ToLower(cfg.TwitchBotUsername),
		eng:     eng,
		gate:    g,
		helix:   helix,
		//nolint:gosec // G404: phrase selection, not used for security
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	g.OnBlocked = b.onBlocked
	g.OnDenied = b.onDenied
	b.register()
	return b
}

// register builds the static command table. Names are the post-prefix words.
func (b *Bot) register() {
	b.commands = map[string]gate.Handler{
		"balance":       b.gate.Wrap(gate.Spec{UserCooldown: 5 * time.Second, GlobalCooldown: 2 * time.Second}, b.cmdBalance),
		"give":          b.gate.Wrap(gate.Spec{UserCooldown: 30 * time.Second, GlobalCooldown: 5 * time.Second}, b.cmdGive),
		"top":           b.gate.Wrap(gate.Spec{UserCooldown: 20 * time.Second, GlobalCooldown: 5 * time.Second}, b.cmdTop),
		"steal":         b.gate.Wrap(gate.Spec{UserCooldown: 60 * time.Second, GlobalCooldown: 10 * time.Second}, b.cmdSteal),
		"casino":        b.gate.Wrap(gate.Spec{UserCooldown: 30 * time.Second, GlobalCooldown: 5 * time.Second}, b.cmdCasino),
		"roulette":      b.gate.Wrap(gate.Spec{}, b.cmdRoulette),
		"roulettestats": b.gate.Wrap(gate.Spec{}, b.cmdRouletteStats),
		"roulettestop":  b.gate.Wrap(gate.Spec{}, b.cmdRouletteStop),
		"pray":          b.gate.Wrap(gate.Spec{UserCooldown: 10 * time.Second, GlobalCooldown: 2 * time.Second}, b.cmdPray),
		"rep":           b.gate.Wrap(gate.Spec{UserCooldown: 5 * time.Second, GlobalCooldown: 2 * time.Second}, b.cmdRep),
		"setrep":        b.gate.Wrap(gate.Spec{ModOnly: true}, b.cmdSetRep),
		"stealchance":   b.gate.Wrap(gate.Spec{ModOnly: true}, b.cmdStealChance),
		"victimchance":  b.gate.Wrap(gate.Spec{ModOnly: true}, b.cmdVictimChance),
		"chatstats":     b.gate.Wrap(gate.Spec{UserCooldown: 120 * time.Second, GlobalCooldown: 3 * time.Second}, b.cmdChatStats),
		"cooldowns":     b.gate.Wrap(gate.Spec{ModOnly: true}, b.cmdCooldowns),
	}
}

// Run connects to chat and blocks until ctx is cancelled or the connection
// fails. The sender must be the *twitch.Client passed here.
func (b *Bot) Run(ctx context.Context, client *twitch.Client) error {
	client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		b.Dispatch(ctx, msg)
	})
	client.OnConnect(func() {
		slog.Info("connected to twitch chat", slog.String("channel", b.channel))
	})

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := client.Disconnect(); err != nil {
			slog.Warn("chat disconnect", slog.Any("err", err))
		}
		close(done)
	}()

	client.Join(b.channel)
	err := client.Connect()
	select {
	case <-done:
		return nil
	default:
	}
	return err
}

// Dispatch routes one message to its command handler, if any.
func (b *Bot) Dispatch(ctx context.Context, msg twitch.PrivateMessage) {
	text := strings.TrimSpace(msg.Message)
	if !strings.HasPrefix(text, b.cfg.CommandPrefix) {
		b.observeActivity(ctx, msg)
		return
	}
	fields := strings.Fields(strings.TrimPrefix(text, b.cfg.CommandPrefix))
	if len(fields) == 0 {
		return
	}
	name := strings.ToLower(fields[0])
	handler, ok := b.commands[name]
	if !ok {
		return
	}

	req := gate.Request{
		Command:   name,
		User:      userFromMessage(msg),
		Args:      fields[1:],
		MessageID: msg.ID,
	}
	ctx = telemetry.WithCorrelation(ctx, uuid.NewString())
	// reply-parent carries the implicit target for balance/steal
	if msg.Reply != nil {
		ctx = withReplyParent(ctx, msg.Reply.ParentUserLogin)
	}

	telemetry.TimeFunc(telemetry.CommandDuration, func() {
		handler(ctx, req)
	})
}

func userFromMessage(msg twitch.PrivateMessage) gate.User {
	_, mod := msg.User.Badges["moderator"]
	_, caster := msg.User.Badges["broadcaster"]
	return gate.User{
		Name:          strings.ToLower(msg.User.Name),
		IsMod:         mod,
		IsBroadcaster: caster,
	}
}

// say posts a plain channel message addressed to the user.
func (b *Bot) say(user, text string) {
	b.sender.Say(b.channel, "@"+user+", "+text)
}

// reply threads the response under the triggering message when possible.
func (b *Bot) reply(req gate.Request, text string) {
	if req.MessageID != "" {
		b.sender.Reply(b.channel, req.MessageID, text)
		return
	}
	b.say(req.User.Name, text)
}

func (b *Bot) onBlocked(ctx context.Context, req gate.Request, kind gate.BlockKind, remaining time.Duration) {
	secs := int(remaining.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	if kind == gate.BlockGlobal {
		b.reply(req, blockedGlobalMessage(secs))
		return
	}
	b.reply(req, blockedUserMessage(secs))
}

func (b *Bot) onDenied(ctx context.Context, req gate.Request) {
	b.reply(req, deniedMessage(req.Command))
}

// pick selects a random phrase from a set.
func (b *Bot) pick(set []string) string {
	return set[b.rng.Intn(len(set))]
}

// reply-parent context key -------------------------------------------------

type replyParentKey struct{}

func withReplyParent(ctx context.Context, login string) context.Context {
	if login == "" {
		return ctx
	}
	return context.WithValue(ctx, replyParentKey{}, strings.ToLower(login))
}

func replyParent(ctx context.Context) string {
	s, _ := ctx.Value(replyParentKey{}).(string)
	return s
}
