package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	twitch "github.com/gempir/go-twitch-irc/v4"

	"github.com/onnwee/chat-tender/config"
	"github.com/onnwee/chat-tender/economy"
	"github.com/onnwee/chat-tender/gate"
)

// fakeSender records outbound chat messages.
type fakeSender struct {
	says    []string
	replies []string
}

func (f *fakeSender) Say(channel, text string) { f.says = append(f.says, text) }

func (f *fakeSender) Reply(channel, parent, text string) { f.replies = append(f.replies, text) }

func (f *fakeSender) all() []string {
	return append(append([]string{}, f.says...), f.replies...)
}

func newTestBot(t *testing.T) (*Bot, *fakeSender) {
	t.Helper()
	ctx := context.Background()
	cfg := &config.Config{
		TwitchChannel:     "testchannel",
		TwitchBotUsername: "tenderbot",
		CommandPrefix:     "!",
		StarterBalance:    100,
	}
	ledger, err := economy.NewLedger(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	chances, err := economy.NewChanceProfile(ctx, nil, 0)
	if err != nil {
		t.Fatal(err)
	}
	roulette, err := economy.NewRoulette(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	reputation, err := economy.NewReputation(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	activity, err := economy.NewActivity(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	eng := Engines{
		Ledger:     ledger,
		Chances:    chances,
		Theft:      economy.NewTheftEngine(ledger, chances),
		Casino:     economy.NewCasino(ledger, 1.0), // deterministic wins
		Roulette:   roulette,
		Reputation: reputation,
		Activity:   activity,
	}
	g := &gate.Gate{
		Cooldowns: gate.NewCooldowns(ctx, nil, 3*time.Second, time.Second, nil),
		Perms:     gate.NewPermissions(),
	}
	sender := &fakeSender{}
	return NewBot(cfg, sender, eng, g, nil), sender
}

func privMsg(user, text string, badges ...string) twitch.PrivateMessage {
	badgeMap := map[string]int{}
	for _, b := range badges {
		badgeMap[b] = 1
	}
	return twitch.PrivateMessage{
		ID:      "msg-1",
		Message: text,
		User:    twitch.User{Name: user, Badges: badgeMap},
	}
}

func containsSubstring(msgs []string, sub string) bool {
	for _, m := range msgs {
		if strings.Contains(m, sub) {
			return true
		}
	}
	return false
}

func TestDispatchIgnoresNonCommands(t *testing.T) {
	b, sender := newTestBot(t)
	b.Dispatch(context.Background(), privMsg("alice", "hello chat"))
	b.Dispatch(context.Background(), privMsg("alice", "!unknowncommand"))
	if len(sender.all()) != 0 {
		t.Fatalf("unexpected messages: %v", sender.all())
	}
}

func TestBalanceGivesStarterOnFirstSelfCheck(t *testing.T) {
	b, sender := newTestBot(t)
	b.Dispatch(context.Background(), privMsg("alice", "!balance", "moderator"))
	if !containsSubstring(sender.says, "welcome! You get 100 coins") {
		t.Fatalf("no starter welcome in %v", sender.says)
	}
	if got := b.eng.Ledger.GetBalance("alice"); got != 100 {
		t.Fatalf("balance = %d, want 100", got)
	}

	// second check reads the balance instead of granting again
	b.Dispatch(context.Background(), privMsg("alice", "!balance", "moderator"))
	if !containsSubstring(sender.says, "you have 100 coins") {
		t.Fatalf("no balance readout in %v", sender.says)
	}
	if got := b.eng.Ledger.GetBalance("alice"); got != 100 {
		t.Fatalf("balance after second check = %d, want 100", got)
	}
}

func TestBalanceOtherUser(t *testing.T) {
	b, sender := newTestBot(t)
	b.eng.Ledger.AdjustBalance(context.Background(), "bob", 2500)
	b.Dispatch(context.Background(), privMsg("alice", "!balance @bob", "moderator"))
	if !containsSubstring(sender.says, "@bob has 2,500 coins") {
		t.Fatalf("missing formatted balance in %v", sender.says)
	}
}

func TestBalanceTargetsReplyParent(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	b.eng.Ledger.AdjustBalance(ctx, "bob", 2500)
	msg := privMsg("alice", "!balance", "moderator")
	msg.Reply = &twitch.Reply{ParentUserLogin: "Bob"}
	b.Dispatch(ctx, msg)
	if !containsSubstring(sender.says, "@bob has 2,500 coins") {
		t.Fatalf("reply-parent target not used: %v", sender.says)
	}
}

func TestGiveTransfers(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	b.eng.Ledger.AdjustBalance(ctx, "alice", 200)
	b.Dispatch(ctx, privMsg("alice", "!give @bob 50", "moderator"))
	if b.eng.Ledger.GetBalance("bob") != 50 || b.eng.Ledger.GetBalance("alice") != 150 {
		t.Fatalf("balances = %d/%d, want 150/50",
			b.eng.Ledger.GetBalance("alice"), b.eng.Ledger.GetBalance("bob"))
	}
	if !containsSubstring(sender.says, "gave 50 coins to @bob") {
		t.Fatalf("missing gift announcement in %v", sender.says)
	}
}

func TestGiveRejectsSelfAndMissingArgs(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	b.Dispatch(ctx, privMsg("alice", "!give @alice 50", "moderator"))
	if !containsSubstring(sender.says, "yourself") {
		t.Fatalf("self-gift not rejected: %v", sender.says)
	}
	b.Dispatch(ctx, privMsg("alice", "!give", "moderator"))
	if !containsSubstring(sender.says, "name a recipient") {
		t.Fatalf("missing-recipient usage not sent: %v", sender.says)
	}
}

func TestTopLeaderboard(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	b.eng.Ledger.AdjustBalance(ctx, "rich", 1000)
	b.eng.Ledger.AdjustBalance(ctx, "mid", 500)
	b.Dispatch(ctx, privMsg("alice", "!top", "moderator"))
	if !containsSubstring(sender.says, "1. rich: 1,000 coins") {
		t.Fatalf("leaderboard missing leader: %v", sender.says)
	}
}

func TestStealFromBotConfiscates(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	b.eng.Ledger.GiveStarterBalance(ctx, "alice", 100)
	b.Dispatch(ctx, privMsg("alice", "!steal @tenderbot", "moderator"))
	if b.eng.Ledger.GetBalance("alice") != 0 {
		t.Fatalf("thief balance = %d, want 0", b.eng.Ledger.GetBalance("alice"))
	}
	if b.eng.Ledger.GetBalance("tenderbot") != 100 {
		t.Fatalf("bot balance = %d, want 100", b.eng.Ledger.GetBalance("tenderbot"))
	}
	if !containsSubstring(sender.says, "bot's account") {
		t.Fatalf("missing confiscation message: %v", sender.says)
	}
}

func TestStealRejectsSelfAndMissingVictim(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	b.Dispatch(ctx, privMsg("alice", "!steal @alice", "moderator"))
	if !containsSubstring(sender.says, "yourself") {
		t.Fatalf("self-steal not rejected: %v", sender.says)
	}
	b.Dispatch(ctx, privMsg("alice", "!steal", "moderator"))
	if !containsSubstring(sender.says, "name a victim") {
		t.Fatalf("missing-victim usage not sent: %v", sender.says)
	}
}

func TestStealGuaranteedSuccessPath(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	b.eng.Ledger.GiveStarterBalance(ctx, "alice", 100)
	b.eng.Ledger.AdjustBalance(ctx, "victim", 1000)
	if err := b.eng.Chances.SetStealChance(ctx, "alice", 1.0); err != nil {
		t.Fatal(err)
	}
	b.Dispatch(ctx, privMsg("alice", "!steal @victim", "moderator"))
	if !containsSubstring(sender.says, "@victim!") {
		t.Fatalf("missing success message: %v", sender.says)
	}
	if b.eng.Ledger.GetBalance("alice") <= 100 {
		t.Fatal("thief balance did not grow on guaranteed success")
	}
}

func TestCasinoWinDoublesStake(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	b.eng.Ledger.AdjustBalance(ctx, "alice", 200)
	b.Dispatch(ctx, privMsg("alice", "!casino 50", "moderator"))
	if got := b.eng.Ledger.GetBalance("alice"); got != 300 {
		t.Fatalf("balance = %d, want 300 after guaranteed win", got)
	}
	if !containsSubstring(sender.says, "WON at the casino! Bet: 100 coins (50%)") {
		t.Fatalf("missing win message: %v", sender.says)
	}
}

func TestCasinoUsageAndBrokeMessages(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	b.Dispatch(ctx, privMsg("alice", "!casino", "moderator"))
	if !containsSubstring(sender.says, "name a percentage") {
		t.Fatalf("missing usage message: %v", sender.says)
	}
	b.Dispatch(ctx, privMsg("alice", "!casino 50", "moderator"))
	if !containsSubstring(sender.says, "no coins to gamble") {
		t.Fatalf("missing broke message: %v", sender.says)
	}
	b.eng.Ledger.AdjustBalance(ctx, "alice", 100)
	b.Dispatch(ctx, privMsg("alice", "!casino 200", "moderator"))
	if !containsSubstring(sender.says, "between 1 and 100") {
		t.Fatalf("missing range message: %v", sender.says)
	}
}

func TestRouletteTargetingOthersIsModOnly(t *testing.T) {
	b, sender := newTestBot(t)
	b.Dispatch(context.Background(), privMsg("alice", "!roulette @bob"))
	if !containsSubstring(sender.replies, "only moderators can play roulette with others") {
		t.Fatalf("non-mod targeting not rejected: %v", sender.replies)
	}
}

func TestRoulettePullAlwaysResponds(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	// six pulls always cover the bullet chamber once; with no Helix client
	// the shot path falls back to the technical-difficulties reply
	for i := 0; i < 6; i++ {
		b.Dispatch(ctx, privMsg("alice", "!roulette", "moderator"))
	}
	if len(sender.all()) != 6 {
		t.Fatalf("responses = %d, want 6", len(sender.all()))
	}
	if !containsSubstring(sender.replies, "Technical difficulties") {
		t.Fatalf("shot without moderation should apologize: %v", sender.all())
	}
}

func TestRouletteStatsReply(t *testing.T) {
	b, sender := newTestBot(t)
	b.Dispatch(context.Background(), privMsg("alice", "!roulettestats", "moderator"))
	if !containsSubstring(sender.replies, "stats: Games: 1, Deaths: 0, Wins: 0") {
		t.Fatalf("missing stats reply: %v", sender.replies)
	}
}

func TestRouletteStopAlwaysResponds(t *testing.T) {
	b, sender := newTestBot(t)
	b.Dispatch(context.Background(), privMsg("alice", "!roulettestop", "moderator"))
	if len(sender.all()) != 1 {
		t.Fatalf("responses = %d, want 1", len(sender.all()))
	}
}

func TestPrayImprovesReputation(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	b.Dispatch(ctx, privMsg("alice", "!pray", "moderator"))
	if got := b.eng.Reputation.Get("alice"); got != 1 {
		t.Fatalf("reputation = %d, want 1", got)
	}
	if !containsSubstring(sender.says, "Reputation: 1") {
		t.Fatalf("missing pray message: %v", sender.says)
	}
	b.Dispatch(ctx, privMsg("alice", "!pray @bob", "moderator"))
	if got := b.eng.Reputation.Get("bob"); got != 1 {
		t.Fatalf("bob reputation = %d, want 1", got)
	}
}

func TestSetRepModOnly(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	b.Dispatch(ctx, privMsg("alice", "!setrep @bob -100"))
	if b.eng.Reputation.Get("bob") != 0 {
		t.Fatal("non-mod changed reputation")
	}
	if !containsSubstring(sender.replies, "only moderators") {
		t.Fatalf("missing denial: %v", sender.replies)
	}

	b.Dispatch(ctx, privMsg("mod", "!setrep @bob -100", "moderator"))
	if got := b.eng.Reputation.Get("bob"); got != -100 {
		t.Fatalf("reputation = %d, want -100", got)
	}
	if !containsSubstring(sender.says, "from 0 to -100") {
		t.Fatalf("missing confirmation: %v", sender.says)
	}
}

func TestSetRepUsageOnMalformedArgs(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	b.Dispatch(ctx, privMsg("mod", "!setrep bob", "moderator"))
	b.Dispatch(ctx, privMsg("mod", "!setrep @bob", "moderator"))
	usages := 0
	for _, m := range sender.says {
		if strings.Contains(m, "usage: !setrep @username <score>") {
			usages++
		}
	}
	if usages != 2 {
		t.Fatalf("usage sent %d times, want 2: %v", usages, sender.says)
	}
	if b.eng.Reputation.Get("bob") != 0 {
		t.Fatal("malformed invocation changed reputation")
	}
}

func TestStealChanceCommand(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	b.Dispatch(ctx, privMsg("mod", "!stealchance @bob 75", "moderator"))
	if c, ok := b.eng.Chances.StealChance("bob"); !ok || c != 0.75 {
		t.Fatalf("steal chance = %v/%v, want 0.75/true", c, ok)
	}
	if !containsSubstring(sender.says, "steal chance for @bob set to 75%") {
		t.Fatalf("missing confirmation: %v", sender.says)
	}
	b.Dispatch(ctx, privMsg("mod", "!victimchance @bob 0", "moderator"))
	if c, ok := b.eng.Chances.VictimChance("bob"); !ok || c != 0 {
		t.Fatalf("victim chance = %v/%v, want 0/true", c, ok)
	}
}

func TestCooldownsCommand(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	b.Dispatch(ctx, privMsg("mod", "!cooldowns", "moderator"))
	if !containsSubstring(sender.says, "Cooldown system is enabled") {
		t.Fatalf("missing status: %v", sender.says)
	}
	b.Dispatch(ctx, privMsg("mod", "!cooldowns off", "moderator"))
	if b.gate.Cooldowns.Enabled() {
		t.Fatal("kill-switch still on after !cooldowns off")
	}
	b.Dispatch(ctx, privMsg("mod", "!cooldowns on", "moderator"))
	if !b.gate.Cooldowns.Enabled() {
		t.Fatal("kill-switch still off after !cooldowns on")
	}
}

func TestCooldownBlocksRepeatAndNotifiesOnce(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	b.eng.Ledger.AdjustBalance(ctx, "alice", 100)
	// plain user: first call runs, immediate repeat is blocked with a notice.
	// The global window is checked first, so the notice is the global one.
	b.Dispatch(ctx, privMsg("alice", "!balance"))
	before := len(sender.all())
	b.Dispatch(ctx, privMsg("alice", "!balance"))
	after := len(sender.all())
	if after != before+1 {
		t.Fatalf("blocked call produced %d messages, want 1 notice", after-before)
	}
	if !containsSubstring(sender.all(), "will be available in") {
		t.Fatalf("missing cooldown notice: %v", sender.all())
	}
}

func TestBlockedNoticeFloorsAtOneSecond(t *testing.T) {
	b, sender := newTestBot(t)
	req := gate.Request{Command: "balance", User: gate.User{Name: "alice"}}
	b.onBlocked(context.Background(), req, gate.BlockGlobal, 300*time.Millisecond)
	b.onBlocked(context.Background(), req, gate.BlockUser, 499*time.Millisecond)
	if containsSubstring(sender.all(), " 0 second") {
		t.Fatalf("notice rounded down to zero: %v", sender.all())
	}
	if !containsSubstring(sender.all(), "available in 1 seconds") || !containsSubstring(sender.all(), "wait another 1 seconds") {
		t.Fatalf("sub-second remainder should read as 1 second: %v", sender.all())
	}
}

func TestPlainChatAccruesActivity(t *testing.T) {
	b, _ := newTestBot(t)
	ctx := context.Background()
	b.Dispatch(ctx, privMsg("alice", "hello everyone in chat"))
	// too short, the bot's own message, and a command: none of these count
	b.Dispatch(ctx, privMsg("alice", "gg"))
	b.Dispatch(ctx, privMsg("tenderbot", "announcement from the bot"))
	b.Dispatch(ctx, privMsg("alice", "!balance"))

	st := b.eng.Activity.Stats("alice")
	if st.Messages != 1 || st.XP != 10 {
		t.Fatalf("stats = %+v, want 1 message / 10 xp", st)
	}
	if got := b.eng.Activity.Stats("tenderbot"); got.Messages != 0 {
		t.Fatalf("bot accrued %d messages", got.Messages)
	}
}

func TestChatLevelUpAnnounced(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		b.Dispatch(ctx, privMsg("alice", "another perfectly ordinary chat message"))
	}
	if len(sender.says) != 1 {
		t.Fatalf("announcements = %d, want exactly 1: %v", len(sender.says), sender.says)
	}
	if !strings.Contains(sender.says[0], "reached level 1 (Chatterbox)! Total messages: 10") {
		t.Fatalf("unexpected level-up message: %v", sender.says)
	}
}

func TestChatStatsCommand(t *testing.T) {
	b, sender := newTestBot(t)
	ctx := context.Background()
	b.Dispatch(ctx, privMsg("alice", "hello everyone in chat"))
	b.Dispatch(ctx, privMsg("alice", "!chatstats", "moderator"))
	if !containsSubstring(sender.says, "@alice is level 0 (Newcomer) with 10/100 XP over 1 messages") {
		t.Fatalf("missing stats readout: %v", sender.says)
	}
	b.Dispatch(ctx, privMsg("mod", "!chatstats @alice", "moderator"))
	if len(sender.says) != 2 || !strings.Contains(sender.says[1], "@alice is level 0") {
		t.Fatalf("targeted stats missing: %v", sender.says)
	}
}
