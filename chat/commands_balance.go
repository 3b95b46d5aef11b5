package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/onnwee/chat-tender/gate"
	"github.com/onnwee/chat-tender/telemetry"
)

func (b *Bot) cmdBalance(ctx context.Context, req gate.Request) {
	user := req.User.Name
	target := targetFromArgs(ctx, req.Args, user)

	// first self-check hands out the starter grant
	if target == user && !b.eng.Ledger.HasReceivedStarter(user) {
		b.eng.Ledger.GiveStarterBalance(ctx, user, b.cfg.StarterBalance)
		b.say(user, fmt.Sprintf("welcome! You get %s coins. Try %ssteal or %sgive",
			formatAmount(b.cfg.StarterBalance), b.cfg.CommandPrefix, b.cfg.CommandPrefix))
		return
	}

	balance := b.eng.Ledger.GetBalance(target)
	switch {
	case target == user && balance == 0:
		b.say(user, "your pockets are empty! Try stealing something...")
	case target == user:
		b.say(user, fmt.Sprintf("you have %s coins", formatAmount(balance)))
	case balance == 0:
		b.say(user, fmt.Sprintf("@%s's pockets are empty!", target))
	default:
		b.say(user, fmt.Sprintf("@%s has %s coins", target, formatAmount(balance)))
	}
	telemetry.LoggerWithCorr(ctx).Info("balance checked",
		slog.String("user", user), slog.String("target", target), slog.Int64("balance", balance))
}

func (b *Bot) cmdGive(ctx context.Context, req gate.Request) {
	sender := req.User.Name
	recipient := mentionFromArgs(ctx, req.Args)
	amount, hasAmount := intFromArgs(req.Args)

	if recipient == "" {
		b.say(sender, fmt.Sprintf("name a recipient! Example: %sgive @username 100", b.cfg.CommandPrefix))
		return
	}
	if recipient == sender {
		b.say(sender, "you can't give coins to yourself!")
		return
	}
	if !hasAmount || amount <= 0 {
		b.say(sender, fmt.Sprintf("name a positive amount! Example: %sgive @%s 100", b.cfg.CommandPrefix, recipient))
		return
	}

	// newcomers get the starter grant so they have something to give
	if b.eng.Ledger.GetBalance(sender) == 0 && !b.eng.Ledger.HasReceivedStarter(sender) {
		b.eng.Ledger.GiveStarterBalance(ctx, sender, b.cfg.StarterBalance)
		b.say(sender, fmt.Sprintf("welcome! You get %s coins.", formatAmount(b.cfg.StarterBalance)))
	}

	ok, senderBalance, recipientBalance := b.eng.Ledger.Transfer(ctx, sender, recipient, amount)
	if !ok {
		b.say(sender, fmt.Sprintf("not enough funds! You only have %s coins", formatAmount(senderBalance)))
		return
	}
	b.sender.Say(b.channel, fmt.Sprintf("@%s gave %s coins to @%s! Sender balance: %s, recipient balance: %s",
		sender, formatAmount(amount), recipient, formatAmount(senderBalance), formatAmount(recipientBalance)))
	telemetry.LoggerWithCorr(ctx).Info("gift sent",
		slog.String("from", sender), slog.String("to", recipient), slog.Int64("amount", amount))
}

func (b *Bot) cmdTop(ctx context.Context, req gate.Request) {
	top := b.eng.Ledger.Leaderboard(3)
	if len(top) == 0 {
		b.sender.Say(b.channel, fmt.Sprintf("Nobody has any coins yet! Be first with %sbalance", b.cfg.CommandPrefix))
		return
	}
	var sb strings.Builder
	sb.WriteString("Richest chatters: ")
	for i, a := range top {
		fmt.Fprintf(&sb, "%d. %s: %s coins ", i+1, a.Username, formatAmount(a.Balance))
	}
	b.sender.Say(b.channel, strings.TrimSpace(sb.String()))
}
