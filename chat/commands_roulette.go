package chat

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/onnwee/chat-tender/gate"
	"github.com/onnwee/chat-tender/telemetry"
)

func (b *Bot) cmdRoulette(ctx context.Context, req gate.Request) {
	player := req.User.Name

	// pointing the revolver at somebody else is a moderator privilege
	target := mentionFromArgs(ctx, req.Args)
	if target != "" && target != player {
		if !req.User.Moderator() {
			b.reply(req, "only moderators can play roulette with others! NotLikeThis")
			return
		}
	} else {
		target = player
	}

	shot, timeoutSeconds := b.eng.Roulette.PullTrigger(ctx, target)
	if !shot {
		remaining := b.eng.Roulette.RemainingShots(ctx, target)
		b.reply(req, fmt.Sprintf(b.pick(rouletteSurvivePhrases), remaining))
		telemetry.LoggerWithCorr(ctx).Info("roulette survived",
			slog.String("target", target), slog.Int("remaining", remaining))
		return
	}

	if err := b.timeoutTarget(ctx, target, timeoutSeconds); err != nil {
		telemetry.LoggerWithCorr(ctx).Error("roulette timeout failed",
			slog.String("target", target), slog.Any("err", err))
		b.reply(req, "Technical difficulties, lucky you... for now MrDestructoid")
		return
	}
	b.say(target, fmt.Sprintf(b.pick(rouletteLosePhrases), formatTimeout(timeoutSeconds)))
	telemetry.LoggerWithCorr(ctx).Info("roulette shot",
		slog.String("target", target), slog.Int("timeout_seconds", timeoutSeconds))
}

// timeoutTarget resolves the target's id and issues the Helix timeout.
func (b *Bot) timeoutTarget(ctx context.Context, target string, seconds int) error {
	if b.helix == nil {
		return fmt.Errorf("moderation not configured")
	}
	targetID, err := b.helix.GetUserID(ctx, target)
	if err != nil {
		return err
	}
	return b.helix.TimeoutUser(ctx, targetID, seconds, "Lost at Russian roulette")
}

func (b *Bot) cmdRouletteStats(ctx context.Context, req gate.Request) {
	stats := b.eng.Roulette.Stats(ctx, req.User.Name)
	b.reply(req, fmt.Sprintf("stats: Games: %d, Deaths: %d, Wins: %d, Shots: %d",
		stats.TotalGames, stats.Deaths, stats.Wins, stats.ShotsFired))
}

func (b *Bot) cmdRouletteStop(ctx context.Context, req gate.Request) {
	user := req.User.Name
	res := b.eng.Roulette.StopGame(ctx, user)

	if res.Win {
		b.eng.Ledger.AdjustBalance(ctx, user, res.Reward)
		b.reply(req, fmt.Sprintf(b.pick(rouletteStopWinPhrases), formatAmount(res.Reward)))
		telemetry.LoggerWithCorr(ctx).Info("roulette stop win",
			slog.String("user", user), slog.Int64("reward", res.Reward))
		return
	}

	phrases := rouletteStopFailPhrases
	if res.ShotsUntilDeath <= 2 {
		phrases = rouletteStopClosePhrases
	}
	b.reply(req, fmt.Sprintf(b.pick(phrases), res.ShotsUntilDeath))
	telemetry.LoggerWithCorr(ctx).Info("roulette stopped",
		slog.String("user", user), slog.Int("remaining", res.RemainingShots),
		slog.Int("shots_until_death", res.ShotsUntilDeath))
}
