package economy

import (
	"context"
	"errors"
	"testing"
)

func TestCasinoPlayRejectsBadPercentage(t *testing.T) {
	c := NewCasino(newTestLedger(t), 0)
	for _, pct := range []int{0, -5, 101} {
		if _, err := c.Play(context.Background(), "alice", pct); !errors.Is(err, ErrInvalidPercentage) {
			t.Fatalf("pct %d: err = %v, want ErrInvalidPercentage", pct, err)
		}
	}
}

func TestCasinoPlayRejectsEmptyAccount(t *testing.T) {
	c := NewCasino(newTestLedger(t), 0)
	if _, err := c.Play(context.Background(), "alice", 50); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
}

func TestCasinoPlayWinCreditsStake(t *testing.T) {
	l := newTestLedger(t)
	c := NewCasino(l, 1.0) // rng.Float64 < 1.0 always, so every bet wins
	ctx := context.Background()
	l.AdjustBalance(ctx, "alice", 200)

	res, err := c.Play(ctx, "alice", 50)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !res.Win {
		t.Fatal("bet lost at 100% win chance")
	}
	if res.Bet != 100 {
		t.Fatalf("bet = %d, want 100 (50%% of 200)", res.Bet)
	}
	if res.NewBalance != 300 {
		t.Fatalf("balance = %d, want 300", res.NewBalance)
	}
}

func TestCasinoPlayLossDebitsStake(t *testing.T) {
	l := newTestLedger(t)
	c := NewCasino(l, 0.10)
	c.winChance = 0 // force losses without touching the constructor default
	ctx := context.Background()
	l.AdjustBalance(ctx, "alice", 200)

	res, err := c.Play(ctx, "alice", 50)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if res.Win {
		t.Fatal("bet won at 0% win chance")
	}
	if res.Bet != 100 || res.NewBalance != 100 {
		t.Fatalf("bet/balance = %d/%d, want 100/100", res.Bet, res.NewBalance)
	}
}

func TestCasinoPlayMinimumBet(t *testing.T) {
	l := newTestLedger(t)
	c := NewCasino(l, 1.0)
	ctx := context.Background()
	l.AdjustBalance(ctx, "alice", 3)

	// 1% of 3 rounds to 0, so the floor of 1 applies
	res, err := c.Play(ctx, "alice", 1)
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if res.Bet != 1 {
		t.Fatalf("bet = %d, want minimum 1", res.Bet)
	}
}

func TestNewCasinoDefaultChance(t *testing.T) {
	c := NewCasino(newTestLedger(t), 0)
	if c.winChance != DefaultCasinoWinChance {
		t.Fatalf("winChance = %v, want %v", c.winChance, DefaultCasinoWinChance)
	}
}
