// Package economy implements the virtual-currency core: the account ledger,
// steal-chance overrides, the theft and casino engines, Russian roulette, and
// the reputation store. All stores are process-wide singletons constructed in
// main and passed by reference to the chat command handlers; they keep an
// in-memory working set guarded by a mutex and write every mutation through
// to Postgres before returning.
package economy

import (
	"context"
	"database/sql"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/onnwee/chat-tender/telemetry"
)

// Account is one ledger entry. Usernames are lowercased at the store boundary
// and used as the primary key.
type Account struct {
	Username         string
	Balance          int64
	ReceivedStarter  bool
	LastStealAttempt time.Time
}

// Ledger is the durable balance store. Balances never go below zero; any
// debit that would overdraw clamps to exactly zero.
type Ledger struct {
	db *sql.DB

	mu       sync.Mutex
	accounts map[string]*Account
	dirty    map[string]struct{}
}

// NewLedger loads all accounts into memory and returns the store. A nil dbx
// runs the ledger memory-only (no persistence); unit tests rely on this.
func NewLedger(ctx context.Context, dbx *sql.DB) (*Ledger, error) {
	l := &Ledger{
		db:       dbx,
		accounts: make(map[string]*Account),
		dirty:    make(map[string]struct{}),
	}
	if dbx == nil {
		return l, nil
	}
	rows, err := dbx.QueryContext(ctx, `SELECT username, balance, received_starter, last_steal_attempt FROM accounts`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err))
		}
	}()
	for rows.Next() {
		a := &Account{}
		var last sql.NullTime
		if err := rows.Scan(&a.Username, &a.Balance, &a.ReceivedStarter, &last); err != nil {
			return nil, err
		}
		if last.Valid {
			a.LastStealAttempt = last.Time
		}
		l.accounts[a.Username] = a
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slog.Info("ledger loaded", slog.Int("accounts", len(l.accounts)))
	telemetry.SetTrackedAccounts(len(l.accounts))
	return l, nil
}

// GetBalance returns the balance for a user; unknown users read as 0 and no
// record is created.
func (l *Ledger) GetBalance(user string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.accounts[normalize(user)]; ok {
		return a.Balance
	}
	return 0
}

// HasReceivedStarter reports whether the one-time starter grant was already given.
func (l *Ledger) HasReceivedStarter(user string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if a, ok := l.accounts[normalize(user)]; ok {
		return a.ReceivedStarter
	}
	return false
}

// AdjustBalance applies delta (positive or negative), clamps the result at
// zero, persists, and returns the new balance. Overdraw is absorbed silently,
// not an error.
func (l *Ledger) AdjustBalance(ctx context.Context, user string, delta int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.getOrCreateLocked(normalize(user))
	a.Balance += delta
	if a.Balance < 0 {
		a.Balance = 0
	}
	l.persistLocked(ctx, a.Username)
	return a.Balance
}

// GiveStarterBalance grants amount once per user and marks the starter flag.
// Returns false without mutation when the grant was already made.
func (l *Ledger) GiveStarterBalance(ctx context.Context, user string, amount int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.getOrCreateLocked(normalize(user))
	if a.ReceivedStarter {
		return false
	}
	a.Balance += amount
	a.ReceivedStarter = true
	l.persistLocked(ctx, a.Username)
	return true
}

// Transfer moves amount from one user to another. Fails without mutation when
// the sender's balance is insufficient. Both legs commit under one lock, so
// concurrent transfers touching the same accounts cannot interleave.
func (l *Ledger) Transfer(ctx context.Context, fromUser, toUser string, amount int64) (ok bool, fromBalance, toBalance int64) {
	from := normalize(fromUser)
	to := normalize(toUser)
	l.mu.Lock()
	defer l.mu.Unlock()
	src := l.getOrCreateLocked(from)
	dst := l.getOrCreateLocked(to)
	if src.Balance < amount {
		return false, src.Balance, dst.Balance
	}
	src.Balance -= amount
	dst.Balance += amount
	l.persistLocked(ctx, from)
	l.persistLocked(ctx, to)
	return true, src.Balance, dst.Balance
}

// TouchStealAttempt stamps the user's last steal attempt time.
func (l *Ledger) TouchStealAttempt(ctx context.Context, user string, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	a := l.getOrCreateLocked(normalize(user))
	a.LastStealAttempt = at.UTC()
	l.persistLocked(ctx, a.Username)
}

// Leaderboard returns up to limit accounts sorted by balance descending.
// Ties keep a stable username order so repeated calls agree.
func (l *Ledger) Leaderboard(limit int) []Account {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Account, 0, len(l.accounts))
	for _, a := range l.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Balance != out[j].Balance {
			return out[i].Balance > out[j].Balance
		}
		return out[i].Username < out[j].Username
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Count returns the number of tracked accounts.
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.accounts)
}

func (l *Ledger) getOrCreateLocked(user string) *Account {
	a, ok := l.accounts[user]
	if !ok {
		a = &Account{Username: user}
		l.accounts[user] = a
		telemetry.SetTrackedAccounts(len(l.accounts))
	}
	return a
}

// persistLocked writes one account row through to the database. On failure
// the key joins the dirty set and is retried on the next mutation; the
// in-memory state stays authoritative for the session.
func (l *Ledger) persistLocked(ctx context.Context, user string) {
	l.flushDirtyLocked(ctx, user)
	if err := l.upsert(ctx, l.accounts[user]); err != nil {
		slog.Error("ledger persist failed; deferring", slog.String("user", user), slog.Any("err", err))
		telemetry.CountPersistFailure("ledger")
		l.dirty[user] = struct{}{}
	}
}

func (l *Ledger) flushDirtyLocked(ctx context.Context, skip string) {
	for user := range l.dirty {
		if user == skip {
			continue
		}
		if err := l.upsert(ctx, l.accounts[user]); err != nil {
			return
		}
		delete(l.dirty, user)
	}
}

func (l *Ledger) upsert(ctx context.Context, a *Account) error {
	if l.db == nil {
		return nil
	}
	var last sql.NullTime
	if !a.LastStealAttempt.IsZero() {
		last = sql.NullTime{Time: a.LastStealAttempt, Valid: true}
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO accounts(username, balance, received_starter, last_steal_attempt, updated_at)
		 VALUES($1,$2,$3,$4,NOW())
		 ON CONFLICT(username) DO UPDATE SET
		   balance=EXCLUDED.balance,
		   received_starter=EXCLUDED.received_starter,
		   last_steal_attempt=EXCLUDED.last_steal_attempt,
		   updated_at=NOW()`,
		a.Username, a.Balance, a.ReceivedStarter, last)
	return err
}

func normalize(user string) string { return strings.ToLower(strings.TrimSpace(user)) }
