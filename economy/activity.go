package economy

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"sync"

	"github.com/onnwee/chat-tender/telemetry"
)

const (
	// messageXP is awarded per counted chat message.
	messageXP = 10
	// minMessageLength filters out emote spam and one-word reactions.
	minMessageLength = 5
)

// ActivityLevel is one rung of the fixed XP ladder.
type ActivityLevel struct {
	Level int
	Title string
	XP    int64
}

// activityLevels is ordered by XP ascending; the highest threshold the user
// clears is their level.
var activityLevels = []ActivityLevel{
	{0, "Newcomer", 0},
	{1, "Chatterbox", 100},
	{2, "Regular", 500},
	{3, "Chat Veteran", 1500},
	{4, "Night Watch", 4000},
	{5, "Legend of the Chat", 10000},
}

// LevelFor returns the ladder rung for the given XP total.
func LevelFor(xp int64) ActivityLevel {
	lvl := activityLevels[0]
	for _, l := range activityLevels {
		if xp >= l.XP {
			lvl = l
		}
	}
	return lvl
}

// NextActivityLevel returns the rung above the given one, or false at the top.
func NextActivityLevel(l ActivityLevel) (ActivityLevel, bool) {
	for i, cur := range activityLevels {
		if cur.Level == l.Level && i+1 < len(activityLevels) {
			return activityLevels[i+1], true
		}
	}
	return ActivityLevel{}, false
}

// ActivityStats is a read-only snapshot of one user's chat activity.
type ActivityStats struct {
	Messages int64
	XP       int64
	Level    ActivityLevel
}

// LevelUp reports a level transition caused by a single message.
type LevelUp struct {
	Level    ActivityLevel
	Messages int64
}

// Activity accrues XP for plain chat messages and maps totals onto the level
// ladder. Unknown users read as level 0 with no messages.
type Activity struct {
	db *sql.DB

	mu       sync.Mutex
	messages map[string]int64
	xp       map[string]int64
	dirty    map[string]struct{}
}

// NewActivity loads all rows into memory. A nil dbx runs memory-only.
func NewActivity(ctx context.Context, dbx *sql.DB) (*Activity, error) {
	a := &Activity{
		db:       dbx,
		messages: make(map[string]int64),
		xp:       make(map[string]int64),
		dirty:    make(map[string]struct{}),
	}
	if dbx == nil {
		return a, nil
	}
	rows, err := dbx.QueryContext(ctx, `SELECT username, messages, xp FROM chat_activity`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Warn("failed to close rows", slog.Any("err", err))
		}
	}()
	for rows.Next() {
		var user string
		var msgs, xp int64
		if err := rows.Scan(&user, &msgs, &xp); err != nil {
			return nil, err
		}
		a.messages[user] = msgs
		a.xp[user] = xp
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slog.Info("chat activity loaded", slog.Int("users", len(a.messages)))
	return a, nil
}

// RecordMessage counts one chat message for the user and awards XP. Messages
// shorter than minMessageLength earn nothing. The returned LevelUp is set only
// when this message pushed the user onto a new rung.
func (a *Activity) RecordMessage(ctx context.Context, user, text string) (LevelUp, bool) {
	if len(strings.TrimSpace(text)) < minMessageLength {
		return LevelUp{}, false
	}
	user = normalize(user)
	a.mu.Lock()
	defer a.mu.Unlock()

	before := LevelFor(a.xp[user])
	a.messages[user]++
	a.xp[user] += messageXP
	after := LevelFor(a.xp[user])
	a.persistLocked(ctx, user)

	if after.Level > before.Level {
		return LevelUp{Level: after, Messages: a.messages[user]}, true
	}
	return LevelUp{}, false
}

// Stats returns the user's current snapshot.
func (a *Activity) Stats(user string) ActivityStats {
	user = normalize(user)
	a.mu.Lock()
	defer a.mu.Unlock()
	return ActivityStats{
		Messages: a.messages[user],
		XP:       a.xp[user],
		Level:    LevelFor(a.xp[user]),
	}
}

// Count returns the number of tracked chatters.
func (a *Activity) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.messages)
}

func (a *Activity) persistLocked(ctx context.Context, user string) {
	for u := range a.dirty {
		if u == user {
			continue
		}
		if err := a.upsert(ctx, u); err != nil {
			break
		}
		delete(a.dirty, u)
	}
	if err := a.upsert(ctx, user); err != nil {
		slog.Error("chat activity persist failed; deferring", slog.String("user", user), slog.Any("err", err))
		telemetry.CountPersistFailure("activity")
		a.dirty[user] = struct{}{}
	}
}

func (a *Activity) upsert(ctx context.Context, user string) error {
	if a.db == nil {
		return nil
	}
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO chat_activity(username, messages, xp, updated_at) VALUES($1,$2,$3,NOW())
		 ON CONFLICT(username) DO UPDATE SET messages=EXCLUDED.messages, xp=EXCLUDED.xp, updated_at=NOW()`,
		user, a.messages[user], a.xp[user])
	return err
}
