// Package gate sits between the chat dispatcher and the command handlers:
// per-command cooldowns with a runtime kill-switch, privileged bypass,
// rejection-notice deduplication, and mod-only / allow-list permission
// checks, composed as an explicit middleware chain.
package gate

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"

	"github.com/onnwee/chat-tender/db"
	"github.com/onnwee/chat-tender/telemetry"
)

// BlockKind says which cooldown window rejected a command.
type BlockKind string

const (
	BlockUser   BlockKind = "user"
	BlockGlobal BlockKind = "global"
)

const (
	// per-command user tables are LRU-bounded so a big chat can't grow them forever
	userTableSize = 512
	// notice dedup windows: a global-cooldown notice repeats at most every
	// 30s per command, a user notice at most every 20s per user
	globalNoticeWindow = 30 * time.Second
	userNoticeWindow   = 20 * time.Second

	enabledKVKey = "cooldowns_enabled"
)

// Cooldowns tracks per-command global and per-user last-use stamps. The
// kill-switch state survives restarts via the kv table; everything else is
// in-memory only, a restart simply clears active cooldowns.
type Cooldowns struct {
	dbx *sql.DB

	defaultUser   time.Duration
	defaultGlobal time.Duration

	mu         sync.Mutex
	enabled    bool
	privileged map[string]struct{}

	global map[string]time.Time
	users  map[string]*lru.Cache

	globalNotices map[string]time.Time
	userNotices   map[string]*lru.Cache

	now func() time.Time
}

// NewCooldowns builds the engine and restores the kill-switch state from the
// kv table (missing or unreadable means enabled). A nil dbx skips persistence.
func NewCooldowns(ctx context.Context, dbx *sql.DB, defaultUser, defaultGlobal time.Duration, privileged []string) *Cooldowns {
	c := &Cooldowns{
		dbx:           dbx,
		defaultUser:   defaultUser,
		defaultGlobal: defaultGlobal,
		enabled:       true,
		privileged:    make(map[string]struct{}, len(privileged)),
		global:        make(map[string]time.Time),
		users:         make(map[string]*lru.Cache),
		globalNotices: make(map[string]time.Time),
		userNotices:   make(map[string]*lru.Cache),
		now:           time.Now,
	}
	for _, u := range privileged {
		c.privileged[strings.ToLower(strings.TrimSpace(u))] = struct{}{}
	}
	if dbx != nil {
		if v, err := db.GetKV(ctx, dbx, enabledKVKey); err != nil {
			slog.Warn("could not restore cooldown kill-switch; defaulting to enabled", slog.Any("err", err))
		} else if v == "false" {
			c.enabled = false
		}
	}
	telemetry.SetCooldownsEnabled(c.enabled)
	return c
}

// Check reports whether command is on cooldown for user. The global window is
// checked before the per-user window. Privileged users (allow-listed or mods)
// are never blocked. Zero durations fall back to the engine defaults.
func (c *Cooldowns) Check(command, user string, userCD, globalCD time.Duration, isMod bool) (blocked bool, remaining time.Duration, kind BlockKind) {
	user = strings.ToLower(user)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return false, 0, ""
	}
	if c.isPrivilegedLocked(user, isMod) {
		return false, 0, ""
	}
	if userCD <= 0 {
		userCD = c.defaultUser
	}
	if globalCD <= 0 {
		globalCD = c.defaultGlobal
	}
	now := c.now()

	if last, ok := c.global[command]; ok {
		if since := now.Sub(last); since < globalCD {
			return true, globalCD - since, BlockGlobal
		}
	}
	if table, ok := c.users[command]; ok {
		if v, ok := table.Get(user); ok {
			if since := now.Sub(v.(time.Time)); since < userCD {
				return true, userCD - since, BlockUser
			}
		}
	}
	return false, 0, ""
}

// Stamp records a successful use. Privileged users are not stamped: their
// free pass must not start a global window that blocks everyone else.
func (c *Cooldowns) Stamp(command, user string, isMod bool) {
	user = strings.ToLower(user)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled || c.isPrivilegedLocked(user, isMod) {
		return
	}
	now := c.now()
	c.global[command] = now
	table, ok := c.users[command]
	if !ok {
		table, _ = lru.New(userTableSize)
		c.users[command] = table
	}
	table.Add(user, now)
}

// ShouldNotify decides whether a rejected user gets a chat notice. Repeats
// inside the dedup window are dropped silently so a popular command on
// cooldown doesn't flood the chat with rejections.
func (c *Cooldowns) ShouldNotify(command, user string, kind BlockKind) bool {
	user = strings.ToLower(user)
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()

	if kind == BlockGlobal {
		if last, ok := c.globalNotices[command]; ok && now.Sub(last) < globalNoticeWindow {
			return false
		}
		c.globalNotices[command] = now
		return true
	}

	table, ok := c.userNotices[command]
	if !ok {
		table, _ = lru.New(userTableSize)
		c.userNotices[command] = table
	}
	if v, ok := table.Get(user); ok && now.Sub(v.(time.Time)) < userNoticeWindow {
		return false
	}
	table.Add(user, now)
	return true
}

// SetEnabled flips the kill-switch and persists it.
func (c *Cooldowns) SetEnabled(ctx context.Context, enabled bool) {
	c.mu.Lock()
	c.enabled = enabled
	c.mu.Unlock()
	telemetry.SetCooldownsEnabled(enabled)
	if c.dbx != nil {
		v := "true"
		if !enabled {
			v = "false"
		}
		if err := db.SetKV(ctx, c.dbx, enabledKVKey, v); err != nil {
			slog.Error("failed to persist cooldown kill-switch", slog.Any("err", err))
		}
	}
}

// Enabled reports the kill-switch state.
func (c *Cooldowns) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

func (c *Cooldowns) isPrivilegedLocked(user string, isMod bool) bool {
	if isMod {
		return true
	}
	_, ok := c.privileged[user]
	return ok
}
