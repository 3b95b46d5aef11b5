package gate

import (
	"strings"
	"sync"
)

// User is the caller identity as seen by the gate, derived from IRC tags.
type User struct {
	Name          string
	IsMod         bool
	IsBroadcaster bool
}

// Moderator reports whether the user may run mod-only commands. The
// broadcaster always counts.
func (u User) Moderator() bool { return u.IsMod || u.IsBroadcaster }

// Permissions holds per-command user allow-lists on top of the mod flag. A
// command with no allow-list accepts everyone (cooldowns still apply).
type Permissions struct {
	mu    sync.Mutex
	allow map[string]map[string]struct{}
}

func NewPermissions() *Permissions {
	return &Permissions{allow: make(map[string]map[string]struct{})}
}

// Allow grants user access to an allow-listed command.
func (p *Permissions) Allow(command, user string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.allow[command] == nil {
		p.allow[command] = make(map[string]struct{})
	}
	p.allow[command][strings.ToLower(user)] = struct{}{}
}

// Revoke removes a user from a command's allow-list.
func (p *Permissions) Revoke(command, user string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.allow[command], strings.ToLower(user))
}

// Permitted reports whether the user may run the command: mods always, and
// otherwise only when the command has no allow-list or lists the user.
func (p *Permissions) Permitted(command string, u User) bool {
	if u.Moderator() {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	list, ok := p.allow[command]
	if !ok {
		return true
	}
	_, listed := list[strings.ToLower(u.Name)]
	return listed
}
