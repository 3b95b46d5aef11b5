package chat

import (
	"context"
	"strconv"
	"strings"
)

// targetFromArgs resolves the user a command acts on: the reply parent wins,
// then the first @mention (or bare name) in the args, then the fallback.
func targetFromArgs(ctx context.Context, args []string, fallback string) string {
	if parent := replyParent(ctx); parent != "" {
		return parent
	}
	for _, a := range args {
		if name := cleanUsername(a); name != "" {
			return name
		}
	}
	return strings.ToLower(fallback)
}

// mentionFromArgs is like targetFromArgs but only accepts an explicit
// @mention; it never falls back to the caller.
func mentionFromArgs(ctx context.Context, args []string) string {
	if parent := replyParent(ctx); parent != "" {
		return parent
	}
	for _, a := range args {
		if strings.HasPrefix(a, "@") {
			return cleanUsername(a)
		}
	}
	return ""
}

// intFromArgs returns the first argument that parses as an integer.
func intFromArgs(args []string) (int64, bool) {
	for _, a := range args {
		if n, err := strconv.ParseInt(a, 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// cleanUsername strips the @ prefix and anything non-printable chat clients
// like to smuggle in.
func cleanUsername(s string) string {
	s = strings.TrimPrefix(strings.TrimSpace(s), "@")
	var b strings.Builder
	for _, r := range s {
		if r > 32 && r < 127 {
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}
