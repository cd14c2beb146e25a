// Package identity canonicalizes raw usernames into the form used as
// registry keys, storage directory names, and spawn arguments.
package identity

import (
	"errors"
	"strings"
)

// MaxLen bounds a normalized identity.
const MaxLen = 32

// ErrInvalid is returned when a raw username normalizes to nothing usable.
var ErrInvalid = errors.New("invalid identity")

// Normalize maps a raw username to its canonical identity: lowercased,
// restricted to [a-z0-9_-], runs of other characters collapsed to a single
// dash, trimmed, and capped at MaxLen. The result never contains path
// separators or dots, so it is safe to embed in filesystem paths and spawn
// arguments. Normalize is idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(raw string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(v))
	lastDash := false
	for _, r := range v {
		keep := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_'
		if keep {
			b.WriteRune(r)
			lastDash = false
			continue
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}

	s := strings.Trim(b.String(), "-")
	if len(s) > MaxLen {
		s = strings.TrimRight(s[:MaxLen], "-")
	}
	if s == "" {
		return "", ErrInvalid
	}
	return s, nil
}
