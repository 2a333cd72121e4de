// Package ids generates the prefixed random identifiers used for every row.
package ids

import (
	"strings"

	"github.com/google/uuid"
)

// Generator returns a new identifier on every call.
type Generator func() string

// New returns prefix + "_" + 24 lowercase hex characters of a random UUID.
func New(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// Prefixed returns a Generator bound to prefix.
func Prefixed(prefix string) Generator {
	return func() string { return New(prefix) }
}

// Valid reports whether id has the shape New(prefix) produces.
func Valid(prefix, id string) bool {
	rest, ok := strings.CutPrefix(id, prefix+"_")
	if !ok || len(rest) != 24 {
		return false
	}
	for _, r := range rest {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return true
}
