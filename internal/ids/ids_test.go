package ids

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	re := regexp.MustCompile(`^doc_[0-9a-f]{24}$`)
	gen := Prefixed("doc")

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id := gen()
		assert.Regexp(t, re, id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 100)
}

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"generated", New("doc"), true},
		{"wrong prefix", New("tag"), false},
		{"short", "doc_0123", false},
		{"uppercase hex", "doc_0123456789ABCDEF01234567", false},
		{"no separator", "doc0123456789abcdef012345678", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid("doc", tt.id))
		})
	}
}
