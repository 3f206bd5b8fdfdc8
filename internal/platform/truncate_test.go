package platform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name      string
		content   string
		limit     int
		want      string
		truncated bool
	}{
		{"under limit", "hello", 10, "hello", false},
		{"at limit", "hello", 5, "hello", false},
		{"over limit", "hello world", 5, "hello", true},
		{"multibyte", "héllo wörld", 7, "héllo w", true},
		{"emoji", "🚀🚀🚀", 2, "🚀🚀", true},
		{"no limit", "anything", 0, "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, truncated := Truncate(tt.content, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.truncated, truncated)
		})
	}
}

func TestTruncateProducesExactLimit(t *testing.T) {
	for _, limit := range []int{280, 2200, 3000} {
		got, truncated := Truncate(strings.Repeat("ä", limit+17), limit)
		assert.True(t, truncated)
		assert.Equal(t, limit, Length(got))
	}
}
