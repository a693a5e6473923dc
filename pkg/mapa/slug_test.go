package mapa

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "Hello World", "hello-world"},
		{"punctuation collapses", "Go, Go... Go!", "go-go-go"},
		{"mixed case and digits", "Lesson 42: Pointers", "lesson-42-pointers"},
		{"leading and trailing junk", "  --Fancy Title--  ", "fancy-title"},
		{"only junk", "!!!", ""},
		{"unicode stripped", "cafè ünïte", "caf-n-te"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.input))
		})
	}
}

func TestNewSlug(t *testing.T) {
	t.Run("keeps slugified prefix", func(t *testing.T) {
		slug := NewSlug("My First Lesson")
		assert.True(t, strings.HasPrefix(slug, "my-first-lesson-"), slug)
	})

	t.Run("empty title falls back to untitled", func(t *testing.T) {
		slug := NewSlug("???")
		assert.True(t, strings.HasPrefix(slug, "untitled-"), slug)
	})

	t.Run("suffix is url safe", func(t *testing.T) {
		slug := NewSlug("title")
		suffix := strings.TrimPrefix(slug, "title-")
		require.NotEmpty(t, suffix)
		for _, r := range suffix {
			assert.True(t, (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'), slug)
		}
	})

	t.Run("consecutive calls differ", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 50; i++ {
			slug := NewSlug("repeat")
			assert.False(t, seen[slug], "duplicate slug %s", slug)
			seen[slug] = true
		}
	})
}
