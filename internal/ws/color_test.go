package ws

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUserColorIsDeterministic(t *testing.T) {
	for _, id := range []string{"conn-a", "conn-b", "3f1f8a52-7e01-4ad0-9c9e-1b2f0a6f2d11"} {
		first := UserColor(id)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, UserColor(id), "same connection must always map to the same color")
		}
	}
}

func TestUserColorStaysInPalette(t *testing.T) {
	palette := make(map[string]bool, len(userColors))
	for _, c := range userColors {
		palette[c] = true
	}

	for i := 0; i < 100; i++ {
		color := UserColor(fmt.Sprintf("conn-%d", i))
		assert.True(t, palette[color], "color %s not in palette", color)
	}
}

func TestUserColorSpreadsAcrossPalette(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		seen[UserColor(fmt.Sprintf("conn-%d", i))] = true
	}
	// Uniform-ish: with 1000 IDs every palette slot should get hit.
	assert.Len(t, seen, len(userColors))
}
