package room

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidName(t *testing.T) {
	valid := []string{
		"abc",
		"blue-fox-12",
		"UPPER-and-lower-9",
		strings.Repeat("a", 3),
		strings.Repeat("a", 50),
	}
	for _, name := range valid {
		assert.True(t, ValidName(name), name)
	}

	invalid := []string{
		"",
		"ab",
		strings.Repeat("a", 2),
		strings.Repeat("a", 51),
		"has space",
		"under_score",
		"dots.are.out",
		"../escape",
		"room/name",
		"naïve",
	}
	for _, name := range invalid {
		assert.False(t, ValidName(name), name)
	}
}

func TestGenerateName(t *testing.T) {
	for i := 0; i < 100; i++ {
		name := GenerateName()
		assert.True(t, ValidName(name), name)
	}
}
