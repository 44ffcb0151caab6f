package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrom(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"punctuation and spaces", "Hello, World!  2024", "hello-world-2024"},
		{"edge hyphens stripped", "---Edge---", "edge"},
		{"already clean", "intro-to-go", "intro-to-go"},
		{"uppercase", "Intro To Go", "intro-to-go"},
		{"accents removed", "Café au Lait", "cafe-au-lait"},
		{"runs collapse", "a!!!b###c", "a-b-c"},
		{"numbers kept", "Go 1.23 Released", "go-1-23-released"},
		{"empty", "", ""},
		{"only symbols", "!?#", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, From(tt.input))
		})
	}
}
