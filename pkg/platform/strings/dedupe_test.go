package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "nil input",
			input:    nil,
			expected: nil,
		},
		{
			name:     "removes duplicates preserving order",
			input:    []string{"berlin", "ams", "berlin", "ams", "nyc"},
			expected: []string{"berlin", "ams", "nyc"},
		},
		{
			name:     "trims whitespace before comparing",
			input:    []string{"  berlin ", "berlin", "\tams"},
			expected: []string{"berlin", "ams"},
		},
		{
			name:     "drops empty and whitespace-only values",
			input:    []string{"", "  ", "berlin"},
			expected: []string{"berlin"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
