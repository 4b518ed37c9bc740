package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "leading plus is stripped",
			input:    "+966501234567",
			expected: "966501234567",
		},
		{
			name:     "no plus passes through",
			input:    "966501234567",
			expected: "966501234567",
		},
		{
			name:     "only first plus is stripped",
			input:    "++123",
			expected: "+123",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "non numeric content passes through",
			input:    "+abc-123",
			expected: "abc-123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.input))
		})
	}
}
