package utils

import (
	"testing"
)

func TestNormalizePlate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "spaced indonesian plate",
			input:    "B 1970 SSW",
			expected: "B1970SSW",
		},
		{
			name:     "lowercase",
			input:    "ab1234xy",
			expected: "AB1234XY",
		},
		{
			name:     "with dashes and dots",
			input:    "AB-1234.XY",
			expected: "AB1234XY",
		},
		{
			name:     "already normalized",
			input:    "DK4321AB",
			expected: "DK4321AB",
		},
		{
			name:     "with leading/trailing spaces",
			input:    "  L 99 Z  ",
			expected: "L99Z",
		},
		{
			name:     "non ascii dropped",
			input:    "B 12 É",
			expected: "B12",
		},
		{
			name:     "empty",
			input:    "—",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NormalizePlate(tt.input)
			if result != tt.expected {
				t.Errorf("NormalizePlate(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
