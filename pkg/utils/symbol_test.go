package utils

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSymbol(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"AAPL", "AAPL"},
		{"BRK.B", "BRK.B"},
		{"BF-B", "BF-B"},
		{"aapl", "AAPL"},
		{"  msft ", "MSFT"},
		{"123456789012345", "123456789012345"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeSymbol(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestNormalizeSymbol_Rejects(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"toolongsymbolname123456",
		"AAPL!",
		"brk b",
		"AAPL/USD",
		"$AAPL",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := NormalizeSymbol(in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidSymbol), "want ErrInvalidSymbol, got %v", err)
			assert.False(t, IsValidSymbol(in))
		})
	}
}
