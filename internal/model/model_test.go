package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanCode(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  abc123 ", "ABC123"},
		{"ks2026", "KS2026"},
		{"ALREADY", "ALREADY"},
		{"\tTAB\n", "TAB"},
		{"   ", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanCode(tt.in))
	}
}
