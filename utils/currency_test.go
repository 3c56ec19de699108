package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		name   string
		amount float64
		want   string
	}{
		{"zero", 0, "$0.00"},
		{"small", 23, "$23.00"},
		{"thousands", 1234.5, "$1,234.50"},
		{"millions", 1234567.891, "$1,234,567.89"},
		{"negative", -50.25, "-$50.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatMoney(tt.amount))
		})
	}
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, 2.9, RoundMoney(2.899999))
	assert.Equal(t, 0.01, RoundMoney(0.005))
	assert.Equal(t, 23.0, RoundMoney(23))
}
