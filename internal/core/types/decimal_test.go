package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToPaise(t *testing.T) {
	tests := []struct {
		in   string
		want Paise
	}{
		{"180", 18000},
		{"1250.00", 125000},
		{"0.015", 2},
		{"99.994", 9999},
		{"0", 0},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ToPaise(MustMoney(tt.in)))
		})
	}
}

func TestPaise_Money(t *testing.T) {
	assert.True(t, Paise(45050).Money().Equal(MustMoney("450.50")))
	assert.Equal(t, "450.50 INR", Paise(45050).String())
}

func TestNonNegative(t *testing.T) {
	assert.True(t, NonNegative(MustMoney("-20")).IsZero())
	assert.True(t, NonNegative(MustMoney("20")).Equal(MustMoney("20")))
}
