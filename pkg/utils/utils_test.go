package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculateTotalDebt(t *testing.T) {
	tests := []struct {
		name      string
		requested decimal.Decimal
		rate      decimal.Decimal
		expected  decimal.Decimal
	}{
		{
			name:      "forty percent loan",
			requested: decimal.NewFromInt(1000),
			rate:      decimal.RequireFromString("0.4"),
			expected:  decimal.NewFromInt(1400),
		},
		{
			name:      "zero interest rate",
			requested: decimal.NewFromInt(1000),
			rate:      decimal.Zero,
			expected:  decimal.NewFromInt(1000),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateTotalDebt(tt.requested, tt.rate)
			assert.True(t, result.Equal(tt.expected), "Expected %v, but got %v", tt.expected, result)
		})
	}
}

func TestCalculateWeeklyPayment(t *testing.T) {
	tests := []struct {
		name      string
		totalDebt decimal.Decimal
		weeks     int
		expected  decimal.Decimal
	}{
		{
			name:      "fourteen weeks",
			totalDebt: decimal.NewFromInt(1400),
			weeks:     14,
			expected:  decimal.NewFromInt(100),
		},
		{
			name:      "zero weeks floors to one",
			totalDebt: decimal.NewFromInt(1400),
			weeks:     0,
			expected:  decimal.NewFromInt(1400),
		},
		{
			name:      "rounds to cents",
			totalDebt: decimal.NewFromInt(1000),
			weeks:     3,
			expected:  decimal.RequireFromString("333.33"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateWeeklyPayment(tt.totalDebt, tt.weeks)
			assert.True(t, result.Equal(tt.expected), "Expected %v, but got %v", tt.expected, result)
		})
	}
}

func TestCalculatePending(t *testing.T) {
	assert.True(t, CalculatePending(decimal.NewFromInt(1400), decimal.NewFromInt(400)).Equal(decimal.NewFromInt(1000)))
	assert.True(t, CalculatePending(decimal.NewFromInt(1000), decimal.NewFromInt(1200)).IsZero())
}

func TestNormalizeExternalID(t *testing.T) {
	tests := map[string]string{
		"77":     "77",
		" 77 ":   "77",
		"77.0":   "77",
		"77.5":   "77.5",
		"A-12":   "A-12",
		"":       "",
		"   ":    "",
		"0012":   "12",
		"1e2":    "100",
		"ruta 3": "ruta 3",
	}
	for in, expected := range tests {
		assert.Equal(t, expected, NormalizeExternalID(in), "input %q", in)
	}
}

func TestDateOnly(t *testing.T) {
	in := time.Date(2024, 3, 5, 17, 45, 0, 0, time.FixedZone("CST", -6*3600))
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), DateOnly(in))
}

func TestNormalizeRate(t *testing.T) {
	assert.True(t, NormalizeRate(decimal.NewFromInt(40)).Equal(decimal.RequireFromString("0.4")))
	assert.True(t, NormalizeRate(decimal.RequireFromString("0.4")).Equal(decimal.RequireFromString("0.4")))
	assert.True(t, NormalizeRate(decimal.NewFromInt(1)).Equal(decimal.NewFromInt(1)))
	assert.Equal(t, "0.4", NormalizeRate(decimal.RequireFromString("0.40000000000000002")).String())
	assert.Equal(t, "0.4", NormalizeRate(decimal.RequireFromString("40.000000000000002")).String())
	assert.Equal(t, "0.1235", NormalizeRate(decimal.RequireFromString("12.345")).String())
}
