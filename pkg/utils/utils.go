package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

const ratePlaces = 4

// CalculateTotalDebt calculates the amount the borrower owes over the loan
// Formula: Requested * (1 + Rate)
func CalculateTotalDebt(requested decimal.Decimal, rate decimal.Decimal) decimal.Decimal {
	return requested.Mul(one.Add(rate))
}

// CalculateWeeklyPayment calculates the expected weekly payment amount.
// A duration below one week is treated as one week.
func CalculateWeeklyPayment(totalDebt decimal.Decimal, weeks int) decimal.Decimal {
	if weeks < 1 {
		weeks = 1
	}
	return totalDebt.Div(decimal.NewFromInt(int64(weeks))).Round(2)
}

// CalculatePending returns what is left to pay, never below zero.
func CalculatePending(totalDebt decimal.Decimal, totalPaid decimal.Decimal) decimal.Decimal {
	pending := totalDebt.Sub(totalPaid)
	if pending.IsNegative() {
		return decimal.Zero
	}
	return pending
}

// NormalizeExternalID canonicalizes ids read from spreadsheet cells, where
// numeric ids often come back as "77.0" or " 77 ".
func NormalizeExternalID(raw string) string {
	id := strings.TrimSpace(raw)
	if id == "" {
		return ""
	}
	if f, err := strconv.ParseFloat(id, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return id
}

// DateOnly truncates a timestamp to its calendar day in UTC.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// NormalizeRate accepts rates written either as fractions (0.4) or as
// percentages (40) and returns the fraction, rounded to the four places a
// loan type rate is stored with.
func NormalizeRate(rate decimal.Decimal) decimal.Decimal {
	if rate.GreaterThan(one) {
		rate = rate.Div(decimal.NewFromInt(100))
	}
	return rate.Round(ratePlaces)
}
