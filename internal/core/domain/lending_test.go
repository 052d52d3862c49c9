package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDueDateIsFourteenDaysOut(t *testing.T) {
	p := DefaultLendingPolicy()
	assert.Equal(t, day("2024-03-15"), p.DueDate(day("2024-03-01")))
	assert.Equal(t, day("2024-03-15"), p.DueDate(day("2024-03-01").Add(17*time.Hour)))
}

func TestPenalty(t *testing.T) {
	p := DefaultLendingPolicy()
	checkout := day("2024-03-01")
	due := p.DueDate(checkout)

	tests := []struct {
		name     string
		returned time.Time
		days     int
		amount   string
	}{
		{"same day", checkout, 0, "0.00"},
		{"on due date", due, 0, "0.00"},
		{"one day late", checkout.AddDate(0, 0, 15), 1, "1.00"},
		{"six days late", checkout.AddDate(0, 0, 20), 6, "6.00"},
		{"late in the evening", checkout.AddDate(0, 0, 15).Add(23 * time.Hour), 1, "1.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			days, amount := p.Penalty(due, tt.returned)
			assert.Equal(t, tt.days, days)
			assert.Equal(t, tt.amount, amount.StringFixed(2))
		})
	}
}

func TestPenaltyUsesConfiguredRate(t *testing.T) {
	p := LendingPolicy{LoanPeriodDays: 7, PenaltyPerDay: decimal.RequireFromString("0.25")}
	due := p.DueDate(day("2024-01-01"))
	days, amount := p.Penalty(due, day("2024-01-11"))
	assert.Equal(t, 3, days)
	assert.Equal(t, "0.75", amount.StringFixed(2))
}

func TestLendingPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultLendingPolicy().Validate())
	assert.Error(t, LendingPolicy{LoanPeriodDays: 0, PenaltyPerDay: decimal.Zero}.Validate())
	assert.Error(t, LendingPolicy{LoanPeriodDays: 14, PenaltyPerDay: decimal.NewFromInt(-1)}.Validate())
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2023-07-09")
	require.NoError(t, err)
	assert.Equal(t, "2023-07-09", FormatDate(d))

	_, err = ParseDate("09/07/2023")
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
