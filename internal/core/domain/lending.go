package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DefaultLoanPeriodDays = 14
	dateLayout            = "2006-01-02"
)

// DefaultPenaltyPerDay is charged for each whole day a book is returned late.
var DefaultPenaltyPerDay = decimal.NewFromInt(1)

// LendingPolicy holds the rules a checkout and return are judged by.
// All ledger dates are calendar days at midnight UTC.
type LendingPolicy struct {
	LoanPeriodDays int
	PenaltyPerDay  decimal.Decimal
}

// DefaultLendingPolicy is a 14 day loan charged 1.00 per late day.
func DefaultLendingPolicy() LendingPolicy {
	return LendingPolicy{
		LoanPeriodDays: DefaultLoanPeriodDays,
		PenaltyPerDay:  DefaultPenaltyPerDay,
	}
}

// Validate rejects non-positive loan periods and negative rates.
func (p LendingPolicy) Validate() error {
	if p.LoanPeriodDays <= 0 {
		return fmt.Errorf("loan period must be positive, got %d", p.LoanPeriodDays)
	}
	if p.PenaltyPerDay.IsNegative() {
		return fmt.Errorf("penalty per day must not be negative, got %s", p.PenaltyPerDay)
	}
	return nil
}

// Today truncates t to its calendar day.
func Today(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DueDate is the checkout day plus the loan period.
func (p LendingPolicy) DueDate(checkout time.Time) time.Time {
	return Today(checkout).AddDate(0, 0, p.LoanPeriodDays)
}

// DaysLate counts whole calendar days between due and returned; zero when
// returned on or before due.
func DaysLate(due, returned time.Time) int {
	diff := Today(returned).Sub(Today(due))
	if diff <= 0 {
		return 0
	}
	return int(diff / (24 * time.Hour))
}

// Penalty returns the days late and the amount owed, rounded to cents.
func (p LendingPolicy) Penalty(due, returned time.Time) (int, decimal.Decimal) {
	days := DaysLate(due, returned)
	if days == 0 {
		return 0, decimal.Zero
	}
	return days, decimal.NewFromInt(int64(days)).Mul(p.PenaltyPerDay).Round(2)
}

// FormatDate renders a ledger date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, Invalid("Dates must use the YYYY-MM-DD format")
	}
	return t, nil
}
