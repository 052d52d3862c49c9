package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Clock returns the current time. Services take one so tests can pin dates.
type Clock func() time.Time

// Mail is a single outbound email
type Mail struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers mail
type Mailer interface {
	Send(ctx context.Context, mail Mail) error
}

// Notifier queues mail for best-effort delivery. Enqueue never blocks; it
// returns false when the message was dropped.
type Notifier interface {
	Enqueue(mail Mail) bool
}

// LedgerRecorder receives checkout and return outcomes (see internal/metrics)
type LedgerRecorder interface {
	RecordCheckout(outcome string)
	RecordReturn(outcome string, daysLate int, penalty decimal.Decimal)
}

// NotificationRecorder receives delivery outcomes
type NotificationRecorder interface {
	RecordNotification(status string)
}

// ReminderRecorder receives the number of reminders a job run queued
type ReminderRecorder interface {
	RecordReminders(n int)
}
