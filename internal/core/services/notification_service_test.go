package services

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"sync"
	"testing"
	"time"

	"libraryhub/internal/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMailer struct {
	mu    sync.Mutex
	sent  []Mail
	fail  bool
	block chan struct{}
}

func (m *fakeMailer) Send(ctx context.Context, mail Mail) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("relay unavailable")
	}
	m.sent = append(m.sent, mail)
	return nil
}

func (m *fakeMailer) Sent() []Mail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Mail(nil), m.sent...)
}

type statusCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (c *statusCounter) RecordNotification(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[status]++
}

func (c *statusCounter) Get(status string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[status]
}

func TestNotificationServiceDelivers(t *testing.T) {
	mailer := &fakeMailer{}
	counter := &statusCounter{}
	svc := NewNotificationService(mailer, 10, time.Second, counter, logger.Discard())
	svc.Start(context.Background())

	assert.True(t, svc.Enqueue(Mail{To: "a@example.com", Subject: "one"}))
	assert.True(t, svc.Enqueue(Mail{To: "b@example.com", Subject: "two"}))
	svc.Stop()

	sent := mailer.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "one", sent[0].Subject)
	assert.Equal(t, 2, counter.Get(NotificationSent))

	// After Stop nothing is accepted
	assert.False(t, svc.Enqueue(Mail{To: "c@example.com"}))
	assert.Equal(t, 1, counter.Get(NotificationDropped))
}

func TestNotificationServiceCountsFailures(t *testing.T) {
	counter := &statusCounter{}
	svc := NewNotificationService(&fakeMailer{fail: true}, 10, time.Second, counter, logger.Discard())
	svc.Start(context.Background())

	assert.True(t, svc.Enqueue(Mail{To: "a@example.com"}))
	svc.Stop()

	assert.Equal(t, 1, counter.Get(NotificationFailed))
	assert.Equal(t, 0, counter.Get(NotificationSent))
}

func TestNotificationServiceDropsWhenFull(t *testing.T) {
	mailer := &fakeMailer{block: make(chan struct{})}
	counter := &statusCounter{}
	svc := NewNotificationService(mailer, 1, time.Second, counter, logger.Discard())

	// Not started: the single slot fills and the next mail is dropped
	assert.True(t, svc.Enqueue(Mail{To: "a@example.com"}))
	assert.False(t, svc.Enqueue(Mail{To: "b@example.com"}))
	assert.Equal(t, 1, counter.Get(NotificationDropped))

	svc.Start(context.Background())
	close(mailer.block)
	svc.Stop()
	assert.Len(t, mailer.Sent(), 1)
}

func TestOverdueMails(t *testing.T) {
	mail := OverdueReturnMail("a@example.com", "alice", "Dune", 6, decimal.NewFromInt(6))
	assert.Equal(t, "Overdue Book Return", mail.Subject)
	assert.Equal(t, `Dear alice, you have returned the book "Dune" 6 days late. Your penalty is $6.00.`, mail.Body)

	due := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	reminder := OverdueReminderMail("a@example.com", "alice", "Dune", due, 2, decimal.RequireFromString("0.5"))
	assert.Equal(t, "Overdue Book Reminder", reminder.Subject)
	assert.Contains(t, reminder.Body, "was due on 2024-03-15")
	assert.Contains(t, reminder.Body, "$0.50")
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth

	m := NewSMTPMailer(SMTPConfig{Host: "smtp.example.com", Port: 587, Username: "u", Password: "p", From: "library@example.com"})
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}

	require.NoError(t, m.Send(context.Background(), Mail{To: "alice@example.com", Subject: "Hi", Body: "Hello"}))
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "library@example.com", gotFrom)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)

	msg := string(gotMsg)
	assert.Contains(t, msg, "Subject: Hi\r\n")
	assert.Contains(t, msg, "To: alice@example.com\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nHello\r\n"))
}

func TestSMTPMailerWrapsErrors(t *testing.T) {
	m := NewSMTPMailer(SMTPConfig{Host: "localhost", Port: 25, From: "library@example.com"})
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := m.Send(context.Background(), Mail{To: "alice@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "alice@example.com")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, Mail{To: "alice@example.com"}), context.Canceled)
}
