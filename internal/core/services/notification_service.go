package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Notification delivery statuses
const (
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
	NotificationDropped = "dropped"
)

// NotificationService queues mail and delivers it from one background
// worker. Delivery is best-effort: failures are logged and counted, never
// returned to the code that queued the mail.
type NotificationService struct {
	mailer      Mailer
	recorder    NotificationRecorder
	logger      *slog.Logger
	sendTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Mail
	wg     sync.WaitGroup
}

// NewNotificationService creates a dispatcher with a bounded queue
func NewNotificationService(mailer Mailer, queueSize int, sendTimeout time.Duration, recorder NotificationRecorder, logger *slog.Logger) *NotificationService {
	if queueSize < 1 {
		queueSize = 1
	}
	if sendTimeout <= 0 {
		sendTimeout = 15 * time.Second
	}
	return &NotificationService{
		mailer:      mailer,
		recorder:    recorder,
		logger:      logger,
		sendTimeout: sendTimeout,
		queue:       make(chan Mail, queueSize),
	}
}

// Start launches the delivery worker. ctx bounds every send.
func (s *NotificationService) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for mail := range s.queue {
			s.deliver(ctx, mail)
		}
	}()
	s.logger.Info("notification worker started", slog.Int("queue_size", cap(s.queue)))
}

// Stop closes the queue and waits for queued mail to drain
func (s *NotificationService) Stop() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("notification worker stopped")
}

// Enqueue queues mail without blocking
func (s *NotificationService) Enqueue(mail Mail) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.drop(mail, "dispatcher stopped")
		return false
	}

	select {
	case s.queue <- mail:
		return true
	default:
		s.drop(mail, "queue full")
		return false
	}
}

func (s *NotificationService) drop(mail Mail, reason string) {
	s.recorder.RecordNotification(NotificationDropped)
	s.logger.Warn("notification dropped",
		slog.String("to", mail.To),
		slog.String("subject", mail.Subject),
		slog.String("reason", reason),
	)
}

func (s *NotificationService) deliver(ctx context.Context, mail Mail) {
	sendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	defer cancel()

	if err := s.mailer.Send(sendCtx, mail); err != nil {
		s.recorder.RecordNotification(NotificationFailed)
		s.logger.Error("notification failed",
			slog.String("to", mail.To),
			slog.String("subject", mail.Subject),
			slog.String("error", err.Error()),
		)
		return
	}

	s.recorder.RecordNotification(NotificationSent)
	s.logger.Debug("notification sent", slog.String("to", mail.To), slog.String("subject", mail.Subject))
}

// OverdueReturnMail tells a user the penalty for a late return
func OverdueReturnMail(email, username, title string, daysLate int, penalty decimal.Decimal) Mail {
	return Mail{
		To:      email,
		Subject: "Overdue Book Return",
		Body: fmt.Sprintf("Dear %s, you have returned the book %q %d days late. Your penalty is $%s.",
			username, title, daysLate, penalty.StringFixed(2)),
	}
}

// OverdueReminderMail reminds a user of a book still out past its due date
func OverdueReminderMail(email, username, title string, due time.Time, daysLate int, accrued decimal.Decimal) Mail {
	return Mail{
		To:      email,
		Subject: "Overdue Book Reminder",
		Body: fmt.Sprintf("Dear %s, the book %q was due on %s and is now %d days overdue. The penalty so far is $%s. Please return it as soon as possible.",
			username, title, due.UTC().Format("2006-01-02"), daysLate, accrued.StringFixed(2)),
	}
}
