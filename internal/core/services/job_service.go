package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"

	"github.com/robfig/cron/v3"
)

// JobSchedule holds the cron specs for the background jobs
type JobSchedule struct {
	OverdueReminder string
	TokenCleanup    string
}

// JobService runs the scheduled jobs: daily overdue reminders and expired
// refresh-token cleanup. Neither touches ledger state.
type JobService struct {
	cron     *cron.Cron
	store    repositories.Store
	auth     *AuthService
	notifier Notifier
	recorder ReminderRecorder
	policy   domain.LendingPolicy
	clock    Clock
	logger   *slog.Logger
	timeout  time.Duration
}

// NewJobService creates a job service; call Start to schedule the jobs
func NewJobService(
	store repositories.Store,
	auth *AuthService,
	notifier Notifier,
	recorder ReminderRecorder,
	policy domain.LendingPolicy,
	clock Clock,
	logger *slog.Logger,
) *JobService {
	if clock == nil {
		clock = time.Now
	}
	return &JobService{
		cron:     cron.New(cron.WithLocation(time.UTC)),
		store:    store,
		auth:     auth,
		notifier: notifier,
		recorder: recorder,
		policy:   policy,
		clock:    clock,
		logger:   logger,
		timeout:  5 * time.Minute,
	}
}

// Start registers both jobs and starts the scheduler
func (s *JobService) Start(schedule JobSchedule) error {
	if _, err := s.cron.AddFunc(schedule.OverdueReminder, s.runOverdueReminders); err != nil {
		return fmt.Errorf("overdue reminder schedule %q: %w", schedule.OverdueReminder, err)
	}
	if _, err := s.cron.AddFunc(schedule.TokenCleanup, s.runTokenCleanup); err != nil {
		return fmt.Errorf("token cleanup schedule %q: %w", schedule.TokenCleanup, err)
	}

	s.cron.Start()
	s.logger.Info("🚀 Job scheduler started",
		slog.String("overdue_reminder", schedule.OverdueReminder),
		slog.String("token_cleanup", schedule.TokenCleanup),
	)
	return nil
}

// Stop stops scheduling and waits for running jobs to finish
func (s *JobService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("🛑 Job scheduler stopped")
}

func (s *JobService) runOverdueReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.SendOverdueReminders(ctx); err != nil {
		s.logger.Error("overdue reminder job failed", slog.String("error", err.Error()))
	}
}

func (s *JobService) runTokenCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.auth.CleanupExpiredTokens(ctx)
	if err != nil {
		s.logger.Error("token cleanup job failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("expired refresh tokens deleted", slog.Int64("count", n))
}

// SendOverdueReminders queues one reminder per open overdue loan and
// returns how many were queued
func (s *JobService) SendOverdueReminders(ctx context.Context) (int, error) {
	today := domain.Today(s.clock())

	entries, err := s.store.Transactions().ListOverdue(ctx, today)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, entry := range entries {
		if entry.User.Email == "" {
			continue
		}
		days, accrued := accruedPenalty(s.policy, entry, today)
		mail := OverdueReminderMail(entry.User.Email, entry.User.Username, entry.Book.Title, entry.DueDate, days, accrued)
		if s.notifier.Enqueue(mail) {
			queued++
		}
	}

	s.recorder.RecordReminders(queued)
	s.logger.Info("overdue reminders queued", slog.Int("overdue", len(entries)), slog.Int("queued", queued))
	return queued, nil
}
