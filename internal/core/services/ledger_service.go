package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/metrics"
	"libraryhub/internal/pkg/pagination"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Status query messages
const (
	MessageReturned    = "Book has been returned"
	MessageNotReturned = "Book has not been returned"
)

// LedgerService owns checkout, return and the penalty rules
type LedgerService struct {
	store    repositories.Store
	policy   domain.LendingPolicy
	notifier Notifier
	recorder LedgerRecorder
	clock    Clock
	logger   *slog.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	store repositories.Store,
	policy domain.LendingPolicy,
	notifier Notifier,
	recorder LedgerRecorder,
	clock Clock,
	logger *slog.Logger,
) *LedgerService {
	if clock == nil {
		clock = time.Now
	}
	return &LedgerService{
		store:    store,
		policy:   policy,
		notifier: notifier,
		recorder: recorder,
		clock:    clock,
		logger:   logger,
	}
}

// Policy returns the lending rules in force
func (s *LedgerService) Policy() domain.LendingPolicy {
	return s.policy
}

// Today is the current ledger date
func (s *LedgerService) Today() time.Time {
	return domain.Today(s.clock())
}

// Checkout lends one copy of bookID to userID. The decrement and the new
// ledger entry commit together or not at all.
func (s *LedgerService) Checkout(ctx context.Context, userID, bookID uint) (*models.Transaction, error) {
	today := s.Today()
	var entry *models.Transaction

	err := s.store.Atomic(ctx, func(tx repositories.Store) error {
		// 1. Borrower must exist and be active
		user, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrUserNotFound
			}
			return err
		}
		if !user.IsActive {
			return domain.ErrUserInactive
		}

		// 2. Book must exist
		book, err := tx.Books().GetByID(ctx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrBookNotFound
			}
			return err
		}

		// 3. Take a copy off the shelf if one is left
		ok, err := tx.Books().DecrementAvailable(ctx, bookID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNoCopiesAvailable
		}

		// 4. One open loan per (user, book)
		if _, err := tx.Transactions().GetOpen(ctx, userID, bookID); err == nil {
			return domain.ErrAlreadyCheckedOut
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		// 5. Record the loan; the unique open key catches a concurrent twin
		entry = &models.Transaction{
			UserID:       userID,
			BookID:       bookID,
			CheckoutDate: today,
			DueDate:      s.policy.DueDate(today),
			Penalty:      decimal.Zero,
			OpenKey:      models.OpenKey(userID, bookID),
		}
		if err := tx.Transactions().Create(ctx, entry); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrAlreadyCheckedOut
			}
			return err
		}

		book.AvailableCopies--
		entry.Book = *book
		return nil
	})
	if err != nil {
		s.recorder.RecordCheckout(outcomeOf(err))
		return nil, err
	}

	s.recorder.RecordCheckout(metrics.OutcomeSuccess)
	s.logger.InfoContext(ctx, "book checked out",
		slog.Uint64("user_id", uint64(userID)),
		slog.Uint64("book_id", uint64(bookID)),
		slog.String("due_date", domain.FormatDate(entry.DueDate)),
	)
	return entry, nil
}

// Return closes userID's open loan of bookID, charges any penalty and, when
// late, queues an overdue notice after the commit.
func (s *LedgerService) Return(ctx context.Context, userID, bookID uint) (*models.Transaction, error) {
	today := s.Today()
	var entry *models.Transaction
	var daysLate int

	err := s.store.Atomic(ctx, func(tx repositories.Store) error {
		// 1. Book must exist
		book, err := tx.Books().GetByID(ctx, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrBookNotFound
			}
			return err
		}

		// 2. There must be an open loan to close
		entry, err = tx.Transactions().GetOpen(ctx, userID, bookID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotCheckedOut
			}
			return err
		}

		// 3. Close it exactly once
		days, penalty := s.policy.Penalty(entry.DueDate, today)
		ok, err := tx.Transactions().MarkReturned(ctx, entry.ID, today, penalty)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrNotCheckedOut
		}

		// 4. Put the copy back, never above the owned total
		ok, err = tx.Books().IncrementAvailable(ctx, bookID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInventoryOverflow
		}

		daysLate = days
		entry.ReturnDate = &today
		entry.Penalty = penalty
		entry.OpenKey = nil
		book.AvailableCopies++
		entry.Book = *book
		return nil
	})
	if err != nil {
		s.recorder.RecordReturn(outcomeOf(err), 0, decimal.Zero)
		return nil, err
	}

	s.recorder.RecordReturn(metrics.OutcomeSuccess, daysLate, entry.Penalty)
	s.logger.InfoContext(ctx, "book returned",
		slog.Uint64("user_id", uint64(userID)),
		slog.Uint64("book_id", uint64(bookID)),
		slog.Int("days_late", daysLate),
		slog.String("penalty", entry.Penalty.StringFixed(2)),
	)

	if daysLate > 0 {
		s.notifyOverdueReturn(ctx, entry, daysLate)
	}
	return entry, nil
}

// notifyOverdueReturn queues the overdue notice. Lookup failures are logged
// only; the return has already committed.
func (s *LedgerService) notifyOverdueReturn(ctx context.Context, entry *models.Transaction, daysLate int) {
	user, err := s.store.Users().GetByID(ctx, entry.UserID)
	if err != nil {
		s.logger.WarnContext(ctx, "overdue notice skipped: borrower lookup failed",
			slog.Uint64("user_id", uint64(entry.UserID)),
			slog.String("error", err.Error()),
		)
		return
	}
	entry.User = *user
	if !s.notifier.Enqueue(OverdueReturnMail(user.Email, user.Username, entry.Book.Title, daysLate, entry.Penalty)) {
		s.logger.WarnContext(ctx, "overdue notice dropped: mail queue full",
			slog.Uint64("transaction_id", uint64(entry.ID)),
		)
	}
}

// LoanStatus answers whether a user's most recent loan of a book is closed
type LoanStatus struct {
	Returned bool                       `json:"returned"`
	Message  string                     `json:"message"`
	Entry    *models.TransactionResponse `json:"transaction"`
}

// Status reports on the most recent loan of bookID by userID. Having never
// borrowed the book is an error, not "not returned".
func (s *LedgerService) Status(ctx context.Context, userID, bookID uint) (*LoanStatus, error) {
	if _, err := s.store.Books().GetByID(ctx, bookID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBookNotFound
		}
		return nil, err
	}

	entry, err := s.store.Transactions().GetLatest(ctx, userID, bookID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotCheckedOut
		}
		return nil, err
	}

	status := &LoanStatus{Returned: entry.IsReturned(), Entry: entry.ToResponse()}
	if status.Returned {
		status.Message = MessageReturned
	} else {
		status.Message = MessageNotReturned
	}
	return status, nil
}

// History lists one user's loans, newest first
func (s *LedgerService) History(ctx context.Context, userID uint, params *pagination.Params) (*pagination.Response, error) {
	return s.List(ctx, repositories.TransactionFilter{UserID: userID}, params)
}

// List lists ledger entries matching filter, newest first
func (s *LedgerService) List(ctx context.Context, filter repositories.TransactionFilter, params *pagination.Params) (*pagination.Response, error) {
	entries, total, err := s.store.Transactions().List(ctx, filter, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}
	return pagination.NewResponse(models.ToTransactionResponses(entries), params, total), nil
}

// outcomeOf classifies a failed ledger operation for metrics
func outcomeOf(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, domain.ErrInvalidState), errors.Is(err, domain.ErrForbidden):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}
