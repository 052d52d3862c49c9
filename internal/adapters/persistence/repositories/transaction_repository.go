package repositories

import (
	"context"
	"time"

	"libraryhub/internal/adapters/persistence/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// transactionRepository implements TransactionRepository interface
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new ledger repository
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

// withParties preloads the book and borrower, keeping soft-deleted ones so
// history stays readable.
func withParties(db *gorm.DB) *gorm.DB {
	unscoped := func(tx *gorm.DB) *gorm.DB { return tx.Unscoped() }
	return db.Preload("Book", unscoped).Preload("User", unscoped)
}

func applyTransactionFilter(query *gorm.DB, filter TransactionFilter) *gorm.DB {
	if filter.UserID != 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.BookID != 0 {
		query = query.Where("book_id = ?", filter.BookID)
	}
	if filter.OpenOnly {
		query = query.Where("return_date IS NULL")
	}
	return query
}

// Create inserts a ledger entry
func (r *transactionRepository) Create(ctx context.Context, entry *models.Transaction) error {
	return r.db.WithContext(ctx).Omit("User", "Book").Create(entry).Error
}

// GetByID gets a ledger entry by ID
func (r *transactionRepository) GetByID(ctx context.Context, id uint) (*models.Transaction, error) {
	var entry models.Transaction
	err := withParties(r.db.WithContext(ctx)).Where("id = ?", id).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetOpen gets the open loan for a (user, book) pair
func (r *transactionRepository) GetOpen(ctx context.Context, userID, bookID uint) (*models.Transaction, error) {
	var entry models.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Where("return_date IS NULL").
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetLatest gets the most recent loan for a (user, book) pair, open or closed
func (r *transactionRepository) GetLatest(ctx context.Context, userID, bookID uint) (*models.Transaction, error) {
	var entry models.Transaction
	err := withParties(r.db.WithContext(ctx)).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Order("checkout_date DESC").Order("id DESC").
		Take(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// MarkReturned closes an open loan and releases its open key
func (r *transactionRepository) MarkReturned(ctx context.Context, id uint, returnDate time.Time, penalty decimal.Decimal) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND return_date IS NULL", id).
		Updates(map[string]interface{}{
			"return_date": returnDate,
			"penalty":     penalty,
			"open_key":    nil,
		})
	return result.RowsAffected == 1, result.Error
}

// List lists ledger entries, newest first
func (r *transactionRepository) List(ctx context.Context, filter TransactionFilter, offset, limit int) ([]*models.Transaction, int64, error) {
	var entries []*models.Transaction
	var total int64

	base := applyTransactionFilter(r.db.WithContext(ctx).Model(&models.Transaction{}), filter)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := withParties(applyTransactionFilter(r.db.WithContext(ctx), filter)).
		Order("checkout_date DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// ListOverdue lists open loans whose due date is before asOf
func (r *transactionRepository) ListOverdue(ctx context.Context, asOf time.Time) ([]*models.Transaction, error) {
	var entries []*models.Transaction
	err := withParties(r.db.WithContext(ctx)).
		Where("return_date IS NULL").
		Where("due_date < ?", asOf).
		Order("user_id ASC").Order("due_date ASC").
		Find(&entries).Error
	return entries, err
}

// CountOpen counts open loans matching filter
func (r *transactionRepository) CountOpen(ctx context.Context, filter TransactionFilter) (int64, error) {
	var count int64
	filter.OpenOnly = true
	err := applyTransactionFilter(r.db.WithContext(ctx).Model(&models.Transaction{}), filter).
		Count(&count).Error
	return count, err
}

// CountOverdue counts open loans past due; userID 0 counts everyone's
func (r *transactionRepository) CountOverdue(ctx context.Context, userID uint, asOf time.Time) (int64, error) {
	var count int64
	query := applyTransactionFilter(r.db.WithContext(ctx).Model(&models.Transaction{}), TransactionFilter{UserID: userID, OpenOnly: true})
	err := query.Where("due_date < ?", asOf).Count(&count).Error
	return count, err
}

// SumPenalties totals the penalties charged to a user
func (r *transactionRepository) SumPenalties(ctx context.Context, userID uint) (decimal.Decimal, error) {
	var entries []models.Transaction
	err := r.db.WithContext(ctx).
		Select("id", "penalty").
		Where("user_id = ?", userID).
		Where("return_date IS NOT NULL").
		Find(&entries).Error
	if err != nil {
		return decimal.Zero, err
	}

	sum := decimal.Zero
	for _, e := range entries {
		sum = sum.Add(e.Penalty)
	}
	return sum, nil
}
