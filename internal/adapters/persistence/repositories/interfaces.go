package repositories

import (
	"context"
	"time"

	"libraryhub/internal/adapters/persistence/models"

	"github.com/shopspring/decimal"
)

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, search string, offset, limit int) ([]*models.User, int64, error)
	ExistsByUsername(ctx context.Context, username string, excludeID uint) (bool, error)
	ExistsByEmail(ctx context.Context, email string, excludeID uint) (bool, error)
	Count(ctx context.Context) (int64, error)
	CountByRole(ctx context.Context, role string) (int64, error)
}

// RefreshTokenRepository defines refresh token repository interface
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *models.RefreshToken) error
	GetByTokenHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)
	GetByUserID(ctx context.Context, userID uint) ([]*models.RefreshToken, error)
	Revoke(ctx context.Context, id uint) (bool, error)
	RevokeByTokenHash(ctx context.Context, tokenHash string) (bool, error)
	RevokeAllByUserID(ctx context.Context, userID uint) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
	CountActiveByUserID(ctx context.Context, userID uint) (int64, error)
}

// BookFilter narrows a catalog listing.
type BookFilter struct {
	Search    string
	Ordering  string
	Available *bool
}

// CatalogStats summarises the catalog for dashboards.
type CatalogStats struct {
	Titles          int64 `json:"titles"`
	TotalCopies     int64 `json:"total_copies"`
	AvailableCopies int64 `json:"available_copies"`
}

// BookRepository defines book repository interface
type BookRepository interface {
	Create(ctx context.Context, book *models.Book) error
	GetByID(ctx context.Context, id uint) (*models.Book, error)
	ExistsByISBN(ctx context.Context, isbn string, excludeID uint) (bool, error)
	Update(ctx context.Context, id uint, fields map[string]interface{}) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter BookFilter, offset, limit int) ([]*models.Book, int64, error)
	All(ctx context.Context) ([]*models.Book, error)
	// DecrementAvailable takes one copy off the shelf only if one is left.
	DecrementAvailable(ctx context.Context, id uint) (bool, error)
	// IncrementAvailable puts one copy back only if that stays within the total owned.
	IncrementAvailable(ctx context.Context, id uint) (bool, error)
	// AdjustCopies changes owned and available copies by delta, refusing to
	// drive available copies below zero.
	AdjustCopies(ctx context.Context, id uint, delta int) (bool, error)
	Stats(ctx context.Context) (*CatalogStats, error)
}

// TransactionFilter narrows a ledger listing.
type TransactionFilter struct {
	UserID   uint
	BookID   uint
	OpenOnly bool
}

// TransactionRepository defines ledger repository interface
type TransactionRepository interface {
	Create(ctx context.Context, entry *models.Transaction) error
	GetByID(ctx context.Context, id uint) (*models.Transaction, error)
	GetOpen(ctx context.Context, userID, bookID uint) (*models.Transaction, error)
	GetLatest(ctx context.Context, userID, bookID uint) (*models.Transaction, error)
	// MarkReturned closes an open loan; false means it was already closed.
	MarkReturned(ctx context.Context, id uint, returnDate time.Time, penalty decimal.Decimal) (bool, error)
	List(ctx context.Context, filter TransactionFilter, offset, limit int) ([]*models.Transaction, int64, error)
	ListOverdue(ctx context.Context, asOf time.Time) ([]*models.Transaction, error)
	CountOpen(ctx context.Context, filter TransactionFilter) (int64, error)
	CountOverdue(ctx context.Context, userID uint, asOf time.Time) (int64, error)
	SumPenalties(ctx context.Context, userID uint) (decimal.Decimal, error)
}

// Store groups the repositories that share one database handle.
type Store interface {
	Users() UserRepository
	Books() BookRepository
	Transactions() TransactionRepository
	RefreshTokens() RefreshTokenRepository
	// Atomic runs fn in a database transaction. The Store handed to fn is
	// bound to it; fn must not use the outer Store.
	Atomic(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}
