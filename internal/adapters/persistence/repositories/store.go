package repositories

import (
	"context"

	"gorm.io/gorm"
)

// gormStore implements Store
type gormStore struct {
	db            *gorm.DB
	users         UserRepository
	books         BookRepository
	transactions  TransactionRepository
	refreshTokens RefreshTokenRepository
}

// NewStore creates a store whose repositories all use db
func NewStore(db *gorm.DB) Store {
	return &gormStore{
		db:            db,
		users:         NewUserRepository(db),
		books:         NewBookRepository(db),
		transactions:  NewTransactionRepository(db),
		refreshTokens: NewRefreshTokenRepository(db),
	}
}

func (s *gormStore) Users() UserRepository                 { return s.users }
func (s *gormStore) Books() BookRepository                 { return s.books }
func (s *gormStore) Transactions() TransactionRepository   { return s.transactions }
func (s *gormStore) RefreshTokens() RefreshTokenRepository { return s.refreshTokens }

// Atomic runs fn inside a database transaction
func (s *gormStore) Atomic(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// Ping checks the database connection
func (s *gormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
