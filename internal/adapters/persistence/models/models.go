package models

import (
	"fmt"
	"time"

	"libraryhub/internal/core/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ============================================================
// Accounts
// ============================================================

// User represents users table
type User struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Username         string         `gorm:"uniqueIndex;size:150;not null" json:"username"`
	Email            string         `gorm:"uniqueIndex;size:254;not null" json:"email"`
	Password         string         `gorm:"size:255;not null" json:"-"`
	Role             domain.Role    `gorm:"size:20;not null;index" json:"role"`
	IsActive         bool           `gorm:"not null" json:"is_active"`
	DateOfMembership time.Time      `gorm:"not null" json:"date_of_membership"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// Actor returns the identity used for permission checks.
func (u *User) Actor() domain.Actor {
	return domain.Actor{ID: u.ID, Role: u.Role}
}

// UserResponse DTO
type UserResponse struct {
	ID               uint        `json:"id"`
	Username         string      `json:"username"`
	Email            string      `json:"email"`
	Role             domain.Role `json:"role"`
	IsActive         bool        `json:"is_active"`
	DateOfMembership string      `json:"date_of_membership"`
	CreatedAt        time.Time   `json:"created_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		Role:             u.Role,
		IsActive:         u.IsActive,
		DateOfMembership: domain.FormatDate(u.DateOfMembership),
		CreatedAt:        u.CreatedAt,
	}
}

// RefreshToken represents refresh_tokens table
type RefreshToken struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	TokenHash string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt time.Time  `gorm:"not null;index" json:"expires_at"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	RevokedAt *time.Time `gorm:"index" json:"revoked_at"`
	User      User       `gorm:"foreignKey:UserID" json:"-"`
}

func (RefreshToken) TableName() string {
	return "refresh_tokens"
}

func (rt *RefreshToken) IsRevoked() bool {
	return rt.RevokedAt != nil
}

func (rt *RefreshToken) IsExpired(now time.Time) bool {
	return now.After(rt.ExpiresAt)
}

// ============================================================
// Catalog
// ============================================================

// Book represents books table
type Book struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Title           string         `gorm:"size:100;not null;index" json:"title"`
	Author          string         `gorm:"size:100;not null;index" json:"author"`
	ISBN            string         `gorm:"column:isbn;size:100;not null;uniqueIndex" json:"isbn"`
	PublishedDate   time.Time      `gorm:"not null" json:"published_date"`
	AvailableCopies int            `gorm:"not null;check:available_copies >= 0" json:"available_copies"`
	TotalCopies     int            `gorm:"not null;check:total_copies >= 0" json:"total_copies"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Book) TableName() string {
	return "books"
}

// OnLoan is the number of copies currently checked out.
func (b *Book) OnLoan() int {
	return b.TotalCopies - b.AvailableCopies
}

// BookResponse DTO
type BookResponse struct {
	ID              uint   `json:"id"`
	Title           string `json:"title"`
	Author          string `json:"author"`
	ISBN            string `json:"isbn"`
	PublishedDate   string `json:"published_date"`
	AvailableCopies int    `json:"available_copies"`
	TotalCopies     int    `json:"total_copies"`
}

func (b *Book) ToResponse() *BookResponse {
	return &BookResponse{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		ISBN:            b.ISBN,
		PublishedDate:   domain.FormatDate(b.PublishedDate),
		AvailableCopies: b.AvailableCopies,
		TotalCopies:     b.TotalCopies,
	}
}

// ============================================================
// Lending ledger
// ============================================================

// Transaction represents transactions table: one loan of one book to one user.
// OpenKey is set while the loan is open and cleared on return, so the unique
// index allows a single open loan per (user, book) pair.
type Transaction struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	UserID       uint            `gorm:"index;not null" json:"user_id"`
	BookID       uint            `gorm:"index;not null" json:"book_id"`
	CheckoutDate time.Time       `gorm:"not null" json:"checkout_date"`
	DueDate      time.Time       `gorm:"not null;index" json:"due_date"`
	ReturnDate   *time.Time      `gorm:"index" json:"return_date"`
	Penalty      decimal.Decimal `gorm:"type:decimal(7,2);not null" json:"penalty"`
	OpenKey      *string         `gorm:"size:64;uniqueIndex" json:"-"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	User         User            `gorm:"foreignKey:UserID" json:"-"`
	Book         Book            `gorm:"foreignKey:BookID" json:"-"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// OpenKey builds the uniqueness key of an open loan.
func OpenKey(userID, bookID uint) *string {
	key := fmt.Sprintf("%d:%d", userID, bookID)
	return &key
}

func (t *Transaction) IsReturned() bool {
	return t.ReturnDate != nil
}

// IsOverdue reports whether an open loan is past its due date on day asOf.
func (t *Transaction) IsOverdue(asOf time.Time) bool {
	return !t.IsReturned() && domain.DaysLate(t.DueDate, asOf) > 0
}

// TransactionResponse DTO
type TransactionResponse struct {
	ID           uint    `json:"id"`
	User         uint    `json:"user"`
	Username     string  `json:"username,omitempty"`
	Book         uint    `json:"book"`
	BookTitle    string  `json:"book_title,omitempty"`
	CheckoutDate string  `json:"checkout_date"`
	DueDate      string  `json:"due_date"`
	ReturnDate   *string `json:"return_date"`
	Penalty      string  `json:"penalty"`
	Returned     bool    `json:"returned"`
}

func (t *Transaction) ToResponse() *TransactionResponse {
	resp := &TransactionResponse{
		ID:           t.ID,
		User:         t.UserID,
		Username:     t.User.Username,
		Book:         t.BookID,
		BookTitle:    t.Book.Title,
		CheckoutDate: domain.FormatDate(t.CheckoutDate),
		DueDate:      domain.FormatDate(t.DueDate),
		Penalty:      t.Penalty.StringFixed(2),
		Returned:     t.IsReturned(),
	}
	if t.ReturnDate != nil {
		d := domain.FormatDate(*t.ReturnDate)
		resp.ReturnDate = &d
	}
	return resp
}

// ToTransactionResponses converts a page of ledger entries.
func ToTransactionResponses(entries []*Transaction) []*TransactionResponse {
	out := make([]*TransactionResponse, len(entries))
	for i, e := range entries {
		out[i] = e.ToResponse()
	}
	return out
}

// ============================================================
// Auto Migration
// ============================================================

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Book{},
		&Transaction{},
	)
}
