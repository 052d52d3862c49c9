package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/password"

	"gorm.io/gorm"
)

// Seeder handles database seeding
type Seeder struct {
	db  *gorm.DB
	cfg SeedConfig
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB, cfg SeedConfig) *Seeder {
	return &Seeder{db: db, cfg: cfg}
}

// Run executes all seeders. Failures are logged, not returned, so a partly
// seeded database never blocks startup.
func (s *Seeder) Run() error {
	slog.Info("🌱 Running database seeders...")

	if err := s.seedAdminUser(); err != nil {
		slog.Warn("admin seeder skipped", slog.String("error", err.Error()))
	}

	if s.cfg.SampleBooks {
		if err := s.seedSampleBooks(); err != nil {
			slog.Warn("sample book seeder skipped", slog.String("error", err.Error()))
		}
	}

	slog.Info("✅ Database seeding completed")
	return nil
}

// seedAdminUser creates the bootstrap admin from ADMIN_EMAIL/ADMIN_PASSWORD
// when no admin exists yet
func (s *Seeder) seedAdminUser() error {
	if s.cfg.AdminEmail == "" || s.cfg.AdminPassword == "" {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD not set")
	}

	var count int64
	if err := s.db.Model(&models.User{}).Where("role = ?", domain.RoleAdmin).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	if !password.ValidatePassword(s.cfg.AdminPassword) {
		return domain.ErrWeakPassword
	}

	hashedPassword, err := password.Hash(s.cfg.AdminPassword)
	if err != nil {
		return err
	}

	admin := &models.User{
		Username:         s.cfg.AdminUsername,
		Email:            s.cfg.AdminEmail,
		Password:         hashedPassword,
		Role:             domain.RoleAdmin,
		IsActive:         true,
		DateOfMembership: domain.Today(time.Now()),
	}

	if err := s.db.Create(admin).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}

	slog.Info("✅ Admin user created", slog.String("username", admin.Username))
	return nil
}

// sampleBooks is a small starter catalog for development
var sampleBooks = []struct {
	title, author, isbn, published string
	copies                         int
}{
	{"The Pragmatic Programmer", "Andrew Hunt", "9780201616224", "1999-10-20", 3},
	{"Structure and Interpretation of Computer Programs", "Harold Abelson", "9780262510875", "1996-07-25", 2},
	{"The Go Programming Language", "Alan Donovan", "9780134190440", "2015-10-26", 4},
	{"Designing Data-Intensive Applications", "Martin Kleppmann", "9781449373320", "2017-03-16", 2},
	{"Dune", "Frank Herbert", "9780441013593", "1965-08-01", 1},
}

// seedSampleBooks fills an empty catalog
func (s *Seeder) seedSampleBooks() error {
	var count int64
	if err := s.db.Model(&models.Book{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	books := make([]*models.Book, 0, len(sampleBooks))
	for _, b := range sampleBooks {
		published, err := time.Parse("2006-01-02", b.published)
		if err != nil {
			return err
		}
		books = append(books, &models.Book{
			Title:           b.title,
			Author:          b.author,
			ISBN:            b.isbn,
			PublishedDate:   published,
			AvailableCopies: b.copies,
			TotalCopies:     b.copies,
		})
	}

	if err := s.db.Create(&books).Error; err != nil {
		return err
	}

	slog.Info("✅ Sample books created", slog.Int("count", len(books)))
	return nil
}
