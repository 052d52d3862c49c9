package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/adapters/persistence/repositories"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/pagination"
	"libraryhub/internal/pkg/sanitize"

	"gorm.io/gorm"
)

const maxTextLength = 100

// CatalogService handles book management business logic
type CatalogService struct {
	store  repositories.Store
	clock  Clock
	logger *slog.Logger
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store repositories.Store, clock Clock, logger *slog.Logger) *CatalogService {
	if clock == nil {
		clock = time.Now
	}
	return &CatalogService{store: store, clock: clock, logger: logger}
}

// BookInput carries book fields for create and update. Nil fields are left
// unchanged on update; create requires title, author and isbn.
type BookInput struct {
	Title         *string `json:"title"`
	Author        *string `json:"author"`
	ISBN          *string `json:"isbn"`
	PublishedDate *string `json:"published_date"`
	TotalCopies   *int    `json:"total_copies"`
	// AvailableCopies is accepted on create as an alias of TotalCopies.
	AvailableCopies *int `json:"available_copies"`
}

// BookQuery is a catalog listing request
type BookQuery struct {
	Search    string
	Ordering  string
	Available *bool
	Params    *pagination.Params
}

// List searches and pages through the catalog
func (s *CatalogService) List(ctx context.Context, q BookQuery) (*pagination.Response, error) {
	filter := repositories.BookFilter{Search: q.Search, Ordering: q.Ordering, Available: q.Available}
	books, total, err := s.store.Books().List(ctx, filter, q.Params.Offset, q.Params.Limit)
	if err != nil {
		return nil, err
	}

	results := make([]*models.BookResponse, len(books))
	for i, b := range books {
		results[i] = b.ToResponse()
	}
	return pagination.NewResponse(results, q.Params, total), nil
}

// All returns the whole catalog ordered by title
func (s *CatalogService) All(ctx context.Context) ([]*models.Book, error) {
	return s.store.Books().All(ctx)
}

// Get gets a book by ID
func (s *CatalogService) Get(ctx context.Context, id uint) (*models.Book, error) {
	book, err := s.store.Books().GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrBookNotFound
		}
		return nil, err
	}
	return book, nil
}

// Create adds a book with every copy on the shelf
func (s *CatalogService) Create(ctx context.Context, input *BookInput) (*models.Book, error) {
	if input.Title == nil || input.Author == nil || input.ISBN == nil {
		return nil, domain.Invalid("Title, author and isbn are required")
	}

	book := &models.Book{PublishedDate: domain.Today(s.clock())}
	if err := applyBookText(book, input); err != nil {
		return nil, err
	}

	if input.PublishedDate != nil {
		d, err := domain.ParseDate(*input.PublishedDate)
		if err != nil {
			return nil, err
		}
		book.PublishedDate = d
	}

	copies := 1
	switch {
	case input.TotalCopies != nil:
		copies = *input.TotalCopies
	case input.AvailableCopies != nil:
		copies = *input.AvailableCopies
	}
	if copies < 0 {
		return nil, domain.Invalid("Copies cannot be negative")
	}
	book.TotalCopies = copies
	book.AvailableCopies = copies

	if err := s.ensureISBNFree(ctx, book.ISBN, 0); err != nil {
		return nil, err
	}

	if err := s.store.Books().Create(ctx, book); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrISBNTaken
		}
		return nil, err
	}

	s.logger.InfoContext(ctx, "book created", slog.Uint64("book_id", uint64(book.ID)), slog.String("isbn", book.ISBN))
	return book, nil
}

// Update changes book fields. A new total or shelf count moves both counts by
// the same amount and fails if the shelf would go below zero.
func (s *CatalogService) Update(ctx context.Context, id uint, input *BookInput) (*models.Book, error) {
	err := s.store.Atomic(ctx, func(tx repositories.Store) error {
		book, err := tx.Books().GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrBookNotFound
			}
			return err
		}

		if err := applyBookText(book, input); err != nil {
			return err
		}

		fields := map[string]interface{}{
			"title":  book.Title,
			"author": book.Author,
			"isbn":   book.ISBN,
		}
		if input.PublishedDate != nil {
			d, err := domain.ParseDate(*input.PublishedDate)
			if err != nil {
				return err
			}
			fields["published_date"] = d
		}

		if input.ISBN != nil {
			if err := ensureISBNFree(ctx, tx.Books(), book.ISBN, id); err != nil {
				return err
			}
		}

		if err := tx.Books().Update(ctx, id, fields); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrISBNTaken
			}
			return err
		}

		delta, err := copiesDelta(book, input)
		if err != nil {
			return err
		}
		if delta != 0 {
			ok, err := tx.Books().AdjustCopies(ctx, id, delta)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrTotalBelowOnLoan
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, id)
}

// Delete removes a book that has no copies out on loan
func (s *CatalogService) Delete(ctx context.Context, id uint) error {
	return s.store.Atomic(ctx, func(tx repositories.Store) error {
		if _, err := tx.Books().GetByID(ctx, id); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrBookNotFound
			}
			return err
		}

		open, err := tx.Transactions().CountOpen(ctx, repositories.TransactionFilter{BookID: id})
		if err != nil {
			return err
		}
		if open > 0 {
			return domain.ErrBookHasOpenLoans
		}

		return tx.Books().Delete(ctx, id)
	})
}

// copiesDelta turns a total and/or shelf target into one change applied to
// both counts, so copies on loan stay fixed. Both targets must agree.
func copiesDelta(book *models.Book, input *BookInput) (int, error) {
	var delta int
	switch {
	case input.TotalCopies != nil:
		if *input.TotalCopies < 0 {
			return 0, domain.Invalid("Copies cannot be negative")
		}
		delta = *input.TotalCopies - book.TotalCopies
	case input.AvailableCopies != nil:
		if *input.AvailableCopies < 0 {
			return 0, domain.Invalid("Copies cannot be negative")
		}
		delta = *input.AvailableCopies - book.AvailableCopies
	}

	if input.TotalCopies != nil && input.AvailableCopies != nil &&
		book.AvailableCopies+delta != *input.AvailableCopies {
		return 0, domain.Invalid("Available copies must equal total copies minus copies on loan")
	}
	return delta, nil
}

func (s *CatalogService) ensureISBNFree(ctx context.Context, isbn string, excludeID uint) error {
	return ensureISBNFree(ctx, s.store.Books(), isbn, excludeID)
}

func ensureISBNFree(ctx context.Context, books repositories.BookRepository, isbn string, excludeID uint) error {
	exists, err := books.ExistsByISBN(ctx, isbn, excludeID)
	if err != nil {
		return err
	}
	if exists {
		return domain.ErrISBNTaken
	}
	return nil
}

// applyBookText copies sanitised text fields onto book
func applyBookText(book *models.Book, input *BookInput) error {
	set := func(dst *string, src *string, field string) error {
		if src == nil {
			return nil
		}
		v := sanitize.Text(*src)
		if v == "" {
			return domain.Invalid(field + " is required")
		}
		if utf8.RuneCountInString(v) > maxTextLength {
			return domain.Invalid(field + " must be at most 100 characters")
		}
		*dst = v
		return nil
	}

	if err := set(&book.Title, input.Title, "Title"); err != nil {
		return err
	}
	if err := set(&book.Author, input.Author, "Author"); err != nil {
		return err
	}
	if input.ISBN != nil {
		isbn := strings.ReplaceAll(*input.ISBN, " ", "")
		if err := set(&book.ISBN, &isbn, "ISBN"); err != nil {
			return err
		}
	}
	return nil
}
