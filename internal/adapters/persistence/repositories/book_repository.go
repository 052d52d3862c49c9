package repositories

import (
	"context"
	"strings"

	"libraryhub/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// bookOrderings maps the accepted ordering keys to columns.
var bookOrderings = map[string]string{
	"title":  "title",
	"author": "author",
	"isbn":   "isbn",
}

// bookRepository implements BookRepository interface
type bookRepository struct {
	db *gorm.DB
}

// NewBookRepository creates a new book repository
func NewBookRepository(db *gorm.DB) BookRepository {
	return &bookRepository{db: db}
}

// Create creates a new book
func (r *bookRepository) Create(ctx context.Context, book *models.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

// GetByID gets a book by ID
func (r *bookRepository) GetByID(ctx context.Context, id uint) (*models.Book, error) {
	var book models.Book
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// ExistsByISBN checks if another book, including deleted ones, holds isbn
func (r *bookRepository) ExistsByISBN(ctx context.Context, isbn string, excludeID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Unscoped().Model(&models.Book{}).
		Where("isbn = ?", isbn).
		Where("id <> ?", excludeID).
		Count(&count).Error
	return count > 0, err
}

// Update updates the given columns of a book
func (r *bookRepository) Update(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Book{}).Where("id = ?", id).Updates(fields).Error
}

// Delete soft deletes a book
func (r *bookRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Book{}, id).Error
}

// List searches, filters, orders and paginates the catalog
func (r *bookRepository) List(ctx context.Context, filter BookFilter, offset, limit int) ([]*models.Book, int64, error) {
	var books []*models.Book
	var total int64

	query := r.db.WithContext(ctx).Model(&models.Book{})

	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR LOWER(isbn) LIKE ?", like, like, like)
	}

	if filter.Available != nil {
		if *filter.Available {
			query = query.Where("available_copies > 0")
		} else {
			query = query.Where("available_copies <= 0")
		}
	}

	// Count total
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.Order(bookOrder(filter.Ordering)).Order("id ASC").
		Offset(offset).Limit(limit).
		Find(&books).Error
	if err != nil {
		return nil, 0, err
	}

	return books, total, nil
}

// bookOrder turns "title" or "-author" into an ORDER BY clause, defaulting to title.
func bookOrder(ordering string) string {
	ordering = strings.TrimSpace(ordering)
	dir := "ASC"
	if strings.HasPrefix(ordering, "-") {
		dir = "DESC"
		ordering = ordering[1:]
	}
	column, ok := bookOrderings[strings.ToLower(ordering)]
	if !ok {
		column, dir = "title", "ASC"
	}
	return column + " " + dir
}

// All lists every book ordered by title (for form choices)
func (r *bookRepository) All(ctx context.Context) ([]*models.Book, error) {
	var books []*models.Book
	err := r.db.WithContext(ctx).Order("title ASC").Find(&books).Error
	return books, err
}

// DecrementAvailable takes one copy off the shelf if any is left
func (r *bookRepository) DecrementAvailable(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Book{}).
		Where("id = ? AND available_copies > 0", id).
		UpdateColumn("available_copies", gorm.Expr("available_copies - ?", 1))
	return result.RowsAffected == 1, result.Error
}

// IncrementAvailable puts one copy back if that stays within the total owned
func (r *bookRepository) IncrementAvailable(ctx context.Context, id uint) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Book{}).
		Where("id = ? AND available_copies < total_copies", id).
		UpdateColumn("available_copies", gorm.Expr("available_copies + ?", 1))
	return result.RowsAffected == 1, result.Error
}

// AdjustCopies changes the owned count and the shelf count together
func (r *bookRepository) AdjustCopies(ctx context.Context, id uint, delta int) (bool, error) {
	result := r.db.WithContext(ctx).Model(&models.Book{}).
		Where("id = ? AND available_copies + ? >= 0", id, delta).
		UpdateColumns(map[string]interface{}{
			"total_copies":     gorm.Expr("total_copies + ?", delta),
			"available_copies": gorm.Expr("available_copies + ?", delta),
		})
	return result.RowsAffected == 1, result.Error
}

// Stats sums titles and copies across the catalog
func (r *bookRepository) Stats(ctx context.Context) (*CatalogStats, error) {
	var stats CatalogStats
	err := r.db.WithContext(ctx).Model(&models.Book{}).
		Select("COUNT(*) AS titles, COALESCE(SUM(total_copies), 0) AS total_copies, COALESCE(SUM(available_copies), 0) AS available_copies").
		Scan(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}
