// Package books provides database operations for the catalog.
package books

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/storefront/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, book *entities.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

// GetByID retrieves a book in any status.
func (r *Repository) GetByID(ctx context.Context, id uint) (*entities.Book, error) {
	var book entities.Book
	if err := r.db.WithContext(ctx).First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

// Save persists every field of an existing book.
func (r *Repository) Save(ctx context.Context, book *entities.Book) error {
	return r.db.WithContext(ctx).Save(book).Error
}

func (r *Repository) SetStatus(ctx context.Context, id uint, status entities.BookStatus) error {
	res := r.db.WithContext(ctx).Model(&entities.Book{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SearchPublished lists published books whose title or author contains q,
// case-insensitively. An empty q lists everything. Results are ordered by
// title; there is no relevance ranking.
func (r *Repository) SearchPublished(ctx context.Context, q string, limit, offset int) ([]entities.Book, int64, error) {
	var out []entities.Book
	var total int64

	query := r.db.WithContext(ctx).Model(&entities.Book{}).Where("status = ?", entities.BookStatusPublished)
	if q = strings.TrimSpace(q); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		query = query.Where("(LOWER(title) LIKE ? ESCAPE '\\' OR LOWER(author) LIKE ? ESCAPE '\\')", pattern, pattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	err := query.Order("title ASC, id ASC").Limit(limit).Offset(offset).Find(&out).Error
	return out, total, err
}

// ListByPublisher lists every book of one publisher, drafts included.
func (r *Repository) ListByPublisher(ctx context.Context, publisherID uint) ([]entities.Book, error) {
	var out []entities.Book
	err := r.db.WithContext(ctx).
		Where("publisher_id = ?", publisherID).
		Order("updated_at DESC").
		Find(&out).Error
	return out, err
}

// ListAll lists every book, drafts included; admin view.
func (r *Repository) ListAll(ctx context.Context) ([]entities.Book, error) {
	var out []entities.Book
	err := r.db.WithContext(ctx).Order("updated_at DESC").Find(&out).Error
	return out, err
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
