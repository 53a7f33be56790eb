// Package ownership provides database operations for user_books, the
// entitlement rows. The (user_id, book_id) unique index is the final guard
// against double grants; Grant surfaces its violation unchanged so callers
// can recognise it with database.IsUniqueViolation.
package ownership

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/storefront/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Grant inserts one ownership row.
func (r *Repository) Grant(ctx context.Context, o *entities.Ownership) error {
	if o.PurchasedAt.IsZero() {
		o.PurchasedAt = time.Now()
	}
	return r.db.WithContext(ctx).Omit("Book").Create(o).Error
}

// Owns reports whether userID holds an ownership row for bookID.
func (r *Repository) Owns(ctx context.Context, userID, bookID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.Ownership{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Count(&n).Error
	return n > 0, err
}

// ListForUser returns a user's ownership rows with their books, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uint) ([]entities.Ownership, error) {
	var out []entities.Ownership
	err := r.db.WithContext(ctx).
		Preload("Book").
		Where("user_id = ?", userID).
		Order("purchased_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// CountForUserBook is used by tests and reconciliation to assert uniqueness.
func (r *Repository) CountForUserBook(ctx context.Context, userID, bookID uint) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.Ownership{}).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		Count(&n).Error
	return n, err
}
