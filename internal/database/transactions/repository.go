// Package transactions provides database operations for payment records.
//
// Status changes go through Transition, a conditional update that only
// succeeds while the row still holds the expected status. That is what makes
// confirmation happen at most once under concurrent callers.
package transactions

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

func (r *Repository) Create(ctx context.Context, tx *entities.Transaction) error {
	return r.db.WithContext(ctx).Create(tx).Error
}

func (r *Repository) GetByID(ctx context.Context, id uint) (*entities.Transaction, error) {
	var tx entities.Transaction
	if err := r.db.WithContext(ctx).First(&tx, id).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *Repository) GetByReference(ctx context.Context, ref string) (*entities.Transaction, error) {
	var tx entities.Transaction
	if err := r.db.WithContext(ctx).Where("external_reference = ?", ref).First(&tx).Error; err != nil {
		return nil, err
	}
	return &tx, nil
}

// Transition moves a transaction from one status to another. It reports
// false, without error, when the row was no longer in the from status.
func (r *Repository) Transition(ctx context.Context, id uint, from, to entities.TransactionStatus, reason string) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": time.Now(),
	}
	if to == entities.TransactionCompleted {
		updates["completed_at"] = time.Now()
	}
	if reason != "" {
		updates["failure_reason"] = reason
	}

	res := r.db.WithContext(ctx).Model(&entities.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// List returns transactions, newest first, optionally filtered by status.
func (r *Repository) List(ctx context.Context, status entities.TransactionStatus, limit, offset int) ([]entities.Transaction, int64, error) {
	var out []entities.Transaction
	var total int64

	query := r.db.WithContext(ctx).Model(&entities.Transaction{})
	if status != "" {
		query = query.Where("status = ?", status)
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
	err := query.Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, total, err
}

// ListForUser returns one user's transactions, newest first.
func (r *Repository) ListForUser(ctx context.Context, userID uint) ([]entities.Transaction, error) {
	var out []entities.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

// CompletedPurchasesWithoutOwnership finds purchases completed before cutoff
// whose (user, book) pair has no user_books row. Transactions that already
// carry an open reconciliation issue are skipped so the batch limit always
// reaches unflagged orphans.
func (r *Repository) CompletedPurchasesWithoutOwnership(ctx context.Context, cutoff time.Time, limit int) ([]entities.Transaction, error) {
	if limit <= 0 {
		limit = 500
	}
	var out []entities.Transaction
	err := r.db.WithContext(ctx).
		Table("transactions AS t").
		Select("t.*").
		Joins("LEFT JOIN user_books ub ON ub.user_id = t.user_id AND ub.book_id = t.book_id").
		Where("t.status = ? AND t.type = ? AND t.completed_at < ? AND ub.id IS NULL",
			entities.TransactionCompleted, entities.TransactionPurchase, cutoff).
		Where("NOT EXISTS (SELECT 1 FROM reconciliation_issues ri WHERE ri.transaction_id = t.id AND ri.resolved = ?)", false).
		Order("t.id ASC").
		Limit(limit).
		Find(&out).Error
	return out, err
}
