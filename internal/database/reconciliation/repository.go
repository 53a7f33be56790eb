// Package reconciliation stores ledger inconsistencies awaiting an admin.
package reconciliation

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/storefront/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Record inserts an issue unless one of the same kind already exists for the
// transaction. It reports whether a new row was written.
func (r *Repository) Record(ctx context.Context, issue *entities.ReconciliationIssue) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(issue)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *Repository) GetByID(ctx context.Context, id uint) (*entities.ReconciliationIssue, error) {
	var issue entities.ReconciliationIssue
	if err := r.db.WithContext(ctx).First(&issue, id).Error; err != nil {
		return nil, err
	}
	return &issue, nil
}

// List returns issues newest first. A nil resolved lists both states.
func (r *Repository) List(ctx context.Context, resolved *bool, limit, offset int) ([]entities.ReconciliationIssue, int64, error) {
	var out []entities.ReconciliationIssue
	var total int64

	query := r.db.WithContext(ctx).Model(&entities.ReconciliationIssue{})
	if resolved != nil {
		query = query.Where("resolved = ?", *resolved)
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

// CountOpen returns the number of unresolved issues.
func (r *Repository) CountOpen(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.ReconciliationIssue{}).
		Where("resolved = ?", false).
		Count(&n).Error
	return n, err
}

// HasOpenGrantIssue reports whether an unresolved issue says userID paid for
// bookID without receiving it.
func (r *Repository) HasOpenGrantIssue(ctx context.Context, userID, bookID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.ReconciliationIssue{}).
		Where("user_id = ? AND book_id = ? AND resolved = ? AND kind IN ?", userID, bookID, false,
			[]entities.IssueKind{entities.IssueEntitlementGrantFailure, entities.IssueMissingOwnership}).
		Count(&n).Error
	return n > 0, err
}

// Resolve marks an open issue resolved. It reports false when the issue
// was already resolved.
func (r *Repository) Resolve(ctx context.Context, id, by uint) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&entities.ReconciliationIssue{}).
		Where("id = ? AND resolved = ?", id, false).
		Updates(map[string]any{
			"resolved":    true,
			"resolved_at": now,
			"resolved_by": by,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
