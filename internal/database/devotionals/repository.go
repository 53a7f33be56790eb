// Package devotionals stores the message of the day.
package devotionals

import (
	"context"

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

// GetByDay retrieves the devotional for a YYYY-MM-DD day.
func (r *Repository) GetByDay(ctx context.Context, day string) (*entities.Devotional, error) {
	var d entities.Devotional
	if err := r.db.WithContext(ctx).Where("day = ?", day).First(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

// Upsert stores the devotional for its day, replacing message and source.
func (r *Repository) Upsert(ctx context.Context, d *entities.Devotional) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "day"}},
		DoUpdates: clause.AssignmentColumns([]string{"message", "source", "updated_at"}),
	}).Create(d).Error
}
