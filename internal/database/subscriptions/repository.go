// Package subscriptions provides database operations for paid subscription periods.
package subscriptions

import (
	"context"
	"errors"
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

func (r *Repository) Create(ctx context.Context, sub *entities.Subscription) error {
	return r.db.WithContext(ctx).Omit("Plan").Create(sub).Error
}

// ActiveAt returns the subscription covering at, if any.
func (r *Repository) ActiveAt(ctx context.Context, userID uint, at time.Time) (*entities.Subscription, error) {
	var sub entities.Subscription
	err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("user_id = ? AND starts_at <= ? AND ends_at > ?", userID, at, at).
		Order("ends_at DESC").
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// LatestEnd returns the furthest EndsAt among a user's subscriptions, or the
// zero time when they never subscribed.
func (r *Repository) LatestEnd(ctx context.Context, userID uint) (time.Time, error) {
	var sub entities.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("ends_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return sub.EndsAt, nil
}

// List returns subscriptions newest first; userID 0 lists everyone's.
func (r *Repository) List(ctx context.Context, userID uint, limit, offset int) ([]entities.Subscription, int64, error) {
	var out []entities.Subscription
	var total int64

	query := r.db.WithContext(ctx).Model(&entities.Subscription{})
	if userID > 0 {
		query = query.Where("user_id = ?", userID)
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
	err := query.Preload("Plan").Order("ends_at DESC, id DESC").Limit(limit).Offset(offset).Find(&out).Error
	return out, total, err
}
