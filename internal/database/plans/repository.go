// Package plans provides database operations for subscription plans.
package plans

import (
	"context"

	"gorm.io/gorm"

	"github.com/mrlokans/storefront/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, plan *entities.SubscriptionPlan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *Repository) GetByID(ctx context.Context, id uint) (*entities.SubscriptionPlan, error) {
	var plan entities.SubscriptionPlan
	if err := r.db.WithContext(ctx).First(&plan, id).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// Save persists every field, including Active=false.
func (r *Repository) Save(ctx context.Context, plan *entities.SubscriptionPlan) error {
	return r.db.WithContext(ctx).Save(plan).Error
}

// List returns plans by price; activeOnly hides retired plans.
func (r *Repository) List(ctx context.Context, activeOnly bool) ([]entities.SubscriptionPlan, error) {
	var out []entities.SubscriptionPlan
	query := r.db.WithContext(ctx)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	err := query.Order("price ASC, id ASC").Find(&out).Error
	return out, err
}
