// Package profiles provides database operations for storefront accounts.
//
// # Usage
//
//	repo := profiles.NewRepository(db)
//	role, err := repo.RoleOf(ctx, userID)
package profiles

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/storefront/internal/entities"
)

// Repository handles all profile database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new profiles repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new profile. Emails are stored lower-cased.
func (r *Repository) Create(ctx context.Context, p *entities.Profile) error {
	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	return r.db.WithContext(ctx).Create(p).Error
}

// GetByID retrieves a profile by ID.
func (r *Repository) GetByID(ctx context.Context, id uint) (*entities.Profile, error) {
	var p entities.Profile
	if err := r.db.WithContext(ctx).First(&p, id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByEmail retrieves a profile by email, case-insensitively.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*entities.Profile, error) {
	var p entities.Profile
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByTokenHash retrieves the profile owning an API token hash.
func (r *Repository) GetByTokenHash(ctx context.Context, hash string) (*entities.Profile, error) {
	var p entities.Profile
	if err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// RoleOf returns only the role column; the gate calls it once per request.
func (r *Repository) RoleOf(ctx context.Context, userID uint) (entities.Role, error) {
	var p entities.Profile
	err := r.db.WithContext(ctx).Select("id", "role").First(&p, userID).Error
	if err != nil {
		return "", err
	}
	return p.Role, nil
}

// List returns profiles ordered by ID with the total count.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]entities.Profile, int64, error) {
	var out []entities.Profile
	var total int64

	query := r.db.WithContext(ctx).Model(&entities.Profile{})
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	err := query.Order("id ASC").Limit(limit).Offset(offset).Find(&out).Error
	return out, total, err
}

// Count returns the number of profiles.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.Profile{}).Count(&n).Error
	return n, err
}

// UpdateRole changes a profile's role. Returns gorm.ErrRecordNotFound when
// no profile matched.
func (r *Repository) UpdateRole(ctx context.Context, id uint, role entities.Role) error {
	res := r.db.WithContext(ctx).Model(&entities.Profile{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdatePassword stores a new password hash and clears lockout state.
func (r *Repository) UpdatePassword(ctx context.Context, id uint, hash string) error {
	return r.db.WithContext(ctx).Model(&entities.Profile{}).Where("id = ?", id).Updates(map[string]any{
		"password_hash":      hash,
		"failed_login_count": 0,
		"locked_until":       nil,
	}).Error
}

// RecordFailedLogin bumps the failure counter and optionally locks the account.
func (r *Repository) RecordFailedLogin(ctx context.Context, id uint, count int, lockedUntil *time.Time) error {
	return r.db.WithContext(ctx).Model(&entities.Profile{}).Where("id = ?", id).Updates(map[string]any{
		"failed_login_count": count,
		"locked_until":       lockedUntil,
	}).Error
}

// RecordLogin resets lockout state after a successful login.
func (r *Repository) RecordLogin(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&entities.Profile{}).Where("id = ?", id).Updates(map[string]any{
		"failed_login_count": 0,
		"locked_until":       nil,
		"last_login_at":      at,
	}).Error
}

// SetTokenHash replaces the API token hash; an empty hash revokes the token.
func (r *Repository) SetTokenHash(ctx context.Context, id uint, hash string) error {
	var createdAt *time.Time
	if hash != "" {
		now := time.Now()
		createdAt = &now
	}
	return r.db.WithContext(ctx).Model(&entities.Profile{}).Where("id = ?", id).Updates(map[string]any{
		"token_hash":       hash,
		"token_created_at": createdAt,
	}).Error
}
