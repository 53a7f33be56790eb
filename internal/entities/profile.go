package entities

import (
	"time"

	"gorm.io/gorm"
)

// Role is the sole authorization signal attached to a profile.
type Role string

const (
	RoleReader    Role = "reader"
	RolePublisher Role = "publisher"
	RoleAdmin     Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleReader, RolePublisher, RoleAdmin:
		return true
	}
	return false
}

// rank orders roles so that admin implies publisher implies reader.
func (r Role) rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RolePublisher:
		return 2
	case RoleReader:
		return 1
	}
	return 0
}

// Satisfies reports whether a holder of r may use a surface requiring required.
func (r Role) Satisfies(required Role) bool {
	return r.rank() >= required.rank() && r.rank() > 0
}

// Home is the landing page for an authenticated holder of r.
func (r Role) Home() string {
	switch r {
	case RoleAdmin:
		return "/admin"
	case RolePublisher:
		return "/publisher"
	default:
		return "/my-books"
	}
}

// Profile is a storefront account. One profile per identity.
type Profile struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Email        string `gorm:"uniqueIndex;size:255" json:"email" validate:"required,email,max=254"`
	DisplayName  string `gorm:"size:100" json:"display_name" validate:"required,max=100"`
	Phone        string `gorm:"size:32" json:"phone,omitempty" validate:"omitempty,max=32"`
	Role         Role   `gorm:"size:20;index;default:'reader'" json:"role" validate:"required,oneof=reader publisher admin"`
	Balance      int64  `json:"balance"`
	PasswordHash string `gorm:"size:255" json:"-"`

	// API token, stored hashed.
	TokenHash      string     `gorm:"index;size:64" json:"-"`
	TokenCreatedAt *time.Time `json:"-"`

	FailedLoginCount int        `json:"-"`
	LockedUntil      *time.Time `json:"-"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Profile) TableName() string {
	return "profiles"
}

// NewProfile validates and builds a profile. The password hash is set by the caller.
func NewProfile(email, displayName, phone string, role Role) (*Profile, error) {
	p := &Profile{
		Email:       email,
		DisplayName: displayName,
		Phone:       phone,
		Role:        role,
	}
	if err := check(p); err != nil {
		return nil, err
	}
	return p, nil
}
