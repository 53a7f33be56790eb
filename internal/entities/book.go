package entities

import (
	"time"

	"gorm.io/gorm"
)

type BookStatus string

const (
	BookStatusDraft     BookStatus = "draft"
	BookStatusPublished BookStatus = "published"
)

type Book struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Title          string     `gorm:"index;size:512" json:"title" validate:"required,max=512"`
	Author         string     `gorm:"index;size:256" json:"author" validate:"max=256"`
	Description    string     `gorm:"type:text" json:"description,omitempty"`
	CoverURL       string     `gorm:"size:2048" json:"cover_url,omitempty" validate:"omitempty,url,max=2048"`
	Price          int64      `json:"price" validate:"gte=0"`
	IsSubscription bool       `json:"is_subscription"`
	Status         BookStatus `gorm:"size:20;index;default:'draft'" json:"status" validate:"required,oneof=draft published"`
	// PublisherID is a back-reference only; it confers no ownership.
	PublisherID *uint          `gorm:"index" json:"publisher_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Book) TableName() string {
	return "books"
}

// NewBook builds a draft book after validating its fields.
func NewBook(title, author string, price int64, isSubscription bool, publisherID *uint) (*Book, error) {
	b := &Book{
		Title:          title,
		Author:         author,
		Price:          price,
		IsSubscription: isSubscription,
		Status:         BookStatusDraft,
		PublisherID:    publisherID,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// Validate re-checks the field constraints, e.g. after an update.
func (b *Book) Validate() error {
	return check(b)
}

// IsPublished reports whether the book is visible to browsing and purchasable.
func (b *Book) IsPublished() bool {
	return b.Status == BookStatusPublished
}

// IsPublishedBy reports whether userID is the book's publisher.
func (b *Book) IsPublishedBy(userID uint) bool {
	return b.PublisherID != nil && userID != 0 && *b.PublisherID == userID
}
