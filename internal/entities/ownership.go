package entities

import "time"

// Ownership is the durable fact that a user is entitled to a book.
// At most one row exists per (user_id, book_id).
type Ownership struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;uniqueIndex:ux_user_books_user_book,priority:1" json:"user_id"`
	BookID        uint      `gorm:"not null;uniqueIndex:ux_user_books_user_book,priority:2;index" json:"book_id"`
	TransactionID uint      `gorm:"index" json:"transaction_id"`
	PurchasedAt   time.Time `json:"purchased_at"`
	Book          Book      `gorm:"foreignKey:BookID" json:"book,omitempty"`
}

func (Ownership) TableName() string {
	return "user_books"
}
