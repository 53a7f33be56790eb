package entities

import "time"

type DevotionalSource string

const (
	DevotionalGenerated DevotionalSource = "generated"
	DevotionalFallback  DevotionalSource = "fallback"
)

// Devotional is the message of the day. Day is formatted YYYY-MM-DD.
type Devotional struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	Day       string           `gorm:"uniqueIndex;size:10" json:"day"`
	Message   string           `gorm:"type:text" json:"message"`
	Source    DevotionalSource `gorm:"size:20" json:"source"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (Devotional) TableName() string {
	return "devotionals"
}
