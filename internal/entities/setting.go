package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	SettingKeyStoreName       = "store_name"
	SettingKeySupportContact  = "support_contact"
	SettingKeyCurrency        = "currency"
	SettingKeyMaintenanceNote = "maintenance_note"
)

// EditableSettings lists the keys admins may change.
var EditableSettings = map[string]bool{
	SettingKeyStoreName:       true,
	SettingKeySupportContact:  true,
	SettingKeyCurrency:        true,
	SettingKeyMaintenanceNote: true,
}
