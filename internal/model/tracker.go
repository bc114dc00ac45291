package model

import "time"

// TrackerDocument is the per-user spreadsheet-like document, stored as opaque
// JSON and replaced wholesale on save. The server enforces ownership only.
type TrackerDocument struct {
	ID     int64 `gorm:"primaryKey"`
	UserID int64 `gorm:"uniqueIndex;not null"`

	User *User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	Payload string `gorm:"type:text"`

	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
