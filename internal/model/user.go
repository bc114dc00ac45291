package model

import "time"

// User is an account owner. PasswordHash and Salt together derive the
// content encryption key; neither is ever returned by the API.
type User struct {
	ID           int64  `gorm:"primaryKey"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Salt         string `gorm:"not null"`

	Settings *UserSettings `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// UserSettings stores the per-user settings blob (categories, AI toggle)
// as opaque JSON, replaced wholesale on save.
type UserSettings struct {
	ID     int64 `gorm:"primaryKey"`
	UserID int64 `gorm:"uniqueIndex;not null"`

	Payload string `gorm:"type:text"`

	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
