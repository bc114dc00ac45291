package model

import "time"

// Share grants unauthenticated read access to one note until ExpiresAt.
// Expiry is checked at read time; expired rows are not actively purged.
type Share struct {
	ID     int64 `gorm:"primaryKey"`
	NoteID int64 `gorm:"not null;index"`

	Note *Note `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	Token     string `gorm:"uniqueIndex;not null"`
	ExpiresAt *time.Time
	ViewCount int64 `gorm:"not null;default:0"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}
