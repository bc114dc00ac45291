package model

import "time"

// Note is the server-side note record. ContentCipher/ContentNonce hold the
// AEAD-sealed body; everything else is plaintext metadata derived at write
// time (by the AI provider or the heuristic fallback).
type Note struct {
	ID     int64 `gorm:"primaryKey"`
	UserID int64 `gorm:"not null;index:idx_notes_user_created,priority:1"`

	User *User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	ContentCipher []byte `gorm:"not null"`
	ContentNonce  []byte `gorm:"not null"`

	Title       string
	ShortTitle  string
	Folder      string `gorm:"index"`
	Category    string `gorm:"index"`
	Tags        string `gorm:"type:text"` // JSON array
	Entities    string `gorm:"type:text"` // JSON object
	Summary     string `gorm:"type:text"`
	Sensitivity string

	Completed      bool `gorm:"not null;default:false;index"`
	PinnedGlobal   bool `gorm:"not null;default:false"`
	PinnedCategory bool `gorm:"not null;default:false"`
	PinnedAt       *time.Time

	Embedding string `gorm:"type:text"` // JSON array of floats, optional

	CreatedAt time.Time `gorm:"autoCreateTime;index:idx_notes_user_created,priority:2"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
