package model

import "time"

// Attachment is an uploaded file owned by one user. NoteID is the primary
// note the file was uploaded for; NoteAttachment rows track every note whose
// content references the attachment.
type Attachment struct {
	ID     int64 `gorm:"primaryKey"`
	UserID int64 `gorm:"not null;index"`

	User *User `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`

	NoteID *int64 `gorm:"index"`

	Filename   string `gorm:"not null"`
	StoredName string `gorm:"not null;uniqueIndex"`
	MimeType   string
	Size       int64

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// NoteAttachment links an attachment to a note that references it.
type NoteAttachment struct {
	ID           int64 `gorm:"primaryKey"`
	NoteID       int64 `gorm:"not null;index:idx_note_attachment,unique,priority:1"`
	AttachmentID int64 `gorm:"not null;index:idx_note_attachment,unique,priority:2"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}
