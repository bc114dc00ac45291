package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ubastic/notemind/internal/model"
)

// AttachmentRepository defines attachment and link-table access.
type AttachmentRepository interface {
	Create(ctx context.Context, a *model.Attachment) error
	// GetByID returns an attachment regardless of owner; share-token access
	// checks ownership separately.
	GetByID(ctx context.Context, id int64) (*model.Attachment, error)
	GetOwned(ctx context.Context, userID, id int64) (*model.Attachment, error)
	Save(ctx context.Context, a *model.Attachment) error
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, userID int64, noteID *int64, limit, offset int) ([]model.Attachment, int64, error)

	// OwnedIDs filters ids down to those owned by userID.
	OwnedIDs(ctx context.Context, userID int64, ids []int64) ([]int64, error)

	Link(ctx context.Context, noteID, attachmentID int64) error
	Unlink(ctx context.Context, noteID int64, attachmentIDs []int64) error
	LinkedAttachmentIDs(ctx context.Context, noteID int64) ([]int64, error)
	LinkedNoteIDs(ctx context.Context, attachmentID int64) ([]int64, error)
	IsLinked(ctx context.Context, noteID, attachmentID int64) (bool, error)
	DeleteLinksForNote(ctx context.Context, noteID int64) error
}

type attachmentRepo struct {
	db *gorm.DB
}

// NewAttachmentRepository creates the gorm implementation of AttachmentRepository.
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepo{db: db}
}

func (r *attachmentRepo) Create(ctx context.Context, a *model.Attachment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *attachmentRepo) GetByID(ctx context.Context, id int64) (*model.Attachment, error) {
	var a model.Attachment
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attachmentRepo) GetOwned(ctx context.Context, userID, id int64) (*model.Attachment, error) {
	var a model.Attachment
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *attachmentRepo) Save(ctx context.Context, a *model.Attachment) error {
	return r.db.WithContext(ctx).Save(a).Error
}

func (r *attachmentRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Attachment{}, id).Error
}

func (r *attachmentRepo) List(ctx context.Context, userID int64, noteID *int64, limit, offset int) ([]model.Attachment, int64, error) {
	q := r.db.WithContext(ctx).
		Model(&model.Attachment{}).
		Where("attachments.user_id = ?", userID)
	if noteID != nil {
		// subquery instead of a JOIN keeps rows unique without DISTINCT
		linked := r.db.
			Model(&model.NoteAttachment{}).
			Select("attachment_id").
			Where("note_id = ?", *noteID)
		q = q.Where("attachments.note_id = ? OR attachments.id IN (?)", *noteID, linked)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []model.Attachment
	err := q.Order("attachments.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *attachmentRepo) OwnedIDs(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var owned []int64
	err := r.db.WithContext(ctx).
		Model(&model.Attachment{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Pluck("id", &owned).Error
	if err != nil {
		return nil, err
	}
	return owned, nil
}

func (r *attachmentRepo) Link(ctx context.Context, noteID, attachmentID int64) error {
	link := model.NoteAttachment{NoteID: noteID, AttachmentID: attachmentID}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&link).Error
}

func (r *attachmentRepo) Unlink(ctx context.Context, noteID int64, attachmentIDs []int64) error {
	if len(attachmentIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Where("note_id = ? AND attachment_id IN ?", noteID, attachmentIDs).
		Delete(&model.NoteAttachment{}).Error
}

func (r *attachmentRepo) LinkedAttachmentIDs(ctx context.Context, noteID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.NoteAttachment{}).
		Where("note_id = ?", noteID).
		Pluck("attachment_id", &ids).Error
	return ids, err
}

func (r *attachmentRepo) LinkedNoteIDs(ctx context.Context, attachmentID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&model.NoteAttachment{}).
		Where("attachment_id = ?", attachmentID).
		Pluck("note_id", &ids).Error
	return ids, err
}

func (r *attachmentRepo) IsLinked(ctx context.Context, noteID, attachmentID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.NoteAttachment{}).
		Where("note_id = ? AND attachment_id = ?", noteID, attachmentID).
		Count(&count).Error
	return count > 0, err
}

func (r *attachmentRepo) DeleteLinksForNote(ctx context.Context, noteID int64) error {
	return r.db.WithContext(ctx).
		Where("note_id = ?", noteID).
		Delete(&model.NoteAttachment{}).Error
}
