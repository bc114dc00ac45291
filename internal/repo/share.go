package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Ubastic/notemind/internal/model"
)

// ShareRepository defines share-token access.
type ShareRepository interface {
	Create(ctx context.Context, share *model.Share) error
	GetByToken(ctx context.Context, token string) (*model.Share, error)
	// GetOwned resolves a share by id through its note's owner.
	GetOwned(ctx context.Context, userID, id int64) (*model.Share, error)
	Delete(ctx context.Context, id int64) error
	DeleteForNote(ctx context.Context, noteID int64) error
	IncrementViews(ctx context.Context, id int64) error
}

type shareRepo struct {
	db *gorm.DB
}

// NewShareRepository creates the gorm implementation of ShareRepository.
func NewShareRepository(db *gorm.DB) ShareRepository {
	return &shareRepo{db: db}
}

func (r *shareRepo) Create(ctx context.Context, share *model.Share) error {
	return r.db.WithContext(ctx).Create(share).Error
}

func (r *shareRepo) GetByToken(ctx context.Context, token string) (*model.Share, error) {
	var share model.Share
	err := r.db.WithContext(ctx).
		Preload("Note").
		Where("token = ?", token).
		First(&share).Error
	if err != nil {
		return nil, err
	}
	return &share, nil
}

func (r *shareRepo) GetOwned(ctx context.Context, userID, id int64) (*model.Share, error) {
	var share model.Share
	err := r.db.WithContext(ctx).
		Joins("JOIN notes ON notes.id = shares.note_id").
		Where("shares.id = ? AND notes.user_id = ?", id, userID).
		First(&share).Error
	if err != nil {
		return nil, err
	}
	return &share, nil
}

func (r *shareRepo) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&model.Share{}, id).Error
}

func (r *shareRepo) DeleteForNote(ctx context.Context, noteID int64) error {
	return r.db.WithContext(ctx).
		Where("note_id = ?", noteID).
		Delete(&model.Share{}).Error
}

func (r *shareRepo) IncrementViews(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).
		Model(&model.Share{}).
		Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}
