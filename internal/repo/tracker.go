package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Ubastic/notemind/internal/model"
)

// TrackerRepository stores the per-user tracker document, replaced wholesale.
type TrackerRepository interface {
	Get(ctx context.Context, userID int64) (*model.TrackerDocument, error)
	Replace(ctx context.Context, userID int64, payload string) error
}

type trackerRepo struct {
	db *gorm.DB
}

// NewTrackerRepository creates the gorm implementation of TrackerRepository.
func NewTrackerRepository(db *gorm.DB) TrackerRepository {
	return &trackerRepo{db: db}
}

func (r *trackerRepo) Get(ctx context.Context, userID int64) (*model.TrackerDocument, error) {
	var doc model.TrackerDocument
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *trackerRepo) Replace(ctx context.Context, userID int64, payload string) error {
	doc := model.TrackerDocument{UserID: userID, Payload: payload}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&doc).Error
}
