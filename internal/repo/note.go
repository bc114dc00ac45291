package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Ubastic/notemind/internal/model"
)

// NoteFilter narrows note queries. Zero values mean "no constraint".
type NoteFilter struct {
	Category         string
	Folder           string
	Tag              string
	IncludeCompleted bool
	TimeStart        *time.Time
	TimeEnd          *time.Time // exclusive upper bound
}

// NoteRepository defines note access for the service layer. Every method is
// scoped to the owning user; a wrong owner behaves like a missing row.
type NoteRepository interface {
	Create(ctx context.Context, note *model.Note) error
	GetByID(ctx context.Context, userID, id int64) (*model.Note, error)
	Save(ctx context.Context, note *model.Note) error
	Delete(ctx context.Context, userID, id int64) (int64, error)

	// List returns one page plus the total match count. When pinnedByCategory
	// is set, category-pinned notes sort first; otherwise globally-pinned do.
	List(ctx context.Context, userID int64, f NoteFilter, limit, offset int, pinnedByCategory bool) ([]model.Note, int64, error)

	// ListAll returns every matching note newest-first, for in-memory ranking.
	ListAll(ctx context.Context, userID int64, f NoteFilter) ([]model.Note, error)

	Random(ctx context.Context, userID int64, includeCompleted bool) (*model.Note, error)

	// CreatedTimes returns creation timestamps of matching notes, for
	// timeline bucketing.
	CreatedTimes(ctx context.Context, userID int64, f NoteFilter) ([]time.Time, error)

	// ListBatch pages through the owner's notes by descending id. A zero
	// cursor starts from the newest note.
	ListBatch(ctx context.Context, userID, cursor int64, limit int) ([]model.Note, error)

	Count(ctx context.Context, userID int64) (int64, error)
}

type noteRepo struct {
	db *gorm.DB
}

// NewNoteRepository creates the gorm implementation of NoteRepository.
func NewNoteRepository(db *gorm.DB) NoteRepository {
	return &noteRepo{db: db}
}

// escapeLike escapes LIKE wildcards so tag tokens match literally.
func escapeLike(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `%`, `\%`)
	return strings.ReplaceAll(value, `_`, `\_`)
}

// tagPattern matches the JSON-encoded tag token inside the tags column.
func tagPattern(tag string) string {
	return `%"` + escapeLike(tag) + `"%`
}

func (r *noteRepo) scoped(ctx context.Context, userID int64, f NoteFilter) *gorm.DB {
	q := r.db.WithContext(ctx).Model(&model.Note{}).Where("user_id = ?", userID)
	if !f.IncludeCompleted {
		q = q.Where("completed = ?", false)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.Folder != "" {
		q = q.Where("folder = ?", f.Folder)
	}
	if tag := strings.TrimSpace(f.Tag); tag != "" {
		q = q.Where(`tags LIKE ? ESCAPE '\'`, tagPattern(tag))
	}
	if f.TimeStart != nil {
		q = q.Where("created_at >= ?", *f.TimeStart)
	}
	if f.TimeEnd != nil {
		q = q.Where("created_at < ?", *f.TimeEnd)
	}
	return q
}

func (r *noteRepo) Create(ctx context.Context, note *model.Note) error {
	return r.db.WithContext(ctx).Create(note).Error
}

func (r *noteRepo) GetByID(ctx context.Context, userID, id int64) (*model.Note, error) {
	var note model.Note
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&note).Error
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *noteRepo) Save(ctx context.Context, note *model.Note) error {
	// Save writes all fields so cleared flags and emptied metadata persist.
	return r.db.WithContext(ctx).Save(note).Error
}

func (r *noteRepo) Delete(ctx context.Context, userID, id int64) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Delete(&model.Note{})
	return res.RowsAffected, res.Error
}

func (r *noteRepo) List(ctx context.Context, userID int64, f NoteFilter, limit, offset int, pinnedByCategory bool) ([]model.Note, int64, error) {
	var total int64
	if err := r.scoped(ctx, userID, f).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "pinned_global DESC, pinned_at DESC, created_at DESC"
	if pinnedByCategory {
		order = "pinned_category DESC, pinned_global DESC, pinned_at DESC, created_at DESC"
	}

	var notes []model.Note
	err := r.scoped(ctx, userID, f).
		Order(order).
		Limit(limit).
		Offset(offset).
		Find(&notes).Error
	if err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

func (r *noteRepo) ListAll(ctx context.Context, userID int64, f NoteFilter) ([]model.Note, error) {
	var notes []model.Note
	err := r.scoped(ctx, userID, f).
		Order("created_at DESC").
		Find(&notes).Error
	if err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *noteRepo) Random(ctx context.Context, userID int64, includeCompleted bool) (*model.Note, error) {
	var note model.Note
	// random() is understood by both sqlite and postgres
	err := r.scoped(ctx, userID, NoteFilter{IncludeCompleted: includeCompleted}).
		Order("random()").
		First(&note).Error
	if err != nil {
		return nil, err
	}
	return &note, nil
}

func (r *noteRepo) CreatedTimes(ctx context.Context, userID int64, f NoteFilter) ([]time.Time, error) {
	var times []time.Time
	err := r.scoped(ctx, userID, f).
		Order("created_at DESC").
		Pluck("created_at", &times).Error
	if err != nil {
		return nil, err
	}
	return times, nil
}

func (r *noteRepo) ListBatch(ctx context.Context, userID, cursor int64, limit int) ([]model.Note, error) {
	q := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC")
	if cursor > 0 {
		q = q.Where("id < ?", cursor)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var notes []model.Note
	if err := q.Find(&notes).Error; err != nil {
		return nil, err
	}
	return notes, nil
}

func (r *noteRepo) Count(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&model.Note{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}
