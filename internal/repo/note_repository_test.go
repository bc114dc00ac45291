package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/Ubastic/notemind/internal/model"
)

func seedUser(t *testing.T, db *gorm.DB, name string) *model.User {
	t.Helper()
	u := &model.User{Username: name, PasswordHash: "hash", Salt: "salt"}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedNote(t *testing.T, db *gorm.DB, userID int64, mutate func(*model.Note)) *model.Note {
	t.Helper()
	n := &model.Note{
		UserID:        userID,
		ContentCipher: []byte{0x01},
		ContentNonce:  []byte{0x02},
		Category:      "idea",
		Tags:          `["misc"]`,
	}
	if mutate != nil {
		mutate(n)
	}
	if err := db.Create(n).Error; err != nil {
		t.Fatalf("seed note: %v", err)
	}
	return n
}

func TestNoteRepository_OwnershipScoping(t *testing.T) {
	db := newTestDB(t)
	r := NewNoteRepository(db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	n := seedNote(t, db, alice.ID, nil)

	got, err := r.GetByID(ctx, alice.ID, n.ID)
	assert.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)

	// a guessed id under another owner behaves like a missing row
	got, err = r.GetByID(ctx, bob.ID, n.ID)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	affected, err := r.Delete(ctx, bob.ID, n.ID)
	assert.NoError(t, err)
	assert.Zero(t, affected)

	affected, err = r.Delete(ctx, alice.ID, n.ID)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, affected)
}

func TestNoteRepository_ListFilters(t *testing.T) {
	db := newTestDB(t)
	r := NewNoteRepository(db)
	ctx := context.Background()
	u := seedUser(t, db, "carol")

	seedNote(t, db, u.ID, func(n *model.Note) { n.Category = "work"; n.Tags = `["github","review"]` })
	seedNote(t, db, u.ID, func(n *model.Note) { n.Category = "todo"; n.Completed = true })
	seedNote(t, db, u.ID, func(n *model.Note) { n.Category = "work"; n.Folder = "projects" })

	notes, total, err := r.List(ctx, u.ID, NoteFilter{Category: "work"}, 10, 0, true)
	assert.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, notes, 2)

	// completed notes are hidden unless requested
	_, total, err = r.List(ctx, u.ID, NoteFilter{}, 10, 0, false)
	assert.NoError(t, err)
	assert.EqualValues(t, 2, total)

	_, total, err = r.List(ctx, u.ID, NoteFilter{IncludeCompleted: true}, 10, 0, false)
	assert.NoError(t, err)
	assert.EqualValues(t, 3, total)

	notes, total, err = r.List(ctx, u.ID, NoteFilter{Tag: "github"}, 10, 0, false)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, `["github","review"]`, notes[0].Tags)

	_, total, err = r.List(ctx, u.ID, NoteFilter{Folder: "projects"}, 10, 0, false)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestNoteRepository_PinnedOrdering(t *testing.T) {
	db := newTestDB(t)
	r := NewNoteRepository(db)
	ctx := context.Background()
	u := seedUser(t, db, "dave")

	older := seedNote(t, db, u.ID, func(n *model.Note) { n.Title = "older" })
	_ = seedNote(t, db, u.ID, func(n *model.Note) { n.Title = "newer" })
	now := time.Now()
	db.Model(older).Updates(map[string]any{"pinned_global": true, "pinned_at": now})

	notes, _, err := r.List(ctx, u.ID, NoteFilter{}, 10, 0, false)
	assert.NoError(t, err)
	if assert.Len(t, notes, 2) {
		assert.Equal(t, "older", notes[0].Title, "pinned note sorts first")
	}
}

func TestNoteRepository_ListBatchCursor(t *testing.T) {
	db := newTestDB(t)
	r := NewNoteRepository(db)
	ctx := context.Background()
	u := seedUser(t, db, "erin")

	var ids []int64
	for i := 0; i < 5; i++ {
		ids = append(ids, seedNote(t, db, u.ID, nil).ID)
	}

	first, err := r.ListBatch(ctx, u.ID, 0, 2)
	assert.NoError(t, err)
	if assert.Len(t, first, 2) {
		assert.Equal(t, ids[4], first[0].ID)
		assert.Equal(t, ids[3], first[1].ID)
	}

	second, err := r.ListBatch(ctx, u.ID, first[1].ID, 2)
	assert.NoError(t, err)
	if assert.Len(t, second, 2) {
		assert.Equal(t, ids[2], second[0].ID)
	}

	total, err := r.Count(ctx, u.ID)
	assert.NoError(t, err)
	assert.EqualValues(t, 5, total)
}

func TestNoteRepository_Random(t *testing.T) {
	db := newTestDB(t)
	r := NewNoteRepository(db)
	ctx := context.Background()
	u := seedUser(t, db, "fred")

	_, err := r.Random(ctx, u.ID, false)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	n := seedNote(t, db, u.ID, nil)
	got, err := r.Random(ctx, u.ID, false)
	assert.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
}

func TestNoteRepository_CreatedTimes(t *testing.T) {
	db := newTestDB(t)
	r := NewNoteRepository(db)
	ctx := context.Background()
	u := seedUser(t, db, "gina")

	seedNote(t, db, u.ID, nil)
	seedNote(t, db, u.ID, nil)

	times, err := r.CreatedTimes(ctx, u.ID, NoteFilter{})
	assert.NoError(t, err)
	assert.Len(t, times, 2)
}
