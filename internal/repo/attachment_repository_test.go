package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/Ubastic/notemind/internal/model"
)

func seedAttachment(t *testing.T, db *gorm.DB, userID int64, stored string) *model.Attachment {
	t.Helper()
	a := &model.Attachment{
		UserID:     userID,
		Filename:   "photo.png",
		StoredName: stored,
		MimeType:   "image/png",
		Size:       100,
	}
	if err := db.Create(a).Error; err != nil {
		t.Fatalf("seed attachment: %v", err)
	}
	return a
}

func TestAttachmentRepository_Ownership(t *testing.T) {
	db := newTestDB(t)
	r := NewAttachmentRepository(db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	a := seedAttachment(t, db, alice.ID, "s1.png")

	got, err := r.GetOwned(ctx, alice.ID, a.ID)
	assert.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	_, err = r.GetOwned(ctx, bob.ID, a.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	owned, err := r.OwnedIDs(ctx, alice.ID, []int64{a.ID, 9999})
	assert.NoError(t, err)
	assert.Equal(t, []int64{a.ID}, owned)

	owned, err = r.OwnedIDs(ctx, bob.ID, []int64{a.ID})
	assert.NoError(t, err)
	assert.Empty(t, owned)
}

func TestAttachmentRepository_LinksAndListByNote(t *testing.T) {
	db := newTestDB(t)
	r := NewAttachmentRepository(db)
	ctx := context.Background()

	u := seedUser(t, db, "carol")
	n1 := seedNote(t, db, u.ID, nil)
	n2 := seedNote(t, db, u.ID, nil)
	a := seedAttachment(t, db, u.ID, "s2.png")

	assert.NoError(t, r.Link(ctx, n1.ID, a.ID))
	// linking twice is a no-op
	assert.NoError(t, r.Link(ctx, n1.ID, a.ID))
	assert.NoError(t, r.Link(ctx, n2.ID, a.ID))

	noteIDs, err := r.LinkedNoteIDs(ctx, a.ID)
	assert.NoError(t, err)
	assert.ElementsMatch(t, []int64{n1.ID, n2.ID}, noteIDs)

	linked, err := r.IsLinked(ctx, n1.ID, a.ID)
	assert.NoError(t, err)
	assert.True(t, linked)

	items, total, err := r.List(ctx, u.ID, &n1.ID, 10, 0)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, items, 1)

	// directly homed on the note and linked to it: still one row
	direct := seedAttachment(t, db, u.ID, "s3.png")
	assert.NoError(t, db.Model(direct).Update("note_id", n1.ID).Error)
	assert.NoError(t, r.Link(ctx, n1.ID, direct.ID))

	items, total, err = r.List(ctx, u.ID, &n1.ID, 10, 0)
	assert.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, items, 2)

	assert.NoError(t, r.Unlink(ctx, n1.ID, []int64{a.ID}))
	linked, _ = r.IsLinked(ctx, n1.ID, a.ID)
	assert.False(t, linked)

	assert.NoError(t, r.DeleteLinksForNote(ctx, n2.ID))
	noteIDs, _ = r.LinkedNoteIDs(ctx, a.ID)
	assert.Empty(t, noteIDs)
}

func TestAttachmentRepository_ListPaged(t *testing.T) {
	db := newTestDB(t)
	r := NewAttachmentRepository(db)
	ctx := context.Background()

	u := seedUser(t, db, "dave")
	seedAttachment(t, db, u.ID, "a.png")
	seedAttachment(t, db, u.ID, "b.png")
	seedAttachment(t, db, u.ID, "c.png")

	items, total, err := r.List(ctx, u.ID, nil, 2, 0)
	assert.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, items, 2)
}
