package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/Ubastic/notemind/internal/model"
)

func TestShareRepository_TokenLifecycle(t *testing.T) {
	db := newTestDB(t)
	r := NewShareRepository(db)
	ctx := context.Background()

	u := seedUser(t, db, "alice")
	n := seedNote(t, db, u.ID, nil)

	exp := time.Now().Add(24 * time.Hour)
	share := &model.Share{NoteID: n.ID, Token: "tok-1", ExpiresAt: &exp}
	assert.NoError(t, r.Create(ctx, share))

	got, err := r.GetByToken(ctx, "tok-1")
	assert.NoError(t, err)
	assert.Equal(t, n.ID, got.NoteID)
	if assert.NotNil(t, got.Note) {
		assert.Equal(t, u.ID, got.Note.UserID)
	}

	_, err = r.GetByToken(ctx, "unknown")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.NoError(t, r.IncrementViews(ctx, share.ID))
	got, _ = r.GetByToken(ctx, "tok-1")
	assert.EqualValues(t, 1, got.ViewCount)

	// duplicate token must violate uniqueness
	assert.Error(t, r.Create(ctx, &model.Share{NoteID: n.ID, Token: "tok-1"}))
}

func TestShareRepository_OwnedAndCascade(t *testing.T) {
	db := newTestDB(t)
	r := NewShareRepository(db)
	ctx := context.Background()

	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	n := seedNote(t, db, alice.ID, nil)

	share := &model.Share{NoteID: n.ID, Token: "tok-2"}
	assert.NoError(t, r.Create(ctx, share))

	_, err := r.GetOwned(ctx, alice.ID, share.ID)
	assert.NoError(t, err)
	_, err = r.GetOwned(ctx, bob.ID, share.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.NoError(t, r.DeleteForNote(ctx, n.ID))
	_, err = r.GetByToken(ctx, "tok-2")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
