package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTrackerRepository_ReplaceWholesale(t *testing.T) {
	db := newTestDB(t)
	r := NewTrackerRepository(db)
	ctx := context.Background()

	u := seedUser(t, db, "alice")

	_, err := r.Get(ctx, u.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	assert.NoError(t, r.Replace(ctx, u.ID, `{"projects":[]}`))
	doc, err := r.Get(ctx, u.ID)
	assert.NoError(t, err)
	assert.Equal(t, `{"projects":[]}`, doc.Payload)

	assert.NoError(t, r.Replace(ctx, u.ID, `{"projects":[{"name":"p1"}]}`))
	doc, err = r.Get(ctx, u.ID)
	assert.NoError(t, err)
	assert.Equal(t, `{"projects":[{"name":"p1"}]}`, doc.Payload)

	// documents are owner-scoped
	other := seedUser(t, db, "bob")
	_, err = r.Get(ctx, other.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
