package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/Ubastic/notemind/internal/model"
)

func TestUserRepository_CreateAndGet(t *testing.T) {
	db := newTestDB(t)
	r := NewUserRepository(db)
	ctx := context.Background()

	u, err := r.CreateUser(ctx, &model.User{Username: "john", PasswordHash: "hash", Salt: "salt"})
	assert.NoError(t, err)
	assert.NotZero(t, u.ID)

	got, err := r.GetByUsername(ctx, "john")
	assert.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	// unique username: second insert must fail
	_, err = r.CreateUser(ctx, &model.User{Username: "john", PasswordHash: "x", Salt: "s"})
	assert.Error(t, err)

	got, err = r.GetByUsername(ctx, "doesnotexist")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUserRepository_Settings(t *testing.T) {
	db := newTestDB(t)
	r := NewUserRepository(db)
	ctx := context.Background()

	u, err := r.CreateUser(ctx, &model.User{Username: "alice", PasswordHash: "h", Salt: "s"})
	assert.NoError(t, err)

	// first save inserts
	assert.NoError(t, r.SaveSettings(ctx, u.ID, `{"ai_enabled":true}`))
	got, err := r.GetByID(ctx, u.ID)
	assert.NoError(t, err)
	if assert.NotNil(t, got.Settings) {
		assert.Equal(t, `{"ai_enabled":true}`, got.Settings.Payload)
	}

	// second save replaces wholesale
	assert.NoError(t, r.SaveSettings(ctx, u.ID, `{"ai_enabled":false}`))
	got, err = r.GetByID(ctx, u.ID)
	assert.NoError(t, err)
	if assert.NotNil(t, got.Settings) {
		assert.Equal(t, `{"ai_enabled":false}`, got.Settings.Payload)
	}
}
