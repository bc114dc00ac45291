package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Ubastic/notemind/internal/apperr"
)

func TestUserService_RegisterAndLogin(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	user, err := env.users.Register(ctx, "  alice ", "pw123")
	assert.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.NotEmpty(t, user.Salt)
	assert.NotEqual(t, "pw123", user.PasswordHash)

	_, err = env.users.Register(ctx, "alice", "other")
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = env.users.Register(ctx, "", "pw")
	assert.ErrorIs(t, err, apperr.ErrValidation)
	_, err = env.users.Register(ctx, "bob", "")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	got, err := env.users.Login(ctx, "alice", "pw123")
	assert.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = env.users.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, err = env.users.Login(ctx, "nobody", "pw123")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestUserService_DefaultSettings(t *testing.T) {
	env := newTestEnv(t, true)
	user := registerUser(t, env, "alice")

	settings := env.users.Settings(user)
	assert.False(t, settings.AIEnabled, "AI requires explicit opt-in")
	assert.Equal(t, DefaultCategories(), settings.Categories)
	assert.Equal(t, []string{"credential", "work", "idea", "todo"}, env.users.AllowedCategoryKeys(user))
}

func TestUserService_UpdateSettingsNormalizesCategories(t *testing.T) {
	env := newTestEnv(t, true)
	user := registerUser(t, env, "alice")
	ctx := context.Background()

	stored, err := env.users.UpdateSettings(ctx, user, Settings{
		AIEnabled: true,
		Categories: []Category{
			{Key: " Recipes ", Label: "Recipes"},
			{Key: "recipes", Label: "duplicate"},
			{Key: "travel"},
			{Key: "   "},
		},
	})
	assert.NoError(t, err)
	assert.True(t, stored.AIEnabled)
	assert.Equal(t, []Category{
		{Key: "recipes", Label: "Recipes"},
		{Key: "travel", Label: "travel"},
	}, stored.Categories)

	assert.True(t, env.users.AIEnabledFor(user))
	assert.Equal(t, []string{"recipes", "travel"}, env.users.AllowedCategoryKeys(user))

	// clearing categories falls back to the defaults
	stored, err = env.users.UpdateSettings(ctx, user, Settings{AIEnabled: true})
	assert.NoError(t, err)
	assert.Equal(t, DefaultCategories(), stored.Categories)
}

func TestUserService_FeatureFlagClampsAI(t *testing.T) {
	env := newTestEnv(t, false)
	user := registerUser(t, env, "alice")

	stored, err := env.users.UpdateSettings(context.Background(), user, Settings{AIEnabled: true})
	assert.NoError(t, err)
	assert.False(t, stored.AIEnabled)
	assert.False(t, env.users.AIEnabledFor(user))
}
