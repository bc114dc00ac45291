// Package service holds the business logic between handlers and repositories.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Ubastic/notemind/internal/apperr"
	"github.com/Ubastic/notemind/internal/crypto"
	"github.com/Ubastic/notemind/internal/model"
	"github.com/Ubastic/notemind/internal/repo"
)

// Category is one user-defined note category.
type Category struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Settings is the decoded per-user settings payload.
type Settings struct {
	AIEnabled  bool       `json:"ai_enabled"`
	Categories []Category `json:"categories,omitempty"`
}

// DefaultCategories returns the built-in taxonomy used until the user
// customizes it.
func DefaultCategories() []Category {
	return []Category{
		{Key: "credential", Label: "credential"},
		{Key: "work", Label: "work"},
		{Key: "idea", Label: "idea"},
		{Key: "todo", Label: "todo"},
	}
}

// UserService manages accounts and per-user settings.
type UserService struct {
	users repo.UserRepository
	// aiFeature is the server-wide AI switch; user opt-in alone is not enough.
	aiFeature bool
}

// NewUserService creates a UserService.
func NewUserService(users repo.UserRepository, aiFeature bool) *UserService {
	return &UserService{users: users, aiFeature: aiFeature}
}

// Register creates an account with a bcrypt password hash and a fresh
// content-key salt. A taken username yields apperr.ErrConflict.
func (s *UserService) Register(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", apperr.ErrValidation)
	}
	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: username already exists", apperr.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Username:     username,
		PasswordHash: string(hash),
		Salt:         salt,
	}
	return s.users.CreateUser(ctx, user)
}

// Login verifies credentials and returns the account. Both an unknown
// username and a wrong password yield apperr.ErrUnauthorized.
func (s *UserService) Login(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, fmt.Errorf("%w: invalid credentials", apperr.ErrUnauthorized)
	}
	return user, nil
}

// GetByID loads an account, mapping a missing row to apperr.ErrUnauthorized
// since it only ever comes from a token subject.
func (s *UserService) GetByID(ctx context.Context, id int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: unknown account", apperr.ErrUnauthorized)
		}
		return nil, err
	}
	return user, nil
}

// Settings decodes the user's stored settings, falling back to defaults.
func (s *UserService) Settings(user *model.User) Settings {
	return Settings{
		AIEnabled:  s.AIEnabledFor(user),
		Categories: userCategories(user),
	}
}

// UpdateSettings replaces the user's settings payload. Categories are
// normalized (lowercase keys, deduped); the AI flag is clamped by the global
// feature switch.
func (s *UserService) UpdateSettings(ctx context.Context, user *model.User, in Settings) (Settings, error) {
	categories := normalizeCategories(in.Categories)
	aiEnabled := in.AIEnabled
	if !s.aiFeature {
		aiEnabled = false
	}

	stored := Settings{AIEnabled: aiEnabled, Categories: categories}
	payload, err := json.Marshal(stored)
	if err != nil {
		return Settings{}, err
	}
	if err := s.users.SaveSettings(ctx, user.ID, string(payload)); err != nil {
		return Settings{}, err
	}
	if user.Settings == nil {
		user.Settings = &model.UserSettings{UserID: user.ID}
	}
	user.Settings.Payload = string(payload)

	if len(categories) == 0 {
		stored.Categories = DefaultCategories()
	}
	return stored, nil
}

// AIEnabledFor reports whether AI calls are allowed for this user: the
// server-wide flag and the user's opt-in must both hold.
func (s *UserService) AIEnabledFor(user *model.User) bool {
	return s.aiFeature && loadSettingsPayload(user).AIEnabled
}

// AllowedCategoryKeys returns the user's category keys for analysis and
// category overrides.
func (s *UserService) AllowedCategoryKeys(user *model.User) []string {
	categories := userCategories(user)
	keys := make([]string, 0, len(categories))
	for _, c := range categories {
		keys = append(keys, c.Key)
	}
	return keys
}

func loadSettingsPayload(user *model.User) Settings {
	var settings Settings
	if user == nil || user.Settings == nil || user.Settings.Payload == "" {
		return settings
	}
	if err := json.Unmarshal([]byte(user.Settings.Payload), &settings); err != nil {
		return Settings{}
	}
	return settings
}

func userCategories(user *model.User) []Category {
	categories := normalizeCategories(loadSettingsPayload(user).Categories)
	if len(categories) == 0 {
		return DefaultCategories()
	}
	return categories
}

func normalizeCategories(raw []Category) []Category {
	var normalized []Category
	seen := make(map[string]struct{}, len(raw))
	for _, item := range raw {
		key := strings.ToLower(strings.TrimSpace(item.Key))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		label := strings.TrimSpace(item.Label)
		if label == "" {
			label = key
		}
		normalized = append(normalized, Category{Key: key, Label: label})
	}
	return normalized
}
