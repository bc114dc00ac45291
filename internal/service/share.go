package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Ubastic/notemind/internal/apperr"
	"github.com/Ubastic/notemind/internal/model"
	"github.com/Ubastic/notemind/internal/repo"
)

// ShareView is a resolved share: the note as an anonymous reader sees it.
type ShareView struct {
	Note      *NoteView
	ExpiresAt *time.Time
	ViewCount int64
}

// ShareService issues and resolves read-only share tokens.
type ShareService struct {
	shares repo.ShareRepository
	users  repo.UserRepository
	notes  *NoteService
}

// NewShareService creates a ShareService.
func NewShareService(shares repo.ShareRepository, users repo.UserRepository, notes *NoteService) *ShareService {
	return &ShareService{shares: shares, users: users, notes: notes}
}

// newShareToken returns an unguessable url-safe token.
func newShareToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Create issues a share token for an owned note. A nil expiresInDays means
// the token never expires. A note may carry any number of independent tokens.
func (s *ShareService) Create(ctx context.Context, user *model.User, noteID int64, expiresInDays *int) (*model.Share, error) {
	note, err := s.notes.getOwned(ctx, user, noteID)
	if err != nil {
		return nil, err
	}
	token, err := newShareToken()
	if err != nil {
		return nil, err
	}
	share := &model.Share{NoteID: note.ID, Token: token}
	if expiresInDays != nil && *expiresInDays > 0 {
		expires := time.Now().AddDate(0, 0, *expiresInDays)
		share.ExpiresAt = &expires
	}
	if err := s.shares.Create(ctx, share); err != nil {
		return nil, err
	}
	return share, nil
}

// Resolve returns the shared note for an anonymous reader. Unknown tokens
// yield ErrNotFound, expired ones ErrExpired. Each successful resolve counts
// a view.
func (s *ShareService) Resolve(ctx context.Context, token string) (*ShareView, error) {
	share, err := s.shares.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: share", apperr.ErrNotFound)
		}
		return nil, err
	}
	if share.ExpiresAt != nil && share.ExpiresAt.Before(time.Now()) {
		return nil, fmt.Errorf("%w: share", apperr.ErrExpired)
	}
	if err := s.shares.IncrementViews(ctx, share.ID); err != nil {
		return nil, err
	}
	share.ViewCount++

	// content is sealed under the owner's key, not the reader's
	owner, err := s.users.GetByID(ctx, share.Note.UserID)
	if err != nil {
		return nil, err
	}
	key, err := s.notes.contentKey(owner)
	if err != nil {
		return nil, err
	}
	view, err := s.notes.view(share.Note, key, nil, true)
	if err != nil {
		return nil, err
	}
	return &ShareView{Note: view, ExpiresAt: share.ExpiresAt, ViewCount: share.ViewCount}, nil
}

// Delete revokes an owned share token.
func (s *ShareService) Delete(ctx context.Context, user *model.User, shareID int64) error {
	share, err := s.shares.GetOwned(ctx, user.ID, shareID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: share", apperr.ErrNotFound)
		}
		return err
	}
	return s.shares.Delete(ctx, share.ID)
}
