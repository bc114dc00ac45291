package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/Ubastic/notemind/internal/apperr"
	"github.com/Ubastic/notemind/internal/model"
	"github.com/Ubastic/notemind/internal/service"
)

// ShareHandler issues, resolves and revokes read-only share links.
type ShareHandler struct {
	shares *service.ShareService
	users  *service.UserService
	logger *zap.SugaredLogger
}

func NewShareHandler(shares *service.ShareService, users *service.UserService, logger *zap.SugaredLogger) *ShareHandler {
	return &ShareHandler{shares: shares, users: users, logger: logger}
}

type createShareRequest struct {
	NoteID        int64 `json:"note_id"`
	ExpiresInDays *int  `json:"expires_in_days"`
}

func (c createShareRequest) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.NoteID, validation.Required, validation.Min(1)),
		validation.Field(&c.ExpiresInDays, validation.Min(1)),
	)
}

type shareResponse struct {
	ID        int64      `json:"id"`
	NoteID    int64      `json:"note_id"`
	Token     string     `json:"token"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at"`
	ViewCount int64      `json:"view_count"`
	CreatedAt time.Time  `json:"created_at"`
}

func toShareResponse(share *model.Share) shareResponse {
	return shareResponse{
		ID:        share.ID,
		NoteID:    share.NoteID,
		Token:     share.Token,
		URL:       "/api/shares/" + share.Token,
		ExpiresAt: share.ExpiresAt,
		ViewCount: share.ViewCount,
		CreatedAt: share.CreatedAt,
	}
}

// sharedNoteResponse is the stripped note an anonymous reader receives:
// owner-only metadata (folder, pins, sensitivity) is withheld.
type sharedNoteResponse struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	ShortTitle string    `json:"short_title"`
	Category   string    `json:"category"`
	Tags       []string  `json:"tags"`
	Summary    string    `json:"summary"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createShareRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, validationError(err))
		return
	}

	share, err := h.shares.Create(r.Context(), user, req.NoteID, req.ExpiresInDays)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toShareResponse(share))
}

func (h *ShareHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		writeError(w, fmt.Errorf("%w: missing token", apperr.ErrValidation))
		return
	}
	view, err := h.shares.Resolve(r.Context(), token)
	if err != nil {
		writeError(w, err)
		return
	}
	note := sharedNoteResponse{
		ID:         view.Note.Note.ID,
		Title:      view.Note.Note.Title,
		ShortTitle: view.Note.Note.ShortTitle,
		Category:   view.Note.Note.Category,
		Tags:       view.Note.Tags,
		Summary:    view.Note.Note.Summary,
		Content:    view.Note.Content,
		CreatedAt:  view.Note.Note.CreatedAt,
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"note":       note,
		"expires_at": view.ExpiresAt,
		"view_count": view.ViewCount,
	})
}

func (h *ShareHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.shares.Delete(r.Context(), user, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
