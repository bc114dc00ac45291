package handlers

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/Ubastic/notemind/internal/service"
)

// SettingsHandler serves the per-user settings payload.
type SettingsHandler struct {
	users  *service.UserService
	logger *zap.SugaredLogger
}

func NewSettingsHandler(users *service.UserService, logger *zap.SugaredLogger) *SettingsHandler {
	return &SettingsHandler{users: users, logger: logger}
}

type settingsRequest struct {
	AIEnabled  bool               `json:"ai_enabled"`
	Categories []service.Category `json:"categories"`
}

func (s settingsRequest) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Categories, validation.Length(0, 50)),
	)
}

func (h *SettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.users.Settings(user))
}

func (h *SettingsHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}
	var req settingsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, validationError(err))
		return
	}

	stored, err := h.users.UpdateSettings(r.Context(), user, service.Settings{
		AIEnabled:  req.AIEnabled,
		Categories: req.Categories,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}
