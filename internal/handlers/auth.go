package handlers

import (
	"fmt"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/Ubastic/notemind/internal/apperr"
	"github.com/Ubastic/notemind/internal/config"
	"github.com/Ubastic/notemind/internal/middleware"
	"github.com/Ubastic/notemind/internal/model"
	"github.com/Ubastic/notemind/internal/service"
)

// AuthHandler serves registration, login and session endpoints.
type AuthHandler struct {
	users  *service.UserService
	logger *zap.SugaredLogger
	cfg    *config.Config
}

func NewAuthHandler(users *service.UserService, logger *zap.SugaredLogger, cfg *config.Config) *AuthHandler {
	return &AuthHandler{users: users, logger: logger, cfg: cfg}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (c credentialsRequest) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Username, validation.Required, validation.Length(1, 64)),
		validation.Field(&c.Password, validation.Required, validation.Length(4, 128)),
	)
}

// validationError folds an ozzo result into the apperr taxonomy.
func validationError(err error) error {
	return fmt.Errorf("%w: %s", apperr.ErrValidation, err)
}

type userResponse struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(user *model.User) userResponse {
	return userResponse{ID: user.ID, Username: user.Username, CreatedAt: user.CreatedAt}
}

type sessionResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

func (h *AuthHandler) issueSession(w http.ResponseWriter, user *model.User, status int) {
	token, err := middleware.BuildToken(user.ID, h.cfg.AuthSecret, h.cfg.TokenTTL())
	if err != nil {
		h.logger.Errorw("failed to sign session token", "error", err)
		writeError(w, err)
		return
	}
	if err := middleware.SetLoginCookieTTL(w, user.ID, h.cfg.AuthSecret, h.cfg.TokenTTL(), h.cfg.CookieSecure); err != nil {
		h.logger.Errorw("failed to set session cookie", "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, status, sessionResponse{Token: token, User: toUserResponse(user)})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, validationError(err))
		return
	}

	user, err := h.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.issueSession(w, user, http.StatusCreated)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.users.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}
	h.issueSession(w, user, http.StatusOK)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	middleware.ClearLoginCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}
