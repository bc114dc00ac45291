// Package handlers exposes the HTTP API: auth, settings, notes, attachments,
// shares, the tracker document and the AI endpoints.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Ubastic/notemind/internal/config"
	"github.com/Ubastic/notemind/internal/middleware"
	"github.com/Ubastic/notemind/internal/service"
)

type Handler struct {
	Router chi.Router
}

// NewHandler builds the router and wires every handler group.
func NewHandler(
	users *service.UserService,
	notes *service.NoteService,
	attachments *service.AttachmentService,
	shares *service.ShareService,
	tracker *service.TrackerService,
	db *gorm.DB,
	logger *zap.SugaredLogger,
	cfg *config.Config,
) *Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.WithGzip)
	r.Use(middleware.WithLogging)
	r.Use(middleware.WithAuth(cfg.AuthSecret))

	authHandler := NewAuthHandler(users, logger, cfg)
	settingsHandler := NewSettingsHandler(users, logger)
	noteHandler := NewNoteHandler(notes, users, logger)
	attachmentHandler := NewAttachmentHandler(attachments, users, logger, cfg)
	shareHandler := NewShareHandler(shares, users, logger)
	trackerHandler := NewTrackerHandler(tracker, users, logger)
	aiHandler := NewAIHandler(notes, users, logger)
	healthHandler := NewHealthHandler(db)

	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Post("/api/auth/register", authHandler.Register)
	r.Post("/api/auth/login", authHandler.Login)
	r.Post("/api/auth/logout", authHandler.Logout)
	r.Get("/api/auth/me", authHandler.Me)

	r.Get("/api/settings", settingsHandler.Get)
	r.Put("/api/settings", settingsHandler.Update)

	r.Get("/api/notes", noteHandler.List)
	r.Post("/api/notes", noteHandler.Create)
	r.Get("/api/notes/timeline", noteHandler.Timeline)
	r.Get("/api/notes/random", noteHandler.Random)
	r.Post("/api/notes/search", noteHandler.Search)
	r.Post("/api/notes/rebuild-embeddings", noteHandler.RebuildEmbeddings)
	r.Get("/api/notes/{id}", noteHandler.Get)
	r.Put("/api/notes/{id}", noteHandler.Update)
	r.Delete("/api/notes/{id}", noteHandler.Delete)
	r.Get("/api/notes/{id}/related", noteHandler.Related)

	r.Get("/api/attachments", attachmentHandler.List)
	r.Post("/api/attachments", attachmentHandler.Upload)
	r.Get("/api/attachments/{id}", attachmentHandler.Download)
	r.Delete("/api/attachments/{id}", attachmentHandler.Delete)

	r.Post("/api/shares", shareHandler.Create)
	r.Get("/api/shares/{token}", shareHandler.Resolve)
	r.Delete("/api/shares/{id}", shareHandler.Delete)

	r.Get("/api/tracker", trackerHandler.Get)
	r.Put("/api/tracker", trackerHandler.Replace)
	r.Get("/api/tracker/export", trackerHandler.Export)
	r.Post("/api/tracker/import", trackerHandler.Import)

	r.Post("/api/ai/ask", aiHandler.Ask)
	r.Post("/api/ai/summarize", aiHandler.Summarize)

	return &Handler{Router: r}
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	db *gorm.DB
}

func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
