package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Ubastic/notemind/internal/apperr"
	"github.com/Ubastic/notemind/internal/config"
	"github.com/Ubastic/notemind/internal/middleware"
	"github.com/Ubastic/notemind/internal/service"
)

// AttachmentHandler serves file upload, download and listing.
type AttachmentHandler struct {
	attachments *service.AttachmentService
	users       *service.UserService
	logger      *zap.SugaredLogger
	cfg         *config.Config
}

func NewAttachmentHandler(attachments *service.AttachmentService, users *service.UserService, logger *zap.SugaredLogger, cfg *config.Config) *AttachmentHandler {
	return &AttachmentHandler{attachments: attachments, users: users, logger: logger, cfg: cfg}
}

type attachmentResponse struct {
	ID        int64     `json:"id"`
	Filename  string    `json:"filename"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	NoteIDs   []int64   `json:"note_ids"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"created_at"`
}

func toAttachmentResponse(v *service.AttachmentView) attachmentResponse {
	noteIDs := v.NoteIDs
	if noteIDs == nil {
		noteIDs = []int64{}
	}
	return attachmentResponse{
		ID:        v.Attachment.ID,
		Filename:  v.Attachment.Filename,
		MimeType:  v.Attachment.MimeType,
		Size:      v.Attachment.Size,
		NoteIDs:   noteIDs,
		URL:       fmt.Sprintf("/api/attachments/%d", v.Attachment.ID),
		CreatedAt: v.Attachment.CreatedAt,
	}
}

func (h *AttachmentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}

	maxBytes := int64(h.cfg.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+(1<<20))

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: missing file", apperr.ErrValidation))
		return
	}
	defer file.Close()

	var noteID *int64
	if raw := r.FormValue("note_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, fmt.Errorf("%w: invalid note_id", apperr.ErrValidation))
			return
		}
		noteID = &id
	}

	view, err := h.attachments.Upload(r.Context(), user, noteID, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAttachmentResponse(view))
}

func (h *AttachmentHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}

	var noteID *int64
	if raw := r.URL.Query().Get("note_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, fmt.Errorf("%w: invalid note_id", apperr.ErrValidation))
			return
		}
		noteID = &id
	}

	items, total, err := h.attachments.List(r.Context(), user, noteID,
		queryInt(r, "page", 1), queryInt(r, "page_size", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	responses := make([]attachmentResponse, 0, len(items))
	for i := range items {
		responses = append(responses, toAttachmentResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": responses, "total": total})
}

// Download streams the file. Owners authenticate normally; anonymous readers
// must present a share token of a note referencing the attachment.
func (h *AttachmentHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var userID *int64
	if uid, ok := middleware.GetUserIDFromContext(r.Context()); ok {
		userID = &uid
	}
	attachment, path, err := h.attachments.Open(r.Context(), userID, r.URL.Query().Get("token"), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if attachment.MimeType != "" {
		w.Header().Set("Content-Type", attachment.MimeType)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", attachment.Filename))
	http.ServeFile(w, r, path)
}

func (h *AttachmentHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.attachments.Delete(r.Context(), user, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
