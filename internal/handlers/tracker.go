package handlers

import (
	"fmt"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/Ubastic/notemind/internal/apperr"
	"github.com/Ubastic/notemind/internal/service"
)

// TrackerHandler serves the per-user tracker document and its
// import/export conversions.
type TrackerHandler struct {
	tracker *service.TrackerService
	users   *service.UserService
	logger  *zap.SugaredLogger
}

func NewTrackerHandler(tracker *service.TrackerService, users *service.UserService, logger *zap.SugaredLogger) *TrackerHandler {
	return &TrackerHandler{tracker: tracker, users: users, logger: logger}
}

func (h *TrackerHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, err := h.tracker.Get(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *TrackerHandler) Replace(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}
	var doc service.TrackerDocument
	if err := decodeJSON(r, &doc); err != nil {
		writeError(w, err)
		return
	}
	stored, err := h.tracker.Replace(r.Context(), user, doc)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stored)
}

func (h *TrackerHandler) Export(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	var (
		data        []byte
		contentType string
		filename    string
	)
	switch format {
	case "json":
		data, err = h.tracker.ExportJSON(r.Context(), user)
		contentType = "application/json"
		filename = "tracker.json"
	case "csv":
		data, err = h.tracker.ExportCSV(r.Context(), user)
		contentType = "text/csv"
		filename = "tracker.csv"
	case "xlsx":
		data, err = h.tracker.ExportXLSX(r.Context(), user)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "tracker.xlsx"
	default:
		writeError(w, fmt.Errorf("%w: unknown export format %q", apperr.ErrValidation, format))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// Import accepts either a multipart upload (field "file", extension picks the
// parser) or a raw JSON body.
func (h *TrackerHandler) Import(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}

	var doc service.TrackerDocument
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, fmt.Errorf("%w: missing file", apperr.ErrValidation))
			return
		}
		defer file.Close()
		if strings.EqualFold(filepath.Ext(header.Filename), ".xlsx") {
			doc, err = h.tracker.ImportXLSX(r.Context(), user, file)
		} else {
			doc, err = h.tracker.ImportJSON(r.Context(), user, file)
		}
		if err != nil {
			writeError(w, err)
			return
		}
	} else {
		doc, err = h.tracker.ImportJSON(r.Context(), user, r.Body)
		if err != nil {
			writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, doc)
}
