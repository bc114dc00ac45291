package handlers

import (
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/Ubastic/notemind/internal/service"
)

// NoteHandler serves the note lifecycle endpoints.
type NoteHandler struct {
	notes  *service.NoteService
	users  *service.UserService
	logger *zap.SugaredLogger
}

func NewNoteHandler(notes *service.NoteService, users *service.UserService, logger *zap.SugaredLogger) *NoteHandler {
	return &NoteHandler{notes: notes, users: users, logger: logger}
}

type noteResponse struct {
	ID             int64               `json:"id"`
	Title          string              `json:"title"`
	ShortTitle     string              `json:"short_title"`
	Folder         string              `json:"folder,omitempty"`
	Category       string              `json:"category"`
	Tags           []string            `json:"tags"`
	Entities       map[string]string   `json:"entities,omitempty"`
	Summary        string              `json:"summary"`
	Sensitivity    string              `json:"sensitivity"`
	Completed      bool                `json:"completed"`
	PinnedGlobal   bool                `json:"pinned_global"`
	PinnedCategory bool                `json:"pinned_category"`
	PinnedAt       *time.Time          `json:"pinned_at,omitempty"`
	HasEmbedding   bool                `json:"has_embedding"`
	Content        string              `json:"content,omitempty"`
	Search         *service.SearchInfo `json:"search,omitempty"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

func toNoteResponse(v *service.NoteView) noteResponse {
	return noteResponse{
		ID:             v.Note.ID,
		Title:          v.Note.Title,
		ShortTitle:     v.Note.ShortTitle,
		Folder:         v.Note.Folder,
		Category:       v.Note.Category,
		Tags:           v.Tags,
		Entities:       v.Entities,
		Summary:        v.Note.Summary,
		Sensitivity:    v.Note.Sensitivity,
		Completed:      v.Note.Completed,
		PinnedGlobal:   v.Note.PinnedGlobal,
		PinnedCategory: v.Note.PinnedCategory,
		PinnedAt:       v.Note.PinnedAt,
		HasEmbedding:   v.Note.Embedding != "",
		Content:        v.Content,
		Search:         v.Search,
		CreatedAt:      v.Note.CreatedAt,
		UpdatedAt:      v.Note.UpdatedAt,
	}
}

func toNoteResponses(items []service.NoteView) []noteResponse {
	out := make([]noteResponse, 0, len(items))
	for i := range items {
		out = append(out, toNoteResponse(&items[i]))
	}
	return out
}

type noteListResponse struct {
	Items    []noteResponse `json:"items"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}

type createNoteRequest struct {
	Content  string `json:"content"`
	Title    string `json:"title"`
	Category string `json:"category"`
	Folder   string `json:"folder"`
}

func (c createNoteRequest) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Content, validation.Required, validation.Length(1, 100000)),
		validation.Field(&c.Title, validation.Length(0, 200)),
		validation.Field(&c.Category, validation.Length(0, 64)),
		validation.Field(&c.Folder, validation.Length(0, 128)),
	)
}

type updateNoteRequest struct {
	Content        *string   `json:"content"`
	Title          *string   `json:"title"`
	ShortTitle     *string   `json:"short_title"`
	Category       *string   `json:"category"`
	Folder         *string   `json:"folder"`
	Tags           *[]string `json:"tags"`
	Completed      *bool     `json:"completed"`
	PinnedGlobal   *bool     `json:"pinned_global"`
	PinnedCategory *bool     `json:"pinned_category"`
	Reanalyze      bool      `json:"reanalyze"`
}

func (h *NoteHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, validationError(err))
		return
	}

	view, err := h.notes.Create(r.Context(), user, service.CreateNoteInput{
		Content:  req.Content,
		Title:    req.Title,
		Category: req.Category,
		Folder:   req.Folder,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNoteResponse(view))
}

func (h *NoteHandler) Get(w http.ResponseWriter, r *http.Request) {
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
	view, err := h.notes.Get(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteResponse(view))
}

func (h *NoteHandler) Update(w http.ResponseWriter, r *http.Request) {
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
	var req updateNoteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	view, err := h.notes.Update(r.Context(), user, id, service.UpdateNoteInput{
		Content:        req.Content,
		Title:          req.Title,
		ShortTitle:     req.ShortTitle,
		Category:       req.Category,
		Folder:         req.Folder,
		Tags:           req.Tags,
		Completed:      req.Completed,
		PinnedGlobal:   req.PinnedGlobal,
		PinnedCategory: req.PinnedCategory,
		Reanalyze:      req.Reanalyze,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteResponse(view))
}

func (h *NoteHandler) Delete(w http.ResponseWriter, r *http.Request) {
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
	if err := h.notes.Delete(r.Context(), user, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *NoteHandler) listInput(r *http.Request) service.ListNotesInput {
	q := r.URL.Query()
	return service.ListNotesInput{
		Page:             queryInt(r, "page", 1),
		PageSize:         queryInt(r, "page_size", 20),
		Category:         q.Get("category"),
		Folder:           q.Get("folder"),
		Tag:              q.Get("tag"),
		Query:            q.Get("q"),
		TimeStart:        q.Get("time_start"),
		TimeEnd:          q.Get("time_end"),
		IncludeContent:   queryBool(r, "include_content"),
		IncludeCompleted: queryBool(r, "include_completed"),
	}
}

func (h *NoteHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}
	in := h.listInput(r)
	items, total, err := h.notes.List(r.Context(), user, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, noteListResponse{
		Items:    toNoteResponses(items),
		Total:    total,
		Page:     in.Page,
		PageSize: in.PageSize,
	})
}

func (h *NoteHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}
	buckets, group, err := h.notes.Timeline(r.Context(), user, r.URL.Query().Get("group"), h.listInput(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"group": group, "buckets": buckets})
}

func (h *NoteHandler) Random(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}
	view, err := h.notes.Random(r.Context(), user, queryBool(r, "include_completed"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNoteResponse(view))
}

func (h *NoteHandler) Related(w http.ResponseWriter, r *http.Request) {
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
	items, total, mode, err := h.notes.Related(r.Context(), user, id,
		queryInt(r, "limit", service.RelatedDefaultLimit), queryBool(r, "include_completed"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": toNoteResponses(items),
		"total": total,
		"mode":  mode,
	})
}

type searchRequest struct {
	Query            string `json:"query"`
	Limit            int    `json:"limit"`
	IncludeCompleted bool   `json:"include_completed"`
}

func (s searchRequest) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Query, validation.Required, validation.Length(1, 500)),
		validation.Field(&s.Limit, validation.Min(0), validation.Max(100)),
	)
}

func (h *NoteHandler) Search(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}
	var req searchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, validationError(err))
		return
	}

	items, total, err := h.notes.Search(r.Context(), user, req.Query, req.Limit, req.IncludeCompleted)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": toNoteResponses(items),
		"total": total,
	})
}

type rebuildRequest struct {
	Cursor    int64 `json:"cursor"`
	BatchSize int   `json:"batch_size"`
	Reanalyze bool  `json:"reanalyze"`
}

func (h *NoteHandler) RebuildEmbeddings(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}
	req := rebuildRequest{BatchSize: 20}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.BatchSize <= 0 || req.BatchSize > 100 {
		req.BatchSize = 20
	}

	res, err := h.notes.RebuildEmbeddings(r.Context(), user, service.RebuildEmbeddingsInput{
		Cursor:    req.Cursor,
		BatchSize: req.BatchSize,
		Reanalyze: req.Reanalyze,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
