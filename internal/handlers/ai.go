package handlers

import (
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/Ubastic/notemind/internal/service"
)

// AIHandler serves question answering and period summaries over the user's
// notes. Both degrade to keyword heuristics when the provider is off.
type AIHandler struct {
	notes  *service.NoteService
	users  *service.UserService
	logger *zap.SugaredLogger
}

func NewAIHandler(notes *service.NoteService, users *service.UserService, logger *zap.SugaredLogger) *AIHandler {
	return &AIHandler{notes: notes, users: users, logger: logger}
}

type askRequest struct {
	Question string `json:"question"`
}

func (a askRequest) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Question, validation.Required, validation.Length(1, 1000)),
	)
}

func (h *AIHandler) Ask(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, validationError(err))
		return
	}

	answer, notes, err := h.notes.Ask(r.Context(), user, req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"answer": answer,
		"notes":  toNoteResponses(notes),
	})
}

type summarizeRequest struct {
	Days int `json:"days"`
}

func (h *AIHandler) Summarize(w http.ResponseWriter, r *http.Request) {
	user, err := currentUser(r, h.users)
	if err != nil {
		writeError(w, err)
		return
	}
	req := summarizeRequest{Days: 7}
	if r.ContentLength > 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, err)
			return
		}
	}
	if req.Days < 1 {
		req.Days = 7
	}

	summary, err := h.notes.Summarize(r.Context(), user, req.Days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary": summary,
		"days":    req.Days,
	})
}
