package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ternchat/tern/internal/completion"
)

// chatHandler forwards chat turns to the completion service.
type chatHandler struct {
	generator Generator
	logger    *slog.Logger
}

type generateRequest struct {
	Message string            `json:"message"`
	History []completion.Turn `json:"history"`
}

func (h *chatHandler) generate(w http.ResponseWriter, r *http.Request) {
	if _, ok := identity(r); !ok {
		writeError(w, http.StatusForbidden, "Invalid token.")
		return
	}

	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.History) == 0 {
		if errs := validateContent(req.Message); len(errs) > 0 {
			writeValidationError(w, errs)
			return
		}
	}

	text, err := h.generator.Generate(r.Context(), req.Message, req.History)
	if err != nil {
		h.respondError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "", map[string]any{"response": text})
}

// respondError surfaces upstream failure classes distinctly: credential
// problems, quota exhaustion, and invalid requests each map to their own
// status. Anything else is a bad gateway.
func (h *chatHandler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, completion.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Completion service rejected the configured credentials")
	case errors.Is(err, completion.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "Completion service quota exceeded")
	case errors.Is(err, completion.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "Completion service rejected the request")
	default:
		h.logger.Error("generation failed", "error", err)
		writeError(w, http.StatusBadGateway, "Failed to generate response")
	}
}
