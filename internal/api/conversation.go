package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ternchat/tern/internal/conversation"
)

// conversationHandler serves the conversation CRUD routes.
type conversationHandler struct {
	store  ConversationStore
	logger *slog.Logger
}

type conversationRequest struct {
	Title string `json:"title"`
}

type archiveRequest struct {
	Archived *bool `json:"archived"`
}

func (h *conversationHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(r)
	if !ok {
		writeError(w, http.StatusForbidden, "Invalid token.")
		return
	}

	archived := r.URL.Query().Get("archived") == "true"
	page, pageSize := pageParams(r, defaultConversationPageSize)

	items, pagination, err := h.store.List(r.Context(), userID, archived, page, pageSize)
	if err != nil {
		h.logger.Error("listing conversations failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeSuccess(w, http.StatusOK, "", map[string]any{
		"conversations": items,
		"pagination":    pagination,
	})
}

func (h *conversationHandler) get(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(r)
	if !ok {
		writeError(w, http.StatusForbidden, "Invalid token.")
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	conv, messages, err := h.store.Get(r.Context(), id, userID)
	if err != nil {
		h.respondError(w, err, "fetching conversation")
		return
	}

	writeSuccess(w, http.StatusOK, "", map[string]any{
		"conversation": conv,
		"messages":     messages,
	})
}

func (h *conversationHandler) create(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(r)
	if !ok {
		writeError(w, http.StatusForbidden, "Invalid token.")
		return
	}

	// An empty body is allowed; the title simply defaults.
	var req conversationRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := validateTitle(req.Title); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	conv, err := h.store.Create(r.Context(), userID, req.Title)
	if err != nil {
		h.logger.Error("creating conversation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeSuccess(w, http.StatusCreated, "Conversation created successfully", map[string]any{
		"conversation": conv,
	})
}

func (h *conversationHandler) update(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(r)
	if !ok {
		writeError(w, http.StatusForbidden, "Invalid token.")
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	var req conversationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := validateTitle(req.Title); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	var patch conversation.Patch
	if req.Title != "" {
		patch.Title = &req.Title
	}

	conv, err := h.store.Update(r.Context(), id, userID, patch)
	if err != nil {
		h.respondError(w, err, "updating conversation")
		return
	}

	writeSuccess(w, http.StatusOK, "Conversation updated successfully", map[string]any{
		"conversation": conv,
	})
}

func (h *conversationHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(r)
	if !ok {
		writeError(w, http.StatusForbidden, "Invalid token.")
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	if err := h.store.Delete(r.Context(), id, userID); err != nil {
		h.respondError(w, err, "deleting conversation")
		return
	}

	writeSuccess(w, http.StatusOK, "Conversation deleted successfully", nil)
}

func (h *conversationHandler) archive(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(r)
	if !ok {
		writeError(w, http.StatusForbidden, "Invalid token.")
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	// Absent body or field means archive; {"archived": false} unarchives.
	archived := true
	var req archiveRequest
	if err := decodeJSON(r, &req); err == nil && req.Archived != nil {
		archived = *req.Archived
	}

	conv, err := h.store.SetArchived(r.Context(), id, userID, archived)
	if err != nil {
		h.respondError(w, err, "archiving conversation")
		return
	}

	verb := "archived"
	if !archived {
		verb = "unarchived"
	}
	writeSuccess(w, http.StatusOK, "Conversation "+verb+" successfully", map[string]any{
		"conversation": conv,
	})
}

// respondError maps store errors onto the envelope. Ownership failures
// surface as the same 404 as a missing row so callers cannot probe for
// other users' conversations.
func (h *conversationHandler) respondError(w http.ResponseWriter, err error, action string) {
	if errors.Is(err, conversation.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	h.logger.Error(action+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Internal server error")
}
