package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/ternchat/tern/internal/conversation"
)

// messageHandler serves the message routes.
type messageHandler struct {
	store  ConversationStore
	logger *slog.Logger
}

type appendMessageRequest struct {
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
	Role           string `json:"role"`
}

type editMessageRequest struct {
	Content string `json:"content"`
}

func (h *messageHandler) append(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(r)
	if !ok {
		writeError(w, http.StatusForbidden, "Invalid token.")
		return
	}

	var req appendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	var errs []fieldError
	errs = append(errs, validateContent(req.Content)...)
	errs = append(errs, validateRole(req.Role)...)
	if len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	msg, err := h.store.AppendMessage(r.Context(), userID, conversationID, req.Content, req.Role)
	if err != nil {
		h.respondError(w, err, "appending message")
		return
	}

	writeSuccess(w, http.StatusCreated, "Message added successfully", map[string]any{
		"message": msg,
	})
}

func (h *messageHandler) list(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(r)
	if !ok {
		writeError(w, http.StatusForbidden, "Invalid token.")
		return
	}
	conversationID, ok := pathID(r, "conversationId")
	if !ok {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}

	page, pageSize := pageParams(r, defaultMessagePageSize)

	messages, pagination, err := h.store.ListMessages(r.Context(), conversationID, userID, page, pageSize)
	if err != nil {
		h.respondError(w, err, "listing messages")
		return
	}

	writeSuccess(w, http.StatusOK, "", map[string]any{
		"messages":   messages,
		"pagination": pagination,
	})
}

func (h *messageHandler) edit(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(r)
	if !ok {
		writeError(w, http.StatusForbidden, "Invalid token.")
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "Message not found")
		return
	}

	var req editMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if errs := validateContent(req.Content); len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	msg, err := h.store.EditMessage(r.Context(), id, userID, req.Content)
	if err != nil {
		h.respondError(w, err, "editing message")
		return
	}

	writeSuccess(w, http.StatusOK, "Message updated successfully", map[string]any{
		"message": msg,
	})
}

func (h *messageHandler) delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := identity(r)
	if !ok {
		writeError(w, http.StatusForbidden, "Invalid token.")
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, http.StatusNotFound, "Message not found")
		return
	}

	if err := h.store.DeleteMessage(r.Context(), id, userID); err != nil {
		h.respondError(w, err, "deleting message")
		return
	}

	writeSuccess(w, http.StatusOK, "Message deleted successfully", nil)
}

// respondError maps store errors onto the envelope. Author and ownership
// failures are indistinguishable from missing rows.
func (h *messageHandler) respondError(w http.ResponseWriter, err error, action string) {
	switch {
	case errors.Is(err, conversation.ErrMessageNotFound):
		writeError(w, http.StatusNotFound, "Message not found")
	case errors.Is(err, conversation.ErrNotFound):
		writeError(w, http.StatusNotFound, "Conversation not found")
	default:
		h.logger.Error(action+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
