// Package conversation provides conversation and message persistence.
//
// Responsibilities: CRUD and archival for conversations, append/edit/delete
// for messages, and the derived statistics that tie the two together
// (messageCount, lastActivity, first-message title derivation).
//
// Every operation takes the acting user's ID and verifies the full
// ownership chain before mutating; a conversation or message that exists
// but belongs to someone else is reported as not found, so callers cannot
// distinguish ownership failures from absence.
package conversation

import (
	"time"

	"github.com/google/uuid"
)

// Role constants define valid message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is a chat thread owned by a single user.
//
// MessageCount always equals the number of stored messages referencing
// this conversation; it is maintained incrementally on append/delete
// inside the same transaction as the message write.
type Conversation struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"userId"`
	Title        string    `json:"title"`
	IsArchived   bool      `json:"isArchived"`
	MessageCount int       `json:"messageCount"`
	LastActivity time.Time `json:"lastActivity"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Message is a single turn inside a conversation. UserID is the acting
// account that appended it; edits are restricted to that account.
type Message struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversationId"`
	UserID         uuid.UUID  `json:"userId"`
	Role           string     `json:"role"`
	Content        string     `json:"content"`
	IsEdited       bool       `json:"isEdited"`
	EditedAt       *time.Time `json:"editedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Patch carries the updatable conversation fields; nil means leave as is.
type Patch struct {
	Title      *string
	IsArchived *bool
}

// Pagination describes one page of an offset-paginated listing.
// Total is the number of pages, not items.
type Pagination struct {
	Current int  `json:"current"`
	Total   int  `json:"total"`
	HasNext bool `json:"hasNext"`
	HasPrev bool `json:"hasPrev"`
}

// paginate derives pagination info from a 1-based page, a page size,
// and the total item count.
func paginate(page, pageSize, totalItems int) Pagination {
	totalPages := (totalItems + pageSize - 1) / pageSize
	return Pagination{
		Current: page,
		Total:   totalPages,
		HasNext: page*pageSize < totalItems,
		HasPrev: page > 1,
	}
}
