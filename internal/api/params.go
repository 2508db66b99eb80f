package api

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
)

const (
	defaultConversationPageSize = 20
	defaultMessagePageSize      = 50
	maxPageSize                 = 100
)

// identity returns the acting user's ID from the verified claims placed
// in context by the identity gate. The second return is false when the
// claims are absent or carry an unparseable subject, which means the
// gate was bypassed or the token was minted with bad claims.
func identity(r *http.Request) (uuid.UUID, bool) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(claims.UserID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// pathID parses the named path segment as a UUID.
func pathID(r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	return id, err == nil
}

// pageParams reads offset pagination from the query string. Out-of-range
// values are clamped rather than rejected.
func pageParams(r *http.Request, defaultSize int) (page, pageSize int) {
	page = queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}

	pageSize = queryInt(r, "limit", defaultSize)
	if pageSize < 1 {
		pageSize = defaultSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
