package completion

import "errors"

// Upstream failure classes. Check with errors.Is().
//
// The generative-language API is an opaque collaborator; its failures are
// folded into three classes the HTTP layer can map to distinct outcomes,
// plus a catch-all for everything else.
var (
	// ErrUnauthorized indicates the upstream rejected our API credentials.
	ErrUnauthorized = errors.New("completion service rejected credentials")

	// ErrRateLimited indicates upstream quota exhaustion.
	ErrRateLimited = errors.New("completion service quota exhausted")

	// ErrBadRequest indicates an invalid model or request parameters.
	ErrBadRequest = errors.New("completion service rejected request")

	// ErrUpstream is the catch-all for other completion-service failures.
	ErrUpstream = errors.New("completion service failure")
)
