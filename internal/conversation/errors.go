package conversation

import "errors"

// Sentinel errors for conversation and message operations.
// Check with errors.Is().
//
// Both "absent" and "owned by another user" map to the same error on
// purpose: responses must not leak the existence of other users' data.
var (
	// ErrNotFound indicates the conversation does not exist or is not
	// owned by the acting user.
	ErrNotFound = errors.New("conversation not found")

	// ErrMessageNotFound indicates the message does not exist or was not
	// authored by the acting user.
	ErrMessageNotFound = errors.New("message not found")
)
