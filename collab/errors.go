package collab

import "errors"

// Failures are contained to the connection that caused them: handlers turn
// them into an "error" signal for the sender and the session stays open.
var (
	ErrNotAuthenticated = errors.New("authentication required")
	ErrAccessDenied     = errors.New("you don't have access to this canvas")
	ErrCanvasNotFound   = errors.New("canvas not found")
	ErrNotJoined        = errors.New("join the canvas first")
	ErrMalformedRequest = errors.New("malformed request")
	ErrSaveFailed       = errors.New("failed to save canvas")
	ErrLoadFailed       = errors.New("failed to load canvas")
)
