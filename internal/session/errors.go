package session

import "errors"

// Error taxonomy surfaced to HTTP handlers and websocket clients. Handlers
// map these to statuses / error events; they never leak to other
// participants.
var (
	ErrNoActiveSession = errors.New("no active session for group")
	ErrSessionExists   = errors.New("group already has an active session")
	ErrSessionFull     = errors.New("session is full")
	ErrInvalidPayload  = errors.New("invalid payload")
	ErrNotAllowed      = errors.New("not allowed")
)
