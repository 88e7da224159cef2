package session

import "errors"

var (
	ErrInvalidConfig          = errors.New("invalid session configuration")
	ErrSessionNotFound        = errors.New("session not found")
	ErrSessionNotInProgress   = errors.New("session is not in progress")
	ErrItemMismatch           = errors.New("item is not the one currently issued")
	ErrSessionStillInProgress = errors.New("session is still in progress")
	// ErrConflict is returned by a Store when an event with the same
	// sequence number was already committed.
	ErrConflict = errors.New("session was modified concurrently")
)

// Error codes exposed to callers.
const (
	CodeInvalidConfig          = "InvalidConfig"
	CodeSessionNotFound        = "SessionNotFound"
	CodeSessionNotInProgress   = "SessionNotInProgress"
	CodeItemMismatch           = "ItemMismatch"
	CodeSessionStillInProgress = "SessionStillInProgress"
	CodeConflict               = "Conflict"
	CodeInternal               = "Internal"
)

// Code names err for the external contract. Unknown errors are Internal.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidConfig):
		return CodeInvalidConfig
	case errors.Is(err, ErrSessionNotFound):
		return CodeSessionNotFound
	case errors.Is(err, ErrSessionNotInProgress):
		return CodeSessionNotInProgress
	case errors.Is(err, ErrItemMismatch):
		return CodeItemMismatch
	case errors.Is(err, ErrSessionStillInProgress):
		return CodeSessionStillInProgress
	case errors.Is(err, ErrConflict):
		return CodeConflict
	}
	return CodeInternal
}
