package session

import "errors"

// Sentinel errors returned by the registry and lifecycle operations.
// Callers match them with errors.Is; the API layer maps them to HTTP
// status codes. One session's failure never affects another.
var (
	// ErrNotFound means the session identifier is not registered.
	ErrNotFound = errors.New("session not found")
	// ErrSpawnFailed means the underlying PTY or process creation failed.
	ErrSpawnFailed = errors.New("spawn failed")
	// ErrStillRunning means cleanup was requested before the child exited.
	ErrStillRunning = errors.New("session still running")
	// ErrTimeout means the wait-mode deadline elapsed before exit.
	ErrTimeout = errors.New("timeout")
)
