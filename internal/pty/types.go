package pty

// EventType distinguishes the kind of event produced by a Handle.
type EventType int

const (
	// EventOutput indicates that new data was read from the PTY.
	EventOutput EventType = iota
	// EventExit indicates that the child process has exited.
	EventExit
)

// Event is a single notification emitted by a Handle. Output events
// carry the raw bytes read from the PTY as Data; the final exit event
// carries the child's exit code or terminating signal instead.
type Event struct {
	Type       EventType
	Data       string
	ExitCode   *int
	ExitSignal *int
}

// Spec describes the child process to spawn inside a PTY.
type Spec struct {
	Argv []string
	Dir  string
	Env  []string
	Cols uint16
	Rows uint16
}
