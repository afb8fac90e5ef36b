package session

import (
	"sync"
	"time"

	"github.com/user/ptyhost/internal/pty"
)

// Session is one supervised child process plus its captured output
// history. Launch parameters are immutable after creation; the running
// and exit fields are mutated exactly once, at the moment the child
// terminates. The PTY handle is owned exclusively by the session and
// released when the session is removed from the registry.
type Session struct {
	ID        string
	PID       int
	Command   string
	Args      []string
	Dir       string
	Cols      uint16
	Rows      uint16
	StartedAt time.Time

	handle *pty.Handle
	buffer *Buffer
	done   chan struct{} // closed once the exit transition is recorded

	mu         sync.Mutex
	running    bool
	exitCode   *int
	exitSignal *int
}

// Summary is a read-only snapshot of session state.
type Summary struct {
	ID         string    `json:"id"`
	PID        int       `json:"pid"`
	Command    string    `json:"command"`
	Args       []string  `json:"args,omitempty"`
	Dir        string    `json:"dir,omitempty"`
	Cols       uint16    `json:"cols"`
	Rows       uint16    `json:"rows"`
	StartedAt  time.Time `json:"started_at"`
	Running    bool      `json:"running"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	ExitSignal *int      `json:"exit_signal,omitempty"`
	EventCount int       `json:"event_count"`
}

// Output is the result of an incremental output read. TotalLines is the
// cumulative event count and is valid as the FromIndex of a follow-up
// read: polling with the previous total never skips or repeats events.
type Output struct {
	Running    bool          `json:"running"`
	ExitCode   *int          `json:"exit_code,omitempty"`
	ExitSignal *int          `json:"exit_signal,omitempty"`
	Events     []OutputEvent `json:"events"`
	TotalLines int           `json:"total_lines"`
}

// appendOutput records one captured output chunk.
func (s *Session) appendOutput(evt OutputEvent) {
	s.buffer.Append(evt)
}

// markExited records the exit transition: exit fields set, running
// flipped, exit marker appended, all under one lock so readers never
// observe a torn update. Called exactly once, from the event pump,
// which forwards the returned marker to output observers.
func (s *Session) markExited(code, sig *int, at time.Time) OutputEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	evt := OutputEvent{
		Kind:       KindExit,
		ExitCode:   code,
		ExitSignal: sig,
		Timestamp:  at,
	}
	s.exitCode = code
	s.exitSignal = sig
	s.running = false
	s.buffer.Append(evt)
	close(s.done)
	return evt
}

// Running reports whether the child is still alive.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Done returns a channel closed once the exit transition is recorded.
func (s *Session) Done() <-chan struct{} { return s.done }

// Summary snapshots the session without blocking concurrent appends.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Summary{
		ID:         s.ID,
		PID:        s.PID,
		Command:    s.Command,
		Args:       append([]string(nil), s.Args...),
		Dir:        s.Dir,
		Cols:       s.Cols,
		Rows:       s.Rows,
		StartedAt:  s.StartedAt,
		Running:    s.running,
		ExitCode:   s.exitCode,
		ExitSignal: s.exitSignal,
		EventCount: s.buffer.Len(),
	}
}

// Output returns the session's state plus every buffered event at
// logical offset >= fromIndex. The lock is held across both reads so
// the running/exit fields are always consistent with the exit marker's
// presence in the returned events.
func (s *Session) Output(fromIndex int) Output {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, total := s.buffer.ReadFrom(fromIndex)
	return Output{
		Running:    s.running,
		ExitCode:   s.exitCode,
		ExitSignal: s.exitSignal,
		Events:     events,
		TotalLines: total,
	}
}
