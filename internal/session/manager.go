package session

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/ptyhost/internal/pty"
)

const (
	defaultCols = 120
	defaultRows = 30
)

// StartRequest describes a session to launch.
type StartRequest struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Dir     string            `json:"dir,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	Cols    int               `json:"cols,omitempty"`
	Rows    int               `json:"rows,omitempty"`
	// ViaShell routes the command line through the system shell
	// instead of exec'ing the binary directly.
	ViaShell bool `json:"via_shell,omitempty"`
}

// Observer is notified of session lifecycle milestones. Implementations
// must not block: they are called from the per-session event pump.
type Observer interface {
	SessionStarted(sum Summary)
	SessionOutput(id string, evt OutputEvent)
	SessionExited(sum Summary)
}

// Config tunes the Manager.
type Config struct {
	BufferCapacity int
	DefaultCols    int
	DefaultRows    int
}

// Manager is the session registry and lifecycle controller: the sole
// place sessions are created, enumerated, or destroyed. Sessions are
// never removed automatically, even long after exit, so callers can
// read final output after the child has died.
type Manager struct {
	cfg       Config
	defCols   uint16
	defRows   uint16
	observers []Observer

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty Manager. Observers receive lifecycle and
// output notifications; a nil observer slice is fine.
func NewManager(cfg Config, observers ...Observer) *Manager {
	if cfg.BufferCapacity <= 0 {
		cfg.BufferCapacity = DefaultBufferCapacity
	}
	return &Manager{
		cfg:       cfg,
		defCols:   clampSize(cfg.DefaultCols, defaultCols),
		defRows:   clampSize(cfg.DefaultRows, defaultRows),
		observers: observers,
		sessions:  make(map[string]*Session),
	}
}

// clampSize converts a requested terminal dimension to the PTY's uint16
// range. Non-positive values take the fallback; oversized values pin to
// the maximum instead of wrapping.
func clampSize(v int, fallback uint16) uint16 {
	if v <= 0 {
		return fallback
	}
	if v > math.MaxUint16 {
		return math.MaxUint16
	}
	return uint16(v)
}

// Start spawns a child process inside a PTY and registers a new session
// for it, returning immediately without waiting for output. On spawn
// failure nothing is registered and the error wraps ErrSpawnFailed.
func (m *Manager) Start(req StartRequest) (Summary, error) {
	sess, err := m.startSession(req)
	if err != nil {
		return Summary{}, err
	}
	return sess.Summary(), nil
}

func (m *Manager) startSession(req StartRequest) (*Session, error) {
	if req.Command == "" {
		return nil, fmt.Errorf("%w: empty command", ErrSpawnFailed)
	}

	cols := clampSize(req.Cols, m.defCols)
	rows := clampSize(req.Rows, m.defRows)

	argv := pty.BuildArgv(req.Command, req.Args, req.ViaShell)
	handle, err := pty.Start(pty.Spec{
		Argv: argv,
		Dir:  req.Dir,
		Env:  buildEnv(req.Env),
		Cols: cols,
		Rows: rows,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}

	sess := &Session{
		ID:        uuid.NewString(),
		PID:       handle.PID(),
		Command:   req.Command,
		Args:      append([]string(nil), req.Args...),
		Dir:       req.Dir,
		Cols:      cols,
		Rows:      rows,
		StartedAt: time.Now().UTC(),
		handle:    handle,
		buffer:    NewBuffer(m.cfg.BufferCapacity),
		done:      make(chan struct{}),
		running:   true,
	}

	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()

	go m.pump(sess)

	slog.Info("session started", "session_id", sess.ID, "pid", sess.PID, "command", sess.Command)
	m.notifyStarted(sess.Summary())
	return sess, nil
}

// pump drains the handle's event channel, appending output to the
// session buffer and recording the exit transition. It is the only
// writer of a session's mutable state.
func (m *Manager) pump(sess *Session) {
	for evt := range sess.handle.Events() {
		switch evt.Type {
		case pty.EventOutput:
			out := OutputEvent{
				Kind:      KindStdout,
				Text:      evt.Data,
				Timestamp: time.Now().UTC(),
			}
			sess.appendOutput(out)
			m.notifyOutput(sess.ID, out)
		case pty.EventExit:
			out := sess.markExited(evt.ExitCode, evt.ExitSignal, time.Now().UTC())
			slog.Info("session exited",
				"session_id", sess.ID,
				"exit_code", intOrNil(evt.ExitCode),
				"exit_signal", intOrNil(evt.ExitSignal))
			m.notifyOutput(sess.ID, out)
			m.notifyExited(sess.Summary())
		}
	}
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return sess, nil
}

// List snapshots every registered session, running or finished, sorted
// by start time. It never blocks concurrent output appends.
func (m *Manager) List() []Summary {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.RUnlock()

	out := make([]Summary, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sess.Summary())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// WriteInput forwards raw text to the session's PTY input stream
// unmodified. Writing to a finished session is a no-op, not an error;
// only a missing identifier fails.
func (m *Manager) WriteInput(id string, data string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	if !sess.Running() {
		return nil
	}
	if _, err := sess.handle.Write([]byte(data)); err != nil {
		return fmt.Errorf("session %q: write input: %w", id, err)
	}
	return nil
}

// GetOutput returns the session's running/exit state plus all events at
// logical offset >= fromIndex, as one consistent snapshot.
func (m *Manager) GetOutput(id string, fromIndex int) (Output, error) {
	sess, err := m.Get(id)
	if err != nil {
		return Output{}, err
	}
	return sess.Output(fromIndex), nil
}

// Resize changes a session's terminal dimensions.
func (m *Manager) Resize(id string, cols, rows int) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	if cols <= 0 || rows <= 0 {
		return fmt.Errorf("session %q: invalid size %dx%d", id, cols, rows)
	}
	if !sess.Running() {
		return nil
	}
	return sess.handle.Resize(clampSize(cols, m.defCols), clampSize(rows, m.defRows))
}

// Stop sends SIGTERM to the session's child and returns without waiting
// for it to die: the running=false transition still happens
// asynchronously via the exit event. Stopping an already-finished
// session succeeds trivially.
func (m *Manager) Stop(id string) error {
	sess, err := m.Get(id)
	if err != nil {
		return err
	}
	if !sess.Running() {
		return nil
	}
	if err := sess.handle.Terminate(); err != nil {
		// The child may have exited between the check and the signal.
		slog.Debug("terminate failed", "session_id", id, "error", err)
	}
	return nil
}

// Remove deletes a finished session from the registry, releasing its
// PTY handle. Removing a running session fails with ErrStillRunning.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	sess, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if sess.Running() {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrStillRunning, id)
	}
	delete(m.sessions, id)
	m.mu.Unlock()

	_ = sess.handle.Close()
	slog.Info("session removed", "session_id", id)
	return nil
}

// RemoveFinished deletes every finished session, leaving running ones
// untouched, and returns the number removed.
func (m *Manager) RemoveFinished() int {
	m.mu.Lock()
	removed := make([]*Session, 0)
	for id, sess := range m.sessions {
		if !sess.Running() {
			delete(m.sessions, id)
			removed = append(removed, sess)
		}
	}
	m.mu.Unlock()

	for _, sess := range removed {
		_ = sess.handle.Close()
	}
	if len(removed) > 0 {
		slog.Info("finished sessions removed", "count", len(removed))
	}
	return len(removed)
}

// Shutdown sends a termination signal to every still-registered live
// child. Failures to kill an individual child are swallowed so that
// shutdown always completes.
func (m *Manager) Shutdown() {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.RUnlock()

	for _, sess := range sessions {
		if sess.Running() {
			if err := sess.handle.Terminate(); err != nil {
				slog.Debug("shutdown terminate failed", "session_id", sess.ID, "error", err)
			}
		}
	}
}

func (m *Manager) notifyStarted(sum Summary) {
	for _, o := range m.observers {
		o.SessionStarted(sum)
	}
}

func (m *Manager) notifyOutput(id string, evt OutputEvent) {
	for _, o := range m.observers {
		o.SessionOutput(id, evt)
	}
}

func (m *Manager) notifyExited(sum Summary) {
	for _, o := range m.observers {
		o.SessionExited(sum)
	}
}

// buildEnv layers the request's environment on top of the parent's,
// forcing a terminal-aware TERM.
func buildEnv(extra map[string]string) []string {
	env := append([]string(nil), os.Environ()...)
	env = append(env, "TERM=xterm-256color")
	for k, v := range extra {
		env = append(env, k+"="+v)
	}
	return env
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
