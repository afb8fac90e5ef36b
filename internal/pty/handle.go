package pty

import (
	"errors"
	"os"
	"os/exec"
	"sync"
	"syscall"

	creackpty "github.com/creack/pty"
)

// Handle wraps a child process running inside a PTY. Exactly one exit
// event is emitted, always after every output event, and then the
// events channel is closed.
type Handle struct {
	cmd  *exec.Cmd
	ptmx *os.File

	events   chan Event
	readDone chan struct{}

	mu        sync.Mutex
	closed    bool
	closeOnce sync.Once
}

// Start spawns the command described by spec inside a new PTY.
func Start(spec Spec) (*Handle, error) {
	if len(spec.Argv) == 0 {
		return nil, errors.New("pty: argv must not be empty")
	}

	cmd := exec.Command(spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = spec.Env
	}

	cols := spec.Cols
	rows := spec.Rows
	if cols == 0 {
		cols = 120
	}
	if rows == 0 {
		rows = 30
	}

	ptmx, err := creackpty.StartWithSize(cmd, &creackpty.Winsize{
		Cols: cols,
		Rows: rows,
	})
	if err != nil {
		return nil, err
	}

	h := &Handle{
		cmd:      cmd,
		ptmx:     ptmx,
		events:   make(chan Event, 1024),
		readDone: make(chan struct{}),
	}

	go h.readPump()
	go h.waitExit()

	return h, nil
}

// readPump reads data from the PTY fd and sends EventOutput events.
// It runs until the PTY is closed or any read error occurs.
func (h *Handle) readPump() {
	defer close(h.readDone)

	buf := make([]byte, 4096)
	for {
		n, err := h.ptmx.Read(buf)
		if n > 0 {
			h.events <- Event{
				Type: EventOutput,
				Data: string(buf[:n]),
			}
		}
		if err != nil {
			return
		}
	}
}

// waitExit waits for the child process to exit and for the read pump to
// drain, then sends the final EventExit and closes the events channel.
func (h *Handle) waitExit() {
	err := h.cmd.Wait()
	<-h.readDone

	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	code, sig := exitStatus(h.cmd, err)
	h.events <- Event{
		Type:       EventExit,
		ExitCode:   code,
		ExitSignal: sig,
	}
	close(h.events)
}

// exitStatus extracts the exit code or terminating signal from a
// finished command. A signaled child has no exit code and vice versa.
func exitStatus(cmd *exec.Cmd, waitErr error) (code, sig *int) {
	state := cmd.ProcessState
	if state == nil {
		c := -1
		if waitErr == nil {
			c = 0
		}
		return &c, nil
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		s := int(ws.Signal())
		return nil, &s
	}
	c := state.ExitCode()
	return &c, nil
}

// PID returns the OS process id of the child.
func (h *Handle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Events returns the read-only channel of handle events.
func (h *Handle) Events() <-chan Event { return h.events }

// Write sends data to the PTY (and therefore to the child's stdin).
func (h *Handle) Write(data []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return 0, errors.New("pty: handle is closed")
	}
	return h.ptmx.Write(data)
}

// Resize changes the PTY window size.
func (h *Handle) Resize(cols, rows uint16) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return errors.New("pty: handle is closed")
	}
	return creackpty.Setsize(h.ptmx, &creackpty.Winsize{
		Cols: cols,
		Rows: rows,
	})
}

// Terminate sends SIGTERM to the child process. It is a no-op once the
// child has exited.
func (h *Handle) Terminate() error {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()

	if closed || h.cmd.Process == nil {
		return nil
	}
	return h.cmd.Process.Signal(syscall.SIGTERM)
}

// Close terminates the child process (SIGTERM) and closes the PTY fd.
// It is safe to call Close multiple times.
func (h *Handle) Close() error {
	var err error
	h.closeOnce.Do(func() {
		h.mu.Lock()
		h.closed = true
		h.mu.Unlock()

		if h.cmd.Process != nil {
			_ = h.cmd.Process.Signal(syscall.SIGTERM)
		}

		err = h.ptmx.Close()
	})
	return err
}
