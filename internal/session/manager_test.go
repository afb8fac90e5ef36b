package session

import (
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
)

func newTestManager() *Manager {
	return NewManager(Config{})
}

// waitForExit polls GetOutput until the session reports running=false.
func waitForExit(t *testing.T, m *Manager, id string, timeout time.Duration) Output {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		out, err := m.GetOutput(id, 0)
		if err != nil {
			t.Fatalf("GetOutput: %v", err)
		}
		if !out.Running {
			return out
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("session %s still running after %s", id, timeout)
	return Output{}
}

func stdoutText(events []OutputEvent) string {
	var b strings.Builder
	for _, evt := range events {
		if evt.Kind == KindStdout {
			b.WriteString(evt.Text)
		}
	}
	return b.String()
}

func TestStartEchoAndPoll(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	sum, err := m.Start(StartRequest{Command: "echo", Args: []string{"Hello"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sum.ID == "" || sum.PID == 0 {
		t.Fatalf("summary missing id or pid: %+v", sum)
	}
	if !sum.Running {
		t.Error("new session must report running")
	}

	out := waitForExit(t, m, sum.ID, 5*time.Second)
	if out.ExitCode == nil || *out.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", out.ExitCode)
	}
	if got := stdoutText(out.Events); !strings.Contains(got, "Hello") {
		t.Errorf("stdout %q does not contain %q", got, "Hello")
	}

	// The exit marker is the final buffered event.
	last := out.Events[len(out.Events)-1]
	if last.Kind != KindExit {
		t.Errorf("last event kind = %q, want %q", last.Kind, KindExit)
	}
}

func TestStartSpawnFailure(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	_, err := m.Start(StartRequest{Command: "/nonexistent/definitely-not-a-binary"})
	if !errors.Is(err, ErrSpawnFailed) {
		t.Fatalf("error = %v, want ErrSpawnFailed", err)
	}
	if got := len(m.List()); got != 0 {
		t.Errorf("registry has %d sessions after failed spawn, want 0", got)
	}
}

func TestStartEmptyCommand(t *testing.T) {
	m := newTestManager()
	if _, err := m.Start(StartRequest{}); !errors.Is(err, ErrSpawnFailed) {
		t.Fatalf("error = %v, want ErrSpawnFailed", err)
	}
}

// Exactly one of {running with no exit fields, finished with exit
// fields} must hold at every observation.
func TestRunningExitInvariant(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	sum, err := m.Start(StartRequest{Command: "sh", Args: []string{"-c", "sleep 0.1"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		out, err := m.GetOutput(sum.ID, 0)
		if err != nil {
			t.Fatalf("GetOutput: %v", err)
		}
		if out.Running {
			if out.ExitCode != nil || out.ExitSignal != nil {
				t.Fatalf("running session has exit fields set: %+v", out)
			}
		} else {
			if out.ExitCode == nil && out.ExitSignal == nil {
				t.Fatalf("finished session has no exit fields")
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session never exited")
}

func TestWriteInputInteractive(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	sum, err := m.Start(StartRequest{Command: "cat"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := m.WriteInput(sum.ID, "ping\n"); err != nil {
		t.Fatalf("WriteInput: %v", err)
	}

	// The PTY echoes input back, so "ping" must appear in the output.
	deadline := time.Now().Add(5 * time.Second)
	for {
		out, err := m.GetOutput(sum.ID, 0)
		if err != nil {
			t.Fatalf("GetOutput: %v", err)
		}
		if strings.Contains(stdoutText(out.Events), "ping") {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("echoed input never observed")
		}
		time.Sleep(20 * time.Millisecond)
	}

	if err := m.Stop(sum.ID); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	// Captured output survives the stop.
	out := waitForExit(t, m, sum.ID, 5*time.Second)
	if !strings.Contains(stdoutText(out.Events), "ping") {
		t.Error("captured output lost after stop")
	}
}

func TestWriteInputNotFound(t *testing.T) {
	m := newTestManager()
	if err := m.WriteInput("no-such-id", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestWriteInputFinishedSessionIsNoop(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	sum, err := m.Start(StartRequest{Command: "true"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForExit(t, m, sum.ID, 5*time.Second)

	if err := m.WriteInput(sum.ID, "ignored"); err != nil {
		t.Errorf("WriteInput on finished session = %v, want nil", err)
	}
}

func TestStopIdempotentOnFinished(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	sum, err := m.Start(StartRequest{Command: "true"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForExit(t, m, sum.ID, 5*time.Second)

	if err := m.Stop(sum.ID); err != nil {
		t.Errorf("Stop on finished session = %v, want nil", err)
	}
	if err := m.Stop(sum.ID); err != nil {
		t.Errorf("second Stop = %v, want nil", err)
	}
}

func TestStopNotFound(t *testing.T) {
	m := newTestManager()
	if err := m.Stop("no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestRemoveRefusesRunning(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	sum, err := m.Start(StartRequest{Command: "sleep", Args: []string{"10"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := m.Remove(sum.ID); !errors.Is(err, ErrStillRunning) {
		t.Fatalf("Remove running session = %v, want ErrStillRunning", err)
	}

	if err := m.Stop(sum.ID); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	waitForExit(t, m, sum.ID, 5*time.Second)

	if err := m.Remove(sum.ID); err != nil {
		t.Fatalf("Remove finished session: %v", err)
	}
	if _, err := m.Get(sum.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove = %v, want ErrNotFound", err)
	}
	if err := m.Remove(sum.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Remove = %v, want ErrNotFound", err)
	}
}

func TestRemoveFinishedLeavesRunning(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	finished, err := m.Start(StartRequest{Command: "true"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForExit(t, m, finished.ID, 5*time.Second)

	running, err := m.Start(StartRequest{Command: "sleep", Args: []string{"10"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if got := m.RemoveFinished(); got != 1 {
		t.Errorf("RemoveFinished() = %d, want 1", got)
	}
	if _, err := m.Get(finished.ID); !errors.Is(err, ErrNotFound) {
		t.Error("finished session still registered")
	}
	if _, err := m.Get(running.ID); err != nil {
		t.Errorf("running session gone: %v", err)
	}
}

func TestListConcurrentSessions(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	type started struct {
		sum Summary
		err error
	}
	results := make(chan started, 3)
	for i := 0; i < 3; i++ {
		go func() {
			sum, err := m.Start(StartRequest{Command: "sleep", Args: []string{"10"}})
			results <- started{sum, err}
		}()
	}

	ids := make(map[string]bool)
	for i := 0; i < 3; i++ {
		r := <-results
		if r.err != nil {
			t.Fatalf("Start: %v", r.err)
		}
		ids[r.sum.ID] = true
	}
	if len(ids) != 3 {
		t.Fatalf("expected 3 distinct ids, got %d", len(ids))
	}

	list := m.List()
	if len(list) != 3 {
		t.Fatalf("List() = %d entries, want 3", len(list))
	}
	for _, sum := range list {
		if !ids[sum.ID] {
			t.Errorf("unknown id %q in list", sum.ID)
		}
		if sum.Command != "sleep" {
			t.Errorf("command = %q, want sleep", sum.Command)
		}
		if sum.PID == 0 {
			t.Errorf("session %s has no pid", sum.ID)
		}
	}
}

func TestGetOutputIncrementalPolling(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	sum, err := m.Start(StartRequest{Command: "sh", Args: []string{"-c", "echo one; echo two; echo three"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var all []OutputEvent
	offset := 0
	deadline := time.Now().Add(5 * time.Second)
	for {
		out, err := m.GetOutput(sum.ID, offset)
		if err != nil {
			t.Fatalf("GetOutput: %v", err)
		}
		if out.TotalLines-offset != len(out.Events) {
			t.Fatalf("count/slice mismatch: total %d, offset %d, %d events", out.TotalLines, offset, len(out.Events))
		}
		all = append(all, out.Events...)
		offset = out.TotalLines
		if !out.Running && offset == out.TotalLines && len(out.Events) == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("session never drained")
		}
		time.Sleep(10 * time.Millisecond)
	}

	text := stdoutText(all)
	for _, want := range []string{"one", "two", "three"} {
		if !strings.Contains(text, want) {
			t.Errorf("incremental output %q missing %q", text, want)
		}
	}
}

func TestShutdownTerminatesChildren(t *testing.T) {
	m := newTestManager()

	sum, err := m.Start(StartRequest{Command: "sleep", Args: []string{"30"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	m.Shutdown()

	out := waitForExit(t, m, sum.ID, 5*time.Second)
	if out.ExitSignal == nil {
		t.Errorf("expected a terminating signal, got code %v", out.ExitCode)
	}
}

func TestStartViaShell(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()

	sum, err := m.Start(StartRequest{Command: "echo", Args: []string{"a b"}, ViaShell: true})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	out := waitForExit(t, m, sum.ID, 5*time.Second)
	if got := stdoutText(out.Events); !strings.Contains(got, "a b") {
		t.Errorf("quoting lost through the shell: output %q", got)
	}
}

func TestStartClampsTerminalSize(t *testing.T) {
	m := NewManager(Config{DefaultCols: 200, DefaultRows: 50})
	defer m.Shutdown()

	sum, err := m.Start(StartRequest{Command: "echo", Args: []string{"default"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if sum.Cols != 200 || sum.Rows != 50 {
		t.Errorf("size = %dx%d, want configured 200x50", sum.Cols, sum.Rows)
	}

	big, err := m.Start(StartRequest{Command: "echo", Args: []string{"big"}, Cols: 70000, Rows: 70000})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if big.Cols != math.MaxUint16 || big.Rows != math.MaxUint16 {
		t.Errorf("oversized request = %dx%d, want pinned to %d", big.Cols, big.Rows, math.MaxUint16)
	}
}

func TestNegativeDefaultSizeFallsBack(t *testing.T) {
	m := NewManager(Config{DefaultCols: -5, DefaultRows: -5})
	defer m.Shutdown()

	if m.defCols != defaultCols || m.defRows != defaultRows {
		t.Errorf("defaults = %dx%d, want %dx%d", m.defCols, m.defRows, defaultCols, defaultRows)
	}
}

type recordingObserver struct {
	mu      sync.Mutex
	outputs []OutputEvent
	exited  chan Summary
}

func (o *recordingObserver) SessionStarted(Summary) {}

func (o *recordingObserver) SessionOutput(_ string, evt OutputEvent) {
	o.mu.Lock()
	o.outputs = append(o.outputs, evt)
	o.mu.Unlock()
}

func (o *recordingObserver) SessionExited(sum Summary) {
	o.exited <- sum
}

func TestExitMarkerReachesOutputObservers(t *testing.T) {
	obs := &recordingObserver{exited: make(chan Summary, 1)}
	m := NewManager(Config{}, obs)
	defer m.Shutdown()

	if _, err := m.Start(StartRequest{Command: "sh", Args: []string{"-c", "exit 7"}}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-obs.exited:
	case <-time.After(5 * time.Second):
		t.Fatal("exit notification never arrived")
	}

	// The exit marker is pushed to output observers before the
	// exited notification, so it must already be recorded.
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if len(obs.outputs) == 0 {
		t.Fatal("no output notifications recorded")
	}
	last := obs.outputs[len(obs.outputs)-1]
	if last.Kind != KindExit {
		t.Errorf("last observed event kind = %q, want %q", last.Kind, KindExit)
	}
	if last.ExitCode == nil || *last.ExitCode != 7 {
		t.Errorf("observed exit code = %v, want 7", last.ExitCode)
	}
}
