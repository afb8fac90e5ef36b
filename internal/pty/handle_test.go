package pty

import (
	"strings"
	"testing"
	"time"
)

// collectEvents drains the handle's event channel until it closes or
// the timeout elapses, returning output text and the final exit event.
func collectEvents(t *testing.T, h *Handle, timeout time.Duration) (string, *Event) {
	t.Helper()

	var out strings.Builder
	var exit *Event
	deadline := time.After(timeout)
	for {
		select {
		case evt, ok := <-h.Events():
			if !ok {
				return out.String(), exit
			}
			switch evt.Type {
			case EventOutput:
				out.WriteString(evt.Data)
			case EventExit:
				e := evt
				exit = &e
			}
		case <-deadline:
			t.Fatalf("timed out waiting for events")
		}
	}
}

func TestStartCapturesOutputAndExit(t *testing.T) {
	h, err := Start(Spec{Argv: []string{"echo", "hello"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Close()

	out, exit := collectEvents(t, h, 5*time.Second)
	if !strings.Contains(out, "hello") {
		t.Errorf("output %q does not contain %q", out, "hello")
	}
	if exit == nil {
		t.Fatal("no exit event received")
	}
	if exit.ExitCode == nil || *exit.ExitCode != 0 {
		t.Errorf("ExitCode = %v, want 0", exit.ExitCode)
	}
	if exit.ExitSignal != nil {
		t.Errorf("ExitSignal = %v, want nil", *exit.ExitSignal)
	}
}

func TestStartNonZeroExitCode(t *testing.T) {
	h, err := Start(Spec{Argv: []string{"sh", "-c", "exit 42"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Close()

	_, exit := collectEvents(t, h, 5*time.Second)
	if exit == nil {
		t.Fatal("no exit event received")
	}
	if exit.ExitCode == nil || *exit.ExitCode != 42 {
		t.Errorf("ExitCode = %v, want 42", exit.ExitCode)
	}
}

func TestStartBadExecutable(t *testing.T) {
	_, err := Start(Spec{Argv: []string{"/nonexistent/definitely-not-a-binary"}})
	if err == nil {
		t.Fatal("expected error for bad executable, got nil")
	}
}

func TestStartEmptyArgv(t *testing.T) {
	_, err := Start(Spec{})
	if err == nil {
		t.Fatal("expected error for empty argv, got nil")
	}
}

func TestHandleWriteAndTerminate(t *testing.T) {
	h, err := Start(Spec{Argv: []string{"cat"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Close()

	if _, err := h.Write([]byte("ping\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := h.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}

	out, exit := collectEvents(t, h, 5*time.Second)
	if !strings.Contains(out, "ping") {
		t.Errorf("output %q does not contain echoed input", out)
	}
	if exit == nil {
		t.Fatal("no exit event received")
	}
	if exit.ExitSignal == nil {
		t.Errorf("expected a terminating signal, got code %v", exit.ExitCode)
	}
}

func TestExitEventIsLast(t *testing.T) {
	h, err := Start(Spec{Argv: []string{"sh", "-c", "echo one; echo two"}})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer h.Close()

	sawExit := false
	deadline := time.After(5 * time.Second)
	for {
		select {
		case evt, ok := <-h.Events():
			if !ok {
				if !sawExit {
					t.Fatal("channel closed without an exit event")
				}
				return
			}
			if sawExit {
				t.Fatalf("event of type %d after exit", evt.Type)
			}
			if evt.Type == EventExit {
				sawExit = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for events")
		}
	}
}
