package session

import (
	"context"
	"fmt"
	"time"
)

// DefaultWaitTimeout bounds wait-mode runs whose caller supplied no
// deadline: a wait-mode call must never block forever on a child that
// does not exit.
const DefaultWaitTimeout = 30 * time.Second

// WaitResult is the outcome of a successful wait-mode run: the final
// session state plus the full captured output.
type WaitResult struct {
	Summary
	Events     []OutputEvent `json:"events"`
	TotalLines int           `json:"total_lines"`
}

// StartAndWait spawns a session like Start but blocks until the child
// exits or the timeout elapses, whichever is first. Non-positive
// timeouts fall back to DefaultWaitTimeout. On timeout the child is
// terminated the same way Stop does it and the returned error wraps
// ErrTimeout; the session record stays registered either way, so the
// caller can still inspect what was captured.
func (m *Manager) StartAndWait(ctx context.Context, req StartRequest, timeout time.Duration) (WaitResult, error) {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}

	sess, err := m.startSession(req)
	if err != nil {
		return WaitResult{}, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-sess.Done():
	case <-timer.C:
		_ = sess.handle.Terminate()
		return WaitResult{}, fmt.Errorf("%w: session %s still running after %s", ErrTimeout, sess.ID, timeout)
	case <-ctx.Done():
		_ = sess.handle.Terminate()
		return WaitResult{}, fmt.Errorf("session %s: %w", sess.ID, ctx.Err())
	}

	out := sess.Output(0)
	return WaitResult{
		Summary:    sess.Summary(),
		Events:     out.Events,
		TotalLines: out.TotalLines,
	}, nil
}
