package history

import (
	"context"
	"log/slog"
	"time"

	"github.com/user/ptyhost/internal/session"
)

// Recorder bridges session lifecycle notifications into the audit log.
// Failures are logged and swallowed: auditing must never affect a
// session's state.
type Recorder struct {
	repo *Repo
}

func NewRecorder(db *DB) *Recorder {
	return &Recorder{repo: NewRepo(db.SQL())}
}

func (r *Recorder) SessionStarted(sum session.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := r.repo.RecordStart(ctx, &Record{
		ID:        sum.ID,
		PID:       sum.PID,
		Command:   sum.Command,
		Args:      sum.Args,
		Dir:       sum.Dir,
		StartedAt: sum.StartedAt,
	})
	if err != nil {
		slog.Warn("failed to record session start", "session_id", sum.ID, "error", err)
	}
}

func (r *Recorder) SessionOutput(string, session.OutputEvent) {
	// Output is not audited; the in-memory buffer owns it.
}

func (r *Recorder) SessionExited(sum session.Summary) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.repo.RecordExit(ctx, sum.ID, sum.ExitCode, sum.ExitSignal, time.Now().UTC()); err != nil {
		slog.Warn("failed to record session exit", "session_id", sum.ID, "error", err)
	}
}

// Repo exposes the underlying repo for read-side API handlers.
func (r *Recorder) Repo() *Repo {
	return r.repo
}
