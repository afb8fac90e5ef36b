package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Record is one row of the session audit log: written once at spawn and
// finalized once at exit. The log is append-only evidence of what ran;
// it is never read back to restore sessions.
type Record struct {
	ID         string     `json:"id"`
	PID        int        `json:"pid"`
	Command    string     `json:"command"`
	Args       []string   `json:"args,omitempty"`
	Dir        string     `json:"dir,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	ExitCode   *int       `json:"exit_code,omitempty"`
	ExitSignal *int       `json:"exit_signal,omitempty"`
}

type Repo struct {
	db *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// RecordStart inserts the audit row for a freshly spawned session.
func (r *Repo) RecordStart(ctx context.Context, rec *Record) error {
	args, err := encodeArgs(rec.Args)
	if err != nil {
		return err
	}
	if rec.StartedAt.IsZero() {
		rec.StartedAt = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO session_history (id, pid, command, args, dir, started_at)
VALUES (?, ?, ?, ?, ?, ?)
`, rec.ID, rec.PID, rec.Command, args, rec.Dir, formatTimestamp(rec.StartedAt))
	if err != nil {
		return fmt.Errorf("failed to record session start: %w", err)
	}
	return nil
}

// RecordExit finalizes the audit row once the child has terminated.
func (r *Repo) RecordExit(ctx context.Context, id string, exitCode, exitSignal *int, finishedAt time.Time) error {
	if finishedAt.IsZero() {
		finishedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE session_history
SET finished_at = ?, exit_code = ?, exit_signal = ?
WHERE id = ?
`, formatTimestamp(finishedAt), nullIfNilInt(exitCode), nullIfNilInt(exitSignal), id)
	if err != nil {
		return fmt.Errorf("failed to record session exit: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("no history row for session %q", id)
	}
	return nil
}

// List returns the newest audit records first, up to limit.
func (r *Repo) List(ctx context.Context, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, pid, command, args, dir, started_at, finished_at, exit_code, exit_signal
FROM session_history
ORDER BY started_at DESC, id DESC
LIMIT ?
`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list session history: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate session history: %w", err)
	}
	return records, nil
}

// Get returns a single audit record, or nil when absent.
func (r *Repo) Get(ctx context.Context, id string) (*Record, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, pid, command, args, dir, started_at, finished_at, exit_code, exit_signal
FROM session_history
WHERE id = ?
`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var argsRaw, startedRaw string
	var finishedRaw sql.NullString
	var exitCode, exitSignal sql.NullInt64

	err := row.Scan(&rec.ID, &rec.PID, &rec.Command, &argsRaw, &rec.Dir, &startedRaw, &finishedRaw, &exitCode, &exitSignal)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan history row: %w", err)
	}

	rec.Args, err = decodeArgs(argsRaw)
	if err != nil {
		return nil, err
	}
	rec.StartedAt, err = parseTimestamp(startedRaw)
	if err != nil {
		return nil, err
	}
	if finishedRaw.Valid {
		ts, err := parseTimestamp(finishedRaw.String)
		if err != nil {
			return nil, err
		}
		rec.FinishedAt = &ts
	}
	if exitCode.Valid {
		v := int(exitCode.Int64)
		rec.ExitCode = &v
	}
	if exitSignal.Valid {
		v := int(exitSignal.Int64)
		rec.ExitSignal = &v
	}
	return &rec, nil
}

func encodeArgs(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	buf, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("failed to encode args: %w", err)
	}
	return string(buf), nil
}

func decodeArgs(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("failed to decode args: %w", err)
	}
	return values, nil
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return ts.UTC().Format(time.RFC3339)
}

func parseTimestamp(v string) (time.Time, error) {
	ts, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse timestamp %q: %w", v, err)
	}
	return ts, nil
}

func nullIfNilInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
