package hub

// OutputFrame streams one captured output event to subscribers.
type OutputFrame struct {
	Type       string `json:"type"` // "output" or "exit"
	SessionID  string `json:"session_id"`
	Text       string `json:"text,omitempty"`
	ExitCode   *int   `json:"exit_code,omitempty"`
	ExitSignal *int   `json:"exit_signal,omitempty"`
	Ts         int64  `json:"ts"`
}

// SessionFrame announces a session lifecycle change.
type SessionFrame struct {
	Type      string `json:"type"` // "session_started" or "session_exited"
	SessionID string `json:"session_id"`
	PID       int    `json:"pid,omitempty"`
	Command   string `json:"command,omitempty"`
	Running   bool   `json:"running"`
}

// ClientMessage is what a connected client may send.
type ClientMessage struct {
	Type      string `json:"type"` // "subscribe" or "input"
	SessionID string `json:"session_id,omitempty"`
	Data      string `json:"data,omitempty"`
}

// ErrorFrame reports a per-client protocol error.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// frame pairs an encoded message with the session it concerns, so the
// hub can filter by client subscription. An empty session id reaches
// every client.
type frame struct {
	data      []byte
	sessionID string
}
