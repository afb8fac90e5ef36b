package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"nhooyr.io/websocket"

	"github.com/user/ptyhost/internal/session"
)

// Hub fans captured session output out to WebSocket subscribers. It
// piggybacks on the session manager's observer notifications and never
// touches the output buffer itself; a slow client only drops its own
// frames.
type Hub struct {
	token   string
	onInput func(sessionID, data string) error

	register   chan *Client
	unregister chan *Client
	broadcast  chan frame

	mu      sync.RWMutex
	clients map[string]*Client

	ctxMu  sync.RWMutex
	runCtx context.Context
}

// New creates a Hub. onInput is invoked for client "input" messages and
// may be nil to make the stream read-only.
func New(token string, onInput func(sessionID, data string) error) *Hub {
	return &Hub{
		token:      token,
		onInput:    onInput,
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan frame, 256),
		clients:    make(map[string]*Client),
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.ctxMu.Lock()
	h.runCtx = ctx
	h.ctxMu.Unlock()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			go client.writePump(h.getContext())
			go client.readPump(h.getContext())
			slog.Info("hub client connected", "client_id", client.id, "total", h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			slog.Info("hub client disconnected", "client_id", client.id, "total", h.ClientCount())

		case f := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				if !c.wantsSession(f.sessionID) {
					continue
				}
				select {
				case c.send <- f.data:
				default:
					slog.Debug("hub client send buffer full, dropping frame", "client_id", c.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) getContext() context.Context {
	h.ctxMu.RLock()
	defer h.ctxMu.RUnlock()
	if h.runCtx != nil {
		return h.runCtx
	}
	return context.Background()
}

// HandleWebSocket upgrades the connection and registers the client.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if h.token != "" && token != h.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}

	h.register <- newClient(conn, h)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) unregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	default:
	}
}

func (h *Hub) handleInput(sessionID, data string) {
	if h.onInput == nil || sessionID == "" || data == "" {
		return
	}
	if err := h.onInput(sessionID, data); err != nil {
		slog.Debug("hub input rejected", "session_id", sessionID, "error", err)
	}
}

func (h *Hub) sendError(c *Client, message string) {
	data, err := json.Marshal(ErrorFrame{Type: "error", Message: message})
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (h *Hub) push(sessionID string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Warn("hub frame marshal failed", "error", err)
		return
	}
	select {
	case h.broadcast <- frame{data: data, sessionID: sessionID}:
	default:
		// Never block the session event pump on slow broadcast.
	}
}

// SessionStarted implements session.Observer.
func (h *Hub) SessionStarted(sum session.Summary) {
	h.push("", SessionFrame{
		Type:      "session_started",
		SessionID: sum.ID,
		PID:       sum.PID,
		Command:   sum.Command,
		Running:   true,
	})
}

// SessionOutput implements session.Observer.
func (h *Hub) SessionOutput(id string, evt session.OutputEvent) {
	typ := "output"
	if evt.Kind == session.KindExit {
		typ = "exit"
	}
	h.push(id, OutputFrame{
		Type:       typ,
		SessionID:  id,
		Text:       evt.Text,
		ExitCode:   evt.ExitCode,
		ExitSignal: evt.ExitSignal,
		Ts:         evt.Timestamp.UnixMilli(),
	})
}

// SessionExited implements session.Observer.
func (h *Hub) SessionExited(sum session.Summary) {
	h.push("", SessionFrame{
		Type:      "session_exited",
		SessionID: sum.ID,
		PID:       sum.PID,
		Command:   sum.Command,
		Running:   false,
	})
}
