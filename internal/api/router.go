package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/user/ptyhost/internal/history"
	"github.com/user/ptyhost/internal/profile"
	"github.com/user/ptyhost/internal/session"
)

type handler struct {
	manager  *session.Manager
	profiles *profile.Store
	history  *history.Repo // nil when auditing is disabled
}

// NewRouter builds the HTTP API around the session manager. The
// profile store and history repo are optional.
func NewRouter(m *session.Manager, profiles *profile.Store, hist *history.Repo, token string) http.Handler {
	h := &handler{
		manager:  m,
		profiles: profiles,
		history:  hist,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/sessions", h.startSession)
	mux.HandleFunc("POST /api/sessions/run", h.runSession)
	mux.HandleFunc("GET /api/sessions", h.listSessions)
	mux.HandleFunc("GET /api/sessions/{id}", h.getSession)
	mux.HandleFunc("GET /api/sessions/{id}/output", h.getOutput)
	mux.HandleFunc("POST /api/sessions/{id}/input", h.writeInput)
	mux.HandleFunc("POST /api/sessions/{id}/resize", h.resizeSession)
	mux.HandleFunc("POST /api/sessions/{id}/kill", h.stopSession)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.removeSession)
	mux.HandleFunc("DELETE /api/sessions", h.removeFinished)

	mux.HandleFunc("GET /api/profiles", h.listProfiles)
	mux.HandleFunc("GET /api/profiles/{id}", h.getProfile)
	mux.HandleFunc("PUT /api/profiles/{id}", h.saveProfile)
	mux.HandleFunc("DELETE /api/profiles/{id}", h.deleteProfile)

	mux.HandleFunc("GET /api/history", h.listHistory)

	return authMiddleware(token)(jsonMiddleware(corsMiddleware(mux)))
}

func authMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
				if strings.TrimSpace(authHeader[7:]) == token {
					next.ServeHTTP(w, r)
					return
				}
			}

			if r.URL.Query().Get("token") == token {
				next.ServeHTTP(w, r)
				return
			}

			jsonError(w, http.StatusUnauthorized, "unauthorized")
		})
	}
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// mapSessionError converts core sentinel errors to HTTP status codes.
func mapSessionError(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, session.ErrStillRunning):
		return http.StatusConflict, err.Error()
	case errors.Is(err, session.ErrSpawnFailed):
		return http.StatusBadGateway, err.Error()
	case errors.Is(err, session.ErrTimeout):
		return http.StatusGatewayTimeout, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}
