package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/user/ptyhost/internal/session"
	"github.com/user/ptyhost/internal/term"
)

type startSessionRequest struct {
	Profile  string            `json:"profile,omitempty"`
	Command  string            `json:"command,omitempty"`
	Args     []string          `json:"args,omitempty"`
	Dir      string            `json:"dir,omitempty"`
	Env      map[string]string `json:"env,omitempty"`
	Cols     int               `json:"cols,omitempty"`
	Rows     int               `json:"rows,omitempty"`
	ViaShell bool              `json:"via_shell,omitempty"`
	// TimeoutMs only applies to the wait-mode run endpoint.
	TimeoutMs int `json:"timeout_ms,omitempty"`
}

type writeInputRequest struct {
	Data string `json:"data"`
}

type resizeRequest struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type killedResponse struct {
	Killed bool `json:"killed"`
}

type cleanedResponse struct {
	Cleaned int `json:"cleaned"`
}

// resolveStart expands a profile reference into a concrete start
// request. Explicit request fields override the profile's values.
func (h *handler) resolveStart(req startSessionRequest) (session.StartRequest, error) {
	out := session.StartRequest{
		Command:  req.Command,
		Args:     req.Args,
		Dir:      req.Dir,
		Env:      req.Env,
		Cols:     req.Cols,
		Rows:     req.Rows,
		ViaShell: req.ViaShell,
	}
	if req.Profile == "" {
		return out, nil
	}
	if h.profiles == nil {
		return out, fmt.Errorf("profiles are not configured")
	}
	p := h.profiles.Get(req.Profile)
	if p == nil {
		return out, fmt.Errorf("unknown profile %q", req.Profile)
	}

	if out.Command == "" {
		out.Command = p.Command
		if len(out.Args) == 0 {
			out.Args = p.Args
		}
		out.ViaShell = out.ViaShell || p.ViaShell
	}
	if out.Dir == "" {
		out.Dir = p.Dir
	}
	if out.Cols == 0 {
		out.Cols = p.Cols
	}
	if out.Rows == 0 {
		out.Rows = p.Rows
	}
	if len(p.Env) > 0 {
		merged := make(map[string]string, len(p.Env)+len(out.Env))
		for k, v := range p.Env {
			merged[k] = v
		}
		for k, v := range out.Env {
			merged[k] = v
		}
		out.Env = merged
	}
	return out, nil
}

func (h *handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start, err := h.resolveStart(req)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	sum, err := h.manager.Start(start)
	if err != nil {
		status, msg := mapSessionError(err)
		jsonError(w, status, msg)
		return
	}
	jsonResponse(w, http.StatusCreated, sum)
}

func (h *handler) runSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	start, err := h.resolveStart(req)
	if err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}

	timeout := time.Duration(req.TimeoutMs) * time.Millisecond
	res, err := h.manager.StartAndWait(r.Context(), start, timeout)
	if err != nil {
		status, msg := mapSessionError(err)
		jsonError(w, status, msg)
		return
	}
	jsonResponse(w, http.StatusOK, res)
}

func (h *handler) listSessions(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, h.manager.List())
}

func (h *handler) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.manager.Get(r.PathValue("id"))
	if err != nil {
		status, msg := mapSessionError(err)
		jsonError(w, status, msg)
		return
	}
	jsonResponse(w, http.StatusOK, sess.Summary())
}

func (h *handler) getOutput(w http.ResponseWriter, r *http.Request) {
	fromIndex := 0
	if raw := r.URL.Query().Get("from"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			jsonError(w, http.StatusBadRequest, "invalid from index")
			return
		}
		fromIndex = v
	}

	out, err := h.manager.GetOutput(r.PathValue("id"), fromIndex)
	if err != nil {
		status, msg := mapSessionError(err)
		jsonError(w, status, msg)
		return
	}

	// plain=1 returns the text a user would see, with escape
	// sequences and carriage-return overwrites applied.
	if raw := r.URL.Query().Get("plain"); raw == "1" || raw == "true" {
		for i := range out.Events {
			out.Events[i].Text = term.StripANSI(out.Events[i].Text)
		}
	}
	jsonResponse(w, http.StatusOK, out)
}

func (h *handler) writeInput(w http.ResponseWriter, r *http.Request) {
	var req writeInputRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Data == "" {
		jsonError(w, http.StatusBadRequest, "data is required")
		return
	}

	if err := h.manager.WriteInput(r.PathValue("id"), req.Data); err != nil {
		status, msg := mapSessionError(err)
		jsonError(w, status, msg)
		return
	}
	jsonResponse(w, http.StatusOK, okResponse{OK: true})
}

func (h *handler) resizeSession(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Cols <= 0 || req.Rows <= 0 {
		jsonError(w, http.StatusBadRequest, "cols and rows must be positive")
		return
	}

	if err := h.manager.Resize(r.PathValue("id"), req.Cols, req.Rows); err != nil {
		status, msg := mapSessionError(err)
		jsonError(w, status, msg)
		return
	}
	jsonResponse(w, http.StatusOK, okResponse{OK: true})
}

func (h *handler) stopSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Stop(r.PathValue("id")); err != nil {
		status, msg := mapSessionError(err)
		jsonError(w, status, msg)
		return
	}
	jsonResponse(w, http.StatusOK, killedResponse{Killed: true})
}

func (h *handler) removeSession(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Remove(r.PathValue("id")); err != nil {
		status, msg := mapSessionError(err)
		jsonError(w, status, msg)
		return
	}
	jsonResponse(w, http.StatusOK, cleanedResponse{Cleaned: 1})
}

func (h *handler) removeFinished(w http.ResponseWriter, _ *http.Request) {
	jsonResponse(w, http.StatusOK, cleanedResponse{Cleaned: h.manager.RemoveFinished()})
}
