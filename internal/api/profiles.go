package api

import (
	"net/http"

	"github.com/user/ptyhost/internal/profile"
)

func (h *handler) listProfiles(w http.ResponseWriter, _ *http.Request) {
	if h.profiles == nil {
		jsonResponse(w, http.StatusOK, []*profile.Profile{})
		return
	}
	jsonResponse(w, http.StatusOK, h.profiles.List())
}

func (h *handler) getProfile(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		jsonError(w, http.StatusNotFound, "profiles are not configured")
		return
	}
	p := h.profiles.Get(r.PathValue("id"))
	if p == nil {
		jsonError(w, http.StatusNotFound, "profile not found")
		return
	}
	jsonResponse(w, http.StatusOK, p)
}

func (h *handler) saveProfile(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		jsonError(w, http.StatusNotFound, "profiles are not configured")
		return
	}

	var p profile.Profile
	if err := decodeJSON(r, &p); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p.ID = r.PathValue("id")

	if err := h.profiles.Save(&p); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, &p)
}

func (h *handler) deleteProfile(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		jsonError(w, http.StatusNotFound, "profiles are not configured")
		return
	}
	if err := h.profiles.Delete(r.PathValue("id")); err != nil {
		jsonError(w, http.StatusNotFound, err.Error())
		return
	}
	jsonResponse(w, http.StatusNoContent, nil)
}
