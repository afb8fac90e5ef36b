package api

import (
	"net/http"
	"strconv"

	"github.com/user/ptyhost/internal/history"
)

func (h *handler) listHistory(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		jsonResponse(w, http.StatusOK, []*history.Record{})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			jsonError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = v
	}

	records, err := h.history.List(r.Context(), limit)
	if err != nil {
		jsonError(w, http.StatusInternalServerError, err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, records)
}
