package httptransport

import (
	"net/http"

	"scoreboard/internal/storage"
)

type HealthHandlers struct {
	store storage.Store
}

func NewHealthHandlers(st storage.Store) *HealthHandlers {
	return &HealthHandlers{store: st}
}

func (h *HealthHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Init(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "storage": "down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "storage": "up"})
	}
}
