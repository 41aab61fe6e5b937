package httptransport

import (
	"net/http"
	"strconv"

	"scoreboard/internal/app/history"
	"scoreboard/internal/score"

	"github.com/go-chi/chi/v5"
)

type HistoryHandlers struct {
	svc *history.Service
}

func NewHistoryHandlers(svc *history.Service) *HistoryHandlers {
	return &HistoryHandlers{svc: svc}
}

type HistoryItem struct {
	score.HistoryEntry
	Totals    map[string]int   `json:"totals"`
	Standings []score.Standing `json:"standings"`
}

func newHistoryItem(e score.HistoryEntry) HistoryItem {
	return HistoryItem{
		HistoryEntry: e,
		Totals:       e.Totals(),
		Standings:    score.Standings(e.Players, e.Rounds),
	}
}

// List accepts an optional session_id filter.
func (h *HistoryHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricHistoryQueryTotal.Add(1)
		var (
			entries []score.HistoryEntry
			err     error
		)
		if sessionID := r.URL.Query().Get("session_id"); sessionID != "" {
			entries, err = h.svc.FindBySession(r.Context(), sessionID)
		} else {
			entries, err = h.svc.List(r.Context())
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		items := make([]HistoryItem, 0, len(entries))
		for _, e := range entries {
			items = append(items, newHistoryItem(e))
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

func (h *HistoryHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := parseKey(w, r)
		if !ok {
			return
		}
		entry, err := h.svc.Get(r.Context(), key)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newHistoryItem(entry))
	}
}

func (h *HistoryHandlers) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := parseKey(w, r)
		if !ok {
			return
		}
		if err := h.svc.Delete(r.Context(), key); err != nil {
			writeServiceError(w, err)
			return
		}
		metricHistoryDeletesTotal.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}
}

func parseKey(w http.ResponseWriter, r *http.Request) (int64, bool) {
	key, err := strconv.ParseInt(chi.URLParam(r, "key"), 10, 64)
	if err != nil || key <= 0 {
		WriteHTTPError(w, http.StatusBadRequest, "invalid_key")
		return 0, false
	}
	return key, true
}
