package httptransport

import (
	"net/http"
	"strings"
	"sync"

	appsession "scoreboard/internal/app/session"
	"scoreboard/internal/score"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// GameHandlers forwards user actions to the engine and checkpoints the
// session after every mutation. mu makes the handlers the engine's only
// writer.
type GameHandlers struct {
	mu     sync.Mutex
	engine *appsession.Engine
}

func NewGameHandlers(engine *appsession.Engine) *GameHandlers {
	return &GameHandlers{engine: engine}
}

type GameView struct {
	Session   *score.GameSession `json:"session"`
	Totals    map[string]int     `json:"totals"`
	Standings []score.Standing   `json:"standings"`
	AllScored bool               `json:"all_scored"`
}

type newGameRequest struct {
	GameName string   `json:"game_name"`
	Players  []string `json:"players"`
}

type addPlayerRequest struct {
	Name string `json:"name"`
}

type recordScoreRequest struct {
	PlayerID string `json:"player_id"`
	Score    *int   `json:"score"`
}

func (h *GameHandlers) view() GameView {
	return GameView{
		Session:   h.engine.Current,
		Totals:    h.engine.AllTotals(),
		Standings: h.engine.Standings(),
		AllScored: h.engine.AllPlayersScoredThisRound(),
	}
}

// mutate applies fn to an open session, checkpoints it and writes the
// resulting view.
func (h *GameHandlers) mutate(w http.ResponseWriter, r *http.Request, fn func(*appsession.Engine)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.requireOpen(w) {
		return
	}
	fn(h.engine)
	metricGameMutationsTotal.Add(1)
	if err := h.engine.SaveActive(r.Context()); err != nil {
		metricCheckpointErrors.Add(1)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.view())
}

// requireOpen rejects mutations when no game was started or the game was
// already archived.
func (h *GameHandlers) requireOpen(w http.ResponseWriter) bool {
	switch {
	case h.engine.Current.IsBlank():
		WriteHTTPError(w, http.StatusConflict, "no_session")
		return false
	case h.engine.Current.EndedAt != nil:
		WriteHTTPError(w, http.StatusConflict, "game_ended")
		return false
	}
	return true
}

func (h *GameHandlers) Current() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		writeJSON(w, http.StatusOK, h.view())
	}
}

func (h *GameHandlers) NewGame() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req newGameRequest
		if err := decodeBody(r, &req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		if strings.TrimSpace(req.GameName) == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_game_name")
			return
		}

		h.mu.Lock()
		defer h.mu.Unlock()
		h.engine.NewGame(req.GameName)
		for _, name := range req.Players {
			h.engine.AddPlayer(name)
		}
		h.engine.RememberSetup(r.Context())
		metricGamesStartedTotal.Add(1)
		if err := h.engine.SaveActive(r.Context()); err != nil {
			metricCheckpointErrors.Add(1)
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, h.view())
	}
}

func (h *GameHandlers) HasActive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		ok, err := h.engine.HasActiveGame(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"has_active_game": ok})
	}
}

func (h *GameHandlers) LoadActive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		ok, err := h.engine.LoadActive(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"loaded": ok, "game": h.view()})
	}
}

func (h *GameHandlers) ClearActive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if err := h.engine.ClearActive(r.Context()); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *GameHandlers) AddPlayer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addPlayerRequest
		if err := decodeBody(r, &req); err != nil {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		h.mutate(w, r, func(e *appsession.Engine) { e.AddPlayer(req.Name) })
	}
}

func (h *GameHandlers) RemovePlayer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		playerID := chi.URLParam(r, "player_id")
		h.mutate(w, r, func(e *appsession.Engine) { e.RemovePlayer(playerID) })
	}
}

func (h *GameHandlers) RecordScore() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req recordScoreRequest
		if err := decodeBody(r, &req); err != nil || req.Score == nil || req.PlayerID == "" {
			WriteHTTPError(w, http.StatusBadRequest, "invalid_request")
			return
		}
		h.mutate(w, r, func(e *appsession.Engine) { e.RecordScore(req.PlayerID, *req.Score) })
	}
}

func (h *GameHandlers) AdvanceRound() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mutate(w, r, func(e *appsession.Engine) { e.AdvanceRound() })
	}
}

func (h *GameHandlers) EndGame() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		if h.engine.Current.EndedAt != nil {
			WriteHTTPError(w, http.StatusConflict, "game_ended")
			return
		}
		key, err := h.engine.EndGame(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		metricGamesArchivedTotal.Add(1)
		log.Info().Int64("key", key).Str("game", h.engine.Current.GameName).Msg("game ended")
		writeJSON(w, http.StatusOK, map[string]any{"key": key, "game": h.view()})
	}
}

func (h *GameHandlers) LastSetup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.mu.Lock()
		defer h.mu.Unlock()
		writeJSON(w, http.StatusOK, h.engine.LastSetup(r.Context()))
	}
}
