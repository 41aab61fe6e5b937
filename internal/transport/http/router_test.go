package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	appsession "scoreboard/internal/app/session"
	"scoreboard/internal/config"
	"scoreboard/internal/prefs"
	"scoreboard/internal/storage"
	"scoreboard/internal/storage/boltstore"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(t *testing.T, st storage.Store) *chi.Mux {
	t.Helper()
	engine := appsession.NewEngine(st, prefs.New(prefs.NewMemoryBackend()))
	cfg := config.AppConfig{
		Server: config.ServerConfig{MaxCaptureBytes: 1024},
		Log:    config.LogConfig{HTTPLevel: "error"},
	}
	return NewRouter(st, engine, cfg)
}

func openBolt(t *testing.T) storage.Store {
	t.Helper()
	st := boltstore.New(filepath.Join(t.TempDir(), "scoreboard.db"), time.Second)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func do(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeView(t *testing.T, w *httptest.ResponseRecorder) GameView {
	t.Helper()
	var v GameView
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode view: %v body=%s", err, w.Body.String())
	}
	return v
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error: %v body=%s", err, w.Body.String())
	}
	return body.Error
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, openBolt(t))
	w := do(t, router, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected /healthz 200, got %d", w.Code)
	}
}

func TestGameLifecycle(t *testing.T) {
	router := newTestRouter(t, openBolt(t))

	w := do(t, router, http.MethodPost, "/api/game", map[string]any{"game_name": "Poker", "players": []string{"Alice", "Bob", "alice"}})
	if w.Code != http.StatusCreated {
		t.Fatalf("new game = %d body=%s", w.Code, w.Body.String())
	}
	v := decodeView(t, w)
	if len(v.Session.Players) != 2 {
		t.Fatalf("players = %+v", v.Session.Players)
	}
	alice, bob := v.Session.Players[0].ID, v.Session.Players[1].ID

	w = do(t, router, http.MethodGet, "/api/game/active", nil)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte(`"has_active_game":true`)) {
		t.Fatalf("active after new game = %d %s", w.Code, w.Body.String())
	}

	for _, s := range []map[string]any{{"player_id": alice, "score": 10}, {"player_id": bob, "score": 7}} {
		if w = do(t, router, http.MethodPost, "/api/game/scores", s); w.Code != http.StatusOK {
			t.Fatalf("score = %d body=%s", w.Code, w.Body.String())
		}
	}
	if v = decodeView(t, w); !v.AllScored {
		t.Fatal("expected all players scored")
	}
	w = do(t, router, http.MethodPost, "/api/game/rounds/advance", nil)
	if v = decodeView(t, w); v.Session.CurrentRound != 2 {
		t.Fatalf("current round = %d", v.Session.CurrentRound)
	}
	w = do(t, router, http.MethodPost, "/api/game/scores", map[string]any{"player_id": alice, "score": 5})
	if v = decodeView(t, w); v.Totals[alice] != 15 || v.Standings[0].Player.ID != alice {
		t.Fatalf("totals = %v standings = %+v", v.Totals, v.Standings)
	}

	w = do(t, router, http.MethodPost, "/api/game/end", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("end = %d body=%s", w.Code, w.Body.String())
	}
	var ended struct {
		Key int64 `json:"key"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &ended); err != nil || ended.Key <= 0 {
		t.Fatalf("end body = %s", w.Body.String())
	}
	if w = do(t, router, http.MethodPost, "/api/game/end", nil); w.Code != http.StatusConflict || errorCode(t, w) != "game_ended" {
		t.Fatalf("second end = %d %s", w.Code, w.Body.String())
	}
	if w = do(t, router, http.MethodPost, "/api/game/players", map[string]any{"name": "Cal"}); w.Code != http.StatusConflict {
		t.Fatalf("add after end = %d", w.Code)
	}

	w = do(t, router, http.MethodGet, "/api/game/active", nil)
	if !bytes.Contains(w.Body.Bytes(), []byte(`"has_active_game":false`)) {
		t.Fatalf("active after end = %s", w.Body.String())
	}

	w = do(t, router, http.MethodGet, "/api/history", nil)
	var list struct {
		Items []HistoryItem `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].Key != ended.Key || list.Items[0].Totals[alice] != 15 {
		t.Fatalf("history = %+v", list.Items)
	}

	path := "/api/history/" + strconv.FormatInt(ended.Key, 10)
	if w = do(t, router, http.MethodGet, path, nil); w.Code != http.StatusOK {
		t.Fatalf("get history = %d", w.Code)
	}
	if w = do(t, router, http.MethodDelete, path, nil); w.Code != http.StatusNoContent {
		t.Fatalf("delete history = %d", w.Code)
	}
	if w = do(t, router, http.MethodGet, path, nil); w.Code != http.StatusNotFound || errorCode(t, w) != "entry_not_found" {
		t.Fatalf("get deleted = %d %s", w.Code, w.Body.String())
	}
}

func TestRemovePlayerCascadesThroughAPI(t *testing.T) {
	router := newTestRouter(t, openBolt(t))
	v := decodeView(t, do(t, router, http.MethodPost, "/api/game", map[string]any{"game_name": "Hearts", "players": []string{"Ann", "Ben"}}))
	ann := v.Session.Players[0].ID
	do(t, router, http.MethodPost, "/api/game/scores", map[string]any{"player_id": ann, "score": 3})

	w := do(t, router, http.MethodDelete, "/api/game/players/"+ann, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove = %d", w.Code)
	}
	v = decodeView(t, w)
	if len(v.Session.Players) != 1 || v.Totals[ann] != 0 {
		t.Fatalf("after remove: players=%+v totals=%v", v.Session.Players, v.Totals)
	}
	for _, r := range v.Session.Rounds {
		for _, s := range r.Scores {
			if s.PlayerID == ann {
				t.Fatal("score of removed player survived")
			}
		}
	}
}

func TestMutationsWithoutGame(t *testing.T) {
	router := newTestRouter(t, openBolt(t))
	tests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodPost, "/api/game/players", map[string]any{"name": "Alice"}},
		{http.MethodPost, "/api/game/scores", map[string]any{"player_id": "x", "score": 1}},
		{http.MethodPost, "/api/game/rounds/advance", nil},
		{http.MethodDelete, "/api/game/players/x", nil},
		{http.MethodPost, "/api/game/end", nil},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := do(t, router, tt.method, tt.path, tt.body)
			if w.Code != http.StatusConflict || errorCode(t, w) != "no_session" {
				t.Fatalf("got %d %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestInvalidRequests(t *testing.T) {
	router := newTestRouter(t, openBolt(t))
	do(t, router, http.MethodPost, "/api/game", map[string]any{"game_name": "Poker"})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"blank game name", http.MethodPost, "/api/game", map[string]any{"game_name": "  "}, http.StatusBadRequest, "invalid_game_name"},
		{"unknown field", http.MethodPost, "/api/game", map[string]any{"title": "x"}, http.StatusBadRequest, "invalid_request"},
		{"missing score", http.MethodPost, "/api/game/scores", map[string]any{"player_id": "p"}, http.StatusBadRequest, "invalid_request"},
		{"bad history key", http.MethodGet, "/api/history/abc", nil, http.StatusBadRequest, "invalid_key"},
		{"zero history key", http.MethodDelete, "/api/history/0", nil, http.StatusBadRequest, "invalid_key"},
		{"unknown route", http.MethodGet, "/api/nope", nil, http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, tt.method, tt.path, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d body=%s", w.Code, tt.status, w.Body.String())
			}
			if got := errorCode(t, w); got != tt.code {
				t.Fatalf("code = %q, want %q", got, tt.code)
			}
		})
	}
}

func TestLoadActiveAfterRestart(t *testing.T) {
	st := openBolt(t)
	first := newTestRouter(t, st)
	v := decodeView(t, do(t, first, http.MethodPost, "/api/game", map[string]any{"game_name": "Rummy", "players": []string{"Ann"}}))
	do(t, first, http.MethodPost, "/api/game/scores", map[string]any{"player_id": v.Session.Players[0].ID, "score": 9})

	second := newTestRouter(t, st)
	w := do(t, second, http.MethodPost, "/api/game/load", nil)
	var body struct {
		Loaded bool     `json:"loaded"`
		Game   GameView `json:"game"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Loaded || body.Game.Session.ID != v.Session.ID || body.Game.Totals[v.Session.Players[0].ID] != 9 {
		t.Fatalf("load = %s", w.Body.String())
	}
}

func TestSetupRemembered(t *testing.T) {
	router := newTestRouter(t, openBolt(t))
	do(t, router, http.MethodPost, "/api/game", map[string]any{"game_name": "Poker", "players": []string{"Alice", "Bob"}})

	w := do(t, router, http.MethodGet, "/api/setup", nil)
	var setup appsession.Setup
	if err := json.Unmarshal(w.Body.Bytes(), &setup); err != nil {
		t.Fatalf("decode setup: %v", err)
	}
	if setup.GameName != "Poker" || len(setup.Players) != 2 {
		t.Fatalf("setup = %+v", setup)
	}
}

type failingStore struct{ storage.Store }

func (failingStore) Init(context.Context) error {
	return storage.Unavailable("init", "", errors.New("disk gone"))
}

func (failingStore) Upsert(context.Context, string, any) error {
	return storage.Unavailable("upsert", storage.CollectionActive, errors.New("disk gone"))
}

func (failingStore) GetAll(context.Context, string) ([]storage.Record, error) {
	return nil, storage.Unavailable("get_all", storage.CollectionGames, errors.New("disk gone"))
}

func TestStorageUnavailable(t *testing.T) {
	router := newTestRouter(t, failingStore{})

	w := do(t, router, http.MethodPost, "/api/game", map[string]any{"game_name": "Poker"})
	if w.Code != http.StatusServiceUnavailable || errorCode(t, w) != "storage_unavailable" {
		t.Fatalf("new game = %d %s", w.Code, w.Body.String())
	}
	// the in-memory game survives the failed checkpoint
	w = do(t, router, http.MethodGet, "/api/game", nil)
	if v := decodeView(t, w); v.Session.GameName != "Poker" {
		t.Fatalf("current = %+v", v.Session)
	}
	if w = do(t, router, http.MethodGet, "/api/history", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("history = %d", w.Code)
	}
	if w = do(t, router, http.MethodGet, "/healthz", nil); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz = %d", w.Code)
	}
}

// flakyArchiveStore fails Add until healed.
type flakyArchiveStore struct {
	storage.Store
	healed bool
}

func (f *flakyArchiveStore) Add(ctx context.Context, collection string, value any) (int64, error) {
	if !f.healed {
		return 0, storage.Unavailable("add", collection, errors.New("disk gone"))
	}
	return f.Store.Add(ctx, collection, value)
}

func TestEndGameRetryAfterArchiveFailure(t *testing.T) {
	st := &flakyArchiveStore{Store: openBolt(t)}
	router := newTestRouter(t, st)
	v := decodeView(t, do(t, router, http.MethodPost, "/api/game", map[string]any{"game_name": "Poker", "players": []string{"Alice"}}))
	do(t, router, http.MethodPost, "/api/game/scores", map[string]any{"player_id": v.Session.Players[0].ID, "score": 4})

	w := do(t, router, http.MethodPost, "/api/game/end", nil)
	if w.Code != http.StatusServiceUnavailable || errorCode(t, w) != "storage_unavailable" {
		t.Fatalf("first end = %d %s", w.Code, w.Body.String())
	}
	if w = do(t, router, http.MethodPost, "/api/game/rounds/advance", nil); w.Code != http.StatusOK {
		t.Fatalf("advance after failed end = %d %s", w.Code, w.Body.String())
	}

	st.healed = true
	if w = do(t, router, http.MethodPost, "/api/game/end", nil); w.Code != http.StatusOK {
		t.Fatalf("retried end = %d %s", w.Code, w.Body.String())
	}
	w = do(t, router, http.MethodGet, "/api/history", nil)
	var list struct {
		Items []HistoryItem `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].GameName != "Poker" || list.Items[0].EndedAt == nil {
		t.Fatalf("history = %+v", list.Items)
	}
}
