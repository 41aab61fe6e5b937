package main

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	appsession "scoreboard/internal/app/session"
	"scoreboard/internal/config"
	"scoreboard/internal/prefs"
	"scoreboard/internal/storage"
	"scoreboard/internal/storage/boltstore"
	httptransport "scoreboard/internal/transport/http"
)

func newTestServer(t *testing.T) (*httptest.Server, storage.Store) {
	t.Helper()
	st := boltstore.New(filepath.Join(t.TempDir(), "scoreboard.db"), time.Second)
	t.Cleanup(func() { _ = st.Close() })
	engine := appsession.NewEngine(st, prefs.New(prefs.NewMemoryBackend()))
	srv := httptest.NewServer(httptransport.NewRouter(st, engine, config.AppConfig{Log: config.LogConfig{HTTPLevel: "error"}}))
	t.Cleanup(srv.Close)
	return srv, st
}

func TestPlayArchivesGame(t *testing.T) {
	srv, st := newTestServer(t)
	cfg := config.DemoConfig{GameName: "Poker", Players: []string{"Alice", "Bob", "Cal"}, Rounds: 3, MaxScore: 10}

	res, err := play(context.Background(), newClient(srv.URL), cfg, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("play: %v", err)
	}
	if res.Key <= 0 || res.Game.Session.CurrentRound != 3 || len(res.Game.Standings) != 3 {
		t.Fatalf("result = %+v", res)
	}
	recs, err := st.GetAll(context.Background(), storage.CollectionGames)
	if err != nil || len(recs) != 1 {
		t.Fatalf("archived %d games, err=%v", len(recs), err)
	}
}

func TestClientSurfacesAPIError(t *testing.T) {
	srv, _ := newTestServer(t)
	_, err := newClient(srv.URL).advance(context.Background())
	var apiErr *apiError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusConflict || apiErr.Code != "no_session" {
		t.Fatalf("err = %v", err)
	}
}

func TestDecideRange(t *testing.T) {
	rnd := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		if v := decide(rnd, 5); v < 0 || v > 5 {
			t.Fatalf("decide = %d", v)
		}
	}
	if decide(rnd, 0) != 0 {
		t.Fatal("zero max should score 0")
	}
}
