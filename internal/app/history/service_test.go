package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"scoreboard/internal/score"
	"scoreboard/internal/storage"
	"scoreboard/internal/storage/boltstore"
	"scoreboard/internal/storage/sqlstore"
)

func openStores(t *testing.T) map[string]storage.Store {
	t.Helper()
	bolt := boltstore.New(filepath.Join(t.TempDir(), "history.db"), time.Second)
	lite := sqlstore.New(sqlstore.DialectSQLite, filepath.Join(t.TempDir(), "history.db3"))
	t.Cleanup(func() {
		_ = bolt.Close()
		_ = lite.Close()
	})
	return map[string]storage.Store{"bolt": bolt, "sqlite": lite}
}

func archive(t *testing.T, st storage.Store, sessionID, name string, started time.Time) int64 {
	t.Helper()
	g := score.NewGameSession(sessionID, name, started)
	g.AppendPlayer(score.Player{ID: "p1", Name: "Alice"})
	g.SetScore("p1", 4)
	ended := started.Add(30 * time.Minute)
	g.EndedAt = &ended
	key, err := st.Add(context.Background(), storage.CollectionGames, score.NewHistoryEntry(g))
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	return key
}

func TestListNewestFirst(t *testing.T) {
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			svc := NewService(st)
			archive(t, st, "s1", "Poker", base)
			archive(t, st, "s2", "Hearts", base.Add(2*time.Hour))
			archive(t, st, "s3", "Rummy", base.Add(time.Hour))

			got, err := svc.List(context.Background())
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			want := []string{"Hearts", "Rummy", "Poker"}
			if len(got) != len(want) {
				t.Fatalf("len = %d, want %d", len(got), len(want))
			}
			for i, w := range want {
				if got[i].GameName != w {
					t.Fatalf("entry %d = %s, want %s", i, got[i].GameName, w)
				}
				if got[i].Key <= 0 {
					t.Fatalf("entry %d has no key", i)
				}
			}
			if got[0].Duration() != 30*time.Minute {
				t.Fatalf("duration = %v", got[0].Duration())
			}
		})
	}
}

func TestDeleteAndGet(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			svc := NewService(st)
			keep := archive(t, st, "s1", "Poker", base)
			drop := archive(t, st, "s2", "Hearts", base.Add(time.Hour))

			entry, err := svc.Get(ctx, drop)
			if err != nil || entry.GameName != "Hearts" || entry.Key != drop {
				t.Fatalf("Get = %+v, %v", entry, err)
			}
			if err := svc.Delete(ctx, drop); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if err := svc.Delete(ctx, drop); err != nil {
				t.Fatalf("second Delete: %v", err)
			}
			if _, err := svc.Get(ctx, drop); !errors.Is(err, ErrEntryNotFound) {
				t.Fatalf("Get after delete err = %v", err)
			}
			all, err := svc.List(ctx)
			if err != nil || len(all) != 1 || all[0].Key != keep {
				t.Fatalf("List after delete = %+v, %v", all, err)
			}
		})
	}
}

func TestInvalidKey(t *testing.T) {
	svc := NewService(nil)
	if err := svc.Delete(context.Background(), 0); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Delete err = %v", err)
	}
	if _, err := svc.Get(context.Background(), -3); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("Get err = %v", err)
	}
}

func TestFindBySession(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for name, st := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			svc := NewService(st)
			archive(t, st, "s1", "Poker", base)
			archive(t, st, "s2", "Hearts", base.Add(time.Hour))
			archive(t, st, "s1", "Poker", base.Add(2*time.Hour))

			got, err := svc.FindBySession(ctx, "s1")
			if err != nil {
				t.Fatalf("FindBySession: %v", err)
			}
			if len(got) != 2 || !got[0].StartedAt.After(got[1].StartedAt) {
				t.Fatalf("FindBySession = %+v", got)
			}
			none, err := svc.FindBySession(ctx, "missing")
			if err != nil || len(none) != 0 {
				t.Fatalf("FindBySession(missing) = %+v, %v", none, err)
			}
		})
	}
}

type recordStore struct {
	storage.Store
	recs []storage.Record
	err  error
}

func (r recordStore) GetAll(context.Context, string) ([]storage.Record, error) {
	return r.recs, r.err
}

func TestListSkipsCorruptEntries(t *testing.T) {
	st := recordStore{recs: []storage.Record{
		{Key: 1, Payload: []byte(`{"game_name":"Poker","started_at":"2026-05-01T12:00:00Z"}`)},
		{Key: 2, Payload: []byte(`{"game_name":`)},
		{Key: 3, Payload: []byte(`{"game_name":"Hearts","started_at":"2026-05-02T12:00:00Z"}`)},
	}}
	got, err := NewService(st).List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 2 || got[0].Key != 3 || got[1].Key != 1 {
		t.Fatalf("List = %+v", got)
	}
	if _, err := NewService(st).Get(context.Background(), 2); !errors.Is(err, ErrEntryNotFound) {
		t.Fatalf("Get corrupt err = %v", err)
	}
}

func TestListPropagatesUnavailable(t *testing.T) {
	st := recordStore{err: storage.Unavailable("get_all", storage.CollectionGames, errors.New("io"))}
	if _, err := NewService(st).List(context.Background()); !storage.IsUnavailable(err) {
		t.Fatalf("err = %v", err)
	}
}
