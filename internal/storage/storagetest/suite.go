// Package storagetest holds the behavioural checks every storage backend must
// pass.
package storagetest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"scoreboard/internal/storage"
)

type doc struct {
	Key       int64     `json:"key,omitempty"`
	SessionID string    `json:"session_id"`
	GameName  string    `json:"game_name"`
	StartedAt time.Time `json:"started_at"`
}

func (d *doc) SetStoreKey(k int64) { d.Key = k }
func (d doc) StoreKey() int64      { return d.Key }

// Run exercises the storage contract against stores returned by open. Each
// subtest gets a fresh, empty store.
func Run(t *testing.T, open func(t *testing.T) storage.Store) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, ctx context.Context, st storage.Store)
	}{
		{"InitIdempotent", testInitIdempotent},
		{"AddAssignsDistinctKeys", testAddAssignsDistinctKeys},
		{"GetAllCarriesKeys", testGetAllCarriesKeys},
		{"DeleteMissingIsNoop", testDeleteMissingIsNoop},
		{"SingletonUpsertOverwrites", testSingletonUpsertOverwrites},
		{"SingletonClearOnlyTouchesSentinel", testSingletonClearOnlyTouchesSentinel},
		{"PluralUpsertWithIdentityUpdates", testPluralUpsertWithIdentityUpdates},
		{"PluralClearRemovesEverything", testPluralClearRemovesEverything},
		{"GetFirstOnEmpty", testGetFirstOnEmpty},
		{"CorruptRecordDecodesAsAbsent", testCorruptRecordDecodesAsAbsent},
		{"ConcurrentAddsSerialize", testConcurrentAddsSerialize},
		{"ConcurrentSingletonUpsertsKeepOneRecord", testConcurrentSingletonUpserts},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := open(t)
			t.Cleanup(func() { _ = st.Close() })
			tt.fn(t, context.Background(), st)
		})
	}
}

func testInitIdempotent(t *testing.T, ctx context.Context, st storage.Store) {
	for i := 0; i < 3; i++ {
		if err := st.Init(ctx); err != nil {
			t.Fatalf("Init #%d: %v", i, err)
		}
	}
}

func testAddAssignsDistinctKeys(t *testing.T, ctx context.Context, st storage.Store) {
	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		key, err := st.Add(ctx, storage.CollectionGames, doc{SessionID: "s", GameName: "g"})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		if key <= 0 || seen[key] {
			t.Fatalf("key %d not positive or reused", key)
		}
		seen[key] = true
	}
}

func testGetAllCarriesKeys(t *testing.T, ctx context.Context, st storage.Store) {
	want := map[int64]string{}
	for _, name := range []string{"Poker", "Rummy", "Hearts"} {
		key, err := st.Add(ctx, storage.CollectionGames, doc{SessionID: name, GameName: name})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		want[key] = name
	}
	recs, err := st.GetAll(ctx, storage.CollectionGames)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	docs := storage.DecodeAll[doc](recs)
	if len(docs) != len(want) {
		t.Fatalf("got %d docs, want %d", len(docs), len(want))
	}
	for _, d := range docs {
		if want[d.Key] != d.GameName {
			t.Fatalf("doc key %d = %q, want %q", d.Key, d.GameName, want[d.Key])
		}
	}

	victim := docs[1].Key
	if err := st.Delete(ctx, storage.CollectionGames, victim); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	recs, err = st.GetAll(ctx, storage.CollectionGames)
	if err != nil {
		t.Fatalf("GetAll after delete: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records after delete, want 2", len(recs))
	}
	for _, r := range recs {
		if r.Key == victim {
			t.Fatalf("deleted key %d still present", victim)
		}
	}
}

func testDeleteMissingIsNoop(t *testing.T, ctx context.Context, st storage.Store) {
	if err := st.Delete(ctx, storage.CollectionGames, 9999); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}
	if err := st.Clear(ctx, storage.CollectionActive); err != nil {
		t.Fatalf("Clear empty singleton: %v", err)
	}
	if err := st.Clear(ctx, "never_written"); err != nil {
		t.Fatalf("Clear unknown collection: %v", err)
	}
}

func testSingletonUpsertOverwrites(t *testing.T, ctx context.Context, st storage.Store) {
	for _, name := range []string{"first", "second"} {
		if err := st.Upsert(ctx, storage.CollectionActive, doc{GameName: name}); err != nil {
			t.Fatalf("Upsert %s: %v", name, err)
		}
	}
	recs, err := st.GetAll(ctx, storage.CollectionActive)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("singleton holds %d records, want 1", len(recs))
	}
	rec, ok, err := st.GetFirst(ctx, storage.CollectionActive)
	if err != nil || !ok {
		t.Fatalf("GetFirst ok=%v err=%v", ok, err)
	}
	d, ok := storage.Decode[doc](rec)
	if !ok || d.GameName != "second" {
		t.Fatalf("GetFirst = %+v, want second", d)
	}
}

func testSingletonClearOnlyTouchesSentinel(t *testing.T, ctx context.Context, st storage.Store) {
	if _, err := st.Add(ctx, storage.CollectionGames, doc{GameName: "kept"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := st.Upsert(ctx, storage.CollectionActive, doc{GameName: "live"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := st.Clear(ctx, storage.CollectionActive); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, ok, err := st.GetFirst(ctx, storage.CollectionActive); err != nil || ok {
		t.Fatalf("active after clear ok=%v err=%v", ok, err)
	}
	recs, err := st.GetAll(ctx, storage.CollectionGames)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("games after active clear = %d, want 1", len(recs))
	}
}

func testPluralUpsertWithIdentityUpdates(t *testing.T, ctx context.Context, st storage.Store) {
	key, err := st.Add(ctx, storage.CollectionGames, doc{GameName: "draft"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := st.Upsert(ctx, storage.CollectionGames, doc{Key: key, GameName: "final"}); err != nil {
		t.Fatalf("Upsert with key: %v", err)
	}
	if err := st.Upsert(ctx, storage.CollectionGames, doc{GameName: "fresh"}); err != nil {
		t.Fatalf("Upsert without key: %v", err)
	}
	recs, err := st.GetAll(ctx, storage.CollectionGames)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	docs := storage.DecodeAll[doc](recs)
	if len(docs) != 2 {
		t.Fatalf("got %d docs, want 2", len(docs))
	}
	byKey := map[int64]string{}
	for _, d := range docs {
		byKey[d.Key] = d.GameName
	}
	if byKey[key] != "final" {
		t.Fatalf("record %d = %q, want final", key, byKey[key])
	}
}

func testPluralClearRemovesEverything(t *testing.T, ctx context.Context, st storage.Store) {
	var last int64
	for i := 0; i < 3; i++ {
		k, err := st.Add(ctx, storage.CollectionGames, doc{GameName: "g"})
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
		last = k
	}
	if err := st.Clear(ctx, storage.CollectionGames); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	recs, err := st.GetAll(ctx, storage.CollectionGames)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("got %d records after clear", len(recs))
	}
	k, err := st.Add(ctx, storage.CollectionGames, doc{GameName: "after"})
	if err != nil {
		t.Fatalf("Add after clear: %v", err)
	}
	if k <= last {
		t.Fatalf("key %d reused after clear (last %d)", k, last)
	}
}

func testGetFirstOnEmpty(t *testing.T, ctx context.Context, st storage.Store) {
	for _, c := range []string{storage.CollectionActive, storage.CollectionGames} {
		if _, ok, err := st.GetFirst(ctx, c); err != nil || ok {
			t.Fatalf("GetFirst(%s) ok=%v err=%v", c, ok, err)
		}
	}
	if _, err := st.Add(ctx, storage.CollectionGames, doc{GameName: "only"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	rec, ok, err := st.GetFirst(ctx, storage.CollectionGames)
	if err != nil || !ok {
		t.Fatalf("GetFirst(games) ok=%v err=%v", ok, err)
	}
	if rec.Key <= 0 {
		t.Fatalf("plural first record key = %d", rec.Key)
	}
}

func testCorruptRecordDecodesAsAbsent(t *testing.T, ctx context.Context, st storage.Store) {
	if _, err := st.Add(ctx, storage.CollectionGames, doc{GameName: "good"}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	// A JSON string is a valid payload but not a doc.
	if _, err := st.Add(ctx, storage.CollectionGames, json.RawMessage(`"not a document"`)); err != nil {
		t.Fatalf("Add raw: %v", err)
	}
	recs, err := st.GetAll(ctx, storage.CollectionGames)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	docs := storage.DecodeAll[doc](recs)
	if len(docs) != 1 || docs[0].GameName != "good" {
		t.Fatalf("decoded %+v, want only the good doc", docs)
	}
}

func testConcurrentAddsSerialize(t *testing.T, ctx context.Context, st storage.Store) {
	const n = 20
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		keys = map[int64]bool{}
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			k, err := st.Add(ctx, storage.CollectionGames, doc{GameName: "race"})
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			keys[k] = true
		}()
	}
	wg.Wait()
	if len(errs) > 0 {
		t.Fatalf("concurrent add errors: %v", errs)
	}
	if len(keys) != n {
		t.Fatalf("got %d distinct keys, want %d", len(keys), n)
	}
}

func testConcurrentSingletonUpserts(t *testing.T, ctx context.Context, st storage.Store) {
	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := st.Upsert(ctx, storage.CollectionActive, doc{GameName: fmt.Sprintf("writer-%d", i)})
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if len(errs) > 0 {
		t.Fatalf("concurrent upsert errors: %v", errs)
	}
	recs, err := st.GetAll(ctx, storage.CollectionActive)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("singleton holds %d records after concurrent upserts, want 1", len(recs))
	}
	rec, ok, err := st.GetFirst(ctx, storage.CollectionActive)
	if err != nil || !ok {
		t.Fatalf("GetFirst ok=%v err=%v", ok, err)
	}
	if d, ok := storage.Decode[doc](rec); !ok || !strings.HasPrefix(d.GameName, "writer-") {
		t.Fatalf("GetFirst = %+v", d)
	}
}
