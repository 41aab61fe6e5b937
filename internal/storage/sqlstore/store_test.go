package sqlstore

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"scoreboard/internal/storage"
	"scoreboard/internal/storage/storagetest"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	return New(DialectSQLite, filepath.Join(t.TempDir(), "scoreboard.db3"))
}

func TestSQLiteStoreContract(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store { return openSQLite(t) })
}

func TestSingletonRowUsesSentinelKey(t *testing.T) {
	ctx := context.Background()
	st := openSQLite(t)
	defer st.Close()

	if err := st.Upsert(ctx, storage.CollectionActive, map[string]string{"game_name": "Poker"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := st.Upsert(ctx, storage.CollectionActive, map[string]string{"game_name": "Rummy"}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	db, err := st.handle(ctx)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	var (
		n   int
		key string
	)
	row := db.QueryRowContext(ctx, `SELECT COUNT(*), MAX(logical_key) FROM records WHERE collection_name = ?`, storage.CollectionActive)
	if err := row.Scan(&n, &key); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if n != 1 || key != storage.SentinelKey {
		t.Fatalf("rows=%d key=%q, want 1 row keyed %q", n, key, storage.SentinelKey)
	}
}

func TestBootstrapCollapsesDuplicateSentinels(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "legacy.db3")

	raw, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open raw: %v", err)
	}
	stmts := []string{
		DialectSQLite.schema()[0],
		`INSERT INTO records (collection_name, logical_key, data_payload, created_at, updated_at) VALUES ('active', 'current', '{"game_name":"old"}', '', '')`,
		`INSERT INTO records (collection_name, logical_key, data_payload, created_at, updated_at) VALUES ('active', 'current', '{"game_name":"new"}', '', '')`,
	}
	for _, stmt := range stmts {
		if _, err := raw.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	_ = raw.Close()

	st := New(DialectSQLite, path)
	defer st.Close()
	recs, err := st.GetAll(ctx, storage.CollectionActive)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(recs) != 1 || !strings.Contains(string(recs[0].Payload), "new") {
		t.Fatalf("active rows = %d, want only the newest", len(recs))
	}

	db, err := st.handle(ctx)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	_, err = db.ExecContext(ctx, `INSERT INTO records (collection_name, logical_key, data_payload, created_at, updated_at) VALUES ('active', 'current', '{}', '', '')`)
	if err == nil {
		t.Fatal("expected unique sentinel index to reject a second row")
	}
}

func TestMissingDSNIsUnavailable(t *testing.T) {
	st := New(DialectSQLite, "  ")
	err := st.Init(context.Background())
	if err == nil {
		t.Fatal("expected error for empty dsn")
	}
	if !storage.IsUnavailable(err) {
		t.Fatalf("err = %v, want storage unavailable", err)
	}
}

func TestRebind(t *testing.T) {
	q := `SELECT id FROM records WHERE collection_name = ? AND id = ?`
	if got := DialectSQLite.rebind(q); got != q {
		t.Fatalf("sqlite rebind changed query: %s", got)
	}
	want := `SELECT id FROM records WHERE collection_name = $1 AND id = $2`
	if got := DialectPostgres.rebind(q); got != want {
		t.Fatalf("postgres rebind = %s", got)
	}
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{in: "sqlite", want: DialectSQLite},
		{in: "SQLite3", want: DialectSQLite},
		{in: "postgres", want: DialectPostgres},
		{in: "pgx", want: DialectPostgres},
		{in: "mysql", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDialect(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseDialect(%q) expected error", tt.in)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("ParseDialect(%q) = %q, %v", tt.in, got, err)
		}
	}
}
