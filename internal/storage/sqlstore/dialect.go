package sqlstore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func ParseDialect(v string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unknown sql dialect %q", v)
	}
}

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

// dedupeSentinels keeps the newest sentinel row per collection so the unique
// index can be built over tables written before it existed.
const dedupeSentinels = `DELETE FROM records WHERE logical_key <> '' AND id NOT IN (
	SELECT MAX(id) FROM records WHERE logical_key <> '' GROUP BY collection_name, logical_key
)`

// sentinelIndex allows at most one row per singleton collection. It is the
// conflict target of singleton upserts.
const sentinelIndex = `CREATE UNIQUE INDEX IF NOT EXISTS idx_records_sentinel ON records (collection_name, logical_key) WHERE logical_key <> ''`

func (d Dialect) schema() []string {
	if d == DialectPostgres {
		return []string{
			`CREATE TABLE IF NOT EXISTS records (
	id BIGSERIAL PRIMARY KEY,
	collection_name TEXT NOT NULL,
	logical_key TEXT NOT NULL DEFAULT '',
	data_payload TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
			`CREATE INDEX IF NOT EXISTS idx_records_collection_key ON records (collection_name, logical_key)`,
			dedupeSentinels,
			sentinelIndex,
		}
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	collection_name TEXT NOT NULL,
	logical_key TEXT NOT NULL DEFAULT '',
	data_payload TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_records_collection_key ON records (collection_name, logical_key)`,
		dedupeSentinels,
		sentinelIndex,
	}
}

// pragmas are applied once per connection; the embedded store keeps a single
// connection so they hold for every statement.
func (d Dialect) pragmas() []string {
	if d != DialectSQLite {
		return nil
	}
	return []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA synchronous = NORMAL`,
		`PRAGMA busy_timeout = 5000`,
	}
}

// rebind rewrites ? placeholders for dialects that number their parameters.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) timeArg(t time.Time) any {
	if d == DialectPostgres {
		return t
	}
	return t.UTC().Format(time.RFC3339Nano)
}
