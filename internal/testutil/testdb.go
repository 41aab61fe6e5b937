// Package testutil provisions throwaway Postgres schemas for relational
// storage tests.
package testutil

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"scoreboard/internal/config"
	"scoreboard/internal/storage/sqlstore"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var testSchemaNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// OpenPostgresStore returns a store bound to a fresh schema. The test is
// skipped when TEST_POSTGRES_DSN is not set. The schema is dropped on cleanup
// unless TEST_KEEP_SCHEMA is true.
func OpenPostgresStore(t *testing.T) *sqlstore.Store {
	t.Helper()
	cfg, err := config.LoadTest()
	if err != nil {
		t.Skipf("skip test db: %v", err)
	}
	dsn := cfg.TestPostgresDSN
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())

	createSchemaSQL, err := schemaDDL("CREATE SCHEMA %s", schema)
	if err != nil {
		t.Fatalf("invalid schema name: %v", err)
	}
	if err := execBase(dsn, createSchemaSQL); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	st := sqlstore.New(sqlstore.DialectPostgres, withSearchPath(dsn, schema))
	t.Cleanup(func() {
		_ = st.Close()
		if cfg.KeepSchema {
			t.Logf("keeping schema %s", schema)
			return
		}
		if dropSchemaSQL, err := schemaDDL("DROP SCHEMA %s CASCADE", schema); err == nil {
			_ = execBase(dsn, dropSchemaSQL)
		}
	})
	return st
}

func execBase(dsn, stmt string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	base, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("open base db: %w", err)
	}
	defer base.Close()
	_, err = base.Exec(ctx, stmt)
	return err
}

func withSearchPath(dsn, schema string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "search_path=" + url.QueryEscape(schema)
}

func schemaDDL(format, schema string) (string, error) {
	if !testSchemaNamePattern.MatchString(schema) {
		return "", fmt.Errorf("schema %q does not match required pattern", schema)
	}
	return fmt.Sprintf(format, pgx.Identifier{schema}.Sanitize()), nil
}
