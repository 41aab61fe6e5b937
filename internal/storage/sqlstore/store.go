// Package sqlstore is the relational storage backend. Every logical
// collection shares one table; rows are told apart by collection_name, and
// singleton collections use logical_key = 'current'.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"scoreboard/internal/storage"
)

type Store struct {
	dialect Dialect
	dsn     string
	now     func() time.Time

	mu sync.Mutex
	db *sql.DB
}

func New(dialect Dialect, dsn string) *Store {
	return &Store{dialect: dialect, dsn: dsn, now: time.Now}
}

func (s *Store) Init(ctx context.Context) error {
	_, err := s.handle(ctx)
	return err
}

func (s *Store) handle(ctx context.Context) (*sql.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	if strings.TrimSpace(s.dsn) == "" {
		return nil, storage.Unavailable("init", "", errors.New("dsn is required"))
	}
	db, err := sql.Open(s.dialect.driverName(), s.dsn)
	if err != nil {
		return nil, storage.Unavailable("init", "", err)
	}
	if s.dialect == DialectSQLite {
		db.SetMaxOpenConns(1)
	}
	if err := s.bootstrap(ctx, db); err != nil {
		_ = db.Close()
		return nil, storage.Unavailable("init", "", err)
	}
	s.db = db
	return db, nil
}

func (s *Store) bootstrap(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	for _, stmt := range s.dialect.pragmas() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply pragma: %w", err)
		}
	}
	for _, stmt := range s.dialect.schema() {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, value any) (int64, error) {
	if storage.IsSingleton(collection) {
		return 0, s.Upsert(ctx, collection, value)
	}
	payload, err := storage.Encode(value)
	if err != nil {
		return 0, err
	}
	db, err := s.handle(ctx)
	if err != nil {
		return 0, err
	}
	id, err := s.insert(ctx, db, collection, "", payload)
	if err != nil {
		return 0, storage.Unavailable("add", collection, err)
	}
	return id, nil
}

func (s *Store) GetAll(ctx context.Context, collection string) ([]storage.Record, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, s.q(`SELECT id, data_payload FROM records WHERE collection_name = ? ORDER BY id ASC`), collection)
	if err != nil {
		return nil, storage.Unavailable("get_all", collection, err)
	}
	defer rows.Close()
	out := []storage.Record{}
	for rows.Next() {
		var (
			id      int64
			payload string
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, storage.Unavailable("get_all", collection, err)
		}
		out = append(out, storage.Record{Key: s.recordKey(collection, id), Payload: []byte(payload)})
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("get_all", collection, err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, collection string, key int64) error {
	if storage.IsSingleton(collection) {
		return s.Clear(ctx, collection)
	}
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, s.q(`DELETE FROM records WHERE collection_name = ? AND id = ?`), collection, key); err != nil {
		return storage.Unavailable("delete", collection, err)
	}
	return nil
}

// Upsert writes singletons through the unique sentinel index, so concurrent
// writers from any number of connections converge on one row. A plural value
// carrying a key replaces that row or is inserted under the key.
func (s *Store) Upsert(ctx context.Context, collection string, value any) error {
	payload, err := storage.Encode(value)
	if err != nil {
		return err
	}
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	now := s.dialect.timeArg(s.now())

	if storage.IsSingleton(collection) {
		_, err := db.ExecContext(ctx, s.q(`INSERT INTO records (collection_name, logical_key, data_payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (collection_name, logical_key) WHERE logical_key <> '' DO UPDATE SET data_payload = excluded.data_payload, updated_at = excluded.updated_at`),
			collection, storage.SentinelKey, string(payload), now, now)
		if err != nil {
			return storage.Unavailable("upsert", collection, err)
		}
		return nil
	}

	key, hasIdentity := storage.IdentityOf(value)
	if !hasIdentity {
		if _, err := s.insert(ctx, db, collection, "", payload); err != nil {
			return storage.Unavailable("upsert", collection, err)
		}
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storage.Unavailable("upsert", collection, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, s.q(`INSERT INTO records (id, collection_name, logical_key, data_payload, created_at, updated_at) VALUES (?, ?, '', ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET data_payload = excluded.data_payload, updated_at = excluded.updated_at
WHERE records.collection_name = excluded.collection_name`),
		key, collection, string(payload), now, now)
	if err != nil {
		return storage.Unavailable("upsert", collection, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.Unavailable("upsert", collection, fmt.Errorf("key %d belongs to another collection", key))
	}
	if err := s.syncSequence(ctx, tx); err != nil {
		return storage.Unavailable("upsert", collection, err)
	}
	if err := tx.Commit(); err != nil {
		return storage.Unavailable("upsert", collection, err)
	}
	return nil
}

func (s *Store) GetFirst(ctx context.Context, collection string) (storage.Record, bool, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return storage.Record{}, false, err
	}
	var row *sql.Row
	if storage.IsSingleton(collection) {
		row = db.QueryRowContext(ctx, s.q(`SELECT id, data_payload FROM records WHERE collection_name = ? AND logical_key = ? LIMIT 1`), collection, storage.SentinelKey)
	} else {
		row = db.QueryRowContext(ctx, s.q(`SELECT id, data_payload FROM records WHERE collection_name = ? ORDER BY id ASC LIMIT 1`), collection)
	}
	var (
		id      int64
		payload string
	)
	if err := row.Scan(&id, &payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Record{}, false, nil
		}
		return storage.Record{}, false, storage.Unavailable("get_first", collection, err)
	}
	return storage.Record{Key: s.recordKey(collection, id), Payload: []byte(payload)}, true, nil
}

func (s *Store) Clear(ctx context.Context, collection string) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	if storage.IsSingleton(collection) {
		_, err = db.ExecContext(ctx, s.q(`DELETE FROM records WHERE collection_name = ? AND logical_key = ?`), collection, storage.SentinelKey)
	} else {
		_, err = db.ExecContext(ctx, s.q(`DELETE FROM records WHERE collection_name = ?`), collection)
	}
	if err != nil {
		return storage.Unavailable("clear", collection, err)
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *Store) insert(ctx context.Context, db *sql.DB, collection, logicalKey string, payload []byte) (int64, error) {
	now := s.dialect.timeArg(s.now())
	var id int64
	err := db.QueryRowContext(ctx,
		s.q(`INSERT INTO records (collection_name, logical_key, data_payload, created_at, updated_at) VALUES (?, ?, ?, ?, ?) RETURNING id`),
		collection, logicalKey, string(payload), now, now,
	).Scan(&id)
	return id, err
}

// syncSequence moves the Postgres id sequence past an explicitly inserted
// key. SQLite AUTOINCREMENT tracks explicit ids on its own.
func (s *Store) syncSequence(ctx context.Context, tx *sql.Tx) error {
	if s.dialect != DialectPostgres {
		return nil
	}
	_, err := tx.ExecContext(ctx, `SELECT setval(pg_get_serial_sequence('records', 'id'), (SELECT COALESCE(MAX(id), 1) FROM records))`)
	return err
}

func (s *Store) recordKey(collection string, id int64) int64 {
	if storage.IsSingleton(collection) {
		return 0
	}
	return id
}

func (s *Store) q(query string) string {
	return s.dialect.rebind(query)
}

var _ storage.Store = (*Store)(nil)
