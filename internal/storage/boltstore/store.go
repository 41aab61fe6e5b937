// Package boltstore is the document-oriented storage backend: one bbolt
// bucket per logical collection, auto-incrementing out-of-line keys, and a
// fixed sentinel key for singleton collections.
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"scoreboard/internal/storage"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	bolt "go.etcd.io/bbolt"
)

// SchemaVersion is bumped whenever the bucket layout changes. Any bump drops
// the transient active bucket and rebuilds indexes; games are kept.
const SchemaVersion = 7

var (
	metaBucket       = []byte("meta")
	schemaVersionKey = []byte("schema_version")
	sentinelKey      = []byte(storage.SentinelKey)
)

type index struct {
	bucket string
	field  string
}

var collectionIndexes = map[string][]index{
	storage.CollectionGames: {
		{bucket: "games.by_session", field: "session_id"},
		{bucket: "games.by_started", field: "started_at"},
	},
}

type Store struct {
	path    string
	timeout time.Duration

	mu sync.Mutex
	db *bolt.DB
}

func New(path string, openTimeout time.Duration) *Store {
	if openTimeout <= 0 {
		openTimeout = time.Second
	}
	return &Store{path: path, timeout: openTimeout}
}

func (s *Store) Init(ctx context.Context) error {
	_, err := s.handle(ctx)
	return err
}

func (s *Store) handle(ctx context.Context) (*bolt.DB, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db, nil
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, storage.Unavailable("init", "", err)
		}
	}
	db, err := bolt.Open(s.path, 0o600, &bolt.Options{Timeout: s.timeout})
	if err != nil {
		return nil, storage.Unavailable("init", "", err)
	}
	if err := db.Update(migrate); err != nil {
		_ = db.Close()
		return nil, storage.Unavailable("init", "", err)
	}
	s.db = db
	return db, nil
}

func migrate(tx *bolt.Tx) error {
	meta, err := tx.CreateBucketIfNotExists(metaBucket)
	if err != nil {
		return err
	}
	current := 0
	if v := meta.Get(schemaVersionKey); v != nil {
		current, _ = strconv.Atoi(string(v))
	}
	if _, err := tx.CreateBucketIfNotExists([]byte(storage.CollectionGames)); err != nil {
		return err
	}
	if current == SchemaVersion && tx.Bucket([]byte(storage.CollectionActive)) != nil {
		return nil
	}

	log.Info().Int("from", current).Int("to", SchemaVersion).Msg("upgrade document store schema")
	if tx.Bucket([]byte(storage.CollectionActive)) != nil {
		if err := tx.DeleteBucket([]byte(storage.CollectionActive)); err != nil {
			return err
		}
	}
	if _, err := tx.CreateBucket([]byte(storage.CollectionActive)); err != nil {
		return err
	}
	for collection := range collectionIndexes {
		if err := rebuildIndexes(tx, collection); err != nil {
			return err
		}
	}
	return meta.Put(schemaVersionKey, []byte(strconv.Itoa(SchemaVersion)))
}

func (s *Store) Add(ctx context.Context, collection string, value any) (int64, error) {
	payload, err := storage.Encode(value)
	if err != nil {
		return 0, err
	}
	db, err := s.handle(ctx)
	if err != nil {
		return 0, err
	}
	if storage.IsSingleton(collection) {
		return 0, s.putSentinel(db, collection, payload)
	}
	var key int64
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		key = int64(seq)
		return putRecord(tx, b, collection, key, payload)
	})
	if err != nil {
		return 0, storage.Unavailable("add", collection, err)
	}
	return key, nil
}

func (s *Store) GetAll(ctx context.Context, collection string) ([]storage.Record, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	out := []storage.Record{}
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			out = append(out, storage.Record{Key: recordKey(collection, k), Payload: bytes.Clone(v)})
			return nil
		})
	})
	if err != nil {
		return nil, storage.Unavailable("get_all", collection, err)
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, collection string, key int64) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	if storage.IsSingleton(collection) {
		return s.Clear(ctx, collection)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		return deleteRecord(tx, b, collection, key)
	})
	if err != nil {
		return storage.Unavailable("delete", collection, err)
	}
	return nil
}

func (s *Store) Upsert(ctx context.Context, collection string, value any) error {
	payload, err := storage.Encode(value)
	if err != nil {
		return err
	}
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	if storage.IsSingleton(collection) {
		return s.putSentinel(db, collection, payload)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return err
		}
		key, ok := storage.IdentityOf(value)
		if ok {
			if err := deleteRecord(tx, b, collection, key); err != nil {
				return err
			}
			if uint64(key) > b.Sequence() {
				if err := b.SetSequence(uint64(key)); err != nil {
					return err
				}
			}
		} else {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			key = int64(seq)
		}
		return putRecord(tx, b, collection, key, payload)
	})
	if err != nil {
		return storage.Unavailable("upsert", collection, err)
	}
	return nil
}

func (s *Store) GetFirst(ctx context.Context, collection string) (storage.Record, bool, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return storage.Record{}, false, err
	}
	var (
		rec   storage.Record
		found bool
	)
	err = db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return nil
		}
		if storage.IsSingleton(collection) {
			if v := b.Get(sentinelKey); v != nil {
				rec, found = storage.Record{Payload: bytes.Clone(v)}, true
			}
			return nil
		}
		k, v := b.Cursor().First()
		if k != nil {
			rec, found = storage.Record{Key: recordKey(collection, k), Payload: bytes.Clone(v)}, true
		}
		return nil
	})
	if err != nil {
		return storage.Record{}, false, storage.Unavailable("get_first", collection, err)
	}
	return rec, found, nil
}

func (s *Store) Clear(ctx context.Context, collection string) error {
	db, err := s.handle(ctx)
	if err != nil {
		return err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		if storage.IsSingleton(collection) {
			b := tx.Bucket([]byte(collection))
			if b == nil {
				return nil
			}
			return b.Delete(sentinelKey)
		}
		old := tx.Bucket([]byte(collection))
		if old == nil {
			return nil
		}
		seq := old.Sequence()
		if err := tx.DeleteBucket([]byte(collection)); err != nil {
			return err
		}
		b, err := tx.CreateBucket([]byte(collection))
		if err != nil {
			return err
		}
		// keys are never reused after a clear
		if err := b.SetSequence(seq); err != nil {
			return err
		}
		return rebuildIndexes(tx, collection)
	})
	if err != nil {
		return storage.Unavailable("clear", collection, err)
	}
	return nil
}

// FindBySession returns the records of the collection whose session_id field
// equals sessionID, using the secondary index when one exists.
func (s *Store) FindBySession(ctx context.Context, collection, sessionID string) ([]storage.Record, error) {
	db, err := s.handle(ctx)
	if err != nil {
		return nil, err
	}
	idx, ok := indexFor(collection, "session_id")
	if !ok {
		return nil, fmt.Errorf("collection %s has no session index", collection)
	}
	out := []storage.Record{}
	err = db.View(func(tx *bolt.Tx) error {
		ib := tx.Bucket([]byte(idx.bucket))
		b := tx.Bucket([]byte(collection))
		if ib == nil || b == nil {
			return nil
		}
		prefix := append([]byte(sessionID), 0)
		c := ib.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if payload := b.Get(v); payload != nil {
				out = append(out, storage.Record{Key: int64(binary.BigEndian.Uint64(v)), Payload: bytes.Clone(payload)})
			}
		}
		return nil
	})
	if err != nil {
		return nil, storage.Unavailable("find_by_session", collection, err)
	}
	return out, nil
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

func (s *Store) putSentinel(db *bolt.DB, collection string, payload []byte) error {
	err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(collection))
		if err != nil {
			return err
		}
		return b.Put(sentinelKey, payload)
	})
	if err != nil {
		return storage.Unavailable("upsert", collection, err)
	}
	return nil
}

func putRecord(tx *bolt.Tx, b *bolt.Bucket, collection string, key int64, payload []byte) error {
	k := itob(key)
	if err := b.Put(k, payload); err != nil {
		return err
	}
	for _, idx := range collectionIndexes[collection] {
		ib, err := tx.CreateBucketIfNotExists([]byte(idx.bucket))
		if err != nil {
			return err
		}
		if err := ib.Put(indexKey(payload, idx.field, k), k); err != nil {
			return err
		}
	}
	return nil
}

func deleteRecord(tx *bolt.Tx, b *bolt.Bucket, collection string, key int64) error {
	k := itob(key)
	payload := b.Get(k)
	if payload == nil {
		return nil
	}
	for _, idx := range collectionIndexes[collection] {
		if ib := tx.Bucket([]byte(idx.bucket)); ib != nil {
			if err := ib.Delete(indexKey(payload, idx.field, k)); err != nil {
				return err
			}
		}
	}
	return b.Delete(k)
}

func rebuildIndexes(tx *bolt.Tx, collection string) error {
	b := tx.Bucket([]byte(collection))
	for _, idx := range collectionIndexes[collection] {
		if tx.Bucket([]byte(idx.bucket)) != nil {
			if err := tx.DeleteBucket([]byte(idx.bucket)); err != nil {
				return err
			}
		}
		ib, err := tx.CreateBucket([]byte(idx.bucket))
		if err != nil {
			return err
		}
		if b == nil {
			continue
		}
		err = b.ForEach(func(k, v []byte) error {
			return ib.Put(indexKey(v, idx.field, k), bytes.Clone(k))
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func indexFor(collection, field string) (index, bool) {
	for _, idx := range collectionIndexes[collection] {
		if idx.field == field {
			return idx, true
		}
	}
	return index{}, false
}

// indexKey is field value, NUL, record key. The record key suffix keeps
// entries for equal field values distinct.
func indexKey(payload []byte, field string, key []byte) []byte {
	v := gjson.GetBytes(payload, field).String()
	v = strings.ReplaceAll(v, "\x00", "")
	out := make([]byte, 0, len(v)+1+len(key))
	out = append(out, v...)
	out = append(out, 0)
	return append(out, key...)
}

func recordKey(collection string, k []byte) int64 {
	if storage.IsSingleton(collection) || len(k) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(k))
}

func itob(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

var _ storage.Store = (*Store)(nil)
