// Package storage defines the collection-oriented persistence contract shared
// by the document and relational backends.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	CollectionGames  = "games"
	CollectionActive = "active"

	// SentinelKey is the fixed logical key of every singleton collection record.
	SentinelKey = "current"
)

// ErrUnavailable marks backend I/O failures: the store could not be opened,
// read or written.
var ErrUnavailable = errors.New("storage_unavailable")

var singletons = map[string]bool{
	CollectionActive: true,
}

// IsSingleton reports whether the collection holds at most one record under
// SentinelKey.
func IsSingleton(collection string) bool {
	return singletons[collection]
}

// Record is one stored document. Key is the backend-assigned integer key and
// is zero for singleton records.
type Record struct {
	Key     int64
	Payload []byte
}

// Store is implemented by every physical backend. Every method calls Init
// first, so callers never need to.
type Store interface {
	Init(ctx context.Context) error
	Add(ctx context.Context, collection string, value any) (int64, error)
	GetAll(ctx context.Context, collection string) ([]Record, error)
	Delete(ctx context.Context, collection string, key int64) error
	Upsert(ctx context.Context, collection string, value any) error
	GetFirst(ctx context.Context, collection string) (Record, bool, error)
	Clear(ctx context.Context, collection string) error
	Close() error
}

// KeyedValue is implemented by values that carry their own storage key. Upsert
// on a plural collection updates the record with that key when it is positive.
type KeyedValue interface {
	StoreKey() int64
}

// KeySetter receives the storage key of a decoded record.
type KeySetter interface {
	SetStoreKey(key int64)
}

// Unavailable wraps a backend failure so that errors.Is(err, ErrUnavailable)
// holds for callers.
func Unavailable(op, collection string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s %s: %w", ErrUnavailable, op, collection, err)
}

// Encode serializes a value for storage.
func Encode(value any) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

// IdentityOf returns the positive storage key a value carries, if any.
func IdentityOf(value any) (int64, bool) {
	kv, ok := value.(KeyedValue)
	if !ok {
		return 0, false
	}
	if k := kv.StoreKey(); k > 0 {
		return k, true
	}
	return 0, false
}

func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
