// Package history reads and prunes the archive of finished games.
package history

import (
	"context"
	"fmt"
	"sort"

	"scoreboard/internal/score"
	"scoreboard/internal/storage"
)

// SessionIndex is implemented by backends that index archived games by the
// id of the session they were taken from.
type SessionIndex interface {
	FindBySession(ctx context.Context, collection, sessionID string) ([]storage.Record, error)
}

type Service struct {
	store storage.Store
}

func NewService(st storage.Store) *Service {
	return &Service{store: st}
}

// List returns every readable entry, most recently started first. Corrupt
// records are skipped.
func (s *Service) List(ctx context.Context) ([]score.HistoryEntry, error) {
	recs, err := s.store.GetAll(ctx, storage.CollectionGames)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	entries := storage.DecodeAll[score.HistoryEntry](recs)
	sortNewestFirst(entries)
	return entries, nil
}

func (s *Service) Get(ctx context.Context, key int64) (score.HistoryEntry, error) {
	if key <= 0 {
		return score.HistoryEntry{}, ErrInvalidKey
	}
	recs, err := s.store.GetAll(ctx, storage.CollectionGames)
	if err != nil {
		return score.HistoryEntry{}, fmt.Errorf("get history entry: %w", err)
	}
	for _, rec := range recs {
		if rec.Key != key {
			continue
		}
		entry, ok := storage.Decode[score.HistoryEntry](rec)
		if !ok {
			break
		}
		return entry, nil
	}
	return score.HistoryEntry{}, ErrEntryNotFound
}

// Delete removes one entry. A key that is not present is not an error.
func (s *Service) Delete(ctx context.Context, key int64) error {
	if key <= 0 {
		return ErrInvalidKey
	}
	if err := s.store.Delete(ctx, storage.CollectionGames, key); err != nil {
		return fmt.Errorf("delete history entry: %w", err)
	}
	return nil
}

// FindBySession returns the entries archived from one session. Backends
// without a session index are scanned.
func (s *Service) FindBySession(ctx context.Context, sessionID string) ([]score.HistoryEntry, error) {
	if idx, ok := s.store.(SessionIndex); ok {
		recs, err := idx.FindBySession(ctx, storage.CollectionGames, sessionID)
		if err != nil {
			return nil, fmt.Errorf("find history by session: %w", err)
		}
		entries := storage.DecodeAll[score.HistoryEntry](recs)
		sortNewestFirst(entries)
		return entries, nil
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]score.HistoryEntry, 0, 1)
	for _, e := range all {
		if e.SessionID == sessionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func sortNewestFirst(entries []score.HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].StartedAt.After(entries[j].StartedAt)
	})
}
