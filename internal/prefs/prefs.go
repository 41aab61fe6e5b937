// Package prefs is a best-effort string key-value store for cheap reads such
// as "is there an active game". It is a cache, never the source of truth:
// backend failures are logged and read as absence.
package prefs

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
)

const (
	KeyHasActiveGame = "hasActiveGame"
	KeyLastGameName  = "lastGameName"
	KeyLastPlayers   = "lastPlayers"
)

type Backend interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

type Preferences struct {
	backend Backend
}

func New(backend Backend) *Preferences {
	return &Preferences{backend: backend}
}

func (p *Preferences) Get(ctx context.Context, key string) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	v, ok, err := p.backend.Get(key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("preference read failed")
		return "", false
	}
	return v, ok
}

func (p *Preferences) Set(ctx context.Context, key, value string) {
	if ctx.Err() != nil {
		return
	}
	if err := p.backend.Set(key, value); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("preference write failed")
	}
}

func (p *Preferences) Remove(ctx context.Context, key string) {
	if ctx.Err() != nil {
		return
	}
	if err := p.backend.Remove(key); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("preference remove failed")
	}
}

func (p *Preferences) HasActiveGame(ctx context.Context) bool {
	v, ok := p.Get(ctx, KeyHasActiveGame)
	return ok && strings.EqualFold(strings.TrimSpace(v), "true")
}

func (p *Preferences) SetHasActiveGame(ctx context.Context, active bool) {
	v := "false"
	if active {
		v = "true"
	}
	p.Set(ctx, KeyHasActiveGame, v)
}

func (p *Preferences) LastGameName(ctx context.Context) (string, bool) {
	v, ok := p.Get(ctx, KeyLastGameName)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

func (p *Preferences) SetLastGameName(ctx context.Context, name string) {
	p.Set(ctx, KeyLastGameName, name)
}

// LastPlayers decodes the JSON-array-encoded player list. A malformed value
// reads as absent.
func (p *Preferences) LastPlayers(ctx context.Context) ([]string, bool) {
	v, ok := p.Get(ctx, KeyLastPlayers)
	if !ok {
		return nil, false
	}
	var names []string
	if err := json.Unmarshal([]byte(v), &names); err != nil {
		log.Warn().Err(err).Msg("ignore malformed last players preference")
		return nil, false
	}
	return names, true
}

func (p *Preferences) SetLastPlayers(ctx context.Context, names []string) {
	if names == nil {
		names = []string{}
	}
	b, err := json.Marshal(names)
	if err != nil {
		return
	}
	p.Set(ctx, KeyLastPlayers, string(b))
}
