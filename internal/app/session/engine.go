// Package session is the scoring state machine. An Engine owns one in-memory
// GameSession, applies mutations to it, and checkpoints it to the active slot
// of the storage port on request.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scoreboard/internal/prefs"
	"scoreboard/internal/score"
	"scoreboard/internal/storage"

	"github.com/rs/zerolog/log"
)

// Engine is not safe for concurrent mutation; callers serialize access.
type Engine struct {
	store storage.Store
	prefs *prefs.Preferences
	now   func() time.Time
	newID func() string

	Current *score.GameSession
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

func NewEngine(st storage.Store, pf *prefs.Preferences, opts ...Option) *Engine {
	e := &Engine{
		store: st,
		prefs: pf,
		now:   time.Now,
		newID: score.NewID,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.Current = score.NewGameSession(e.newID(), "", e.now())
	return e
}

// NewGame discards the in-memory session without archiving it.
func (e *Engine) NewGame(name string) {
	e.Current = score.NewGameSession(e.newID(), strings.TrimSpace(name), e.now())
	log.Debug().Str("session_id", e.Current.ID).Str("game", e.Current.GameName).Msg("new game")
}

// AddPlayer appends a player. Blank names and case-insensitive duplicates are
// ignored.
func (e *Engine) AddPlayer(name string) {
	name = strings.TrimSpace(name)
	if name == "" || e.Current.HasPlayerNamed(name) {
		return
	}
	e.Current.AppendPlayer(score.Player{ID: e.newID(), Name: name})
}

// RemovePlayer removes the player and every score they recorded.
func (e *Engine) RemovePlayer(id string) {
	e.Current.RemovePlayer(id)
}

// RecordScore sets the player's score for the current round, replacing an
// earlier one. Unknown players are ignored.
func (e *Engine) RecordScore(playerID string, value int) {
	if !e.Current.HasPlayer(playerID) {
		return
	}
	e.Current.SetScore(playerID, value)
}

// AdvanceRound does not require every player to have scored.
func (e *Engine) AdvanceRound() {
	e.Current.Advance()
}

func (e *Engine) AllPlayersScoredThisRound() bool {
	r, _ := e.Current.CurrentRoundData()
	return score.AllScored(e.Current.Players, r)
}

func (e *Engine) ScoreAt(playerID string, roundNumber int) int {
	return e.Current.ScoreAt(playerID, roundNumber)
}

func (e *Engine) TotalFor(playerID string) int {
	return e.Current.TotalFor(playerID)
}

func (e *Engine) AllTotals() map[string]int {
	return e.Current.Totals()
}

func (e *Engine) Standings() []score.Standing {
	return score.Standings(e.Current.Players, e.Current.Rounds)
}

// EndGame stamps the end time, archives the session to the games collection
// and clears the active slot. Current keeps the finished session. An unnamed
// session is never archived and yields ErrNoSession. When the archive write
// fails the end time is taken back so the call can be retried.
func (e *Engine) EndGame(ctx context.Context) (int64, error) {
	if e.Current.IsBlank() {
		return 0, ErrNoSession
	}
	ended := e.now().UTC()
	e.Current.EndedAt = &ended

	key, err := e.store.Add(ctx, storage.CollectionGames, score.NewHistoryEntry(e.Current))
	if err != nil {
		e.Current.EndedAt = nil
		return 0, fmt.Errorf("archive game: %w", err)
	}
	log.Info().Str("session_id", e.Current.ID).Int64("key", key).Int("rounds", len(e.Current.Rounds)).Msg("game archived")
	if err := e.ClearActive(ctx); err != nil {
		return key, err
	}
	return key, nil
}

// LoadActive adopts the session in the active slot when it has a name.
func (e *Engine) LoadActive(ctx context.Context) (bool, error) {
	active, ok, err := e.readActive(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		e.prefs.SetHasActiveGame(ctx, false)
		return false, nil
	}
	e.Current = active
	e.prefs.SetHasActiveGame(ctx, true)
	log.Debug().Str("session_id", active.ID).Msg("active game restored")
	return true, nil
}

// SaveActive checkpoints Current. A failure leaves memory ahead of storage
// until the next successful save.
func (e *Engine) SaveActive(ctx context.Context) error {
	if err := e.store.Upsert(ctx, storage.CollectionActive, e.Current); err != nil {
		log.Error().Err(err).Str("session_id", e.Current.ID).Msg("checkpoint active game failed")
		return fmt.Errorf("save active game: %w", err)
	}
	e.prefs.SetHasActiveGame(ctx, true)
	return nil
}

// ClearActive empties the active slot; Current is left untouched.
func (e *Engine) ClearActive(ctx context.Context) error {
	if err := e.store.Clear(ctx, storage.CollectionActive); err != nil {
		return fmt.Errorf("clear active game: %w", err)
	}
	e.prefs.SetHasActiveGame(ctx, false)
	return nil
}

// HasActiveGame trusts a false preference flag outright. A true flag is
// confirmed against the active slot and corrected when stale.
func (e *Engine) HasActiveGame(ctx context.Context) (bool, error) {
	if !e.prefs.HasActiveGame(ctx) {
		return false, nil
	}
	_, ok, err := e.readActive(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Debug().Msg("stale active game flag corrected")
		e.prefs.SetHasActiveGame(ctx, false)
	}
	return ok, nil
}

// RememberSetup stores the current game name and player names so the next
// game can be prefilled.
func (e *Engine) RememberSetup(ctx context.Context) {
	if e.Current.IsBlank() {
		return
	}
	names := make([]string, 0, len(e.Current.Players))
	for _, p := range e.Current.Players {
		names = append(names, p.Name)
	}
	e.prefs.SetLastGameName(ctx, e.Current.GameName)
	e.prefs.SetLastPlayers(ctx, names)
}

type Setup struct {
	GameName string   `json:"game_name"`
	Players  []string `json:"players"`
}

func (e *Engine) LastSetup(ctx context.Context) Setup {
	name, _ := e.prefs.LastGameName(ctx)
	players, _ := e.prefs.LastPlayers(ctx)
	if players == nil {
		players = []string{}
	}
	return Setup{GameName: name, Players: players}
}

func (e *Engine) readActive(ctx context.Context) (*score.GameSession, bool, error) {
	rec, ok, err := e.store.GetFirst(ctx, storage.CollectionActive)
	if err != nil {
		return nil, false, fmt.Errorf("read active game: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	active, ok := storage.Decode[score.GameSession](rec)
	if !ok || active.IsBlank() {
		return nil, false, nil
	}
	if active.CurrentRound < 1 {
		active.CurrentRound = 1
	}
	return &active, true, nil
}
