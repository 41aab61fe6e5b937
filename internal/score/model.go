package score

import (
	"strings"
	"time"
)

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type RoundScore struct {
	PlayerID string `json:"player_id"`
	Score    int    `json:"score"`
}

type Round struct {
	Number     int          `json:"number"`
	Scores     []RoundScore `json:"scores"`
	IsComplete bool         `json:"is_complete"`
}

// ScoreFor returns the player's score in this round and whether one was recorded.
func (r *Round) ScoreFor(playerID string) (int, bool) {
	for _, s := range r.Scores {
		if s.PlayerID == playerID {
			return s.Score, true
		}
	}
	return 0, false
}

// GameSession is one in-progress or finished game. Totals are never stored;
// they are recomputed from Rounds on every read.
type GameSession struct {
	ID           string     `json:"id"`
	GameName     string     `json:"game_name"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Players      []Player   `json:"players"`
	Rounds       []Round    `json:"rounds"`
	CurrentRound int        `json:"current_round"`
}

func NewGameSession(id, name string, startedAt time.Time) *GameSession {
	return &GameSession{
		ID:           id,
		GameName:     name,
		StartedAt:    startedAt.UTC(),
		Players:      []Player{},
		Rounds:       []Round{},
		CurrentRound: 1,
	}
}

// IsBlank reports whether the session carries no game name. Blank sessions
// found in the active slot are treated as absent.
func (g *GameSession) IsBlank() bool {
	return g == nil || strings.TrimSpace(g.GameName) == ""
}

func (g *GameSession) HasPlayer(id string) bool {
	return g.playerIndex(id) >= 0
}

func (g *GameSession) HasPlayerNamed(name string) bool {
	for _, p := range g.Players {
		if strings.EqualFold(p.Name, name) {
			return true
		}
	}
	return false
}

func (g *GameSession) playerIndex(id string) int {
	for i, p := range g.Players {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (g *GameSession) roundIndex(number int) int {
	for i, r := range g.Rounds {
		if r.Number == number {
			return i
		}
	}
	return -1
}

// CurrentRoundData returns the round for CurrentRound without creating it.
func (g *GameSession) CurrentRoundData() (Round, bool) {
	i := g.roundIndex(g.CurrentRound)
	if i < 0 {
		return Round{Number: g.CurrentRound}, false
	}
	return g.Rounds[i], true
}

// currentRoundRef lazily materializes the round for CurrentRound.
func (g *GameSession) currentRoundRef() *Round {
	if i := g.roundIndex(g.CurrentRound); i >= 0 {
		return &g.Rounds[i]
	}
	g.Rounds = append(g.Rounds, Round{Number: g.CurrentRound, Scores: []RoundScore{}})
	return &g.Rounds[len(g.Rounds)-1]
}

func (g *GameSession) AppendPlayer(p Player) {
	g.Players = append(g.Players, p)
}

// RemovePlayer drops the player and every score they recorded in any round.
// It reports whether the player existed.
func (g *GameSession) RemovePlayer(id string) bool {
	i := g.playerIndex(id)
	if i < 0 {
		return false
	}
	g.Players = append(g.Players[:i:i], g.Players[i+1:]...)
	for ri := range g.Rounds {
		kept := g.Rounds[ri].Scores[:0]
		for _, s := range g.Rounds[ri].Scores {
			if s.PlayerID != id {
				kept = append(kept, s)
			}
		}
		g.Rounds[ri].Scores = kept
	}
	return true
}

// SetScore records the player's score for the current round, replacing any
// earlier score for the same round.
func (g *GameSession) SetScore(playerID string, value int) {
	r := g.currentRoundRef()
	for i := range r.Scores {
		if r.Scores[i].PlayerID == playerID {
			r.Scores = append(r.Scores[:i:i], r.Scores[i+1:]...)
			break
		}
	}
	r.Scores = append(r.Scores, RoundScore{PlayerID: playerID, Score: value})
}

// Advance closes the current round and moves to the next one.
func (g *GameSession) Advance() {
	g.currentRoundRef().IsComplete = true
	g.CurrentRound++
}

func (g *GameSession) Totals() map[string]int {
	return Totals(g.Rounds)
}

func (g *GameSession) TotalFor(playerID string) int {
	return Totals(g.Rounds)[playerID]
}

func (g *GameSession) ScoreAt(playerID string, roundNumber int) int {
	return ScoreAt(g.Rounds, playerID, roundNumber)
}

// HistoryEntry is the flattened, write-once archive form of a finished session.
type HistoryEntry struct {
	Key          int64      `json:"key,omitempty"`
	SessionID    string     `json:"session_id"`
	GameName     string     `json:"game_name"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	Players      []Player   `json:"players"`
	Rounds       []Round    `json:"rounds"`
	CurrentRound int        `json:"current_round"`
}

func NewHistoryEntry(g *GameSession) HistoryEntry {
	players := make([]Player, len(g.Players))
	copy(players, g.Players)
	return HistoryEntry{
		SessionID:    g.ID,
		GameName:     g.GameName,
		StartedAt:    g.StartedAt,
		EndedAt:      g.EndedAt,
		Players:      players,
		Rounds:       cloneRounds(g.Rounds),
		CurrentRound: g.CurrentRound,
	}
}

func (h *HistoryEntry) SetStoreKey(key int64) { h.Key = key }

func (h HistoryEntry) StoreKey() int64 { return h.Key }

func (h HistoryEntry) Totals() map[string]int {
	return Totals(h.Rounds)
}

func (h HistoryEntry) Duration() time.Duration {
	if h.EndedAt == nil {
		return 0
	}
	return h.EndedAt.Sub(h.StartedAt)
}

func cloneRounds(in []Round) []Round {
	out := make([]Round, len(in))
	for i, r := range in {
		scores := make([]RoundScore, len(r.Scores))
		copy(scores, r.Scores)
		out[i] = Round{Number: r.Number, Scores: scores, IsComplete: r.IsComplete}
	}
	return out
}
