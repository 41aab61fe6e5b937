package score

import "sort"

// Totals sums every recorded score per player across all rounds.
func Totals(rounds []Round) map[string]int {
	out := make(map[string]int)
	for _, r := range rounds {
		for _, s := range r.Scores {
			out[s.PlayerID] += s.Score
		}
	}
	return out
}

// ScoreAt returns 0 when the round or the score does not exist.
func ScoreAt(rounds []Round, playerID string, roundNumber int) int {
	for i := range rounds {
		if rounds[i].Number != roundNumber {
			continue
		}
		v, _ := rounds[i].ScoreFor(playerID)
		return v
	}
	return 0
}

// AllScored reports whether every player has a score in the round. A game
// without players is trivially fully scored.
func AllScored(players []Player, r Round) bool {
	for _, p := range players {
		if _, ok := r.ScoreFor(p.ID); !ok {
			return false
		}
	}
	return true
}

type Standing struct {
	Player Player `json:"player"`
	Total  int    `json:"total"`
	Rank   int    `json:"rank"`
}

// Standings orders players by total descending; ties keep display order and
// share a rank.
func Standings(players []Player, rounds []Round) []Standing {
	totals := Totals(rounds)
	out := make([]Standing, 0, len(players))
	for _, p := range players {
		out = append(out, Standing{Player: p, Total: totals[p.ID]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Total > out[j].Total })
	for i := range out {
		if i > 0 && out[i].Total == out[i-1].Total {
			out[i].Rank = out[i-1].Rank
			continue
		}
		out[i].Rank = i + 1
	}
	return out
}
