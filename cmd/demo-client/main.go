package main

import (
	"context"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scoreboard/internal/config"
	"scoreboard/internal/logging"

	"github.com/rs/zerolog/log"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadDemo()
	if err != nil {
		log.Fatal().Err(err).Msg("load demo config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	res, err := play(ctx, newClient(cfg.BaseURL), cfg, rnd)
	if err != nil {
		log.Fatal().Err(err).Str("url", cfg.BaseURL).Msg("demo game failed")
	}
	for _, s := range res.Game.Standings {
		log.Info().Int("rank", s.Rank).Str("player", s.Player.Name).Int("total", s.Total).Msg("standing")
	}
	log.Info().Int64("history_key", res.Key).Msg("demo game archived")
}

// play runs one scripted game: every player scores a random value each round,
// then the game is ended and archived.
func play(ctx context.Context, c *client, cfg config.DemoConfig, rnd *rand.Rand) (endResult, error) {
	v, err := c.newGame(ctx, cfg.GameName, cfg.Players)
	if err != nil {
		return endResult{}, err
	}
	log.Info().Str("session_id", v.Session.ID).Int("players", len(v.Session.Players)).Msg("demo game started")

	for round := 1; round <= cfg.Rounds; round++ {
		for _, p := range v.Session.Players {
			if _, err := c.recordScore(ctx, p.ID, decide(rnd, cfg.MaxScore)); err != nil {
				return endResult{}, err
			}
		}
		if round == cfg.Rounds {
			break
		}
		if v, err = c.advance(ctx); err != nil {
			return endResult{}, err
		}
		log.Debug().Int("round", v.Session.CurrentRound).Msg("round advanced")
	}
	return c.endGame(ctx)
}

func decide(rnd *rand.Rand, maxScore int) int {
	if maxScore <= 0 {
		return 0
	}
	return rnd.Intn(maxScore + 1)
}
