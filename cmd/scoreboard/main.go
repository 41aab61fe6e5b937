package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appsession "scoreboard/internal/app/session"
	"scoreboard/internal/config"
	"scoreboard/internal/logging"
	"scoreboard/internal/prefs"
	httptransport "scoreboard/internal/transport/http"

	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)
	defer func() { _ = logging.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(cfg.Storage)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("storage config invalid")
	}
	defer func() { _ = st.Close() }()
	if err := st.Init(ctx); err != nil {
		log.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("storage init failed")
	}

	pf := prefs.New(prefs.NewFileBackend(cfg.Storage.PrefsPath))
	engine := appsession.NewEngine(st, pf)
	if cfg.Server.LoadActiveOnStart {
		restoreActive(ctx, engine)
	}

	r := httptransport.NewRouter(st, engine, cfg)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	}()

	log.Info().Str("addr", cfg.Server.HTTPAddr).Str("backend", cfg.Storage.Backend).Msg("http listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server stopped")
		return
	}
	log.Info().Msg("server stopped")
}

// restoreActive resumes an unfinished game from the active slot, whatever the
// preference flag says. Failure is not fatal: the host starts with no game and
// the active slot stays as it was.
func restoreActive(ctx context.Context, engine *appsession.Engine) {
	ok, err := engine.LoadActive(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("restore active game failed")
		return
	}
	if ok {
		log.Info().
			Str("session_id", engine.Current.ID).
			Str("game", engine.Current.GameName).
			Int("round", engine.Current.CurrentRound).
			Msg("active game restored")
	}
}
