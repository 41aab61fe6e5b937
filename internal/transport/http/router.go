package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"scoreboard/internal/app/history"
	appsession "scoreboard/internal/app/session"
	"scoreboard/internal/config"
	"scoreboard/internal/storage"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func NewRouter(st storage.Store, engine *appsession.Engine, cfg config.AppConfig) *chi.Mux {
	gameHandlers := NewGameHandlers(engine)
	historyHandlers := NewHistoryHandlers(history.NewService(st))
	healthHandlers := NewHealthHandlers(st)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware(cfg.Log.HTTPLevel)).Get("/healthz", healthHandlers.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware(cfg.Log.HTTPLevel))

		r.Route("/game", func(r chi.Router) {
			r.Use(BodyCaptureMiddleware(cfg.Server.MaxCaptureBytes))
			r.Get("/", gameHandlers.Current())
			r.Post("/", gameHandlers.NewGame())
			r.Get("/active", gameHandlers.HasActive())
			r.Delete("/active", gameHandlers.ClearActive())
			r.Post("/load", gameHandlers.LoadActive())
			r.Post("/players", gameHandlers.AddPlayer())
			r.Delete("/players/{player_id}", gameHandlers.RemovePlayer())
			r.Post("/scores", gameHandlers.RecordScore())
			r.Post("/rounds/advance", gameHandlers.AdvanceRound())
			r.Post("/end", gameHandlers.EndGame())
		})
		r.Get("/setup", gameHandlers.LastSetup())

		r.Get("/history", historyHandlers.List())
		r.Get("/history/{key}", historyHandlers.Get())
		r.Delete("/history/{key}", historyHandlers.Delete())

		r.Get("/debug/vars", expvar.Handler().ServeHTTP)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteHTTPError(w, http.StatusNotFound, "not_found")
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
