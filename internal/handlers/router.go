// internal/handlers/router.go
package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jason-s-yu/arena/internal/lobby"
	"github.com/jason-s-yu/arena/internal/messaging"
	"github.com/jason-s-yu/arena/internal/middleware"
	"github.com/jason-s-yu/arena/internal/slotrules"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Rules          *slotrules.Table
	Lobbies        *lobby.Manager
	Messages       *messaging.Dispatcher
	Notifications  Subscriber
	Logger         logrus.FieldLogger
	AllowedOrigins []string
}

// NewRouter mounts every route. Everything except /healthz and
// /slots/validate requires a valid auth token. Writes other than deleting
// one's own message also require the operator role.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.LogMiddleware(logger))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}).Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/slots/validate", ValidateSlotsHandler(d.Rules, logger))

	// the socket authenticates itself so it can answer with close codes
	r.Get("/notifications/ws", NotificationsWSHandler(d.Notifications, logger, origins))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate)

		r.Route("/tournaments/{tournamentID}", func(r chi.Router) {
			op := r.With(middleware.RequireOperator)

			op.Put("/league", EnableLeagueHandler(d.Lobbies, logger))
			r.Get("/league", GetLeagueHandler(d.Lobbies, logger))

			op.Post("/lobbies/allocate", AllocateLobbiesHandler(d.Lobbies, logger))
			op.Post("/lobbies/grow", GrowLobbiesHandler(d.Lobbies, logger))
			r.Get("/lobbies", ListLobbiesHandler(d.Lobbies, logger))
			r.Get("/lobbies/mine", MyLobbyHandler(d.Lobbies, logger))

			op.Post("/messages", SendMessageHandler(d.Messages, logger))
			r.Get("/messages", ListMessagesHandler(d.Messages, logger))
		})

		r.Route("/lobbies/{lobbyID}", func(r chi.Router) {
			r.Use(middleware.RequireOperator)
			r.Put("/credentials", SetCredentialsHandler(d.Lobbies, logger))
			r.Post("/credentials/publish", PublishCredentialsHandler(d.Lobbies, logger))
			r.Put("/status", SetLobbyStatusHandler(d.Lobbies, logger))
		})

		r.Delete("/messages/{messageID}", DeleteMessageHandler(d.Messages, logger))
	})

	return r
}
