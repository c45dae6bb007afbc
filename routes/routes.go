package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/Dosada05/badminton-platform/docs"
	"github.com/Dosada05/badminton-platform/handlers"
	"github.com/Dosada05/badminton-platform/middleware"
)

type Handlers struct {
	Match     *handlers.MatchHandler
	Account   *handlers.AccountHandler
	WebSocket *handlers.WebSocketHandler
	Health    *handlers.HealthHandler
}

type Options struct {
	JWTSecret      []byte
	AllowedOrigins []string
	Logger         *slog.Logger
}

func SetupRoutes(router chi.Router, h Handlers, opts Options) {
	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/healthz", h.Health.Health)
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(opts.JWTSecret, opts.Logger))

		// Upgraded connections outlive any request timeout.
		r.Get("/ws", h.WebSocket.ServeWs)

		r.Group(func(r chi.Router) {
			r.Use(chiMiddleware.Timeout(30 * time.Second))

			r.Route("/matches", func(r chi.Router) {
				r.Post("/", h.Match.Submit)
				r.Route("/{matchID}", func(r chi.Router) {
					r.Get("/", h.Match.Get)
					r.Post("/confirm", h.Match.Confirm)
					r.Post("/reject", h.Match.Reject)
				})
			})

			r.Route("/accounts/{accountID}", func(r chi.Router) {
				r.Get("/pending", h.Account.Pending)
				r.Get("/matches", h.Account.Matches)
				r.Get("/ratings", h.Account.Ratings)
				r.Get("/rating-history", h.Account.RatingHistory)
			})
		})
	})
}
