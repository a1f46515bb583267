/*
Package handler provides the HTTP surface of the car-sharing server.

This file defines the main Router, applying logging, CORS, and IP-based
rate limiting before delegating to the health and WebSocket handlers. The
whole protocol runs over the single /ws endpoint; HTTP exists only for the
upgrade and for health reporting.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"carshare/internal/pkg/limiter"
	"carshare/internal/pkg/logx"
	"carshare/internal/pkg/resp"
)

const (
	// ConnectRate and ConnectBurst bound per-IP WebSocket upgrade attempts.
	ConnectRate  = 1.0
	ConnectBurst = 10
)

// Router sets up the HTTP routing table (chi.Router) for the application.
// It initializes the per-IP upgrade rate limiter, configures CORS, and
// applies global middleware.
func Router(deps *AppDeps) http.Handler {
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", HandleHealth(deps))
	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}

// HandleHealth reports service status together with entity counts.
func HandleHealth(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, cars, err := deps.Store.Counts(r.Context())
		if err != nil {
			logx.Error(err, "Health check failed to count entities")
			resp.RespondError(w, nil)
			return
		}

		resp.RespondSuccess(w, map[string]any{
			"status":  "ok",
			"service": "Car Sharing Server",
			"users":   users,
			"cars":    cars,
		})
	}
}
