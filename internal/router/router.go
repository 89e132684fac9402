package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"xpert-backend/internal/handlers"
	"xpert-backend/internal/middleware"
	"xpert-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	limiter *middleware.RateLimiter,
	chatHandler *handlers.ChatHandler,
	analysisHandler *handlers.AnalysisHandler,
	chatStream *websocket.ChatStream,
	frontendURL string,
	trustProxy bool,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	// Forwarded headers are client-controlled unless a proxy overwrites them;
	// the rate limiter keys on whatever RemoteAddr ends up being.
	if trustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{frontendURL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// ──── Public ────
	r.Get("/", analysisHandler.Index)
	r.Get("/health", analysisHandler.Health)

	// ──── Classifier & Chat ────
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware)
		r.Use(jwtAuth.Middleware)

		r.Post("/analyze", analysisHandler.Analyze)

		r.Route("/v1/chat", func(r chi.Router) {
			r.Post("/completions", chatHandler.Completions)
			r.Get("/ws", chatStream.HandleWebSocket)
		})
	})

	return r
}
