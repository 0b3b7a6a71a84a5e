package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rifthq/smartstats/internal/agent"
	"github.com/rifthq/smartstats/internal/api/handler"
	customMiddleware "github.com/rifthq/smartstats/internal/api/middleware"
	"github.com/rifthq/smartstats/internal/chat"
	"github.com/rifthq/smartstats/internal/config"
	"github.com/rifthq/smartstats/internal/repository/postgres"
	"github.com/rifthq/smartstats/internal/repository/redis"
	"github.com/rifthq/smartstats/internal/repository/stats"
	"github.com/rifthq/smartstats/internal/security"
	"github.com/rifthq/smartstats/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, db *postgres.DB, statsDB *stats.DB, redisClient *redis.Client) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.TraceID)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", customMiddleware.TraceHeader, customMiddleware.AnonHeader},
		ExposedHeaders:   []string{"X-Request-ID", customMiddleware.TraceHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Initialize security components
	jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)

	// Initialize repositories
	userRepo := postgres.NewUserRepository(db.Pool)
	refreshTokenRepo := postgres.NewRefreshTokenRepository(db.Pool)
	sessionRepo := postgres.NewSessionRepository(db.Pool)
	messageRepo := postgres.NewMessageRepository(db.Pool)
	matchRepo := stats.NewMatchRepository(statsDB)
	playerRepo := stats.NewPlayerRepository(statsDB)
	optionsRepo := stats.NewOptionsRepository(statsDB)

	rateLimiter := redis.NewRateLimiter(
		redisClient,
		cfg.Security.RateLimit.RequestsPerMinute,
		cfg.Security.RateLimit.Burst,
	)

	// Agent gateway and chat services
	agentClient := agent.NewClient(cfg.Agent.BaseURL, cfg.Agent.APIKey, cfg.Agent.QueryTimeout)
	store := chat.NewStore(sessionRepo, messageRepo)
	relay := chat.NewRelay(agentClient, store)
	history := chat.NewHistory(sessionRepo, messageRepo, store)
	files := chat.NewFiles(store, messageRepo, agentClient)

	// Services
	authService := service.NewAuthService(userRepo, refreshTokenRepo, jwtManager, cfg.Auth.RefreshTokenTTL)
	dataService := service.NewDataService(matchRepo, playerRepo, optionsRepo)

	// Handlers
	authHandler := handler.NewAuthHandler(authService)
	chatHandler := handler.NewChatHandler(relay, history, files)
	dataHandler := handler.NewDataHandler(dataService)

	// Middleware
	authMiddleware := customMiddleware.NewAuthMiddleware(jwtManager)
	rateLimitMiddleware := customMiddleware.NewRateLimitMiddleware(rateLimiter)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(db, statsDB))

		// Auth routes (public)
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
		})

		// Chat accepts both logged-in and anonymous principals
		r.Route("/chat", func(r chi.Router) {
			r.Use(authMiddleware.AuthenticateOptional)
			r.Use(rateLimitMiddleware.Limit)

			r.Post("/stream", chatHandler.Stream)
			r.Post("/query", chatHandler.Query)

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", chatHandler.ListSessions)
				r.Post("/", chatHandler.CreateSession)
				r.Get("/{sessionID}/messages", chatHandler.History)
			})

			r.Get("/files/{fileID}", chatHandler.DownloadFile)
		})

		// Stats queries are public but rate limited per principal
		r.Route("/data", func(r chi.Router) {
			r.Use(authMiddleware.AuthenticateOptional)
			r.Use(rateLimitMiddleware.Limit)

			r.Post("/matches/search", dataHandler.SearchMatches)
			r.Get("/players/search", dataHandler.SearchPlayers)
			r.Post("/options", dataHandler.Options)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Get("/users/me", authHandler.Me)
		})
	})

	return r
}
