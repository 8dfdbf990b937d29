// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware and
// routes, and decides:
//   - Which URL patterns map to which handler functions
//   - What middleware runs on which routes
//   - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// main.go loads the config and logger and passes them to New, which creates:
//
//	sqlite.DB ─────────────┬→ AuthService ──────────→ AuthHandler
//	cache → Ticketmaster ──┼→ EventService ─────────→ EventHandler
//	mail.Mailer ───────────┼→ BookmarkService ──────→ BookmarkHandler
//	GoogleProvider ────────┼→ RecommendationService → RecommendationHandler
//	                       └→ PostService ──────────→ PostHandler
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/soundscape/internal/auth"
	"github.com/sakif/soundscape/internal/cache"
	"github.com/sakif/soundscape/internal/config"
	"github.com/sakif/soundscape/internal/handler"
	"github.com/sakif/soundscape/internal/mail"
	"github.com/sakif/soundscape/internal/middleware"
	"github.com/sakif/soundscape/internal/provider"
	"github.com/sakif/soundscape/internal/provider/ticketmaster"
	sqliteRepo "github.com/sakif/soundscape/internal/repository/sqlite"
	"github.com/sakif/soundscape/internal/service"
)

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database connection, the cache client and the event
// service's background writes. Close releases them in that reverse order:
// background writes first, since they still need the database.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger

	db     *sqliteRepo.DB
	cache  cache.Cache
	tokens *auth.TokenService
	events *service.EventService

	authHandler           *handler.AuthHandler
	eventHandler          *handler.EventHandler
	bookmarkHandler       *handler.BookmarkHandler
	recommendationHandler *handler.RecommendationHandler
	postHandler           *handler.PostHandler
	healthHandler         *handler.HealthHandler
}

// New creates a new Server from cfg.
//
// WIRING ORDER:
//  1. Storage: the SQLite database (migrations run here) and the cache
//  2. Integrations: Ticketmaster behind a breaker and cache, mail, Google
//  3. Services, each given only the interfaces it needs
//  4. Handlers, then routes
//
// Optional integrations never stop the server from starting: without a
// Ticketmaster key sync fails with a clear error, without SMTP mail is
// logged instead of sent, and without a Google client id federated sign-in
// answers 500.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	// === STORAGE ===
	db, err := sqliteRepo.New(cfg.Database.URL, logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	tokens, err := auth.NewTokenServiceWithTTL(cfg.Auth.JWTSecret, cfg.Auth.SessionTTL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	resultCache := cache.New(context.Background(), cache.Options{
		RedisAddr:     cfg.Cache.RedisAddr,
		RedisPassword: cfg.Cache.RedisPassword,
		RedisDB:       cfg.Cache.RedisDB,
	}, logger)

	// === INTEGRATIONS ===
	// The cache sits outside the breaker so cached searches still answer
	// while the breaker is open.
	var events provider.Provider = ticketmaster.NewClient(ticketmaster.Config{
		APIKey:  cfg.Provider.APIKey,
		BaseURL: cfg.Provider.BaseURL,
		Timeout: cfg.Provider.Timeout,
	})
	breaker := provider.NewBreaker(events, provider.BreakerSettings{}, logger)
	events = provider.NewCached(breaker, resultCache, cfg.Provider.CacheTTL, logger)
	if !cfg.Provider.Enabled() {
		logger.Warn("TICKETMASTER_API_KEY not set, sync and live search are disabled")
	}

	var sender mail.Sender = mail.LogSender{Logger: logger}
	if cfg.Mail.Enabled() {
		sender = mail.NewSMTPSender(mail.SMTPConfig{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			User:     cfg.Mail.User,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
		})
	} else {
		logger.Warn("SMTP not configured, emails will be logged instead of sent")
	}

	authDeps := service.AuthDeps{
		Users:     db,
		Tokens:    tokens,
		Passwords: auth.NewPasswordService(),
		Mailer:    mail.NewMailer(sender, cfg.Server.ClientBaseURL),
		ResetTTL:  cfg.Auth.ResetTokenTTL,
		Logger:    logger,
	}
	google, err := auth.NewGoogleProvider(auth.GoogleConfig{
		ClientID:     cfg.Auth.GoogleClientID,
		ClientSecret: cfg.Auth.GoogleClientSecret,
		RedirectURL:  cfg.Auth.GoogleRedirectURL,
		Issuer:       cfg.Auth.GoogleIssuer,
		JWKSURL:      cfg.Auth.GoogleJWKSURL,
	})
	switch {
	case err == nil:
		authDeps.Federated = google
	case errors.Is(err, auth.ErrFederatedNotConfigured):
		logger.Warn("GOOGLE_CLIENT_ID not set, Google sign-in is disabled")
	default:
		logger.Error("Google sign-in disabled", slog.String("error", err.Error()))
	}

	// === SERVICES ===
	// DEPENDENCY CHAIN:
	//   db (sqlite.DB) implements every repository interface
	//   each service receives only the interfaces it needs
	//   each handler receives only its service
	authService := service.NewAuthService(authDeps)
	eventService := service.NewEventService(db, events, logger)
	bookmarkService := service.NewBookmarkService(db, db, logger)
	recommendationService := service.NewRecommendationService(db, db, logger)
	postService := service.NewPostService(db, db, logger)

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
		cache:  resultCache,
		tokens: tokens,
		events: eventService,

		authHandler:           handler.NewAuthHandler(authService),
		eventHandler:          handler.NewEventHandler(eventService),
		bookmarkHandler:       handler.NewBookmarkHandler(bookmarkService),
		recommendationHandler: handler.NewRecommendationHandler(recommendationService, authService),
		postHandler:           handler.NewPostHandler(postService),
		healthHandler:         handler.NewHealthHandler(func() string { return breaker.State().String() }),
	}
	s.setupRoutes()

	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /health                             → liveness (also /api/health)
//	GET    /metrics                            → Prometheus exposition
//	POST   /api/auth/register                  → create account
//	POST   /api/auth/login                     → email + password sign-in
//	POST   /api/auth/google                    → federated sign-in (also /federated)
//	POST   /api/auth/forgot-password           → request a reset email
//	POST   /api/auth/reset-password            → consume a reset token
//	GET    /api/auth/verify-email              → confirm an email address
//	GET    /api/auth/me                        → current user        [auth]
//	PUT    /api/auth/preferences               → set genres          [auth]
//	PUT    /api/auth/email                     → change email        [auth]
//	GET    /api/events                         → search the catalog
//	GET    /api/events/genres                  → distinct genres
//	GET    /api/events/sync                    → pull from Ticketmaster
//	GET    /api/bookmarks                      → list bookmarks      [auth]
//	POST   /api/bookmarks                      → add bookmark        [auth]
//	DELETE /api/bookmarks/{eventID}            → remove bookmark     [auth]
//	GET    /api/recommendations                → genre picks         [auth]
//	PUT    /api/recommendations/preferences    → set genres          [auth]
//	GET    /api/posts                          → community posts
//	POST   /api/posts                          → submit a post
//	POST   /api/posts/{postID}/vote            → like / dislike      [optional auth]
//	GET    /api/posts/{postID}/vote            → caller's vote       [optional auth]
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Our order:
//  1. RequestID: assigns a unique id to each request (for tracing)
//  2. RealIP: extracts the client IP from proxy headers (rate limiting keys on it)
//  3. Logger: logs each request with timing info
//  4. Metrics: Prometheus counters and latency per route pattern
//  5. Recoverer: catches panics and returns 500 instead of crashing
//  6. CORS: answers browser preflights before any route runs
func (s *Server) setupRoutes() {
	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.config.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	requireAuth := auth.RequireAuth(s.tokens)
	optionalAuth := auth.OptionalAuth(s.tokens)

	s.router.Get("/health", s.healthHandler.HandleHealth)
	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.healthHandler.HandleHealth)

		r.Route("/auth", func(r chi.Router) {
			// Credential endpoints are the brute-force target; limit per IP.
			r.Group(func(r chi.Router) {
				r.Use(httprate.LimitByIP(s.config.Server.RateLimitReqs, s.config.Server.RateLimitWindow))
				r.Post("/register", s.authHandler.HandleRegister)
				r.Post("/login", s.authHandler.HandleLogin)
				r.Post("/google", s.authHandler.HandleGoogle)
				r.Post("/federated", s.authHandler.HandleGoogle)
				r.Post("/forgot-password", s.authHandler.HandleForgotPassword)
				r.Post("/reset-password", s.authHandler.HandleResetPassword)
			})
			r.Get("/verify-email", s.authHandler.HandleVerifyEmail)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/me", s.authHandler.HandleMe)
				r.Put("/preferences", s.authHandler.HandlePreferences)
				r.Put("/email", s.authHandler.HandleEmail)
			})
		})

		r.Route("/events", func(r chi.Router) {
			r.Get("/", s.eventHandler.HandleList)
			r.Get("/genres", s.eventHandler.HandleGenres)
			r.Get("/sync", s.eventHandler.HandleSync)
		})

		r.Route("/bookmarks", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", s.bookmarkHandler.HandleList)
			r.Post("/", s.bookmarkHandler.HandleCreate)
			r.Delete("/{eventID}", s.bookmarkHandler.HandleDelete)
		})

		r.Route("/recommendations", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/", s.recommendationHandler.HandleGet)
			r.Put("/preferences", s.recommendationHandler.HandlePreferences)
		})

		r.Route("/posts", func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/", s.postHandler.HandleList)
			r.Post("/", s.postHandler.HandleSubmit)
			r.Post("/{postID}/vote", s.postHandler.HandleVote)
			r.Get("/{postID}/vote", s.postHandler.HandleGetVote)
		})
	})
}

// Handler returns the fully wired router. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (server.shutdown_timeout)
//  3. Close: finish background event writes, close the cache and database
//
// The deferred Close runs even when ListenAndServe fails.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second, // sync pages through the provider
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Server.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close waits for background writes, then releases the cache and database.
func (s *Server) Close() error {
	s.events.Wait()
	return errors.Join(s.cache.Close(), s.db.Close())
}
