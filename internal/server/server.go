// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: every dependency is built and wired here,
//
//	config → sqlite.DB ─┬→ SessionService ─┬→ handlers → chi router
//	                    └→ CatalogService ─┘
//
// and nowhere else. main.go only loads config and calls New and Start.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/juju/clock"

	"github.com/sakif/bookburst/internal/auth"
	"github.com/sakif/bookburst/internal/config"
	"github.com/sakif/bookburst/internal/handler"
	"github.com/sakif/bookburst/internal/middleware"
	"github.com/sakif/bookburst/internal/notify"
	sqliteRepo "github.com/sakif/bookburst/internal/repository/sqlite"
	"github.com/sakif/bookburst/internal/route"
	"github.com/sakif/bookburst/internal/service"
)

// shutdownTimeout is how long in-flight requests get to finish on shutdown.
const shutdownTimeout = 30 * time.Second

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the database connection and closes it when Start returns.
type Server struct {
	router   *chi.Mux
	config   config.Config
	logger   *slog.Logger
	db       *sqliteRepo.DB
	sessions *service.SessionService
	catalog  *service.CatalogService
	feed     *notify.Feed
}

// New opens the database, seeds it on first start, restores the services
// and wires the routes.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	db, err := OpenDB(cfg.DBPath, clock.WallClock)
	if err != nil {
		return nil, err
	}

	s, err := build(ctx, cfg, logger, db, clock.WallClock, auth.NewPasswordService())
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenDB opens the database at path, creating its directory first. Row
// timestamps are read from clk.
func OpenDB(path string, clk clock.Clock) (*sqliteRepo.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sqliteRepo.New(path, clk)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// build assembles the server around an open database. Tests call it with a
// cheap bcrypt cost.
func build(
	ctx context.Context,
	cfg config.Config,
	logger *slog.Logger,
	db *sqliteRepo.DB,
	clk clock.Clock,
	passwords *auth.PasswordService,
) (*Server, error) {
	users := db.Users()
	if err := service.SeedIdentity(ctx, users, passwords, logger); err != nil {
		return nil, err
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, clk)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	// Every notification goes to the browser feed and to the log.
	feed := notify.NewFeed(notify.DefaultFeedSize, clk)
	notifier := notify.Multi{feed, notify.Log{Logger: logger}}

	sessions, err := service.NewSessionService(ctx, service.SessionDeps{
		Users:     users,
		Store:     db,
		Passwords: passwords,
		Notifier:  notifier,
		Navigator: route.ContextNavigator{},
		Clock:     clk,
		Logger:    logger,
		Delay:     cfg.Delays.Auth,
	})
	if err != nil {
		return nil, err
	}

	catalog, err := service.NewCatalogService(ctx, service.CatalogDeps{
		Store:    db,
		Notifier: notifier,
		Clock:    clk,
		Logger:   logger,
		Delays:   cfg.Delays,
	})
	if err != nil {
		return nil, err
	}

	s := &Server{
		router:   chi.NewRouter(),
		config:   cfg,
		logger:   logger,
		db:       db,
		sessions: sessions,
		catalog:  catalog,
		feed:     feed,
	}
	s.setupRoutes(tokens)
	return s, nil
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	POST /api/auth/signup | login | logout
//	GET  /api/me                         (auth)
//	PUT  /api/me/username                (auth)
//	GET  /api/books[?status=]   POST /api/books (auth)
//	GET  /api/books/counts
//	GET  /api/books/{id}
//	PUT  /api/books/{id}/status | rating (auth)
//	GET  /api/books/{id}/reviews  POST (auth)
//	GET  /api/explore/trending | top-rated | reviews
//	GET  /api/timeline, /api/profile/{username}, /api/search?q=
//	GET  /api/status, /api/notifications
//	GET  /auth/github/login | callback   (when configured)
//
// MIDDLEWARE ORDER MATTERS:
// RequestID runs first so the logger can print the id; Recoverer runs
// inside Logger so a recovered panic is still logged as a 500.
func (s *Server) setupRoutes(tokens *auth.TokenService) {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)

	var github *auth.GitHubProvider
	if s.config.GitHubEnabled() {
		github = auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
	}

	authHandler := handler.NewAuthHandler(s.sessions, tokens, github, s.logger)
	bookHandler := handler.NewBookHandler(s.catalog, s.sessions, s.logger)
	exploreHandler := handler.NewExploreHandler(s.catalog, s.logger)
	statusHandler := handler.NewStatusHandler(s.sessions, s.catalog, s.feed)

	requireAuth := auth.RequireAuth(tokens, s.sessions.IsActive)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", authHandler.HandleSignup)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/logout", authHandler.HandleLogout)

		r.Get("/books", bookHandler.HandleList)
		r.Get("/books/counts", bookHandler.HandleCounts)
		r.Get("/books/{id}", bookHandler.HandleGet)
		r.Get("/books/{id}/reviews", bookHandler.HandleListReviews)

		r.Get("/explore/trending", exploreHandler.HandleTrending)
		r.Get("/explore/top-rated", exploreHandler.HandleTopRated)
		r.Get("/explore/reviews", exploreHandler.HandleLatestReviews)
		r.Get("/timeline", exploreHandler.HandleTimeline)
		r.Get("/profile/{username}", exploreHandler.HandleProfile)
		r.Get("/search", exploreHandler.HandleSearch)

		r.Get("/status", statusHandler.HandleStatus)
		r.Get("/notifications", statusHandler.HandleNotifications)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/me", authHandler.HandleMe)
			r.Put("/me/username", authHandler.HandleUpdateUsername)
			r.Post("/books", bookHandler.HandleCreate)
			r.Put("/books/{id}/status", bookHandler.HandleUpdateStatus)
			r.Put("/books/{id}/rating", bookHandler.HandleUpdateRating)
			r.Post("/books/{id}/reviews", bookHandler.HandleCreateReview)
		})
	})

	if github != nil {
		s.router.Get("/auth/github/login", authHandler.HandleGitHubLogin)
		s.router.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
	} else {
		s.logger.Info("GitHub sign-in disabled: GITHUB_CLIENT_ID or GITHUB_CLIENT_SECRET not set")
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully:
//  1. stop accepting new connections
//  2. wait for in-flight requests (up to shutdownTimeout)
//  3. close the database
func (s *Server) Start(ctx context.Context) error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case <-ctx.Done():
		s.logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases the database without serving. Start closes it itself.
func (s *Server) Close() error {
	return s.db.Close()
}
