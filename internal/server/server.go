// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects storage, the backend
// client, services, handlers, middleware and routes, and decides how the
// server starts and stops.
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config → storage (sqlite | redis | memory)
//	              → backend.Client (CrewCrew REST API)
//	              → SessionStore, ShopService, CrewService, sequencers
//	              → handlers → routes
//
// This is the "composition root" pattern: everything is wired in New and
// setupRoutes, nowhere else.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/crewcrew/internal/auth"
	"github.com/sakif/crewcrew/internal/backend"
	"github.com/sakif/crewcrew/internal/config"
	"github.com/sakif/crewcrew/internal/events"
	"github.com/sakif/crewcrew/internal/guard"
	"github.com/sakif/crewcrew/internal/handler"
	"github.com/sakif/crewcrew/internal/middleware"
	"github.com/sakif/crewcrew/internal/repository"
	"github.com/sakif/crewcrew/internal/repository/memory"
	redisRepo "github.com/sakif/crewcrew/internal/repository/redis"
	sqliteRepo "github.com/sakif/crewcrew/internal/repository/sqlite"
	"github.com/sakif/crewcrew/internal/sequence"
	"github.com/sakif/crewcrew/internal/service"
	"github.com/sakif/crewcrew/web"
)

// redisPrefix namespaces our keys when the redis instance is shared.
const redisPrefix = "crewcrew:"

// Server represents the HTTP server and everything it owns.
//
// RESOURCE MANAGEMENT:
// The server owns the storage connections, the session refresh loop and the
// sequencer timers. Close releases them in reverse order of creation.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger

	session  *service.SessionStore
	shop     *service.ShopService
	crews    *service.CrewService
	profile  *service.ProfileService
	reports  *service.ReportService
	demo     *service.DemoService
	toasts   *service.ToastService
	sessions *auth.SessionManager // nil when no OAuth provider is configured

	closers []func() error
}

// New opens storage, restores the session and wires every route.
//
// On error, whatever was already opened is closed again.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (s *Server, err error) {
	s = &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
	}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	// === STORAGE ===
	kv, crewRepo, err := s.openStorage(ctx)
	if err != nil {
		return nil, err
	}

	// === BACKEND + SERVICES ===
	api := backend.New(cfg.APIBaseURL, logger)
	clock := sequence.RealClock{}
	bus := events.NewBus[events.CrewExpChanged]()

	s.session = service.NewSessionStore(kv, api, logger, cfg.RefreshInterval)
	if err := s.session.Init(ctx); err != nil {
		return nil, fmt.Errorf("restoring session: %w", err)
	}
	s.closers = append(s.closers, func() error { s.session.Close(); return nil })

	s.crews = service.NewCrewService(crewRepo, bus, logger)
	s.toasts = service.NewToastService(bus, clock, logger)
	s.shop = service.NewShopService(api, s.session, logger)
	s.profile = service.NewProfileService(api, s.session, logger)
	s.reports = service.NewReportService(api, s.session, clock, logger)
	s.demo = service.NewDemoService(api, s.crews, clock, logger)
	s.closers = append(s.closers, func() error {
		s.reports.Dismiss()
		s.demo.Dismiss()
		s.toasts.Close()
		return nil
	})

	// === OAUTH ===
	if providers := s.oauthProviders(); len(providers) > 0 {
		s.sessions, err = auth.NewSessionManager(cfg.SessionSecret, logger, providers...)
		if err != nil {
			return nil, fmt.Errorf("creating session manager: %w", err)
		}
	}

	if err := s.setupRoutes(); err != nil {
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

// openStorage picks the local key-value store and the crew repository.
//
//   - sqlite: both live in one database file
//   - redis:  the profile lives in redis; the roster still needs a table,
//     so it goes to the sqlite file at db_path
//   - memory: both are lost on restart (demos and tests)
func (s *Server) openStorage(ctx context.Context) (repository.KV, repository.CrewRepository, error) {
	switch s.config.Storage {
	case config.StorageMemory:
		s.logger.Warn("using in-memory storage; nothing survives a restart")
		return memory.NewKV(), memory.NewCrews(), nil

	case config.StorageRedis:
		db, err := s.openSQLite()
		if err != nil {
			return nil, nil, err
		}
		kv, err := redisRepo.New(ctx, s.config.RedisAddr, s.config.RedisPassword, s.config.RedisDB, redisPrefix)
		if err != nil {
			return nil, nil, fmt.Errorf("connecting to redis: %w", err)
		}
		s.closers = append(s.closers, kv.Close)
		return kv, db.Crews(), nil

	default:
		db, err := s.openSQLite()
		if err != nil {
			return nil, nil, err
		}
		return db, db.Crews(), nil
	}
}

func (s *Server) openSQLite() (*sqliteRepo.DB, error) {
	// os.MkdirAll creates the data directory if needed (like `mkdir -p`).
	if dir := filepath.Dir(s.config.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
		}
	}
	db, err := sqliteRepo.New(s.config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	s.closers = append(s.closers, db.Close)
	return db, nil
}

// oauthProviders builds a provider for every configured client. A missing
// callback URL defaults to this server on localhost.
func (s *Server) oauthProviders() []auth.Provider {
	callback := func(c config.OAuthClient, name auth.ProviderName) string {
		if c.CallbackURL != "" {
			return c.CallbackURL
		}
		return fmt.Sprintf("http://localhost:%s/auth/%s/callback", s.config.Port, name)
	}

	var providers []auth.Provider
	if c := s.config.Google; c.Enabled() {
		providers = append(providers, auth.NewGoogleProvider(c.ClientID, c.ClientSecret, callback(c, auth.ProviderGoogle)))
	}
	if c := s.config.GitHub; c.Enabled() {
		providers = append(providers, auth.NewGitHubProvider(c.ClientID, c.ClientSecret, callback(c, auth.ProviderGitHub)))
	}
	return providers
}

func (s *Server) providerNames() []auth.ProviderName {
	var names []auth.ProviderName
	for _, p := range s.oauthProviders() {
		names = append(names, p.Name())
	}
	return names
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz                      → liveness (JSON)
//	GET    /static/*                     → embedded CSS/JS
//	GET    /login, POST /login           → credential login page
//	POST   /login/guest, POST /logout    → guest login, logout
//	GET    /, /mypage, /shop             → pages behind the guard
//	       /auth/{provider}/...          → OAuth sign-in (when configured)
//	       /api/...                      → JSON for the page scripts
//
// MIDDLEWARE ORDER MATTERS:
//  1. RequestID, RealIP, Recoverer (chi)
//  2. Logger, which reads the request id
//  3. auth.Sessions: reads (and maybe refreshes) the OAuth cookie
//  4. guard.Middleware: placeholder / redirect / render
//
// chi requires every Use before the first route on a mux.
func (s *Server) setupRoutes() error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	if s.sessions != nil {
		s.router.Use(auth.Sessions(s.sessions))
	}
	s.router.Use(guard.Middleware(s.session, s.logger))

	s.router.Get("/healthz", s.handleHealth)

	fileServer := http.FileServer(http.FS(web.Static()))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	// === Pages ===
	pages, err := handler.NewPageHandler(web.Templates(), s.session, s.shop, s.crews, s.providerNames(), s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}
	s.router.Get("/login", pages.HandleLogin)
	s.router.Post("/login", pages.HandleLoginSubmit)
	s.router.Post("/login/guest", pages.HandleGuestLogin)
	s.router.Post("/logout", pages.HandleLogout)
	s.router.Group(func(r chi.Router) {
		r.Use(auth.RequireFreshSession)
		r.Get("/", pages.HandleHome)
		r.Get("/mypage", pages.HandleMyPage)
		r.Get("/shop", pages.HandleShop)
	})

	// === OAuth ===
	authHandler := handler.NewAuthHandler(s.sessions, s.session, s.logger)
	if s.sessions != nil {
		s.router.Get("/auth/{provider}/login", authHandler.HandleLogin)
		s.router.Get("/auth/{provider}/callback", authHandler.HandleCallback)
	}
	s.router.Post("/auth/signout", authHandler.HandleSignOut)

	// === API ===
	sessionHandler := handler.NewSessionHandler(s.session, s.toasts, s.logger)
	profileHandler := handler.NewProfileHandler(s.profile, s.logger)
	shopHandler := handler.NewShopHandler(s.shop, s.logger)
	crewHandler := handler.NewCrewHandler(s.crews, s.logger)
	seqHandler := handler.NewSequenceHandler(s.reports, s.demo, s.toasts, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/auth/session", authHandler.HandleSession)

		r.Get("/session", sessionHandler.HandleGet)
		r.Patch("/session", sessionHandler.HandlePatch)
		r.Post("/session/refresh", sessionHandler.HandleRefresh)
		r.Post("/session/exp", sessionHandler.HandleAddExp)
		r.Post("/session/gold", sessionHandler.HandleAddGold)

		r.Get("/mypage", profileHandler.HandleGet)
		r.Put("/mypage", profileHandler.HandleUpdate)

		r.Get("/shop", shopHandler.HandleCatalog)
		r.Post("/shop/purchase/{kind}/{id}", shopHandler.HandlePurchase)

		r.Post("/reports/daily", seqHandler.HandleStartReport)
		r.Get("/reports/daily", seqHandler.HandleGetReport)
		r.Delete("/reports/daily", seqHandler.HandleDismissReport)
		r.Post("/demo/collaboration", seqHandler.HandleStartDemo)
		r.Get("/demo/collaboration", seqHandler.HandleGetDemo)
		r.Delete("/demo/collaboration", seqHandler.HandleDismissDemo)
		r.Get("/notifications", seqHandler.HandleListNotifications)
		r.Delete("/notifications/{id}", seqHandler.HandleDismissNotification)

		r.Get("/crews", crewHandler.HandleList)
		r.Post("/crews", crewHandler.HandleHire)
		r.Delete("/crews/{id}", crewHandler.HandleDismiss)
		r.Post("/crews/{id}/exp", crewHandler.HandleGrantExp)
	})

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":"ok","ready":%t}`+"\n", s.session.Ready())
}

// Handler exposes the router, for tests and for embedding in another server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close stops background work and closes storage, newest first. It is safe
// to call on a partially built server.
func (s *Server) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Stop the refresh loop and sequencer timers, then close storage
func (s *Server) Start() error {
	defer func() {
		if err := s.Close(); err != nil {
			s.logger.Error("closing resources failed", slog.String("error", err.Error()))
		}
	}()

	srv := &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("port", s.config.Port),
			slog.String("url", "http://localhost:"+s.config.Port),
			slog.String("backend", s.config.APIBaseURL),
			slog.String("storage", s.config.Storage),
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

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
