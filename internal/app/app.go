package app

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

	"golang.org/x/crypto/bcrypt"

	"go-auth-session/internal/config"
	"go-auth-session/internal/database"
	"go-auth-session/internal/event"
	"go-auth-session/internal/handler"
	"go-auth-session/internal/metrics"
	"go-auth-session/internal/middleware"
	"go-auth-session/internal/model"
	"go-auth-session/internal/repository"
	"go-auth-session/internal/router"
	"go-auth-session/internal/service"
	"go-auth-session/internal/store"
	"go-auth-session/internal/token"
)

type userDirectory interface {
	service.UserDirectory
	service.UserAdminDirectory
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, u model.User) error
}

type backend struct {
	kv     store.Store
	users  userDirectory
	audit  service.AuditSink
	checks map[string]handler.HealthCheck
	close  func()
}

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

// New wires every component for cfg and starts the background workers (store sweeper
// and audit consumer). They stop when the returned App shuts down.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	be, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := repository.SeedAdmin(ctx, be.users, cfg.SeedAdminEmail, cfg.SeedAdminPassword, bcrypt.DefaultCost); err != nil {
		be.close()
		return nil, fmt.Errorf("failed to seed administrator: %w", err)
	}

	codec, err := token.NewCodec(token.Config{
		AccessSecret:  cfg.JWTAccessSecret,
		RefreshSecret: cfg.JWTRefreshSecret,
		AccessTTL:     cfg.JWTAccessTTL,
		RefreshTTL:    cfg.JWTRefreshTTL,
	})
	if err != nil {
		be.close()
		return nil, fmt.Errorf("failed to initialize token codec: %w", err)
	}

	appMetrics := metrics.New()
	bus := event.NewBus()

	authService := service.NewAuthService(be.users, codec, be.kv, service.AuthOptions{
		SessionTTL: cfg.SessionTTL,
		Bus:        bus,
		Metrics:    appMetrics,
	})
	auditService := service.NewAuditService(be.audit)
	userService := service.NewUserService(be.users, bus)

	authMiddleware := middleware.NewAuthMiddleware(authService, appMetrics)
	authHandler := handler.NewAuthHandler(authService, handler.CookieOptions{Secure: cfg.CookieSecure})
	adminHandler := handler.NewAdminHandler(authService, auditService)
	userHandler := handler.NewUserHandler(userService)
	healthHandler := handler.NewHealthHandler(be.checks)

	appRouter := router.New(cfg, authMiddleware, authHandler, adminHandler, userHandler, healthHandler, appMetrics.Handler())

	workersCtx, workersCancel := context.WithCancel(context.Background())
	go auditService.Run(workersCtx, bus)
	go store.StartSweeper(workersCtx, be.kv, cfg.StoreSweepInterval, func(removed int64, err error) {
		if err != nil {
			slog.Warn("store sweep failed", "error", err)
			return
		}
		if removed > 0 {
			slog.Debug("store sweep removed expired keys", "count", removed)
		}
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	slog.Info("auth service ready", "backend", cfg.StoreBackend, "access_ttl", cfg.JWTAccessTTL.String(), "session_ttl", cfg.SessionTTL.String())

	return &App{
		server: server,
		cleanupFuncs: []func(){
			workersCancel,
			be.close,
		},
	}, nil
}

func openBackend(ctx context.Context, cfg *config.Config) (*backend, error) {
	switch cfg.StoreBackend {
	case config.StoreBackendPostgres:
		slog.Info("connecting to PostgreSQL")
		db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := db.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ensure database schema: %w", err)
		}

		return &backend{
			kv:     store.NewPostgresStore(db.Pool),
			users:  repository.NewUserRepository(db.Pool),
			audit:  repository.NewAuditRepository(db.Pool),
			checks: map[string]handler.HealthCheck{"database": db.Health},
			close:  db.Close,
		}, nil

	default:
		users, err := repository.NewFileUserDirectory(cfg.UsersFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load users file: %w", err)
		}

		auditLog, err := repository.NewAuditFileLog(cfg.AuditLogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize audit log: %w", err)
		}

		return &backend{
			kv:     store.NewMemoryStore(),
			users:  users,
			audit:  auditLog,
			checks: map[string]handler.HealthCheck{},
			close:  func() {},
		}, nil
	}
}

// Handler exposes the routed handler, mainly for in-process tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Close stops background workers and releases the backend without serving.
func (a *App) Close() {
	for _, cleanup := range a.cleanupFuncs {
		cleanup()
	}
}

func (a *App) Run() error {
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if serveErr := a.server.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			slog.Error("server failed", "error", serveErr)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	shutdownErr := a.server.Shutdown(ctx)

	// Workers and the pool outlive in-flight requests.
	a.Close()

	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}
