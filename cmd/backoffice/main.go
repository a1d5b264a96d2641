package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ticketdesk/backoffice/internal/app"
	"github.com/ticketdesk/backoffice/internal/audit"
	"github.com/ticketdesk/backoffice/internal/auth"
	"github.com/ticketdesk/backoffice/internal/authz"
	"github.com/ticketdesk/backoffice/internal/categories"
	"github.com/ticketdesk/backoffice/internal/events"
	"github.com/ticketdesk/backoffice/internal/observability"
	"github.com/ticketdesk/backoffice/internal/platform/cache"
	"github.com/ticketdesk/backoffice/internal/platform/db"
	"github.com/ticketdesk/backoffice/internal/rbac"
	"github.com/ticketdesk/backoffice/internal/roles"
	"github.com/ticketdesk/backoffice/internal/sales"
	"github.com/ticketdesk/backoffice/internal/shared"
	"github.com/ticketdesk/backoffice/internal/users"
	"github.com/ticketdesk/backoffice/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	engine := authz.NewEngine(nil)

	sessionManager := shared.NewSessionManager(redisClient, "backoffice_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	idempotencyStore := shared.NewIdempotencyStore(pool)

	tokens, err := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Error("init token manager", slog.Any("error", err))
		os.Exit(1)
	}

	rbacService := rbac.NewService(rbac.NewStore(pool), engine, jobClient, logger)
	rbacMiddleware := rbac.Middleware{
		Principals: rbacService,
		Tokens:     tokens,
		Metrics:    metrics,
		Logger:     logger,
	}

	salesService := sales.NewService(sales.NewRepository(pool), sales.NewCache(redisClient, cfg.SalesCacheTTL), logger)
	eventsService := events.NewService(events.NewRepository(pool), events.ServiceOptions{
		Logger:      logger,
		Idempotency: idempotencyStore,
		Cache:       salesService,
		Observer:    metrics,
	})
	categoriesService := categories.NewService(categories.NewRepository(pool), logger, nil)
	usersService := users.NewService(users.NewRepository(pool), engine, jobClient, logger)
	rolesService := roles.NewService(roles.NewRepository(pool))
	auditService := audit.NewService(audit.NewRepository(pool))
	authService := auth.NewService(auth.NewRepository(pool))

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		RBACMiddleware:     rbacMiddleware,
		Metrics:            metrics,
		AuthHandler:        auth.NewHandler(logger, authService, sessionManager, csrfManager, tokens, rbacService, rbacMiddleware),
		EventsHandler:      events.NewHandler(logger, eventsService, rbacMiddleware),
		CategoriesHandler:  categories.NewHandler(logger, categoriesService, rbacMiddleware),
		UsersHandler:       users.NewHandler(logger, usersService, rbacMiddleware),
		RolesHandler:       roles.NewHandler(logger, rolesService, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(logger, rbacService, rbacMiddleware),
		SalesHandler:       sales.NewHandler(logger, salesService, rbacMiddleware),
		AuditHandler:       audit.NewHandler(logger, auditService, rbacMiddleware),
		JobHandler:         jobs.NewHandler(inspector, logger),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
