package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/platinummonkey/helpdesk-rbac/pkg/async"
	"github.com/platinummonkey/helpdesk-rbac/pkg/audit"
	"github.com/platinummonkey/helpdesk-rbac/pkg/auth"
	"github.com/platinummonkey/helpdesk-rbac/pkg/config"
	"github.com/platinummonkey/helpdesk-rbac/pkg/graph"
	"github.com/platinummonkey/helpdesk-rbac/pkg/httputil"
	"github.com/platinummonkey/helpdesk-rbac/pkg/middleware"
	"github.com/platinummonkey/helpdesk-rbac/pkg/observability"
	"github.com/platinummonkey/helpdesk-rbac/pkg/rbac"
	"github.com/platinummonkey/helpdesk-rbac/pkg/storage"
	"github.com/platinummonkey/helpdesk-rbac/pkg/swagger"
	"github.com/platinummonkey/helpdesk-rbac/pkg/webhooks"
)

var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("Service failed")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx := context.Background()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics(registry)
	}

	var cleanups []observability.ShutdownFunc

	tracerProvider, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Observability.TracingEnabled,
		Endpoint:       cfg.Observability.OTLPEndpoint,
		ServiceName:    "helpdesk-rbac",
		ServiceVersion: version,
		Insecure:       cfg.Observability.OTLPInsecure,
		SampleRatio:    cfg.Observability.TraceSampleRatio,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanups = append(cleanups, tracerProvider.Shutdown)
	}

	auditLog, err := newAuditLogger(cfg, logger, metrics)
	if err != nil {
		return err
	}

	// Shutdown funcs run concurrently, so the audit log closes only after
	// background tasks that write to it have drained
	tasks := async.NewRunner(logger)
	cleanups = append(cleanups, func(ctx context.Context) error {
		return errors.Join(tasks.Wait(ctx), auditLog.Close())
	})

	var redisClient *redis.Client
	if cfg.Store.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Store.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid redis URL: %w", err)
		}
		redisClient = redis.NewClient(opts)
		cleanups = append(cleanups, func(context.Context) error { return redisClient.Close() })
		logger.Info("Sharing directory cache slots through Redis")
	}

	var graphClient *graph.Client
	if cfg.Graph.Enabled() {
		client, err := graph.NewClient(ctx, graph.Config{
			TenantID:     cfg.Graph.TenantID,
			ClientID:     cfg.Graph.ClientID,
			ClientSecret: cfg.Graph.ClientSecret,
			BaseURL:      cfg.Graph.BaseURL,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create graph client: %w", err)
		}
		graphClient = client
	} else {
		logger.Warn("Microsoft Graph is not configured, every user resolves to least privilege")
	}

	source, db, fileSource, err := openRolesSource(ctx, cfg, graphClient, logger)
	if err != nil {
		return err
	}
	if db != nil {
		cleanups = append(cleanups, func(context.Context) error { return db.Close() })
	}

	opts := rbac.Options{
		Source:             source,
		Admins:             rbac.ParseAdminList(cfg.Access.AdminEmails),
		ApprovalCategories: cfg.Access.ApprovalCategories,
		ConfigTTL:          cfg.Access.ConfigTTL,
		SessionTTL:         cfg.Access.SessionTTL,
		GroupQueryWorkers:  cfg.Access.GroupQueryWorkers,
		Redis:              redisClient,
		Audit:              auditLog,
		Logger:             logger,
		Metrics:            metrics,
	}
	if graphClient != nil {
		opts.Directory = graphClient
		opts.GroupMembers = graphClient
	}

	manager := rbac.NewManager(opts)
	if err := manager.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize access manager: %w", err)
	}

	if fileSource != nil {
		watchCtx, cancelWatch := context.WithCancel(ctx)
		cleanups = append(cleanups, func(context.Context) error { cancelWatch(); return nil })
		err := fileSource.Watch(watchCtx, func() {
			tasks.Go(watchCtx, cfg.Server.ShutdownTimeout, "roles file reload", func(ctx context.Context) error {
				reloaded := manager.GetService().ReloadConfig(ctx)

				event := audit.NewEvent(ctx, nil, audit.EventTypeConfigReload, audit.EventStatusSuccess)
				event.ResourceType = audit.ResourceTypeConfig
				event.ResourceID = fileSource.Path()
				event.Message = "Roles file changed"
				event.Metadata = map[string]interface{}{"source": string(reloaded.Source)}
				return auditLog.Log(ctx, event)
			})
		})
		if err != nil {
			cancelWatch()
			return fmt.Errorf("failed to watch roles file: %w", err)
		}
	}

	if cfg.Access.RefreshSchedule != "off" {
		refresher, err := rbac.NewRefresher(manager.GetLoader(), cfg.Access.RefreshSchedule, logger)
		if err != nil {
			return err
		}
		refresher.Start()
		cleanups = append(cleanups, func(context.Context) error { refresher.Stop(); return nil })
	}

	verifier, err := auth.NewOIDCVerifier(ctx, cfg.Identity.IssuerURL, cfg.Identity.ClientID)
	if err != nil {
		return fmt.Errorf("failed to create token verifier: %w", err)
	}
	authn := auth.NewMiddleware(verifier, logger)

	health := observability.NewHealthChecker(version, db, redisClient)
	health.AddCheck("group_roles", false, manager.ConfigCheck())
	if object, ok := source.(*storage.S3RolesSource); ok {
		health.AddCheck("roles_object", false, object.Check())
	}

	router := mux.NewRouter()
	router.Use(
		httputil.RecoveryMiddleware(logger),
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		observability.HTTPMetricsMiddleware(metrics, routeTemplate),
	)
	if tracerProvider != nil {
		router.Use(observability.TracingMiddleware("helpdesk-rbac", routeTemplate))
	}
	router.HandleFunc("/healthz", health.Liveness).Methods(http.MethodGet)
	router.HandleFunc("/readyz", health.Readiness).Methods(http.MethodGet)
	if cfg.Observability.APIDocsEnabled {
		swagger.NewSwaggerHandlers().RegisterRoutes(router)
	}
	if cfg.Observability.MetricsEnabled {
		router.Handle("/metrics", observability.MetricsHandler(registry)).Methods(http.MethodGet)
	}
	var v1Extra []func(http.Handler) http.Handler
	if limit := newRateLimit(cfg, redisClient, logger, metrics); limit != nil {
		v1Extra = append(v1Extra, limit)
	}
	manager.RegisterRoutes(router, authn.Handler, v1Extra...)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	shutdown := observability.NewShutdownManager(logger, server, cfg.Server.ShutdownTimeout)
	for _, fn := range cleanups {
		shutdown.RegisterShutdownFunc(fn)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    server.Addr,
			"version": version,
			"roles":   cfg.Store.RolesSource,
		}).Info("Starting helpdesk access service")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	shutdownErr := make(chan error, 1)
	go func() { shutdownErr <- shutdown.WaitForShutdown() }()

	select {
	case err := <-serverErr:
		_ = shutdown.Shutdown()
		return fmt.Errorf("server failed: %w", err)
	case err := <-shutdownErr:
		return err
	}
}

// openRolesSource builds the configured group-role source. db and the file
// source are returned when they need further wiring.
func openRolesSource(ctx context.Context, cfg *config.Config, graphClient *graph.Client, logger *logrus.Logger) (rbac.RowSource, *sql.DB, *rbac.FileSource, error) {
	switch cfg.Store.RolesSource {
	case config.RolesSourceGraph:
		if graphClient == nil {
			return nil, nil, nil, graph.ErrNotConfigured
		}
		source, err := graph.NewListSource(graphClient, cfg.Graph.SiteID, cfg.Graph.ListID)
		if err != nil {
			return nil, nil, nil, err
		}
		return source, nil, nil, nil

	case config.RolesSourceSQL:
		db, err := sql.Open(cfg.Store.DatabaseDriver, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := rbac.RunMigrations(ctx, db, logger); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		store := rbac.NewStore(db)
		if err := rbac.SeedFallbackRoles(ctx, store); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return store, db, nil, nil

	case config.RolesSourceFile:
		source := rbac.NewFileSource(cfg.Store.RolesFile, logger)
		return source, nil, source, nil

	case config.RolesSourceS3:
		source, err := storage.NewS3RolesSource(ctx, storage.S3Config{
			Bucket:       cfg.Store.S3Bucket,
			Key:          cfg.Store.S3Key,
			Region:       cfg.Store.S3Region,
			Endpoint:     cfg.Store.S3Endpoint,
			UsePathStyle: cfg.Store.S3UsePathStyle,
			AccessKey:    cfg.Store.S3AccessKey,
			SecretKey:    cfg.Store.S3SecretKey,
		}, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		logger.WithField("object", source.Location()).Info("Reading group roles from object storage")
		return source, nil, nil, nil

	default:
		logger.Warn("No group-role source configured, serving the built-in fallback")
		return nil, nil, nil, nil
	}
}

// newAuditLogger always writes audit events to the service log, and to a
// rotated JSON-lines file and webhook endpoints when configured
func newAuditLogger(cfg *config.Config, logger *logrus.Logger, metrics *observability.Metrics) (audit.Logger, error) {
	loggers := []audit.Logger{audit.NewLogrusLogger(logger)}

	if cfg.Observability.AuditLogDir != "" {
		file, err := audit.NewFileLogger(audit.FileLoggerConfig{BasePath: cfg.Observability.AuditLogDir})
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log: %w", err)
		}
		loggers = append(loggers, file)
	}

	if cfg.Webhooks.Enabled() {
		format, err := webhooks.ParseFormat(cfg.Webhooks.Format)
		if err != nil {
			return nil, err
		}
		events := make([]audit.EventType, 0, len(cfg.Webhooks.Events))
		for _, e := range cfg.Webhooks.Events {
			events = append(events, audit.EventType(e))
		}

		endpoints := make([]webhooks.Endpoint, 0, len(cfg.Webhooks.URLs))
		for _, u := range cfg.Webhooks.URLs {
			endpoints = append(endpoints, webhooks.Endpoint{URL: u, Secret: cfg.Webhooks.Secret, Format: format, Events: events})
		}
		loggers = append(loggers, webhooks.NewNotifier(webhooks.Config{Endpoints: endpoints}, logger, metrics))
		logger.WithField("endpoints", len(endpoints)).Info("Webhook notifications enabled")
	}

	if len(loggers) == 1 {
		return loggers[0], nil
	}
	return audit.NewMultiLogger(loggers...), nil
}

// newRateLimit returns the per-caller limiter middleware, shared through Redis
// when it is configured. nil means rate limiting is off.
func newRateLimit(cfg *config.Config, redisClient *redis.Client, logger *logrus.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Server.RateLimitPerMinute,
		WindowDuration:    time.Minute,
		BurstSize:         cfg.Server.RateLimitBurst,
	}
	if !limits.Enabled() {
		logger.Info("Rate limiting disabled")
		return nil
	}

	if redisClient != nil {
		limiter := middleware.NewDistributedRateLimiter(redisClient, limits, "")
		return middleware.RateLimitMiddleware(limiter, "redis", logger, metrics)
	}
	return middleware.RateLimitMiddleware(middleware.NewRateLimiter(limits), "memory", logger, metrics)
}

// routeTemplate labels metrics by route so ticket ids never become label values
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
