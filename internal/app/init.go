package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"cqlmapper/internal/config"
	"cqlmapper/internal/storage"
	"cqlmapper/internal/storage/memstore"
	"cqlmapper/internal/storage/sqlstore"
)

// Init initializes all runtime resources. It is idempotent.
func (a *App) Init(ctx context.Context) error {
	a.stateMu.Lock()
	if a.initialized {
		a.stateMu.Unlock()
		return nil
	}
	a.stateMu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	cleanup := cleanupStack{}
	success := false
	defer func() {
		if !success {
			cleanup.run(context.Background(), a.logger)
		}
	}()

	if a.loggerProvider != nil {
		cleanup.push("logger provider", func(shutdownCtx context.Context) error {
			return a.loggerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	meterProvider, metrics, err := initMetrics(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry metrics: %w", err)
	}
	if meterProvider != nil {
		cleanup.push("meter provider", func(shutdownCtx context.Context) error {
			return meterProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	tracerProvider, err := initTracing(a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry tracing: %w", err)
	}
	if tracerProvider != nil {
		cleanup.push("tracer provider", func(shutdownCtx context.Context) error {
			return tracerProvider.Shutdown(shutdownCtx, a.logger.Logger)
		})
	}

	var (
		store      storage.Store
		db         *sql.DB
		dbStatsReg interface{ Unregister() error }
	)
	switch a.cfg.Storage.Backend {
	case config.BackendMySQL:
		a.logger.Info("connecting to database",
			slog.String("host", a.cfg.Database.Host),
			slog.Int("port", a.cfg.Database.Port),
			slog.String("database", a.cfg.Database.Database),
		)
		db, dbStatsReg, err = connectDB(a.cfg, a.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		cleanup.push("database", func(_ context.Context) error {
			if dbStatsReg != nil {
				if err := dbStatsReg.Unregister(); err != nil {
					a.logger.Warn("failed to unregister DB stats metrics", slog.String("error", err.Error()))
				}
			}
			return db.Close()
		})
		if err := configureDatabase(ctx, a.cfg, a.logger, db); err != nil {
			return fmt.Errorf("failed to verify database connection: %w", err)
		}
		store = sqlstore.Open(db, a.logger)
	default:
		store = memstore.New()
		a.logger.Debug("using in-memory store")
	}

	var metricsErrors chan error
	srv := buildMetricsServer(a.cfg, a.logger, meterProvider)
	if srv != nil {
		metricsErrors = startMetricsServer(a.logger, srv)
		cleanup.push("metrics server", func(shutdownCtx context.Context) error {
			return srv.Shutdown(shutdownCtx)
		})
	}

	a.stateMu.Lock()
	a.meterProvider = meterProvider
	a.tracerProvider = tracerProvider
	a.metrics = metrics
	a.store = store
	a.db = db
	a.dbStatsReg = dbStatsReg
	a.metricsSrv = srv
	a.metricsErrors = metricsErrors
	a.cleanup = cleanup
	a.initialized = true
	a.stateMu.Unlock()

	success = true
	return nil
}
