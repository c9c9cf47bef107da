// Package app owns the runtime resources behind the cqlmapper command:
// telemetry providers, the storage backend and the metrics endpoint.
package app

import (
	"database/sql"
	"fmt"
	"net/http"
	"sync"

	"cqlmapper/internal/config"
	"cqlmapper/internal/logging"
	"cqlmapper/internal/mapper"
	"cqlmapper/internal/observability"
	"cqlmapper/internal/storage"
)

// App owns runtime resources for a cqlmapper run.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider
	meterProvider  *observability.MeterProvider
	tracerProvider *observability.TracerProvider
	metrics        *observability.MutationMetrics

	db         *sql.DB
	dbStatsReg interface{ Unregister() error }
	store      storage.Store

	metricsSrv    *http.Server
	metricsErrors chan error

	cleanup cleanupStack

	stateMu     sync.Mutex
	initialized bool

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Store returns the storage backend. It is nil before Init.
func (a *App) Store() storage.Store {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.store
}

// Logger returns the application logger.
func (a *App) Logger() *logging.Logger {
	return a.logger
}

// MetricsErrors reports failures of the metrics endpoint. It is nil when
// no endpoint is served.
func (a *App) MetricsErrors() <-chan error {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.metricsErrors
}

// Model binds decl to the application store with the application's logger
// and metrics.
func (a *App) Model(decl any) (*mapper.Model, error) {
	a.stateMu.Lock()
	store, metrics := a.store, a.metrics
	initialized := a.initialized
	a.stateMu.Unlock()

	if !initialized {
		return nil, fmt.Errorf("app is not initialized")
	}
	return mapper.NewModel(store, decl,
		mapper.WithLogger(a.logger),
		mapper.WithMetrics(metrics),
	)
}
