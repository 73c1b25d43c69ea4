// Package app wires configuration, backend, facade and health into one unit
// shared by the server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/config"
	"github.com/kailas-cloud/searchdex/internal/db"
	dbBleve "github.com/kailas-cloud/searchdex/internal/db/bleve"
	"github.com/kailas-cloud/searchdex/internal/db/breaker"
	dbElastic "github.com/kailas-cloud/searchdex/internal/db/elastic"
	dbRedis "github.com/kailas-cloud/searchdex/internal/db/redis"
	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/mapping"
	"github.com/kailas-cloud/searchdex/internal/metrics"
	"github.com/kailas-cloud/searchdex/internal/translate"
	chiTransport "github.com/kailas-cloud/searchdex/internal/transport/chi"
	healthuc "github.com/kailas-cloud/searchdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/searchdex/internal/usecase/search"
)

// IndexEnsurer is implemented by backends that manage their index schema.
type IndexEnsurer interface {
	EnsureIndex(ctx context.Context) error
}

// IndexDropper is implemented by backends whose index can be dropped while keeping the stored entries.
type IndexDropper interface {
	DropIndex(ctx context.Context, name string) error
}

// App holds the wired components.
type App struct {
	Config     config.Config
	Backend    db.Backend
	Breaker    *breaker.Backend // nil when disabled
	Translator translate.Chain
	Mapper     *mapping.Mapper
	Search     *searchuc.Service
	Health     *healthuc.Service

	raw    db.Backend
	logger *zap.Logger
}

// New builds the backend selected by cfg, waits for it, ensures its index and
// wires the facade on top.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	raw, classify, err := NewBackend(cfg.Backend, logger)
	if err != nil {
		return nil, err
	}
	a, err := Wire(cfg, raw, classify, logger)
	if err != nil {
		_ = raw.Close()
		return nil, err
	}

	timeout := time.Duration(cfg.Backend.ReadinessTimeout) * time.Second
	if err := db.WaitForReady(ctx, raw, timeout); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("backend %s not ready: %w", cfg.Backend.Driver, err)
	}
	logger.Info("Connected to backend", zap.String("driver", cfg.Backend.Driver))

	if ie, ok := raw.(IndexEnsurer); ok {
		if err := ie.EnsureIndex(ctx); err != nil {
			_ = raw.Close()
			return nil, fmt.Errorf("ensure index: %w", a.Translator.Resolve(err))
		}
	}
	return a, nil
}

// Wire assembles the facade over an existing backend. classify is the
// backend-specific translation tier and may be nil.
func Wire(cfg config.Config, raw db.Backend, classify translate.Func, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, raw: raw, Backend: raw, logger: logger}
	a.Translator = translate.New(classify, translate.Transport)

	if cfg.Backend.Breaker.Enabled {
		bc := cfg.Backend.Breaker
		a.Breaker = breaker.New(raw, breaker.Config{
			Name:                cfg.Backend.Driver,
			MaxRequests:         bc.MaxRequests,
			Interval:            time.Duration(bc.IntervalSec) * time.Second,
			Timeout:             time.Duration(bc.TimeoutSec) * time.Second,
			ConsecutiveFailures: bc.ConsecutiveFailures,
		},
			breaker.WithLogger(logger),
			breaker.WithStateObserver(metrics.SetBreakerState),
			breaker.WithSuccessPredicate(a.isClientError),
		)
		a.Backend = a.Breaker
	}

	a.Mapper = mapping.New(mapping.WithLogger(logger))

	svc, err := searchuc.New(a.Backend, a.Mapper, a.Translator, searchuc.Config{
		IDField:        cfg.Backend.IDField,
		AutoGenerateID: cfg.Backend.AutoGenerateID,
		AutoCommit:     cfg.Backend.AutoCommit,
		Streaming:      cfg.Backend.Streaming,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build search service: %w", err)
	}
	a.Search = svc

	// Pass nil interface (not typed nil pointer) when the breaker is disabled.
	var stater healthuc.BreakerStater
	if a.Breaker != nil {
		stater = a.Breaker
	}
	a.Health = healthuc.New(a.Backend, cfg.Backend.Driver, stater)
	return a, nil
}

// isClientError reports failures caused by the request rather than the backend.
func (a *App) isClientError(err error) bool {
	out := a.Translator.Translate(err)
	return out != nil && errors.Is(out, domain.ErrInvalidQuery)
}

// Handler returns the HTTP API handler.
func (a *App) Handler() http.Handler {
	server := chiTransport.NewServer(a.Search, a.Health, a.Config.HTTP.MaxBatchSize, a.logger)
	return chiTransport.NewRouter(server, a.Config.Auth.APIKeys, a.logger)
}

// EnsureIndex creates the backend index when the backend manages one.
func (a *App) EnsureIndex(ctx context.Context) error {
	ie, ok := a.raw.(IndexEnsurer)
	if !ok {
		return nil
	}
	if err := ie.EnsureIndex(ctx); err != nil {
		return a.Translator.Resolve(err)
	}
	return nil
}

// DropIndex removes the backend index definition. Only the redis driver supports it.
func (a *App) DropIndex(ctx context.Context) error {
	d, ok := a.raw.(IndexDropper)
	if !ok {
		return fmt.Errorf("driver %s does not support dropping the index", a.Config.Backend.Driver)
	}
	return a.Translator.Resolve(d.DropIndex(ctx, a.Config.Backend.Redis.Index))
}

// Close releases the backend.
func (a *App) Close() error {
	return a.raw.Close() //nolint:wrapcheck // pass-through
}

// NewBackend creates the backend named by cfg.Driver together with its error classifier.
func NewBackend(cfg config.BackendConfig, logger *zap.Logger) (db.Backend, translate.Func, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		store, err := dbRedis.NewStore(dbRedis.Config{
			Addrs:      cfg.Redis.Addrs,
			Username:   cfg.Redis.Username,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			Index:      cfg.Redis.Index,
			KeyPrefix:  cfg.Redis.KeyPrefix,
			IDField:    cfg.IDField,
			Schema:     cfg.Schema,
			MaxResults: cfg.MaxResults,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("create redis store: %w", err)
		}
		return store, dbRedis.Classify, nil
	case config.DriverElastic:
		store, err := dbElastic.NewStore(dbElastic.Config{
			Addresses:  cfg.Elastic.Addresses,
			Username:   cfg.Elastic.Username,
			Password:   cfg.Elastic.Password,
			Index:      cfg.Elastic.Index,
			IDField:    cfg.IDField,
			Schema:     cfg.Schema,
			MaxResults: cfg.MaxResults,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create elastic store: %w", err)
		}
		return store, dbElastic.Classify, nil
	case config.DriverBleve:
		store, err := dbBleve.NewStore(dbBleve.Config{
			Path:       cfg.Bleve.Path,
			IDField:    cfg.IDField,
			Schema:     cfg.Schema,
			MaxResults: cfg.MaxResults,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create bleve store: %w", err)
		}
		return store, dbBleve.Classify, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend driver %q", cfg.Driver)
	}
}
