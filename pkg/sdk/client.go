package searchdex

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/app"
	"github.com/kailas-cloud/searchdex/internal/config"
	"github.com/kailas-cloud/searchdex/internal/domain/entry"
	"github.com/kailas-cloud/searchdex/internal/domain/search/response"
)

// Entry is a flat field-name-to-value record.
type Entry = entry.Entry

// Response is the outcome of a query.
type Response = response.Response

// searchUseCase is the facade the client delegates to; replaced in tests.
type searchUseCase interface {
	Add(ctx context.Context, e entry.Entry) (string, error)
	AddAll(ctx context.Context, entries ...entry.Entry) ([]string, error)
	Index(ctx context.Context, obj any) (string, error)
	IndexAll(ctx context.Context, objs ...any) ([]string, error)
	Query(ctx context.Context, q string, params ...any) (*response.Response, error)
	Delete(ctx context.Context, ids ...string) error
	DeleteAll(ctx context.Context) error
	DeleteByQuery(ctx context.Context, q string, params ...any) error
	Commit(ctx context.Context) error
	Refresh(ctx context.Context) error
	IsAlive(ctx context.Context) bool
}

// Client is the searchdex entry point.
type Client struct {
	app       *app.App
	search    searchUseCase
	healthSvc healthUseCase
	obs       *observer
}

// New creates a Client, waits for the backend and ensures its index.
// The provided context bounds the initial readiness check.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := newClientConfig(opts)
	if cfg.backend.Driver == "" {
		return nil, errors.New("searchdex: backend required (use WithRedis, WithElastic or WithBleve)")
	}

	full := config.Config{Backend: cfg.backend}
	full.ApplyDefaults()
	if err := full.Backend.Validate(); err != nil {
		return nil, fmt.Errorf("searchdex: %w", err)
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, full, logger)
	if err != nil {
		return nil, fmt.Errorf("searchdex: %w", err)
	}
	return &Client{app: a, search: a.Search, healthSvc: a.Health, obs: obs}, nil
}

// Close releases the backend connection.
func (c *Client) Close() error {
	if c.app == nil {
		return nil
	}
	if err := c.app.Close(); err != nil {
		return fmt.Errorf("searchdex: close: %w", err)
	}
	return nil
}

// Ping checks backend connectivity.
func (c *Client) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ping", start, err) }()

	if err = c.app.Backend.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", c.app.Translator.Resolve(err))
	}
	return nil
}

// IsAlive reports whether the backend answers.
func (c *Client) IsAlive(ctx context.Context) bool {
	return c.search.IsAlive(ctx)
}

// Add indexes one entry and returns its id.
func (c *Client) Add(ctx context.Context, e Entry) (id string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("add", start, err) }()
	return c.search.Add(ctx, e) //nolint:wrapcheck // classified by the facade
}

// AddAll indexes entries as one batch; nothing is written when any entry is invalid.
func (c *Client) AddAll(ctx context.Context, entries ...Entry) (ids []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("add_all", start, err) }()
	return c.search.AddAll(ctx, entries...) //nolint:wrapcheck // classified by the facade
}

// Index encodes a tagged struct and indexes it.
func (c *Client) Index(ctx context.Context, obj any) (id string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("index", start, err) }()
	return c.search.Index(ctx, obj) //nolint:wrapcheck // classified by the facade
}

// IndexAll encodes and indexes objs as one batch.
func (c *Client) IndexAll(ctx context.Context, objs ...any) (ids []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("index_all", start, err) }()
	return c.search.IndexAll(ctx, objs...) //nolint:wrapcheck // classified by the facade
}

// Query runs q in the backend's native syntax after substituting {name}
// tokens with params in order.
func (c *Client) Query(ctx context.Context, q string, params ...any) (resp *Response, err error) {
	start := time.Now()
	defer func() { c.obs.observe("query", start, err) }()
	return c.search.Query(ctx, q, params...) //nolint:wrapcheck // classified by the facade
}

// Delete removes entries by id.
func (c *Client) Delete(ctx context.Context, ids ...string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete", start, err) }()
	return c.search.Delete(ctx, ids...) //nolint:wrapcheck // classified by the facade
}

// DeleteByQuery removes every entry matching q.
func (c *Client) DeleteByQuery(ctx context.Context, q string, params ...any) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete_by_query", start, err) }()
	return c.search.DeleteByQuery(ctx, q, params...) //nolint:wrapcheck // classified by the facade
}

// DeleteAll removes every entry.
func (c *Client) DeleteAll(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("delete_all", start, err) }()
	return c.search.DeleteAll(ctx) //nolint:wrapcheck // classified by the facade
}

// Commit makes pending writes visible.
func (c *Client) Commit(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("commit", start, err) }()
	return c.search.Commit(ctx) //nolint:wrapcheck // classified by the facade
}

// Refresh optimizes the index.
func (c *Client) Refresh(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("refresh", start, err) }()
	return c.search.Refresh(ctx) //nolint:wrapcheck // classified by the facade
}
