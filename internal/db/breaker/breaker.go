// Package breaker wraps a db.Backend with a circuit breaker.
package breaker

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/db"
)

// Compile-time check: Backend implements db.Backend.
var _ db.Backend = (*Backend)(nil)

// Config holds circuit breaker parameters.
type Config struct {
	// Name identifies the breaker in logs and metrics.
	Name string
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests uint32
	// Interval clears counts while closed; 0 never clears them.
	Interval time.Duration
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// ConsecutiveFailures trips the breaker once reached.
	ConsecutiveFailures uint32
}

// DefaultConfig returns the defaults used when a section is left empty.
func DefaultConfig(name string) Config {
	return Config{
		Name:                name,
		MaxRequests:         1,
		Interval:            60 * time.Second,
		Timeout:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Option configures a Backend.
type Option func(*Backend)

// WithLogger sets the logger for state changes.
func WithLogger(l *zap.Logger) Option {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithStateObserver registers fn to be called on every state change.
func WithStateObserver(fn func(name string, to gobreaker.State)) Option {
	return func(b *Backend) { b.observer = fn }
}

// WithSuccessPredicate marks errors that do not count against the backend,
// e.g. rejected query syntax. Context cancellation never counts.
func WithSuccessPredicate(fn func(error) bool) Option {
	return func(b *Backend) { b.isSuccessful = fn }
}

// Backend decorates a db.Backend; every call except Dialect and Close passes through the breaker.
type Backend struct {
	next         db.Backend
	cb           *gobreaker.CircuitBreaker[any]
	logger       *zap.Logger
	observer     func(name string, to gobreaker.State)
	isSuccessful func(error) bool
}

// New wraps next with a breaker built from cfg.
func New(next db.Backend, cfg Config, opts ...Option) *Backend {
	b := &Backend{next: next, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}

	threshold := cfg.ConsecutiveFailures
	if threshold == 0 {
		threshold = DefaultConfig(cfg.Name).ConsecutiveFailures
	}

	b.cb = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: b.successful,
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn("backend breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
			if b.observer != nil {
				b.observer(name, to)
			}
		},
	})
	if b.observer != nil {
		b.observer(cfg.Name, gobreaker.StateClosed)
	}
	return b
}

func (b *Backend) successful(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	if b.isSuccessful != nil {
		return b.isSuccessful(err)
	}
	return false
}

// State returns the current breaker state.
func (b *Backend) State() gobreaker.State {
	return b.cb.State()
}

func (b *Backend) run(fn func() error) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, fn()
	})
	return err //nolint:wrapcheck // breaker errors are classified downstream
}

// Write implements db.Writer.
func (b *Backend) Write(ctx context.Context, doc db.Document) error {
	return b.run(func() error { return b.next.Write(ctx, doc) })
}

// WriteMany implements db.Writer.
func (b *Backend) WriteMany(ctx context.Context, docs []db.Document) error {
	return b.run(func() error { return b.next.WriteMany(ctx, docs) })
}

// DeleteByID implements db.Deleter.
func (b *Backend) DeleteByID(ctx context.Context, ids ...string) error {
	return b.run(func() error { return b.next.DeleteByID(ctx, ids...) })
}

// DeleteByQuery implements db.Deleter.
func (b *Backend) DeleteByQuery(ctx context.Context, q string) error {
	return b.run(func() error { return b.next.DeleteByQuery(ctx, q) })
}

// DeleteAll implements db.Deleter.
func (b *Backend) DeleteAll(ctx context.Context) error {
	return b.run(func() error { return b.next.DeleteAll(ctx) })
}

// Query implements db.Searcher.
func (b *Backend) Query(ctx context.Context, q string) (*db.SearchResult, error) {
	out, err := b.cb.Execute(func() (any, error) {
		return b.next.Query(ctx, q)
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // breaker errors are classified downstream
	}
	res, _ := out.(*db.SearchResult)
	return res, nil
}

// Commit implements db.Committer.
func (b *Backend) Commit(ctx context.Context) error {
	return b.run(func() error { return b.next.Commit(ctx) })
}

// Optimize implements db.Committer.
func (b *Backend) Optimize(ctx context.Context) error {
	return b.run(func() error { return b.next.Optimize(ctx) })
}

// Ping implements db.Pinger.
func (b *Backend) Ping(ctx context.Context) error {
	return b.run(func() error { return b.next.Ping(ctx) })
}

// Dialect returns the wrapped backend's dialect.
func (b *Backend) Dialect() db.Dialect {
	return b.next.Dialect()
}

// Close closes the wrapped backend.
func (b *Backend) Close() error {
	return b.next.Close() //nolint:wrapcheck // pass-through
}
