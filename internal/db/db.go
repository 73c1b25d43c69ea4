package db

import (
	"context"
	"fmt"
	"time"
)

// Backend is the search engine the facade writes to and queries.
//
//nolint:interfacebloat // consumers depend on the narrow sub-interfaces (ISP)
type Backend interface {
	Writer
	Deleter
	Searcher
	Committer
	Pinger
	Dialect() Dialect
	Close() error
}

// Document is one entry ready for the backend: its id and the flat field map.
type Document struct {
	ID     string
	Fields map[string]any
}

// Writer stores documents, replacing any document with the same id.
type Writer interface {
	Write(ctx context.Context, doc Document) error
	WriteMany(ctx context.Context, docs []Document) error
}

// Deleter removes documents.
type Deleter interface {
	DeleteByID(ctx context.Context, ids ...string) error
	DeleteByQuery(ctx context.Context, query string) error
	DeleteAll(ctx context.Context) error
}

// Searcher runs backend-native query strings.
type Searcher interface {
	Query(ctx context.Context, query string) (*SearchResult, error)
}

// Committer makes pending writes visible (Commit) and compacts the index (Optimize).
type Committer interface {
	Commit(ctx context.Context) error
	Optimize(ctx context.Context) error
}

// Pinger checks backend connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dialect holds the query shapes a backend understands for common lookups.
type Dialect struct {
	Name     string
	MatchAll string
	ByID     func(id string) string
}

// IDQuery returns the query selecting the document with the given id.
func (d Dialect) IDQuery(id string) string {
	if d.ByID == nil {
		return "id:" + id
	}
	return d.ByID(id)
}

// WaitForReady polls Ping until the backend responds or timeout expires.
func WaitForReady(ctx context.Context, p Pinger, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.Ping(ctx); err == nil {
		return nil
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for backend: %w", ctx.Err())
		case <-ticker.C:
			if err := p.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}
