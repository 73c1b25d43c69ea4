package search

import (
	"context"

	"github.com/kailas-cloud/searchdex/internal/db"
	"github.com/kailas-cloud/searchdex/internal/domain/entry"
)

// Backend is the search engine contract the facade drives.
type Backend interface {
	Write(ctx context.Context, doc db.Document) error
	WriteMany(ctx context.Context, docs []db.Document) error
	DeleteByID(ctx context.Context, ids ...string) error
	DeleteByQuery(ctx context.Context, query string) error
	DeleteAll(ctx context.Context) error
	Query(ctx context.Context, query string) (*db.SearchResult, error)
	Commit(ctx context.Context) error
	Optimize(ctx context.Context) error
	Ping(ctx context.Context) error
	Dialect() db.Dialect
}

// Translator reclassifies backend failures; nil means unrecognized.
type Translator interface {
	Translate(err error) error
}

// EntryMapper converts between structs and entries.
type EntryMapper interface {
	Encode(obj any) (entry.Entry, error)
	Decode(e entry.Entry, target any) error
}
