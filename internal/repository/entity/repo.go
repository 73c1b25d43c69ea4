// Package entity provides a typed repository over the search facade.
package entity

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/searchdex/internal/db"
	"github.com/kailas-cloud/searchdex/internal/domain"
	"github.com/kailas-cloud/searchdex/internal/domain/entry"
	"github.com/kailas-cloud/searchdex/internal/domain/search/response"
)

// Identifiable is implemented by types stored through a Repo.
type Identifiable interface {
	EntityID() string
}

// facade is the consumer interface for the search service (ISP).
type facade interface {
	Index(ctx context.Context, obj any) (string, error)
	IndexAll(ctx context.Context, objs ...any) ([]string, error)
	Query(ctx context.Context, q string, params ...any) (*response.Response, error)
	Delete(ctx context.Context, ids ...string) error
	DeleteAll(ctx context.Context) error
	Commit(ctx context.Context) error
	Dialect() db.Dialect
}

// decoder turns entries back into structs.
type decoder interface {
	Decode(e entry.Entry, target any) error
}

// Repo stores and loads values of T.
type Repo[T Identifiable] struct {
	search  facade
	decoder decoder
}

// New creates a repository for T.
func New[T Identifiable](search facade, dec decoder) *Repo[T] {
	return &Repo[T]{search: search, decoder: dec}
}

// Save indexes obj and returns its id.
func (r *Repo[T]) Save(ctx context.Context, obj T) (string, error) {
	id, err := r.search.Index(ctx, obj)
	if err != nil {
		return "", fmt.Errorf("save: %w", err)
	}
	return id, nil
}

// SaveAll indexes objs as one batch.
func (r *Repo[T]) SaveAll(ctx context.Context, objs ...T) ([]string, error) {
	anys := make([]any, len(objs))
	for i, o := range objs {
		anys[i] = o
	}
	ids, err := r.search.IndexAll(ctx, anys...)
	if err != nil {
		return nil, fmt.Errorf("save all: %w", err)
	}
	return ids, nil
}

// FindOne returns the entity with id, or domain.ErrNotFound.
func (r *Repo[T]) FindOne(ctx context.Context, id string) (T, error) {
	var zero T
	resp, err := r.search.Query(ctx, r.search.Dialect().IDQuery(id))
	if err != nil {
		return zero, fmt.Errorf("find %s: %w", id, err)
	}
	e, ok := resp.First()
	if !ok {
		return zero, fmt.Errorf("find %s: %w", id, domain.ErrNotFound)
	}
	return r.decode(e)
}

// Exists reports whether an entity with id is stored.
func (r *Repo[T]) Exists(ctx context.Context, id string) (bool, error) {
	_, err := r.FindOne(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// FindAll returns every stored entity up to the backend result limit.
func (r *Repo[T]) FindAll(ctx context.Context) ([]T, error) {
	return r.Find(ctx, r.search.Dialect().MatchAll)
}

// Find runs a templated query and decodes every match.
func (r *Repo[T]) Find(ctx context.Context, q string, params ...any) ([]T, error) {
	resp, err := r.search.Query(ctx, q, params...)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	out := make([]T, 0, resp.Len())
	for _, e := range resp.Entries {
		v, err := r.decode(e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Delete removes obj.
func (r *Repo[T]) Delete(ctx context.Context, obj T) error {
	return r.DeleteByID(ctx, obj.EntityID())
}

// DeleteByID removes entities by id.
func (r *Repo[T]) DeleteByID(ctx context.Context, ids ...string) error {
	if err := r.search.Delete(ctx, ids...); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// DeleteAll removes every entity.
func (r *Repo[T]) DeleteAll(ctx context.Context) error {
	if err := r.search.DeleteAll(ctx); err != nil {
		return fmt.Errorf("delete all: %w", err)
	}
	return nil
}

// Commit makes pending writes visible.
func (r *Repo[T]) Commit(ctx context.Context) error {
	if err := r.search.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *Repo[T]) decode(e entry.Entry) (T, error) {
	var out T
	if err := r.decoder.Decode(e, &out); err != nil {
		var zero T
		return zero, fmt.Errorf("decode: %w", err)
	}
	return out, nil
}
