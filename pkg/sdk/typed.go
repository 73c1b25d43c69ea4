package searchdex

import (
	"context"
	"time"

	"github.com/kailas-cloud/searchdex/internal/repository/entity"
	searchuc "github.com/kailas-cloud/searchdex/internal/usecase/search"
)

// Identifiable is implemented by types stored through a Repository.
type Identifiable = entity.Identifiable

// Repository stores and loads values of T; see NewRepository.
type Repository[T Identifiable] = entity.Repo[T]

// NewRepository returns a typed repository backed by c.
func NewRepository[T Identifiable](c *Client) *Repository[T] {
	return entity.New[T](c.app.Search, c.app.Mapper)
}

// QueryAs runs q and decodes every returned entry into a T using its `search` tags.
func QueryAs[T any](ctx context.Context, c *Client, q string, params ...any) (out []T, err error) {
	start := time.Now()
	defer func() { c.obs.observe("query_as", start, err) }()
	return searchuc.QueryAs[T](ctx, c.app.Search, q, params...) //nolint:wrapcheck // classified by the facade
}

// FieldValues runs q and returns the value of field from every entry as text.
func FieldValues(ctx context.Context, c *Client, field, q string, params ...any) (out []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("field_values", start, err) }()
	return searchuc.QueryExtract(ctx, c.app.Search, searchuc.FieldValues(field), q, params...) //nolint:wrapcheck // classified by the facade
}
