package search

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/searchdex/internal/domain/entry"
	"github.com/kailas-cloud/searchdex/internal/domain/search/response"
)

// Mapper converts one returned entry into a T.
type Mapper[T any] func(entry.Entry) (T, error)

// Extractor selects results of type T from a whole response.
type Extractor[T any] func(*response.Response) ([]T, error)

// QueryExtract runs q and hands the response to x.
func QueryExtract[T any](ctx context.Context, s *Service, x Extractor[T], q string, params ...any) ([]T, error) {
	resp, err := s.Query(ctx, q, params...)
	if err != nil {
		return nil, err
	}
	return x(resp)
}

// QueryMap runs q and maps every returned entry with m.
func QueryMap[T any](ctx context.Context, s *Service, m Mapper[T], q string, params ...any) ([]T, error) {
	return QueryExtract(ctx, s, MapAll(m), q, params...)
}

// QueryAs runs q and decodes every returned entry into a T.
func QueryAs[T any](ctx context.Context, s *Service, q string, params ...any) ([]T, error) {
	return QueryMap(ctx, s, DecodeMapper[T](s.mapper), q, params...)
}

// MapAll lifts a per-entry Mapper into an Extractor.
func MapAll[T any](m Mapper[T]) Extractor[T] {
	return func(resp *response.Response) ([]T, error) {
		out := make([]T, 0, resp.Len())
		for i, e := range resp.Entries {
			v, err := m(e)
			if err != nil {
				return nil, fmt.Errorf("map entry %d: %w", i, err)
			}
			out = append(out, v)
		}
		return out, nil
	}
}

// DecodeMapper decodes entries into T with the struct mapper.
func DecodeMapper[T any](m EntryMapper) Mapper[T] {
	return func(e entry.Entry) (T, error) {
		var out T
		if err := m.Decode(e, &out); err != nil {
			var zero T
			return zero, err //nolint:wrapcheck // MappingError already names the field
		}
		return out, nil
	}
}

// FieldValues extracts the text of one field from every entry.
func FieldValues(field string) Extractor[string] {
	return func(resp *response.Response) ([]string, error) {
		out := make([]string, 0, resp.Len())
		for _, e := range resp.Entries {
			out = append(out, e.String(field))
		}
		return out, nil
	}
}
