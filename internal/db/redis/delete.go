package redis

import (
	"context"

	"github.com/kailas-cloud/searchdex/internal/db"
)

// DeleteByID removes the hashes of the given ids.
func (s *Store) DeleteByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.key(id)
	}
	if _, err := s.del(ctx, keys); err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	return nil
}

// DeleteByQuery removes every hash matching query, one search page at a time.
func (s *Store) DeleteByQuery(ctx context.Context, query string) error {
	for {
		keys, err := s.searchKeys(ctx, query)
		if err != nil {
			return &db.Error{Op: db.OpDeleteByQuery, Err: err}
		}
		if len(keys) == 0 {
			return nil
		}

		n, err := s.del(ctx, keys)
		if err != nil {
			return &db.Error{Op: db.OpDeleteByQuery, Err: err}
		}
		if n == 0 || len(keys) < pageSize {
			return nil
		}
	}
}

// DeleteAll removes every hash under the key prefix.
func (s *Store) DeleteAll(ctx context.Context) error {
	var cursor uint64
	pattern := s.cfg.KeyPrefix + "*"

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(pageSize).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return &db.Error{Op: db.OpDeleteAll, Err: err}
		}
		if len(res.Elements) > 0 {
			if _, err := s.del(ctx, res.Elements); err != nil {
				return &db.Error{Op: db.OpDeleteAll, Err: err}
			}
		}
		cursor = res.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

func (s *Store) del(ctx context.Context, keys []string) (int64, error) {
	cmd := s.b().Del().Key(keys...).Build()
	return s.do(ctx, cmd).AsInt64()
}
