package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/searchdex/internal/db"
)

// Query runs an FT.SEARCH query (dialect 2) and returns up to MaxResults scored hits.
func (s *Store) Query(ctx context.Context, query string) (*db.SearchResult, error) {
	start := time.Now()

	cmd := s.b().Arbitrary("FT.SEARCH").Args(
		s.cfg.Index, query,
		"WITHSCORES",
		"LIMIT", "0", strconv.Itoa(s.cfg.MaxResults),
		"DIALECT", "2",
	).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}

	res, err := s.parseScoredResult(raw)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	res.Took = time.Since(start)
	res.Raw = raw
	return res, nil
}

// searchKeys returns one page of keys matching query, without their content.
func (s *Store) searchKeys(ctx context.Context, query string) ([]string, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(
		s.cfg.Index, query,
		"NOCONTENT",
		"LIMIT", "0", strconv.Itoa(pageSize),
		"DIALECT", "2",
	).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, err
	}
	if len(raw) < 2 {
		return nil, nil
	}

	keys := make([]string, 0, len(raw)-1)
	for _, m := range raw[1:] {
		key, err := m.ToString()
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// --- Result parsing ---

func (s *Store) parseScoredResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	hits := make([]db.Hit, 0, min(int(total), s.cfg.MaxResults))
	// 3-stride: [total, key1, score1, fields1, key2, score2, fields2, ...]
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}

		pairs, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}
		fields := parseFieldPairs(pairs)

		id, ok := fields[s.cfg.IDField].(string)
		if !ok || id == "" {
			id = s.idFromKey(key)
		}

		hits = append(hits, db.Hit{ID: id, Score: score, Fields: fields})
	}

	return &db.SearchResult{Total: int(total), Hits: hits}, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]any {
	m := make(map[string]any, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}
