package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/db"
)

// SearchResponse is the decoded _search body, exposed as SearchResult.Raw.
type SearchResponse struct {
	Took     int  `json:"took"`
	TimedOut bool `json:"timed_out"`
	Hits     struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		MaxScore *float64 `json:"max_score"`
		Hits     []struct {
			Index  string         `json:"_index"`
			ID     string         `json:"_id"`
			Score  *float64       `json:"_score"`
			Source map[string]any `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type deleteByQueryResponse struct {
	Deleted  int `json:"deleted"`
	Failures []struct {
		ID    string `json:"id"`
		Cause Cause  `json:"cause"`
	} `json:"failures"`
}

// Query runs a Lucene query string (the q URI parameter) and returns up to MaxResults hits.
func (s *Store) Query(ctx context.Context, query string) (*db.SearchResult, error) {
	res, err := s.client.Search(
		s.client.Search.WithIndex(s.cfg.Index),
		s.client.Search.WithQuery(query),
		s.client.Search.WithSize(s.cfg.MaxResults),
		s.client.Search.WithTrackTotalHits(true),
		s.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, &db.Error{Op: db.OpQuery, Err: decodeError(res)}
	}

	dec := json.NewDecoder(res.Body)
	dec.UseNumber()
	var sr SearchResponse
	if err := dec.Decode(&sr); err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: fmt.Errorf("decode response: %w", err)}
	}

	out := &db.SearchResult{
		Took:  time.Duration(sr.Took) * time.Millisecond,
		Total: sr.Hits.Total.Value,
		Hits:  make([]db.Hit, 0, len(sr.Hits.Hits)),
		Raw:   &sr,
	}
	for _, h := range sr.Hits.Hits {
		hit := db.Hit{ID: h.ID, Fields: h.Source}
		if h.Score != nil {
			hit.Score = *h.Score
		}
		if hit.Fields == nil {
			hit.Fields = map[string]any{}
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// DeleteByID removes documents by id through one _bulk request. Missing ids are ignored.
func (s *Store) DeleteByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, id := range ids {
		action := map[string]any{"delete": map[string]any{"_index": s.cfg.Index, "_id": id}}
		if err := enc.Encode(action); err != nil {
			return &db.Error{Op: db.OpDelete, Err: fmt.Errorf("encode action: %w", err)}
		}
	}
	return s.bulk(ctx, db.OpDelete, &buf)
}

// DeleteByQuery removes every document matching the query string.
func (s *Store) DeleteByQuery(ctx context.Context, query string) error {
	return s.deleteByQuery(ctx, db.OpDeleteByQuery, map[string]any{
		"query_string": map[string]any{"query": query},
	})
}

// DeleteAll removes every document of the index.
func (s *Store) DeleteAll(ctx context.Context) error {
	return s.deleteByQuery(ctx, db.OpDeleteAll, map[string]any{
		"match_all": map[string]any{},
	})
}

func (s *Store) deleteByQuery(ctx context.Context, op string, q map[string]any) error {
	body, err := json.Marshal(map[string]any{"query": q})
	if err != nil {
		return &db.Error{Op: op, Err: err}
	}

	res, err := s.client.DeleteByQuery(
		[]string{s.cfg.Index},
		bytes.NewReader(body),
		s.client.DeleteByQuery.WithConflicts("proceed"),
		s.client.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return &db.Error{Op: op, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return &db.Error{Op: op, Err: decodeError(res)}
	}

	var dr deleteByQueryResponse
	if err := json.NewDecoder(res.Body).Decode(&dr); err != nil {
		return &db.Error{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(dr.Failures) > 0 {
		reasons := make([]string, 0, len(dr.Failures))
		for _, f := range dr.Failures {
			reasons = append(reasons, f.Cause.Reason)
		}
		return &db.Error{Op: op, Err: &ResponseError{
			Status: res.StatusCode,
			Cause:  Cause{Type: dr.Failures[0].Cause.Type, Reason: strings.Join(reasons, "; ")},
		}}
	}

	s.logger.Debug("elasticsearch delete by query", zap.Int("deleted", dr.Deleted))
	return nil
}

// Commit refreshes the index so recent writes become searchable.
func (s *Store) Commit(ctx context.Context) error {
	res, err := s.client.Indices.Refresh(
		s.client.Indices.Refresh.WithIndex(s.cfg.Index),
		s.client.Indices.Refresh.WithContext(ctx),
	)
	if err != nil {
		return &db.Error{Op: db.OpCommit, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return &db.Error{Op: db.OpCommit, Err: decodeError(res)}
	}
	return nil
}

// Optimize force-merges the index down to one segment.
func (s *Store) Optimize(ctx context.Context) error {
	res, err := s.client.Indices.Forcemerge(
		s.client.Indices.Forcemerge.WithIndex(s.cfg.Index),
		s.client.Indices.Forcemerge.WithMaxNumSegments(1),
		s.client.Indices.Forcemerge.WithContext(ctx),
	)
	if err != nil {
		return &db.Error{Op: db.OpOptimize, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return &db.Error{Op: db.OpOptimize, Err: decodeError(res)}
	}
	return nil
}
