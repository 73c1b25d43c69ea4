package bleve

import (
	"context"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/kailas-cloud/searchdex/internal/db"
)

// Query runs a bleve query string and returns up to MaxResults hits with all stored fields.
func (s *Store) Query(ctx context.Context, q string) (*db.SearchResult, error) {
	parsed, err := parseQuery(q)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, &db.Error{Op: db.OpQuery, Err: db.ErrClosed}
	}

	req := bleve.NewSearchRequestOptions(parsed, s.cfg.MaxResults, 0, false)
	req.Fields = []string{"*"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, &db.Error{Op: db.OpQuery, Err: err}
	}

	out := &db.SearchResult{
		Took:  res.Took,
		Total: int(res.Total),
		Hits:  make([]db.Hit, 0, len(res.Hits)),
		Raw:   res,
	}
	for _, h := range res.Hits {
		fields := h.Fields
		if fields == nil {
			fields = map[string]any{}
		}
		out.Hits = append(out.Hits, db.Hit{ID: h.ID, Score: h.Score, Fields: fields})
	}
	return out, nil
}

// parseQuery parses a query string up front so syntax errors surface as *ParseError.
func parseQuery(q string) (query.Query, error) {
	switch strings.TrimSpace(q) {
	case "*", "*:*":
		return bleve.NewMatchAllQuery(), nil
	}
	parsed, err := bleve.NewQueryStringQuery(q).Parse()
	if err != nil {
		return nil, &ParseError{Query: q, Err: err}
	}
	return parsed, nil
}
