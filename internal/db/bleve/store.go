// Package bleve implements db.Backend over an embedded bleve index.
package bleve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/db"
)

// Compile-time check: Store implements db.Backend.
var _ db.Backend = (*Store)(nil)

const (
	defaultIDField    = "id"
	defaultMaxResults = 100
	pageSize          = 1000
)

// Config holds parameters for an embedded index.
type Config struct {
	Path       string            // empty: in-memory index
	IDField    string            // indexed with the keyword analyzer for exact lookups
	Schema     map[string]string // field name -> text | tag | numeric
	MaxResults int
}

func (c *Config) applyDefaults() {
	if c.IDField == "" {
		c.IDField = defaultIDField
	}
	if c.MaxResults <= 0 {
		c.MaxResults = defaultMaxResults
	}
}

// ParseError reports query text bleve's query-string syntax rejects.
type ParseError struct {
	Query string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse query %q: %v", e.Query, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Store is a bleve-backed db.Backend.
type Store struct {
	mu     sync.RWMutex
	index  bleve.Index
	cfg    Config
	closed bool
	logger *zap.Logger
}

// NewStore opens the index at cfg.Path, creating it when missing, or builds an
// in-memory index when no path is set.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	im, err := buildMapping(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build index mapping: %w", err)
	}

	var idx bleve.Index
	if cfg.Path == "" {
		idx, err = bleve.NewMemOnly(im)
	} else {
		if mkErr := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); mkErr != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", cfg.Path, mkErr)
		}
		idx, err = bleve.Open(cfg.Path)
		if errors.Is(err, bleve.ErrorIndexPathDoesNotExist) {
			idx, err = bleve.New(cfg.Path, im)
		}
	}
	if err != nil {
		return nil, &db.Error{Op: db.OpOpen, Err: err}
	}

	logger.Debug("bleve index ready", zap.String("path", cfg.Path))
	return &Store{index: idx, cfg: cfg, logger: logger}, nil
}

func buildMapping(cfg Config) (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()

	idField := bleve.NewTextFieldMapping()
	idField.Analyzer = keyword.Name
	im.DefaultMapping.AddFieldMappingsAt(cfg.IDField, idField)

	for name, typ := range cfg.Schema {
		if name == cfg.IDField {
			continue
		}
		f, err := db.ParseFieldSpec(name, typ)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		var fm *mapping.FieldMapping
		switch f.Type {
		case db.IndexFieldNumeric:
			fm = bleve.NewNumericFieldMapping()
		case db.IndexFieldTag:
			fm = bleve.NewTextFieldMapping()
			fm.Analyzer = keyword.Name
		default:
			fm = bleve.NewTextFieldMapping()
		}
		im.DefaultMapping.AddFieldMappingsAt(name, fm)
	}
	return im, nil
}

// Ping reports whether the index is open and readable.
func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &db.Error{Op: db.OpPing, Err: db.ErrClosed}
	}
	if _, err := s.index.DocCount(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close closes the index. Further calls fail with db.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.index.Close()
}

// Commit is a no-op: every write is applied as its own batch.
func (s *Store) Commit(_ context.Context) error { return nil }

// Optimize is a no-op: segment merging runs in the background.
func (s *Store) Optimize(_ context.Context) error { return nil }

// Dialect returns bleve query-string shapes.
func (s *Store) Dialect() db.Dialect {
	idField := s.cfg.IDField
	return db.Dialect{
		Name:     "bleve",
		MatchAll: "*",
		ByID: func(id string) string {
			escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(id)
			return idField + `:"` + escaped + `"`
		},
	}
}

// Write indexes doc under its id.
func (s *Store) Write(ctx context.Context, doc db.Document) error {
	return s.WriteMany(ctx, []db.Document{doc})
}

// WriteMany indexes docs in a single batch.
func (s *Store) WriteMany(_ context.Context, docs []db.Document) error {
	if len(docs) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &db.Error{Op: db.OpWrite, Err: db.ErrClosed}
	}

	batch := s.index.NewBatch()
	for _, doc := range docs {
		if doc.ID == "" {
			return &db.Error{Op: db.OpWrite, Err: errors.New("document id is required")}
		}
		if err := batch.Index(doc.ID, doc.Fields); err != nil {
			return &db.Error{Op: db.OpWrite, Err: fmt.Errorf("document %s: %w", doc.ID, err)}
		}
	}
	if err := s.index.Batch(batch); err != nil {
		return &db.Error{Op: db.OpWrite, Err: err}
	}
	return nil
}

// DeleteByID removes documents by id.
func (s *Store) DeleteByID(_ context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &db.Error{Op: db.OpDelete, Err: db.ErrClosed}
	}

	batch := s.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := s.index.Batch(batch); err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	return nil
}

// DeleteByQuery removes every document matching the query string.
func (s *Store) DeleteByQuery(ctx context.Context, q string) error {
	parsed, err := parseQuery(q)
	if err != nil {
		return &db.Error{Op: db.OpDeleteByQuery, Err: err}
	}
	return s.deleteMatching(ctx, db.OpDeleteByQuery, parsed)
}

// DeleteAll removes every document.
func (s *Store) DeleteAll(ctx context.Context) error {
	return s.deleteMatching(ctx, db.OpDeleteAll, bleve.NewMatchAllQuery())
}

func (s *Store) deleteMatching(ctx context.Context, op string, q query.Query) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &db.Error{Op: op, Err: db.ErrClosed}
	}

	deleted := 0
	for {
		req := bleve.NewSearchRequestOptions(q, pageSize, 0, false)
		res, err := s.index.SearchInContext(ctx, req)
		if err != nil {
			return &db.Error{Op: op, Err: err}
		}
		if len(res.Hits) == 0 {
			break
		}

		batch := s.index.NewBatch()
		for _, hit := range res.Hits {
			batch.Delete(hit.ID)
		}
		if err := s.index.Batch(batch); err != nil {
			return &db.Error{Op: op, Err: err}
		}
		deleted += len(res.Hits)
		if len(res.Hits) < pageSize {
			break
		}
	}

	s.logger.Debug("bleve delete", zap.String("op", op), zap.Int("deleted", deleted))
	return nil
}
