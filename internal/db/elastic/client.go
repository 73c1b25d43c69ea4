// Package elastic implements db.Backend over Elasticsearch 8.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/db"
)

// Compile-time check: Store implements db.Backend.
var _ db.Backend = (*Store)(nil)

const (
	defaultIndex      = "searchdex"
	defaultIDField    = "id"
	defaultMaxResults = 100
)

// Config holds connection and index parameters for an Elasticsearch store.
type Config struct {
	Addresses []string
	Username  string
	Password  string

	Index      string
	IDField    string
	Schema     map[string]string // field name -> text | tag | numeric
	MaxResults int

	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper
}

func (c *Config) applyDefaults() {
	if c.Index == "" {
		c.Index = defaultIndex
	}
	if c.IDField == "" {
		c.IDField = defaultIDField
	}
	if c.MaxResults <= 0 {
		c.MaxResults = defaultMaxResults
	}
}

// Store is an Elasticsearch-backed db.Backend. Documents are indexed by id with
// their entry fields as the JSON source.
type Store struct {
	client *elasticsearch.Client
	cfg    Config
	logger *zap.Logger
}

// NewStore creates an Elasticsearch client. It does not touch the cluster.
func NewStore(cfg Config, logger *zap.Logger) (*Store, error) {
	if len(cfg.Addresses) == 0 {
		return nil, errors.New("addresses is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.applyDefaults()

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client, cfg: cfg, logger: logger}, nil
}

// Ping checks whether the cluster is reachable.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return &db.Error{Op: db.OpPing, Err: decodeError(res)}
	}
	return nil
}

// Close is a no-op: the client holds no resources beyond its HTTP transport.
func (s *Store) Close() error { return nil }

// Dialect returns the Lucene query-string shapes.
func (s *Store) Dialect() db.Dialect {
	return db.Dialect{
		Name:     "elastic",
		MatchAll: "*:*",
		ByID: func(id string) string {
			return `_id:"` + strings.ReplaceAll(id, `"`, `\"`) + `"`
		},
	}
}

// EnsureIndex creates the index with the configured field mappings unless it exists.
func (s *Store) EnsureIndex(ctx context.Context) error {
	res, err := s.client.Indices.Exists([]string{s.cfg.Index}, s.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return &db.Error{Op: db.OpIndexInfo, Err: err}
	}
	_ = res.Body.Close()

	if res.StatusCode == http.StatusOK {
		s.logger.Debug("elasticsearch index already exists", zap.String("index", s.cfg.Index))
		return nil
	}

	body, err := s.indexBody()
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}

	res, err = s.client.Indices.Create(
		s.cfg.Index,
		s.client.Indices.Create.WithBody(bytes.NewReader(body)),
		s.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		re := decodeError(res)
		if re.Cause.Type == "resource_already_exists_exception" {
			return nil
		}
		return &db.Error{Op: db.OpCreateIndex, Err: re}
	}

	s.logger.Info("elasticsearch index created", zap.String("index", s.cfg.Index))
	return nil
}

var esTypes = map[db.IndexFieldType]string{
	db.IndexFieldText:    "text",
	db.IndexFieldTag:     "keyword",
	db.IndexFieldNumeric: "double",
}

func (s *Store) indexBody() ([]byte, error) {
	props := map[string]any{
		s.cfg.IDField: map[string]string{"type": "keyword"},
	}
	for name, typ := range s.cfg.Schema {
		if name == s.cfg.IDField {
			continue
		}
		f, err := db.ParseFieldSpec(name, typ)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		props[name] = map[string]string{"type": esTypes[f.Type]}
	}
	return json.Marshal(map[string]any{
		"mappings": map[string]any{"properties": props},
	})
}
