package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/searchdex/internal/db"
)

// Compile-time check: Store implements db.Backend.
var _ db.Backend = (*Store)(nil)

const (
	defaultIndex      = "searchdex"
	defaultKeyPrefix  = "searchdex:"
	defaultIDField    = "id"
	defaultMaxResults = 100
	pageSize          = 500
)

// Config holds connection and index parameters for a Redis store.
type Config struct {
	Addrs    []string
	Username string
	Password string
	DB       int

	Index      string            // FT index name
	KeyPrefix  string            // hash key prefix, also the index PREFIX
	IDField    string            // hash field holding the document id
	Schema     map[string]string // field name -> text | tag | numeric
	MaxResults int               // LIMIT applied to queries
}

func (c *Config) applyDefaults() {
	if c.Index == "" {
		c.Index = defaultIndex
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = defaultKeyPrefix
	}
	if c.IDField == "" {
		c.IDField = defaultIDField
	}
	if c.MaxResults <= 0 {
		c.MaxResults = defaultMaxResults
	}
}

// Store implements db.Backend over Redis 8+ (or Valkey) search via rueidis.
// Entries are hashes under KeyPrefix+id covered by one FT index.
type Store struct {
	client rueidis.Client
	cfg    Config
}

// NewStore creates a Redis store via rueidis.
func NewStore(cfg Config) (*Store, error) {
	if len(cfg.Addrs) == 0 {
		return nil, errors.New("addrs is required")
	}
	cfg.applyDefaults()
	if !db.IsValidIdentifier(cfg.Index) {
		return nil, fmt.Errorf("invalid index name %q", cfg.Index)
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Store{client: client, cfg: cfg}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	cmd := s.b().Ping().Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close shuts down the client.
func (s *Store) Close() error {
	s.client.Close()
	return nil
}

// Commit is a no-op: hash writes are indexed synchronously.
func (s *Store) Commit(_ context.Context) error { return nil }

// Optimize is a no-op: the FT index has no explicit compaction.
func (s *Store) Optimize(_ context.Context) error { return nil }

// Dialect returns the query shapes of the FT.SEARCH language.
func (s *Store) Dialect() db.Dialect {
	idField := s.cfg.IDField
	return db.Dialect{
		Name:     "redis",
		MatchAll: "*",
		ByID: func(id string) string {
			return "@" + idField + ":{" + tagEscaper.Replace(id) + "}"
		},
	}
}

func (s *Store) key(id string) string {
	return s.cfg.KeyPrefix + id
}

func (s *Store) idFromKey(key string) string {
	return strings.TrimPrefix(key, s.cfg.KeyPrefix)
}

func (s *Store) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return s.client.Do(ctx, cmd)
}

func (s *Store) b() rueidis.Builder {
	return s.client.B()
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	var re *rueidis.RedisError
	if !errors.As(err, &re) || re.IsNil() {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"[", "\\[",
	"]", "\\]",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	"/", "\\/",
	" ", "\\ ",
)
