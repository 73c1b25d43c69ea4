package searchdex

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/searchdex/internal/config"
)

// FieldType is the index type of a schema field.
type FieldType string

// Schema field types.
const (
	FieldText    FieldType = "text"
	FieldTag     FieldType = "tag"
	FieldNumeric FieldType = "numeric"
)

// Option configures the Client.
type Option interface {
	apply(*clientConfig)
}

// optionFunc adapts a function to the Option interface.
type optionFunc func(*clientConfig)

func (f optionFunc) apply(c *clientConfig) { f(c) }

type clientConfig struct {
	backend config.BackendConfig

	logger     *zap.Logger
	metricsReg prometheus.Registerer
}

func newClientConfig(opts []Option) *clientConfig {
	cfg := &clientConfig{
		backend: config.BackendConfig{Schema: map[string]string{}},
	}
	for _, o := range opts {
		o.apply(cfg)
	}
	return cfg
}

// WithRedis connects to a Redis instance with the search module.
func WithRedis(addr, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Driver = config.DriverRedis
		c.backend.Redis.Addrs = []string{addr}
		c.backend.Redis.Password = password
	})
}

// WithRedisIndex sets the FT index name and the hash key prefix.
// Defaults: "searchdex" and "searchdex:".
func WithRedisIndex(index, keyPrefix string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Redis.Index = index
		c.backend.Redis.KeyPrefix = keyPrefix
	})
}

// WithElastic connects to an Elasticsearch cluster and uses index.
func WithElastic(index string, addresses ...string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Driver = config.DriverElastic
		c.backend.Elastic.Index = index
		c.backend.Elastic.Addresses = addresses
	})
}

// WithElasticAuth sets basic auth credentials for Elasticsearch.
func WithElasticAuth(username, password string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Elastic.Username = username
		c.backend.Elastic.Password = password
	})
}

// WithBleve uses an embedded bleve index stored at path.
// An empty path keeps the index in memory.
func WithBleve(path string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Driver = config.DriverBleve
		c.backend.Bleve.Path = path
	})
}

// WithField declares an indexed field.
func WithField(name string, t FieldType) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Schema[name] = string(t)
	})
}

// WithIDField renames the identifier field. Default: "id".
func WithIDField(name string) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.IDField = name
	})
}

// WithAutoGenerateID assigns a UUID to entries added without an id.
func WithAutoGenerateID() Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.AutoGenerateID = true
	})
}

// WithAutoCommit commits after every write.
func WithAutoCommit() Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.AutoCommit = true
	})
}

// WithStreaming sends batches in one backend round trip.
func WithStreaming() Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Streaming = true
	})
}

// WithMaxResults caps the entries returned per query. Default: 100.
func WithMaxResults(n int) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.MaxResults = n
	})
}

// WithCircuitBreaker stops calling the backend after consecutive failures and
// probes it again after timeoutSec seconds.
func WithCircuitBreaker(consecutiveFailures uint32, timeoutSec int) Option {
	return optionFunc(func(c *clientConfig) {
		c.backend.Breaker.Enabled = true
		c.backend.Breaker.ConsecutiveFailures = consecutiveFailures
		c.backend.Breaker.TimeoutSec = timeoutSec
	})
}

// WithLogger enables structured logging for client operations.
// Pass nil to disable (default).
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(c *clientConfig) {
		c.logger = l
	})
}

// WithPrometheus registers client metrics (operation counts and durations)
// on the given registerer. Pass nil to disable (default).
func WithPrometheus(reg prometheus.Registerer) Option {
	return optionFunc(func(c *clientConfig) {
		c.metricsReg = reg
	})
}
