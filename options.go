package testgen

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the embedded client.
type Option func(*clientConfig)

type clientConfig struct {
	driver     string
	addrs      []string
	password   string
	collection string
	dimensions int

	embeddingBaseURL string
	embeddingAPIKey  string
	embeddingModel   string
	cacheEmbeddings  bool

	trackerBaseURL  string
	trackerUsername string
	trackerAPIToken string
	trackerTimeout  time.Duration

	modelBaseURL   string
	modelAPIKey    string
	modelName      string
	modelMaxTokens int
	modelTimeout   time.Duration

	defaultLimit int
	maxLimit     int
	minScore     float64

	logger *zap.Logger
}

// WithRedis points the client at a Redis Stack instance.
func WithRedis(addrs []string, password string) Option {
	return func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = addrs
		c.password = password
	}
}

// WithQdrant points the client at a qdrant gRPC endpoint.
func WithQdrant(addr string) Option {
	return func(c *clientConfig) {
		c.driver = "qdrant"
		c.addrs = []string{addr}
	}
}

// WithCollection overrides the collection name records are stored under.
func WithCollection(name string) Option {
	return func(c *clientConfig) {
		c.collection = name
	}
}

// WithEmbedding configures the embedding provider. baseURL must be an
// OpenAI-compatible endpoint; dimensions must match the model output.
func WithEmbedding(baseURL, model string, dimensions int) Option {
	return func(c *clientConfig) {
		c.embeddingBaseURL = baseURL
		c.embeddingModel = model
		c.dimensions = dimensions
	}
}

// WithEmbeddingCache caches embedding vectors in the store. Only effective
// with the redis driver.
func WithEmbeddingCache() Option {
	return func(c *clientConfig) {
		c.cacheEmbeddings = true
	}
}

// WithJira sets the default tracker credentials used by Generate.
func WithJira(baseURL, username, apiToken string) Option {
	return func(c *clientConfig) {
		c.trackerBaseURL = baseURL
		c.trackerUsername = username
		c.trackerAPIToken = apiToken
	}
}

// WithModel configures the generation model service. baseURL must be an
// OpenAI-compatible endpoint (e.g. Ollama's /v1).
func WithModel(baseURL, name string) Option {
	return func(c *clientConfig) {
		c.modelBaseURL = baseURL
		c.modelName = name
	}
}

// WithModelTimeout bounds a single model completion call.
func WithModelTimeout(d time.Duration) Option {
	return func(c *clientConfig) {
		c.modelTimeout = d
	}
}

// WithSearchLimits sets the default and maximum search result counts.
func WithSearchLimits(defaultLimit, maxLimit int) Option {
	return func(c *clientConfig) {
		c.defaultLimit = defaultLimit
		c.maxLimit = maxLimit
	}
}

// WithMinScore sets a similarity floor for search results. 0 disables it.
func WithMinScore(score float64) Option {
	return func(c *clientConfig) {
		c.minScore = score
	}
}

// WithLogger attaches a logger; defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
