// Package config provides configuration management for Mnemos.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for Mnemos.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the HTTP server configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Engine is the context engine configuration.
	Engine EngineConfig `mapstructure:"engine"`

	// Storage is the persistence configuration.
	Storage StorageConfig `mapstructure:"storage"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"oneof=development staging production"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// HTTP is the HTTP server configuration.
	HTTP HTTPConfig `mapstructure:"http"`

	// CORS is the CORS configuration.
	CORS CORSConfig `mapstructure:"cors"`
}

// HTTPConfig holds HTTP-specific settings.
type HTTPConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	// Enabled enables CORS support.
	Enabled bool `mapstructure:"enabled"`

	// AllowedOrigins is the list of allowed origins.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// AllowedMethods is the list of allowed HTTP methods.
	AllowedMethods []string `mapstructure:"allowed_methods"`

	// AllowedHeaders is the list of allowed headers.
	AllowedHeaders []string `mapstructure:"allowed_headers"`

	// ExposedHeaders is the list of headers exposed to the client.
	ExposedHeaders []string `mapstructure:"exposed_headers"`

	// AllowCredentials indicates whether credentials are allowed.
	AllowCredentials bool `mapstructure:"allow_credentials"`

	// MaxAge is the maximum age of CORS preflight cache in seconds.
	MaxAge int `mapstructure:"max_age"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// EngineConfig holds context engine settings.
type EngineConfig struct {
	// Embedding configures text vectorization.
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Chunker configures text segmentation.
	Chunker ChunkerConfig `mapstructure:"chunker"`

	// Entity configures the entity graph.
	Entity EntityConfig `mapstructure:"entity"`

	// Themes configures theme clustering.
	Themes ThemesConfig `mapstructure:"themes"`

	// RefIndex configures the reference index.
	RefIndex RefIndexConfig `mapstructure:"ref_index"`

	// Branch configures topic-shift detection and branching.
	Branch BranchConfig `mapstructure:"branch"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	// Dimension is the embedding vector length.
	Dimension int `mapstructure:"dimension" validate:"min=1"`

	// CacheEntries bounds the in-process embedding cache.
	CacheEntries int64 `mapstructure:"cache_entries" validate:"min=0"`

	// RedisCache enables the shared Redis embedding cache layer.
	RedisCache bool `mapstructure:"redis_cache"`

	// RedisTTL is the expiry for shared cache entries.
	RedisTTL time.Duration `mapstructure:"redis_ttl"`
}

// ChunkerConfig holds text chunking settings.
type ChunkerConfig struct {
	// ChunkSize is the window length in characters.
	ChunkSize int `mapstructure:"chunk_size" validate:"min=1"`

	// Overlap is how many characters adjacent chunks share.
	Overlap int `mapstructure:"overlap" validate:"min=0"`
}

// EntityConfig holds entity graph settings.
type EntityConfig struct {
	// DecayPerDay is the daily relationship strength decay.
	DecayPerDay float64 `mapstructure:"decay_per_day" validate:"min=0,max=1"`
}

// ThemesConfig holds theme clustering settings.
type ThemesConfig struct {
	// MinMessages is the minimum cluster size that becomes a theme.
	MinMessages int `mapstructure:"min_messages" validate:"min=1"`

	// SimilarityThreshold keeps consecutive messages in one cluster.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold" validate:"min=0,max=1"`

	// MaxClusterSize caps one cluster.
	MaxClusterSize int `mapstructure:"max_cluster_size" validate:"min=1"`

	// RefreshEvery re-clusters after this many new messages.
	RefreshEvery int `mapstructure:"refresh_every" validate:"min=1"`
}

// RefIndexConfig holds reference index settings.
type RefIndexConfig struct {
	// MaxEntries caps the number of stored pointers.
	MaxEntries int `mapstructure:"max_entries" validate:"min=1"`

	// PruneBuffer is how far below the cap pruning reduces the index.
	PruneBuffer int `mapstructure:"prune_buffer" validate:"min=1"`

	// PreviewLength truncates pointer previews.
	PreviewLength int `mapstructure:"preview_length" validate:"min=1"`
}

// BranchConfig holds topic-shift detection settings.
type BranchConfig struct {
	// MinMessages is the minimum conversation length before detection.
	MinMessages int `mapstructure:"min_messages" validate:"min=1"`

	// SameTopicThreshold is the on-topic similarity floor.
	SameTopicThreshold float64 `mapstructure:"same_topic_threshold" validate:"min=0,max=1"`

	// MajorShiftThreshold is the major-shift similarity ceiling.
	MajorShiftThreshold float64 `mapstructure:"major_shift_threshold" validate:"min=0,max=1"`

	// WindowSize is how many trailing messages form the topic baseline.
	WindowSize int `mapstructure:"window_size" validate:"min=1"`

	// SuggestionCooldown is the minimum gap between branch suggestions.
	SuggestionCooldown time.Duration `mapstructure:"suggestion_cooldown"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Type is the storage backend (memory, badger).
	Type string `mapstructure:"type" validate:"oneof=memory badger"`

	// Badger is the BadgerDB configuration.
	Badger BadgerConfig `mapstructure:"badger"`

	// Redis is the Redis configuration (shared caches).
	Redis RedisConfig `mapstructure:"redis"`
}

// BadgerConfig holds BadgerDB-specific settings.
type BadgerConfig struct {
	// Path is the database directory path.
	Path string `mapstructure:"path"`

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `mapstructure:"sync_writes"`

	// ValueLogFileSize is the maximum size of value log files in bytes.
	ValueLogFileSize int64 `mapstructure:"value_log_file_size"`
}

// RedisConfig holds Redis-specific settings.
type RedisConfig struct {
	// Address is the Redis server address.
	Address string `mapstructure:"address"`

	// Password is the Redis password.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`

	// Exporter is the tracing exporter (otlp).
	Exporter string `mapstructure:"exporter"`

	// Endpoint is the collector endpoint.
	Endpoint string `mapstructure:"endpoint"`

	// Timeout is the exporter timeout.
	Timeout time.Duration `mapstructure:"timeout"`

	// Headers are extra headers sent to the collector.
	Headers map[string]string `mapstructure:"headers"`

	// Sampler selects the sampling strategy (always_on, always_off, ratio).
	Sampler string `mapstructure:"sampler"`

	// SampleRate is the fraction of traces to sample (0.0-1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a string representation of the configuration (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Env: %s}",
		c.App.Name, c.Server.Port, c.App.Environment)
}
