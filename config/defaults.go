package config

import "time"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "mnemos",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    30 * time.Second,
				IdleTimeout:     120 * time.Second,
				ShutdownTimeout: 10 * time.Second,
				MaxHeaderBytes:  1 << 20, // 1MB
			},
			CORS: CORSConfig{
				Enabled:        true,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
				MaxAge:         300,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Engine: EngineConfig{
			Embedding: EmbeddingConfig{
				Dimension:    384,
				CacheEntries: 4096,
				RedisCache:   false,
				RedisTTL:     24 * time.Hour,
			},
			Chunker: ChunkerConfig{
				ChunkSize: 512,
				Overlap:   64,
			},
			Entity: EntityConfig{
				DecayPerDay: 0.01,
			},
			Themes: ThemesConfig{
				MinMessages:         3,
				SimilarityThreshold: 0.5,
				MaxClusterSize:      10,
				RefreshEvery:        10,
			},
			RefIndex: RefIndexConfig{
				MaxEntries:    1000,
				PruneBuffer:   100,
				PreviewLength: 100,
			},
			Branch: BranchConfig{
				MinMessages:         5,
				SameTopicThreshold:  0.7,
				MajorShiftThreshold: 0.3,
				WindowSize:          10,
				SuggestionCooldown:  300 * time.Second,
			},
		},
		Storage: StorageConfig{
			Type: "memory",
			Badger: BadgerConfig{
				Path:             "./data/badger",
				SyncWrites:       true,
				ValueLogFileSize: 1073741824, // 1GB
			},
			Redis: RedisConfig{
				Address:  "localhost:6379",
				Password: "",
				DB:       0,
			},
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlp",
			Endpoint:   "localhost:4317",
			Timeout:    10 * time.Second,
			Sampler:    "ratio",
			SampleRate: 0.1,
		},
	}
}
