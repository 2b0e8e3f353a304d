package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mnemos/mnemos/config"
	"github.com/mnemos/mnemos/pkg/api"
	"github.com/mnemos/mnemos/pkg/api/events"
	"github.com/mnemos/mnemos/pkg/api/handlers"
	"github.com/mnemos/mnemos/pkg/branch"
	"github.com/mnemos/mnemos/pkg/embedding"
	"github.com/mnemos/mnemos/pkg/engine"
	"github.com/mnemos/mnemos/pkg/eventbus"
	"github.com/mnemos/mnemos/pkg/logger"
	"github.com/mnemos/mnemos/pkg/metrics"
	"github.com/mnemos/mnemos/pkg/refindex"
	"github.com/mnemos/mnemos/pkg/store"
	"github.com/mnemos/mnemos/pkg/store/badger"
	"github.com/mnemos/mnemos/pkg/store/memory"
	"github.com/mnemos/mnemos/pkg/telemetry/tracing"
	"github.com/mnemos/mnemos/pkg/theme"
	"github.com/mnemos/mnemos/pkg/version"
)

var (
	configPath  = flag.String("config", "", "Path to configuration file")
	versionFlag = flag.Bool("version", false, "Print version information")
	helpFlag    = flag.Bool("help", false, "Print help information")

	// CLI overrides
	appName    = flag.String("app-name", "", "Override app name")
	serverPort = flag.Int("port", 0, "Override server port")
	logLevel   = flag.String("log-level", "", "Override log level")
	debugMode  = flag.Bool("debug", false, "Enable debug mode")
)

// textEmbedder adapts the caching embedder to the engine's context-free
// vectorization surface.
type textEmbedder struct {
	inner *embedding.CachingEmbedder
}

func (e textEmbedder) Embed(text string) []float32 {
	return e.inner.EmbedText(text)
}

func main() {
	flag.Parse()

	// Print help
	if *helpFlag {
		printHelp()
		os.Exit(0)
	}

	// Print version
	if *versionFlag {
		printVersion()
		os.Exit(0)
	}

	// Build CLI overrides map
	overrides := buildOverrides()

	// Load configuration
	cfg, err := config.Load(*configPath, overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration:\n%s\n", err)
		os.Exit(1)
	}

	// Initialize logger with configuration
	logCfg := &logger.Config{
		Level:  logger.ParseLevel(cfg.Log.Level),
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	if cfg.App.Debug || *debugMode {
		logCfg.Level = logger.DebugLevel
	}
	log := logger.New(logCfg)
	logger.SetGlobal(log)

	log.Info("Starting Mnemos",
		"version", version.Version,
		"buildTime", version.BuildTime,
		"gitCommit", version.GitCommit,
		"app", cfg.App.Name,
		"environment", cfg.App.Environment,
	)

	// Create root context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize tracing if enabled
	if cfg.Tracing.Enabled {
		shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.App.Name, version.Version)
		if err != nil {
			log.Error("Failed to initialize tracing", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := shutdownTracing(shutdownCtx); err != nil {
				log.Error("Error shutting down tracing", "error", err)
			}
		}()
	}

	// Initialize storage backend
	var st store.Store
	switch cfg.Storage.Type {
	case "badger":
		st, err = badger.New(&badger.Config{
			Path:             cfg.Storage.Badger.Path,
			SyncWrites:       cfg.Storage.Badger.SyncWrites,
			ValueLogFileSize: cfg.Storage.Badger.ValueLogFileSize,
		})
		if err != nil {
			log.Error("Failed to create Badger store", "error", err)
			os.Exit(1)
		}
		log.Info("Initialized Badger store", "path", cfg.Storage.Badger.Path)
	case "memory":
		st = memory.New()
		log.Info("Initialized memory store")
	default:
		st = memory.New()
		log.Warn("Unknown storage type, using memory store", "type", cfg.Storage.Type)
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error("Error closing store", "error", err)
		}
	}()

	// Initialize embedder with local and optional shared cache
	cacheCfg := embedding.CacheConfig{
		MaxEntries: int64(cfg.Engine.Embedding.CacheEntries),
		RedisTTL:   cfg.Engine.Embedding.RedisTTL,
	}
	if cfg.Engine.Embedding.RedisCache {
		cacheCfg.Redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Storage.Redis.Address,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		log.Info("Shared embedding cache enabled", "address", cfg.Storage.Redis.Address)
	}
	embedder, err := embedding.NewCachingEmbedder(embedding.New(cfg.Engine.Embedding.Dimension), cacheCfg, log)
	if err != nil {
		log.Error("Failed to create embedder", "error", err)
		os.Exit(1)
	}
	defer embedder.Close()

	// Initialize metrics manager
	metricsManager := metrics.NewManager(metrics.Config{
		Enabled:                cfg.Metrics.Enabled,
		Port:                   cfg.Metrics.Port,
		Path:                   cfg.Metrics.Path,
		ProcessDurationBuckets: metrics.DefaultConfig().ProcessDurationBuckets,
		StorageDurationBuckets: metrics.DefaultConfig().StorageDurationBuckets,
		HTTPDurationBuckets:    metrics.DefaultConfig().HTTPDurationBuckets,
	})

	// Start metrics server if enabled
	if metricsManager.Enabled() {
		go func() {
			log.Info("Starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
			if err := metricsManager.StartServer(ctx, cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
				log.Error("Metrics server error", "error", err)
			}
		}()
	}

	// Initialize the event bus and context event publisher
	bus := eventbus.NewMemoryBus()
	publisher, err := eventbus.NewPublisher(bus, eventbus.DefaultRetryConfig(), nil)
	if err != nil {
		log.Error("Failed to create event publisher", "error", err)
		os.Exit(1)
	}

	// Initialize the engine registry
	registry := engine.NewRegistry(engine.Config{
		Themes: theme.Config{
			MinMessages:         cfg.Engine.Themes.MinMessages,
			SimilarityThreshold: cfg.Engine.Themes.SimilarityThreshold,
			MaxClusterSize:      cfg.Engine.Themes.MaxClusterSize,
		},
		Branch: branch.Config{
			MinMessages:         cfg.Engine.Branch.MinMessages,
			SameTopicThreshold:  cfg.Engine.Branch.SameTopicThreshold,
			MajorShiftThreshold: cfg.Engine.Branch.MajorShiftThreshold,
			WindowSize:          cfg.Engine.Branch.WindowSize,
			SuggestionCooldown:  cfg.Engine.Branch.SuggestionCooldown,
		},
		RefIndex: refindex.Config{
			MaxEntries:    cfg.Engine.RefIndex.MaxEntries,
			PruneBuffer:   cfg.Engine.RefIndex.PruneBuffer,
			PreviewLength: cfg.Engine.RefIndex.PreviewLength,
		},
		ThemeRefreshEvery: cfg.Engine.Themes.RefreshEvery,
		EntityDecayPerDay: cfg.Engine.Entity.DecayPerDay,
		ChunkSize:         cfg.Engine.Chunker.ChunkSize,
		ChunkOverlap:      cfg.Engine.Chunker.Overlap,
	}, textEmbedder{inner: embedder}, st, publisher, metricsManager, log)

	// Bridge bus events to websocket subscribers
	broadcaster := events.NewBroadcaster()
	defer broadcaster.Close()
	bridge := events.NewBridge(bus, broadcaster, log)
	go func() {
		if err := bridge.Run(ctx); err != nil && err != context.Canceled {
			log.Error("Event bridge stopped", "error", err)
		}
	}()

	wsHandler := handlers.NewWebSocketHandler(log, handlers.WebSocketConfig{
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
	})
	defer wsHandler.Close()
	go func() {
		ch := broadcaster.Subscribe(64)
		defer broadcaster.Unsubscribe(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-ch:
				if !ok {
					return
				}
				_ = wsHandler.Broadcast(handlers.EventMessage{
					Type:      event.Type,
					Timestamp: event.Timestamp,
					Payload:   event.Payload,
				})
			}
		}
	}()

	// Initialize HTTP server with handlers
	apiHandlers := &api.Handlers{
		Context:   handlers.NewContextHandler(registry, log),
		Graph:     handlers.NewGraphHandler(registry, log),
		Branch:    handlers.NewBranchHandler(registry, log),
		Refs:      handlers.NewRefsHandler(registry, log),
		Health:    handlers.NewHealthHandler(st, registry, version.Version),
		WebSocket: wsHandler,
	}
	if metricsManager.Enabled() {
		apiHandlers.Metrics = metricsManager
	}

	httpServer := api.NewHTTPServer(cfg, log, apiHandlers)

	// Start HTTP server in a separate goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		if err := httpServer.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	log.Info("Mnemos is running",
		"http_port", cfg.Server.Port,
		"metrics_port", cfg.Metrics.Port,
		"storage", cfg.Storage.Type,
	)
	log.Info("Press Ctrl+C to stop")

	// Wait for shutdown signal or server error
	select {
	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErrChan:
		log.Error("HTTP server error", "error", err)
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Info("Shutting down HTTP server")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down HTTP server", "error", err)
	}

	log.Info("Mnemos stopped gracefully")
}

func buildOverrides() map[string]interface{} {
	overrides := make(map[string]interface{})

	if *appName != "" {
		overrides["app.name"] = *appName
	}
	if *serverPort != 0 {
		overrides["server.port"] = *serverPort
	}
	if *logLevel != "" {
		overrides["log.level"] = *logLevel
	}
	if *debugMode {
		overrides["app.debug"] = true
	}

	return overrides
}

func printVersion() {
	fmt.Printf("Mnemos - Hierarchical Conversation Context Engine\n")
	fmt.Printf("Version:    %s\n", version.Version)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Printf("Git Commit: %s\n", version.GitCommit)
	fmt.Printf("Go Version: %s\n", version.GoVersion)
}

func printHelp() {
	fmt.Printf("Mnemos - Hierarchical conversation context engine for AI assistants\n\n")
	fmt.Printf("Usage: mnemos [options]\n\n")
	fmt.Printf("Options:\n")
	flag.PrintDefaults()
	fmt.Printf("\nExamples:\n")
	fmt.Printf("  mnemos                                    # Run with default config\n")
	fmt.Printf("  mnemos -config config.yaml                # Use specific config file\n")
	fmt.Printf("  mnemos -port 9090 -log-level debug        # Override specific options\n")
	fmt.Printf("  mnemos -version                           # Print version info\n")
}
