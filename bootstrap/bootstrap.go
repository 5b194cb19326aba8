// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/limitgate/limitgate/adapters/clock"
	gatehttp "github.com/limitgate/limitgate/adapters/http"
	"github.com/limitgate/limitgate/adapters/idgen"
	"github.com/limitgate/limitgate/adapters/memory"
	"github.com/limitgate/limitgate/adapters/metrics"
	"github.com/limitgate/limitgate/adapters/sqlite"
	"github.com/limitgate/limitgate/app"
	"github.com/limitgate/limitgate/config"
	"github.com/limitgate/limitgate/ports"
	"github.com/rs/zerolog"
)

// App represents the running application.
type App struct {
	Logger     zerolog.Logger
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	limiter *app.LimiterService
	holder  *config.Holder

	// Adapters (for cleanup)
	db            *sqlite.DB
	rateStore     *memory.ShardedRateLimitStore
	usageRecorder ports.UsageRecorder
	upstream      *gatehttp.UpstreamClient
}

// New creates and initializes the application from a loaded config.
func New(cfg *config.Config) (*App, error) {
	logger := setupLogger(cfg.Logging)

	logger.Info().Msg("initializing limitgate")

	a := &App{Logger: logger}

	if err := a.init(cfg); err != nil {
		a.cleanup()
		return nil, err
	}
	return a, nil
}

// NewWithHotReload creates the application around a config file watcher
// so rate limit settings follow file edits and SIGHUP without a restart.
func NewWithHotReload(path string) (*App, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a, err := New(cfg)
	if err != nil {
		return nil, err
	}

	holder, err := config.NewHolder(path, a.Logger)
	if err != nil {
		a.cleanup()
		return nil, fmt.Errorf("create config holder: %w", err)
	}

	a.holder = holder
	holder.OnChange(func(cfg *config.Config) {
		a.limiter.UpdateConfig(app.LimiterConfig{
			Limit:   cfg.RateLimit.Limit,
			Window:  cfg.RateLimit.WindowSecs,
			Enforce: cfg.RateLimit.Enforce,
		})
		a.rateStore.SetRetention(10 * cfg.RateLimit.Window())
		if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil {
			zerolog.SetGlobalLevel(level)
		}
		if a.Metrics != nil {
			a.Metrics.ConfigReloads.Inc()
			a.Metrics.ConfigLastReload.SetToCurrentTime()
		}
	})
	holder.OnReloadError(func(error) {
		if a.Metrics != nil {
			a.Metrics.ConfigReloadErrors.Inc()
		}
	})
	holder.WatchSignals()
	if err := holder.WatchFile(); err != nil {
		a.Logger.Warn().Err(err).Msg("config file watch unavailable")
	}

	return a, nil
}

func (a *App) init(cfg *config.Config) error {
	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		a.Logger.Info().Msg("prometheus metrics enabled")
	}

	// Rate limit store
	a.rateStore = memory.NewShardedRateLimitStore(memory.ShardedRateLimitConfig{
		NumShards: cfg.RateLimit.Shards,
		Retention: 10 * cfg.RateLimit.Window(),
	})

	realClock := clock.Real{}
	a.limiter = app.NewLimiterService(a.rateStore, realClock, app.LimiterConfig{
		Limit:   cfg.RateLimit.Limit,
		Window:  cfg.RateLimit.WindowSecs,
		Enforce: cfg.RateLimit.Enforce,
	})

	// Usage store
	var usageStore ports.UsageStore
	switch cfg.Usage.Store {
	case "sqlite":
		db, err := sqlite.Open(cfg.Usage.DSN)
		if err != nil {
			return fmt.Errorf("open usage database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return fmt.Errorf("migrate usage database: %w", err)
		}
		a.db = db
		usageStore = sqlite.NewUsageStore(db)
		a.Logger.Info().Str("dsn", cfg.Usage.DSN).Msg("sqlite usage store ready")
	default:
		usageStore = memory.NewUsageStore(cfg.Usage.RingSize)
	}

	a.usageRecorder = NewLocalUsageRecorder(usageStore, cfg.Usage.BatchSize, cfg.Usage.FlushInterval)

	// Upstream
	upstream, err := gatehttp.NewUpstreamClient(gatehttp.UpstreamConfig{
		BaseURL:         cfg.Upstream.URL,
		Timeout:         cfg.Upstream.Timeout,
		MaxIdleConns:    cfg.Upstream.MaxIdleConns,
		IdleConnTimeout: cfg.Upstream.IdleConnTimeout,
		Metrics:         a.Metrics,
	})
	if err != nil {
		return fmt.Errorf("create upstream client: %w", err)
	}
	a.upstream = upstream

	gateway := app.NewGatewayService(app.GatewayDeps{
		Upstream: upstream,
		Recorder: a.usageRecorder,
		Clock:    realClock,
		IDGen:    idgen.UUID{},
	})

	proxyHandler := gatehttp.NewProxyHandler(gateway, a.Logger)
	healthHandler := gatehttp.NewHealthHandler(upstream)
	statsHandler := gatehttp.NewStatsHandler(usageStore, realClock)

	router := gatehttp.NewRouterWithConfig(proxyHandler, healthHandler, a.limiter, a.Logger, gatehttp.RouterConfig{
		Metrics: a.Metrics,
		Stats:   statsHandler,
	})

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return nil
}

// Run starts the HTTP server and blocks until shutdown.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.holder != nil {
		a.holder.Stop()
	}

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	a.cleanup()

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// cleanup releases adapters in reverse construction order.
func (a *App) cleanup() {
	if a.usageRecorder != nil {
		if err := a.usageRecorder.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("usage recorder close error")
		}
	}

	if a.upstream != nil {
		a.upstream.Close()
	}

	if a.rateStore != nil {
		a.rateStore.Close()
	}

	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}
}

// Limiter exposes the limiter service for CLI inspection commands.
func (a *App) Limiter() *app.LimiterService {
	return a.limiter
}

// Holder exposes the config holder when hot reload is enabled, nil otherwise.
func (a *App) Holder() *config.Holder {
	return a.holder
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}

	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
