package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/specialistvlad/blockorder/internal/blockcache"
	"github.com/specialistvlad/blockorder/internal/config"
	"github.com/specialistvlad/blockorder/internal/ctxlog"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	runID  string
	cfg    *Config
	model  *config.Model

	mu         sync.Mutex
	cache      *blockcache.Cache
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It configures an
// isolated logger, loads the configuration through loader and validates it.
func NewApp(outW io.Writer, cfg *Config, loader config.Loader) (*App, error) {
	runID := uuid.NewString()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW).With("run_id", runID)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, err := loader.Load(ctx, cfg.ConfigPaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	applyOverrides(model, cfg)
	model.ApplyDefaults()
	if err := model.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Debug("Configuration loaded and validated.",
		"ops", len(model.Workload),
		"driver", model.Volume.Driver,
		"max_jobs", model.Scheduler.MaxJobs,
		"max_links", model.Scheduler.MaxLinks,
	)

	return &App{
		outW:   outW,
		logger: logger,
		runID:  runID,
		cfg:    cfg,
		model:  model,
	}, nil
}

func applyOverrides(m *config.Model, cfg *Config) {
	if cfg.VolumePath != "" {
		if m.Volume == nil {
			m.Volume = &config.Volume{}
		}
		m.Volume.Driver = config.DriverSQLite
		m.Volume.Path = cfg.VolumePath
	}
	if cfg.TraceURL != "" {
		if m.Trace == nil {
			m.Trace = &config.Trace{}
		}
		m.Trace.URL = cfg.TraceURL
	}
}

// Model returns the validated configuration model.
func (a *App) Model() *config.Model { return a.model }

// RunID returns the identifier attached to every log line of this app.
func (a *App) RunID() string { return a.runID }

func (a *App) setCache(c *blockcache.Cache) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cache = c
}

func (a *App) currentCache() *blockcache.Cache {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cache
}
