package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sysreinstaller/vhdget/internal/adapter"
	"github.com/sysreinstaller/vhdget/internal/adapter/source"
	"github.com/sysreinstaller/vhdget/internal/domain"
	"github.com/sysreinstaller/vhdget/internal/metrics"
	"github.com/sysreinstaller/vhdget/internal/render"
	"github.com/sysreinstaller/vhdget/internal/session"
	"github.com/sysreinstaller/vhdget/internal/settings"
	"github.com/sysreinstaller/vhdget/internal/store"
)

// App holds the services one command runs against
type App struct {
	Config   *adapter.Config
	Logger   *slog.Logger
	Store    *store.Store
	Settings *settings.Service
	Session  *session.Manager
	Styles   render.Styles
	Out      io.Writer

	requestedServer string
	stopMetrics     context.CancelFunc
}

// loadConfig returns the configuration with global flags applied
func (c *CLI) loadConfig() (*adapter.Config, error) {
	cfg := c.config
	if cfg == nil {
		var err error
		if cfg, err = adapter.LoadConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		copied := *cfg
		cfg = &copied
	}

	if c.Mock {
		cfg.Source.Type = adapter.SourceTypeMock
	}
	if c.Server != "" {
		cfg.Session.PreferredServer = c.Server
	}
	if c.Verbose {
		cfg.Logging.Level = "DEBUG"
	}
	return cfg, nil
}

// open wires config, logging, storage, the catalog source and the session
// manager. The caller must Close the returned App.
func (c *CLI) open(ctx context.Context) (*App, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	}
	slog.SetDefault(logger)
	logger.Info("starting vhdget", "version", Version, "source", cfg.Source.Type)

	dataDir, err := adapter.ExpandHome(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	st, err := store.New(dataDir, storeKey(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	prefs := settings.NewService(st, logger)
	prefs.Load()

	src, err := source.NewClient(cfg, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create source: %w", err)
	}

	app := &App{
		Config:   cfg,
		Logger:   logger,
		Store:    st,
		Settings: prefs,
		Styles:   render.NewStyles(prefs.Theme()),
		Out:      c.stdout(),

		requestedServer: c.Server,
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)

		var metricsCtx context.Context
		metricsCtx, app.stopMetrics = context.WithCancel(ctx)
		go func() {
			if err := metrics.Serve(metricsCtx, cfg.Metrics.Addr, reg, logger); err != nil {
				logger.Error("metrics server failed", "error", err, "addr", cfg.Metrics.Addr)
			}
		}()
	}

	preferred := cfg.Session.PreferredServer
	if preferred == "" {
		preferred, _ = st.GetLastServer()
	}

	app.Session = session.NewManager(src, src, st, logger, session.Options{
		ArchiveCancelled:  cfg.Session.ArchiveCancelled,
		PreferredServerID: preferred,
		HistoryLimit:      cfg.Session.HistoryLimit,
		Recorder:          recorder,
	})
	return app, nil
}

// storeKey isolates persisted state per catalog backend
func storeKey(cfg *adapter.Config) string {
	if cfg.Source.Type == adapter.SourceTypeMock {
		return "mock"
	}
	return cfg.Source.BaseURL
}

// Close releases the store and stops the metrics server
func (a *App) Close() error {
	if a.stopMetrics != nil {
		a.stopMetrics()
	}
	return a.Store.Close()
}

// loadCatalog loads the server list and the catalog of the selected server.
// A server requested with --server that is not listed is an error.
func (a *App) loadCatalog(ctx context.Context) error {
	servers, err := a.Session.LoadServers(ctx)
	if err != nil {
		return err
	}
	if len(servers) == 0 {
		return errors.New("no servers available")
	}

	want := a.requestedServer
	st := a.Session.State()
	if want != "" && (st.SelectedServer == nil || st.SelectedServer.ID != want) {
		return fmt.Errorf("%w: %s", domain.ErrServerNotFound, want)
	}
	if st.SelectedServer != nil {
		a.Logger.Debug("using server", "serverID", st.SelectedServer.ID, "images", len(st.Catalog))
	}
	return nil
}

// downloadDir is where finished images are written
func (a *App) downloadDir() (string, error) {
	return adapter.ExpandHome(a.Config.Download.Dir)
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.Out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.Out, format, args...)
}
