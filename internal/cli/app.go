package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harun/taskgate/internal/config"
	"github.com/harun/taskgate/internal/logger"
	"github.com/harun/taskgate/internal/metrics"
	"github.com/harun/taskgate/internal/tracing"
	"github.com/harun/taskgate/pkg/approval"
	"github.com/harun/taskgate/pkg/dispatch"
	"github.com/harun/taskgate/pkg/gate"
	"github.com/harun/taskgate/pkg/model"
	"github.com/harun/taskgate/pkg/tools"
)

// appOptions select how an app collects approvals
type appOptions struct {
	// Presenter overrides approval.presenter when set
	Presenter string
	// In and Prompt are the console presenter's terminal
	In     io.Reader
	Prompt io.Writer
	// Watch reloads the tool catalog when its file changes
	Watch bool
}

// app holds everything a dispatching command needs
type app struct {
	cfg        *config.Config
	logger     *logger.Logger
	metrics    *metrics.Metrics
	tools      *approval.CatalogStore
	models     *model.Catalog
	ledger     *approval.Ledger
	dispatcher *dispatch.Dispatcher

	closers []func(ctx context.Context) error
}

// loadConfig reads the config file and applies the --log-level override
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp wires config, logging, catalogs, tools, providers and the approval
// presenter into a dispatcher
func newApp(opts appOptions) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if opts.Presenter != "" {
		if err := config.NewValidator().ValidatePresenter(opts.Presenter); err != nil {
			return nil, err
		}
		cfg.Approval.Presenter = opts.Presenter
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    cfg.Logging.Pretty,
		Redaction: cfg.Logging.Redaction,
		MaxSize:   cfg.Logging.MaxSize,
		MaxAge:    cfg.Logging.MaxAge,
		Compress:  cfg.Logging.Compress,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &app{
		cfg:     cfg,
		logger:  lg,
		metrics: metrics.NewMetrics(),
	}
	a.onClose(func(context.Context) error { return lg.Close() })

	if err := a.wire(opts); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(opts appOptions) error {
	cfg := a.cfg

	if cfg.Tracing.Enabled {
		if err := a.initTracing(); err != nil {
			return err
		}
	}

	if cfg.Metrics.Enabled {
		if err := a.serve("metrics", cfg.Metrics.Addr, a.metrics.Handler()); err != nil {
			return err
		}
	}

	catalog, err := config.LoadToolCatalog(cfg.ToolConfigPath)
	if err != nil {
		return err
	}
	a.tools = approval.NewCatalogStore(catalog)

	if opts.Watch {
		w, err := config.WatchToolCatalog(cfg.ToolConfigPath, a.tools)
		if err != nil {
			return err
		}
		a.onClose(func(context.Context) error { return w.Stop() })
	}

	models, err := config.LoadModelCatalog(cfg.ModelConfigPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", cfg.ModelConfigPath).Msg("Model config not found, model tasks will fail")
	case err != nil:
		return err
	}
	a.models = models

	router := model.NewRouter(a.metrics)
	for name, key := range cfg.Providers.Keys() {
		p, err := model.NewProvider(name, key)
		if err != nil {
			return err
		}
		router.Register(p)
		a.onClose(func(context.Context) error {
			if c, ok := p.(io.Closer); ok {
				return c.Close()
			}
			return nil
		})
	}

	registry := gate.NewRegistry()
	if err := tools.Register(registry, tools.Options{
		CalendarCredentialsFile: cfg.Calendar.CredentialsFile,
	}); err != nil {
		return err
	}
	g := gate.New(registry, gate.Config{
		Timeout:   cfg.Dispatch.ToolTimeoutDuration(),
		MaxOutput: cfg.Dispatch.MaxOutput,
		Metrics:   a.metrics,
	})

	presenter, err := a.presenter(opts)
	if err != nil {
		return err
	}
	broker := approval.NewBroker(presenter, cfg.Approval.TimeoutDuration())
	a.onClose(func(context.Context) error {
		broker.Close()
		return nil
	})

	var recorder approval.Recorder
	ledger, err := approval.OpenLedger(cfg.Approval.LedgerPath)
	if err != nil {
		log.Warn().Err(err).Msg("Approval history disabled")
	} else {
		a.ledger = ledger
		recorder = ledger
		a.onClose(func(context.Context) error { return ledger.Close() })
	}

	a.dispatcher, err = dispatch.New(dispatch.Options{
		Tools:     a.tools,
		Models:    a.models,
		Presenter: broker,
		Gate:      g,
		Caller:    router,
		PoolSize:  cfg.Dispatch.PoolSize,
		Metrics:   a.metrics,
		Recorder:  recorder,
	})
	if err != nil {
		return err
	}

	log.Debug().
		Strs("tools", catalog.Names()).
		Strs("models", a.models.Names()).
		Str("presenter", cfg.Approval.Presenter).
		Int("pool_size", cfg.Dispatch.PoolSize).
		Msg("Dispatcher ready")

	return nil
}

func (a *app) presenter(opts appOptions) (approval.Presenter, error) {
	switch a.cfg.Approval.Presenter {
	case config.PresenterConsole:
		in, out := opts.In, opts.Prompt
		if in == nil {
			in = os.Stdin
		}
		if out == nil {
			out = os.Stderr
		}
		return approval.NewConsolePresenter(in, out), nil
	case config.PresenterAutoApprove:
		return &approval.AutoPresenter{Approve: true}, nil
	case config.PresenterAutoReject:
		return &approval.AutoPresenter{Approve: false}, nil
	case config.PresenterWebSocket:
		ws := approval.NewWebSocketPresenter()
		mux := http.NewServeMux()
		mux.Handle("/approvals", ws)
		if err := a.serve("approvals", a.cfg.Approval.ListenAddr, mux); err != nil {
			return nil, err
		}
		return ws, nil
	}
	return nil, fmt.Errorf("unknown approval presenter: %s", a.cfg.Approval.Presenter)
}

func (a *app) initTracing() error {
	var w io.Writer = os.Stderr
	if path := a.cfg.Tracing.File; path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open trace file: %w", err)
		}
		w = f
		a.onClose(func(context.Context) error { return f.Close() })
	}

	if err := tracing.InitOpenTelemetry(tracing.Config{
		ServiceName:    "taskgate",
		ServiceVersion: version,
		Writer:         w,
	}); err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.onClose(tracing.ShutdownOpenTelemetry)
	return nil
}

// serve listens on addr in the background until the app is closed
func (a *app) serve(name, addr string, h http.Handler) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen for %s on %s: %w", name, addr, err)
	}

	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Str("server", name).Msg("Server stopped")
		}
	}()
	log.Info().Str("server", name).Str("addr", ln.Addr().String()).Msg("Listening")

	a.onClose(srv.Shutdown)
	return nil
}

func (a *app) onClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.Warn().Err(err).Msg("Shutdown error")
		}
	}
	a.closers = nil
}
