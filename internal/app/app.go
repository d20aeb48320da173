package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vk/dynmod/internal/build"
	"github.com/vk/dynmod/internal/config"
	"github.com/vk/dynmod/internal/ctxlog"
	"github.com/vk/dynmod/internal/registry"
	"github.com/vk/dynmod/internal/searchpath"
)

// App encapsulates the front end's dependencies and configuration.
type App struct {
	logger   *slog.Logger
	config   *Config
	lookup   config.Lookup
	resolver *searchpath.Resolver
	trigger  *build.Trigger
	registry *registry.Registry
	opener   registry.Opener

	// newRegistry is registry.Shared outside tests.
	newRegistry func(...registry.Option) *registry.Registry
	regOnce     sync.Once

	// Watch state, reported by the status endpoint.
	mu         sync.Mutex
	status     WatchStatus
	httpServer *http.Server
}

// Option configures an App.
type Option func(*App)

// WithEnv replaces the process environment.
func WithEnv(lookup config.Lookup) Option {
	return func(a *App) { a.lookup = lookup }
}

// WithResolver replaces the search path resolver.
func WithResolver(r *searchpath.Resolver) Option {
	return func(a *App) { a.resolver = r }
}

// WithTrigger replaces the build trigger.
func WithTrigger(t *build.Trigger) Option {
	return func(a *App) { a.trigger = t }
}

// WithOpener pins the library opener used by Load.
func WithOpener(o registry.Opener) Option {
	return func(a *App) { a.opener = o }
}

// NewApp creates an App whose logs go to logW.
//
// Loads go through the process-wide registry, so a module the App loads and
// a module loaded through package dynmod (by the host or by another module)
// share one slot. The first App to load wires its logger, resolver and
// trigger into that registry.
func NewApp(logW io.Writer, cfg *Config, opts ...Option) *App {
	a := &App{
		config:      cfg,
		lookup:      config.OSLookup,
		newRegistry: registry.Shared,
	}
	for _, opt := range opts {
		opt(a)
	}

	debug := false
	if s, err := config.FromEnv(a.lookup); err == nil {
		debug = s.Debug
	}
	a.logger = newLogger(cfg, debug, logW)
	if a.resolver == nil {
		a.resolver = searchpath.New()
	}
	if a.trigger == nil {
		a.trigger = build.New(build.WithLiveOutput(logW))
	}

	a.logger.Debug("App configured.", "log_level", cfg.LogLevel, "log_format", cfg.LogFormat)
	return a
}

// Registry returns the registry Load goes through, wiring it on first use.
func (a *App) Registry() *registry.Registry {
	a.regOnce.Do(func() {
		opts := []registry.Option{
			registry.WithLogger(a.logger),
			registry.WithEnv(a.lookup),
			registry.WithResolver(a.resolver),
			registry.WithBuilder(a.trigger),
		}
		if a.opener != nil {
			opts = append(opts, registry.WithOpener(a.opener))
		}
		a.registry = a.newRegistry(opts...)
	})
	return a.registry
}

// Context returns ctx carrying the app's logger.
func (a *App) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

// Settings reads the loader environment.
func (a *App) Settings() (config.Settings, error) {
	s, err := config.FromEnv(a.lookup)
	if err != nil {
		return config.Settings{}, fmt.Errorf("reading environment: %w", err)
	}
	return s, nil
}
