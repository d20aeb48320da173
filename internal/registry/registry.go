package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vk/dynmod/internal/build"
	"github.com/vk/dynmod/internal/config"
	"github.com/vk/dynmod/internal/ctxlog"
	"github.com/vk/dynmod/internal/dl"
	"github.com/vk/dynmod/internal/loaderr"
	"github.com/vk/dynmod/internal/processlocal"
	"github.com/vk/dynmod/internal/searchpath"
)

// DefaultKey names the process-wide registry in package processlocal. It
// is versioned so an incompatible Registry type never shares the slot.
const DefaultKey = "github.com/vk/dynmod/registry/v1"

// Resolver lists where a module's binary may be.
type Resolver interface {
	Resolve(ctx context.Context, module string, s config.Settings) (searchpath.Candidates, error)
}

// Builder produces a module's binary and returns its installed path.
type Builder interface {
	Build(ctx context.Context, module string, s config.Settings) (string, error)
}

// Opener turns a binary into a module handle.
type Opener interface {
	Open(ctx context.Context, module, path string) (any, error)
}

// Registry loads modules at most once and remembers the outcome.
type Registry struct {
	mu    sync.Mutex
	slots map[string]*slot

	logger   *slog.Logger
	lookup   config.Lookup
	resolver Resolver
	builder  Builder
	opener   Opener
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger. Without one, each load logs text to stderr
// at info level, or debug when DYNMOD_DEBUG is on.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithEnv replaces the process environment as the source of settings.
func WithEnv(lookup config.Lookup) Option {
	return func(r *Registry) { r.lookup = lookup }
}

// WithResolver replaces the search path resolver.
func WithResolver(res Resolver) Option {
	return func(r *Registry) { r.resolver = res }
}

// WithBuilder replaces the build trigger.
func WithBuilder(b Builder) Option {
	return func(r *Registry) { r.builder = b }
}

// WithOpener pins the opener. Without one, the opener is chosen per load
// from DYNMOD_ABI.
func WithOpener(o Opener) Option {
	return func(r *Registry) { r.opener = o }
}

// New creates an empty Registry. Most callers want Default.
func New(opts ...Option) *Registry {
	r := &Registry{
		slots:    make(map[string]*slot),
		lookup:   config.OSLookup,
		resolver: searchpath.New(),
		builder:  build.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Default returns the registry shared by everything in the process.
func Default() *Registry {
	return Shared()
}

// Shared returns the process-wide registry, creating it with opts if no
// one has asked for it yet. Once it exists, opts are ignored: a front end
// that wants its logger and collaborators wired in must call Shared before
// anything loads a module.
func Shared(opts ...Option) *Registry {
	return processlocal.Get(DefaultKey, func() *Registry { return New(opts...) })
}

// Load returns the handle for module, locating, building and opening it on
// the first call. Every later call returns the same handle, or the same
// failure: a module that failed to load is never retried.
//
// Load blocks while another goroutine is loading the same module. It cannot
// be cancelled.
func (r *Registry) Load(module string) (any, error) {
	if err := validateName(module); err != nil {
		return nil, err
	}

	s := r.slot(module)
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.current() {
	case Loaded:
		return s.handle, nil
	case Failed:
		return nil, fmt.Errorf("%w (previous failure)", s.err)
	}

	s.set(Loading)
	defer func() {
		if p := recover(); p != nil {
			s.err = fmt.Errorf("loading module %s panicked: %v", module, p)
			s.set(Failed)
			panic(p)
		}
	}()

	handle, err := r.load(module)
	if err != nil {
		s.err = err
		s.set(Failed)
		return nil, err
	}
	s.handle = handle
	s.set(Loaded)
	return handle, nil
}

// State reports where module is in its lifecycle without blocking on a
// load in progress.
func (r *Registry) State(module string) State {
	r.mu.Lock()
	s, ok := r.slots[module]
	r.mu.Unlock()
	if !ok {
		return Empty
	}
	return s.current()
}

// Modules lists every module Load has been called for, sorted.
func (r *Registry) Modules() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.slots))
	for name := range r.slots {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *Registry) slot(module string) *slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.slots[module]
	if !ok {
		s = &slot{}
		r.slots[module] = s
	}
	return s
}

// load runs resolve, build and open for one module. Settings are read on
// every attempt so the environment at load time applies.
func (r *Registry) load(module string) (any, error) {
	start := time.Now()

	s, cfgErr := config.FromEnv(r.lookup)
	ctx, logger := ctxlog.WithModule(ctxlog.WithLogger(context.Background(), r.loggerFor(s)), module)
	if cfgErr != nil {
		return nil, fmt.Errorf("module %s: %w", module, cfgErr)
	}

	candidates, err := r.resolver.Resolve(ctx, module, s)
	if err != nil {
		return nil, withModule(err, module)
	}

	found, ok := candidates.Found()
	var path string
	switch {
	case ok && (!s.Rebuild || s.Build == config.BuildSkip):
		path = found.Path
	case s.Build == config.BuildSkip:
		return nil, loaderr.New(loaderr.KindModuleNotFound, module).
			Detail("no binary found and building is disabled").
			Searched(candidates.Paths()...).
			Build()
	default:
		logger.Debug("Building module before load.", "found", ok, "rebuild", s.Rebuild)
		// The builder's output is loaded directly; re-resolving could pick
		// a stale copy from a higher-priority directory.
		path, err = r.builder.Build(ctx, module, s)
		if err != nil {
			return nil, err
		}
	}

	opener := r.opener
	if opener == nil {
		opener = dl.ForABI(s.ABI)
	}
	handle, err := opener.Open(ctx, module, path)
	if err != nil {
		return nil, err
	}

	logger.Info("📦 Loaded module.", "path", path, "duration", time.Since(start))
	return handle, nil
}

func (r *Registry) loggerFor(s config.Settings) *slog.Logger {
	if r.logger != nil {
		return r.logger
	}
	level := slog.LevelInfo
	if s.Debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// validateName rejects names that could not form a single file name.
func validateName(module string) error {
	if module == "" || module == "." || strings.Contains(module, "..") || strings.ContainsAny(module, `/\`) {
		return loaderr.New(loaderr.KindModuleNotFound, module).
			Detail("invalid module name").
			Build()
	}
	return nil
}

// withModule fills in the module on loader errors raised before it was
// known.
func withModule(err error, module string) error {
	var lerr *loaderr.Error
	if errors.As(err, &lerr) && lerr.Module == "" {
		lerr.Module = module
	}
	return err
}
