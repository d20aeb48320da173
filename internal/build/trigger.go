package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vk/dynmod/internal/config"
	"github.com/vk/dynmod/internal/ctxlog"
	"github.com/vk/dynmod/internal/fsutil"
	"github.com/vk/dynmod/internal/hcl_adapter"
	"github.com/vk/dynmod/internal/loaderr"
	"github.com/vk/dynmod/internal/platform"
	"github.com/vk/dynmod/internal/searchpath"
	"golang.org/x/sync/errgroup"
)

// ImplTag is the build tag that compiles a module's implementation in,
// as opposed to only the surface its consumers see.
const ImplTag = "dynmod_impl"

// Invocation describes one build of one module.
type Invocation struct {
	Module    string
	SrcDir    string
	TargetDir string
	Profile   string
	Output    string // where the toolchain must write the library
	ABI       config.ABI
	Manifest  *config.Manifest
}

func (inv Invocation) build() config.BuildSettings {
	if inv.Manifest == nil {
		return config.BuildSettings{}
	}
	return inv.Manifest.Build
}

// Args returns the go toolchain arguments for inv.
func (inv Invocation) Args() []string {
	mode := "plugin"
	if inv.ABI == config.ABIC {
		mode = "c-shared"
	}
	b := inv.build()
	tags := append([]string{ImplTag}, b.Tags...)

	args := []string{"build", "-buildmode=" + mode, "-tags=" + strings.Join(tags, ",")}
	if inv.Profile == ProfileDebug {
		args = append(args, "-gcflags=all=-N -l")
	}
	args = append(args, b.Flags...)
	return append(args, "-o", inv.Output, ".")
}

// Env returns the environment for the build process: the parent's, the
// variables pinning output locations, then the manifest's additions.
func (inv Invocation) Env(base []string) []string {
	env := append([]string{}, base...)
	env = append(env,
		config.EnvTargetDir+"="+inv.TargetDir,
		config.EnvModule+"="+inv.Module,
		config.EnvOutput+"="+inv.Output,
	)
	extra := inv.build().Env
	for _, k := range slices.Sorted(maps.Keys(extra)) {
		env = append(env, k+"="+extra[k])
	}
	return env
}

// Trigger builds modules on demand.
type Trigger struct {
	executable func() (string, error)
	homeDir    func() (string, error)
	manifests  config.ManifestLoader
	command    []string
	live       io.Writer
	profile    string
	ignore     []string
}

// Option configures a Trigger.
type Option func(*Trigger)

// WithExecutable replaces os.Executable as the source of the host's
// location.
func WithExecutable(exe func() (string, error)) Option {
	return func(t *Trigger) { t.executable = exe }
}

// WithHomeDir replaces os.UserHomeDir for the default target directory.
func WithHomeDir(home func() (string, error)) Option {
	return func(t *Trigger) { t.homeDir = home }
}

// WithManifestLoader replaces the HCL manifest loader.
func WithManifestLoader(l config.ManifestLoader) Option {
	return func(t *Trigger) { t.manifests = l }
}

// WithCommand replaces the go toolchain invocation with argv. The process
// still runs in the source directory and receives DYNMOD_TARGET_DIR,
// DYNMOD_MODULE and DYNMOD_OUTPUT; it must write the library to
// $DYNMOD_OUTPUT.
func WithCommand(argv ...string) Option {
	return func(t *Trigger) { t.command = argv }
}

// WithLiveOutput sets where verbose builds stream their output. The
// default is os.Stderr.
func WithLiveOutput(w io.Writer) Option {
	return func(t *Trigger) { t.live = w }
}

// WithProfile overrides the profile detected from the host binary.
func WithProfile(profile string) Option {
	return func(t *Trigger) { t.profile = profile }
}

// WithIgnore replaces DefaultIgnore for source discovery.
func WithIgnore(patterns ...string) Option {
	return func(t *Trigger) { t.ignore = patterns }
}

// New creates a Trigger.
func New(opts ...Option) *Trigger {
	t := &Trigger{
		executable: os.Executable,
		homeDir:    os.UserHomeDir,
		manifests:  hcl_adapter.NewLoader(),
		live:       os.Stderr,
		profile:    HostProfile(),
		ignore:     DefaultIgnore,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Ignore returns the patterns used to skip directories.
func (t *Trigger) Ignore() []string {
	return t.ignore
}

// SourceDir locates the module's source directory.
func (t *Trigger) SourceDir(ctx context.Context, module string, s config.Settings) (string, error) {
	_, logger := ctxlog.WithModule(ctx, module)

	if s.SrcDir != "" {
		if !fsutil.IsDir(s.SrcDir) {
			return "", loaderr.New(loaderr.KindBuildFailure, module).
				Path(s.SrcDir).
				Detail(config.EnvSrcDir + " is not an existing directory").
				Build()
		}
		return s.SrcDir, nil
	}

	root := s.SrcRoot
	if root == "" {
		exeDir, err := fsutil.ExecutableDir(t.executable)
		if err != nil {
			return "", loaderr.New(loaderr.KindBuildFailure, module).Cause(err).Build()
		}
		root = SourceRoot(exeDir)
	}
	logger.Debug("Searching for module sources.", "root", root)

	dir, ok, err := FindSourceDir(root, module, t.ignore)
	if err != nil {
		return "", loaderr.New(loaderr.KindBuildFailure, module).Path(root).Cause(err).Build()
	}
	if !ok {
		return "", loaderr.New(loaderr.KindBuildFailure, module).
			Path(root).
			Detail("could not find source directory " + SourceDirPrefix + module).
			Build()
	}
	return dir, nil
}

// TargetDir returns where build output for module goes.
func (t *Trigger) TargetDir(module string, s config.Settings) (string, error) {
	if s.TargetDir != "" {
		return s.TargetDir, nil
	}
	home, err := t.homeDir()
	if err != nil {
		return "", fmt.Errorf("no %s and no home directory: %w", config.EnvTargetDir, err)
	}
	return filepath.Join(home, ".dynmod-mods", module), nil
}

// Build compiles module and copies the library (and its debug info, when
// the toolchain produced one) to where the next load will find it: the
// module-directory override or, when there is none, the first search
// directory already holding a copy, else next to the executable. It returns
// the installed path.
//
// The build mode in s only decides whether output is streamed live; the
// caller decides whether to build at all.
func (t *Trigger) Build(ctx context.Context, module string, s config.Settings) (string, error) {
	start := time.Now()
	buildID := uuid.NewString()
	ctx, logger := ctxlog.WithModule(ctx, module)
	logger = logger.With("build_id", buildID)
	ctx = ctxlog.WithLogger(ctx, logger)

	inv, err := t.invocation(ctx, module, s)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(inv.Output), 0o755); err != nil {
		return "", loaderr.New(loaderr.KindBuildFailure, module).Path(inv.Output).Cause(err).Build()
	}

	argv := t.command
	if len(argv) == 0 {
		argv = append([]string{"go"}, inv.Args()...)
	}
	logger.Debug("Starting module build.", "dir", inv.SrcDir, "argv", argv, "profile", inv.Profile, "mode", s.Build)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = inv.SrcDir
	cmd.Env = inv.Env(os.Environ())

	var live io.Writer
	if s.Build == config.BuildVerbose {
		live = t.live
	}
	log, err := run(cmd, live)
	if err != nil {
		detail := "build command failed"
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			detail = fmt.Sprintf("build exited with status %d", exitErr.ExitCode())
		}
		logger.Error("Module build failed.", "error", err, "lines", len(log))
		return "", loaderr.New(loaderr.KindBuildFailure, module).
			Path(inv.SrcDir).
			Detail(detail).
			Log(log.String()).
			Cause(err).
			Build()
	}

	dest, err := t.install(module, inv, s)
	if err != nil {
		return "", err
	}

	logger.Info("📦 Built module.", "path", dest, "duration", time.Since(start))
	return dest, nil
}

func (t *Trigger) invocation(ctx context.Context, module string, s config.Settings) (Invocation, error) {
	srcDir, err := t.SourceDir(ctx, module, s)
	if err != nil {
		return Invocation{}, err
	}
	targetDir, err := t.TargetDir(module, s)
	if err != nil {
		return Invocation{}, loaderr.New(loaderr.KindBuildFailure, module).Cause(err).Build()
	}

	manifest, err := t.manifests.LoadManifest(ctx, filepath.Join(srcDir, config.ManifestFile), config.ManifestVars{
		Module:    module,
		Profile:   t.profile,
		TargetDir: targetDir,
	})
	if err != nil {
		return Invocation{}, loaderr.New(loaderr.KindBuildFailure, module).
			Path(srcDir).
			Detail("invalid module manifest").
			Cause(err).
			Build()
	}

	return Invocation{
		Module:    module,
		SrcDir:    srcDir,
		TargetDir: targetDir,
		Profile:   t.profile,
		Output:    filepath.Join(targetDir, t.profile, platform.LibraryFile(module)),
		ABI:       s.ABI,
		Manifest:  manifest,
	}, nil
}

// install copies the built artifacts to installDir.
func (t *Trigger) install(module string, inv Invocation, s config.Settings) (string, error) {
	destDir, err := t.installDir(module, s)
	if err != nil {
		return "", loaderr.New(loaderr.KindBuildFailure, module).Cause(err).Build()
	}

	if !fsutil.Exists(inv.Output) {
		return "", loaderr.New(loaderr.KindBuildFailure, module).
			Path(inv.Output).
			Detail("build succeeded but produced no library").
			Build()
	}

	dest := filepath.Join(destDir, platform.LibraryFile(module))
	if err := fsutil.CopyFile(inv.Output, dest); err != nil {
		return "", loaderr.New(loaderr.KindBuildFailure, module).
			Path(dest).
			Detail("failed to copy built module from " + inv.Output).
			Cause(err).
			Build()
	}

	dbgSrc := filepath.Join(filepath.Dir(inv.Output), platform.DebugInfoFile(module))
	if fsutil.Exists(dbgSrc) {
		dbgDest := filepath.Join(destDir, platform.DebugInfoFile(module))
		if err := fsutil.CopyTree(dbgSrc, dbgDest); err != nil {
			return "", loaderr.New(loaderr.KindBuildFailure, module).
				Path(dbgDest).
				Detail("failed to copy debug info from " + dbgSrc).
				Cause(err).
				Build()
		}
	}
	return dest, nil
}

// installDir picks the directory whose copy the resolver will return. The
// override always wins. Without one, a copy left in <exe>/../lib or
// <exe>/../../lib would shadow a fresh library next to the executable, so
// the first directory already holding one is overwritten instead.
func (t *Trigger) installDir(module string, s config.Settings) (string, error) {
	if s.ModDir != "" {
		return s.ModDir, nil
	}
	dirs, err := searchpath.New(searchpath.WithExecutable(t.executable)).Dirs(s)
	if err != nil {
		return "", err
	}
	for _, dir := range dirs {
		if fsutil.Exists(filepath.Join(dir, platform.LibraryFile(module))) {
			return dir, nil
		}
	}
	return dirs[len(dirs)-1], nil
}

// run starts cmd, drains both output streams concurrently into one ordered
// log and waits for exit. The readers finish before Wait is called, as
// os/exec requires for pipes.
func run(cmd *exec.Cmd, live io.Writer) (Log, error) {
	cmd.Stdin = nil
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	lines := make(chan Line)
	collected := make(chan Log, 1)
	go func() {
		collected <- collect(lines, live)
	}()

	var g errgroup.Group
	g.Go(func() error { return drain(Stdout, stdout, lines) })
	g.Go(func() error { return drain(Stderr, stderr, lines) })
	readErr := g.Wait()
	close(lines)
	log := <-collected

	if err := cmd.Wait(); err != nil {
		return log, err
	}
	return log, readErr
}
