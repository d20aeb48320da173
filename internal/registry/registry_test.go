package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/dynmod/internal/build"
	"github.com/vk/dynmod/internal/config"
	"github.com/vk/dynmod/internal/loaderr"
	"github.com/vk/dynmod/internal/platform"
	"github.com/vk/dynmod/internal/searchpath"
	"github.com/vk/dynmod/internal/testutil"
)

// handle stands in for a loaded module.
type handle struct{ path string }

type fakeResolver struct {
	calls      atomic.Int32
	candidates searchpath.Candidates
	err        error
}

func (f *fakeResolver) Resolve(context.Context, string, config.Settings) (searchpath.Candidates, error) {
	f.calls.Add(1)
	return f.candidates, f.err
}

type fakeBuilder struct {
	calls atomic.Int32
	delay time.Duration
	path  string
	err   error
}

func (f *fakeBuilder) Build(context.Context, string, config.Settings) (string, error) {
	f.calls.Add(1)
	time.Sleep(f.delay)
	return f.path, f.err
}

type fakeOpener struct {
	calls  atomic.Int32
	mu     sync.Mutex
	opened []string
	err    error
	panics bool
}

func (f *fakeOpener) Open(_ context.Context, _ string, path string) (any, error) {
	f.calls.Add(1)
	if f.panics {
		panic("entry point crashed")
	}
	if f.err != nil {
		return nil, f.err
	}
	f.mu.Lock()
	f.opened = append(f.opened, path)
	f.mu.Unlock()
	return &handle{path: path}, nil
}

func missing(paths ...string) searchpath.Candidates {
	var c searchpath.Candidates
	for _, p := range paths {
		c = append(c, searchpath.Candidate{Dir: filepath.Dir(p), Path: p})
	}
	return c
}

func newTestRegistry(env map[string]string, opts ...Option) *Registry {
	logger, _ := testutil.Logger()
	return New(append([]Option{WithLogger(logger), WithEnv(testutil.Env(env))}, opts...)...)
}

func TestLoad_ConcurrentCallersShareOneBuild(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	resolver := &fakeResolver{candidates: missing("/a/libbeta.so", "/b/libbeta.so")}
	builder := &fakeBuilder{path: "/built/libbeta.so", delay: 20 * time.Millisecond}
	opener := &fakeOpener{}
	reg := newTestRegistry(nil, WithResolver(resolver), WithBuilder(builder), WithOpener(opener))

	const callers = 32
	results := make([]any, callers)
	errs := make([]error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup

	// --- Act ---
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			results[i], errs[i] = reg.Load("beta")
		}()
	}
	close(start)
	wg.Wait()

	// --- Assert ---
	assert.Equal(t, int32(1), builder.calls.Load())
	assert.Equal(t, int32(1), opener.calls.Load())
	for i := range callers {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Equal(t, Loaded, reg.State("beta"))
}

func TestLoad_CachedHandleSkipsAllWork(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{candidates: searchpath.Candidates{{Dir: "/lib", Path: "/lib/libdelta.so", Exists: true}}}
	builder := &fakeBuilder{}
	opener := &fakeOpener{}
	reg := newTestRegistry(nil, WithResolver(resolver), WithBuilder(builder), WithOpener(opener))

	first, err := reg.Load("delta")
	require.NoError(t, err)
	second, err := reg.Load("delta")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), resolver.calls.Load())
	assert.Equal(t, int32(0), builder.calls.Load())
	assert.Equal(t, int32(1), opener.calls.Load())
}

func TestLoad_DifferentModulesAreIndependent(t *testing.T) {
	t.Parallel()

	builder := &fakeBuilder{path: "/built/lib.so"}
	reg := newTestRegistry(nil,
		WithResolver(&fakeResolver{candidates: missing("/x")}),
		WithBuilder(builder),
		WithOpener(&fakeOpener{}),
	)

	a, err := reg.Load("one")
	require.NoError(t, err)
	b, err := reg.Load("two")
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, int32(2), builder.calls.Load())
	assert.Equal(t, []string{"one", "two"}, reg.Modules())
}

func TestLoad_SkipModeWithoutBinaryListsSearchedPaths(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	exe, binDir := testutil.FakeExecutable(t)
	builder := &fakeBuilder{}
	reg := newTestRegistry(
		map[string]string{config.EnvBuild: "skip"},
		WithResolver(searchpath.New(searchpath.WithExecutable(exe))),
		WithBuilder(builder),
		WithOpener(&fakeOpener{}),
	)

	// --- Act ---
	_, err := reg.Load("alpha")

	// --- Assert ---
	require.Error(t, err)
	assert.True(t, errors.Is(err, loaderr.ErrModuleNotFound))
	lib := platform.LibraryFile("alpha")
	for _, dir := range []string{
		filepath.Join(binDir, "..", "lib"),
		filepath.Join(binDir, "..", "..", "lib"),
		binDir,
	} {
		assert.Contains(t, err.Error(), filepath.Join(dir, lib))
	}
	assert.Equal(t, int32(0), builder.calls.Load())
	assert.Equal(t, Failed, reg.State("alpha"))
}

func TestLoad_PresentBinaryIsOpenedWithoutBuilding(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	exe, binDir := testutil.FakeExecutable(t)
	libDir := filepath.Join(binDir, "..", "lib")
	testutil.WriteFile(t, filepath.Join(libDir, platform.LibraryFile("gamma")), "lib")
	testutil.WriteFile(t, filepath.Join(binDir, platform.LibraryFile("gamma")), "older")
	builder := &fakeBuilder{}
	opener := &fakeOpener{}
	reg := newTestRegistry(nil,
		WithResolver(searchpath.New(searchpath.WithExecutable(exe))),
		WithBuilder(builder),
		WithOpener(opener),
	)

	// --- Act ---
	h, err := reg.Load("gamma")

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(libDir, platform.LibraryFile("gamma")), h.(*handle).path)
	assert.Equal(t, int32(0), builder.calls.Load())
}

func TestLoad_InvalidOverrideFailsBeforeBuilding(t *testing.T) {
	t.Parallel()

	exe, _ := testutil.FakeExecutable(t)
	builder := &fakeBuilder{}
	reg := newTestRegistry(
		map[string]string{config.EnvModDir: "relative/mods"},
		WithResolver(searchpath.New(searchpath.WithExecutable(exe))),
		WithBuilder(builder),
		WithOpener(&fakeOpener{}),
	)

	_, err := reg.Load("omega")

	require.Error(t, err)
	assert.True(t, errors.Is(err, loaderr.ErrPathOverrideInvalid))
	assert.Contains(t, err.Error(), "module omega")
	assert.Equal(t, int32(0), builder.calls.Load())
}

func TestLoad_RebuildLoadsBuiltArtifact(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{candidates: searchpath.Candidates{{Dir: "/lib", Path: "/lib/libeta.so", Exists: true}}}
	builder := &fakeBuilder{path: "/fresh/libeta.so"}
	opener := &fakeOpener{}
	reg := newTestRegistry(map[string]string{config.EnvRebuild: "1"},
		WithResolver(resolver), WithBuilder(builder), WithOpener(opener))

	h, err := reg.Load("eta")

	require.NoError(t, err)
	assert.Equal(t, "/fresh/libeta.so", h.(*handle).path)
	assert.Equal(t, int32(1), builder.calls.Load())
}

func TestLoad_RebuildIgnoredWhenBuildingIsSkipped(t *testing.T) {
	t.Parallel()

	builder := &fakeBuilder{}
	reg := newTestRegistry(map[string]string{config.EnvRebuild: "1", config.EnvBuild: "0"},
		WithResolver(&fakeResolver{candidates: searchpath.Candidates{{Dir: "/lib", Path: "/lib/libtheta.so", Exists: true}}}),
		WithBuilder(builder),
		WithOpener(&fakeOpener{}),
	)

	h, err := reg.Load("theta")

	require.NoError(t, err)
	assert.Equal(t, "/lib/libtheta.so", h.(*handle).path)
	assert.Equal(t, int32(0), builder.calls.Load())
}

func TestLoad_FailureIsPermanent(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	builder := &fakeBuilder{err: loaderr.New(loaderr.KindBuildFailure, "iota").Log("[stderr] boom\n").Build()}
	reg := newTestRegistry(nil,
		WithResolver(&fakeResolver{candidates: missing("/x")}),
		WithBuilder(builder),
		WithOpener(&fakeOpener{}),
	)

	// --- Act ---
	_, first := reg.Load("iota")
	_, second := reg.Load("iota")

	// --- Assert ---
	require.Error(t, first)
	require.Error(t, second)
	assert.True(t, errors.Is(second, loaderr.ErrBuildFailure))
	assert.Contains(t, second.Error(), "(previous failure)")
	assert.Contains(t, second.Error(), "[stderr] boom")
	assert.Equal(t, int32(1), builder.calls.Load())
	assert.Equal(t, Failed, reg.State("iota"))
}

func TestLoad_OpenFailureIsReported(t *testing.T) {
	t.Parallel()

	opener := &fakeOpener{err: loaderr.New(loaderr.KindSymbolResolution, "kappa").Detail("missing DynmodEntry").Build()}
	reg := newTestRegistry(nil,
		WithResolver(&fakeResolver{candidates: searchpath.Candidates{{Path: "/lib/libkappa.so", Exists: true}}}),
		WithBuilder(&fakeBuilder{}),
		WithOpener(opener),
	)

	_, err := reg.Load("kappa")

	assert.True(t, errors.Is(err, loaderr.ErrSymbolResolution))
	assert.Equal(t, Failed, reg.State("kappa"))
}

func TestLoad_PanicLeavesSlotFailed(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry(nil,
		WithResolver(&fakeResolver{candidates: searchpath.Candidates{{Path: "/lib/liblambda.so", Exists: true}}}),
		WithBuilder(&fakeBuilder{}),
		WithOpener(&fakeOpener{panics: true}),
	)

	assert.PanicsWithValue(t, "entry point crashed", func() { _, _ = reg.Load("lambda") })

	assert.Equal(t, Failed, reg.State("lambda"))
	_, err := reg.Load("lambda")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked: entry point crashed")
}

func TestLoad_RejectsInvalidNames(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{}
	reg := newTestRegistry(nil, WithResolver(resolver), WithBuilder(&fakeBuilder{}), WithOpener(&fakeOpener{}))

	for _, name := range []string{"", ".", "a/b", `a\b`, "..", "x..y"} {
		_, err := reg.Load(name)
		assert.True(t, errors.Is(err, loaderr.ErrModuleNotFound), "name %q", name)
	}
	assert.Equal(t, int32(0), resolver.calls.Load())
	assert.Empty(t, reg.Modules())
}

func TestLoad_InvalidEnvironmentFails(t *testing.T) {
	t.Parallel()

	resolver := &fakeResolver{}
	reg := newTestRegistry(map[string]string{config.EnvABI: "wasm"},
		WithResolver(resolver), WithBuilder(&fakeBuilder{}), WithOpener(&fakeOpener{}))

	_, err := reg.Load("mu")

	require.Error(t, err)
	assert.Contains(t, err.Error(), config.EnvABI)
	assert.Equal(t, int32(0), resolver.calls.Load())
}

func TestLoad_ConcurrentFirstBuildRunsCommandOnce(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	exe, _ := testutil.FakeExecutable(t)
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "mods", build.SourceDirPrefix+"epsilon"), 0o755))
	installDir := filepath.Join(root, "install")
	require.NoError(t, os.MkdirAll(installDir, 0o755))
	counter := filepath.Join(root, "runs")

	script := fmt.Sprintf(`echo run >> %q; sleep 0.2; mkdir -p "$(dirname "$DYNMOD_OUTPUT")" && printf lib > "$DYNMOD_OUTPUT"`, counter)
	trigger := build.New(
		build.WithCommand("sh", "-c", script),
		build.WithExecutable(exe),
		build.WithProfile(build.ProfileRelease),
	)
	opener := &fakeOpener{}
	reg := newTestRegistry(
		map[string]string{
			config.EnvModDir:    installDir,
			config.EnvSrcRoot:   root,
			config.EnvTargetDir: filepath.Join(root, "target"),
		},
		WithResolver(searchpath.New(searchpath.WithExecutable(exe))),
		WithBuilder(trigger),
		WithOpener(opener),
	)

	const callers = 8
	results := make([]any, callers)
	var wg sync.WaitGroup

	// --- Act ---
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := reg.Load("epsilon")
			assert.NoError(t, err)
			results[i] = h
		}()
	}
	wg.Wait()

	// --- Assert ---
	runs, err := os.ReadFile(counter)
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(runs), "run"))
	for i := range callers {
		assert.Same(t, results[0], results[i])
	}
	want := filepath.Join(installDir, platform.LibraryFile("epsilon"))
	assert.FileExists(t, want)
	assert.Equal(t, []string{want}, opener.opened)
}

func TestDefault_IsProcessWide(t *testing.T) {
	t.Parallel()

	assert.Same(t, Default(), Default())
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "empty", Empty.String())
	assert.Equal(t, "loading", Loading.String())
	assert.Equal(t, "loaded", Loaded.String())
	assert.Equal(t, "failed", Failed.String())
}

func TestShared_FirstCallerWires(t *testing.T) {
	t.Parallel()

	// Whoever asks first creates it; every later caller gets that instance
	// regardless of options.
	first := Shared()
	again := Shared(WithOpener(&fakeOpener{}))

	assert.Same(t, first, again)
	assert.Same(t, first, Default())
	assert.Nil(t, again.opener)
}

func TestLoad_ConcurrentCallersShareOneFailure(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	builder := &fakeBuilder{
		delay: 50 * time.Millisecond,
		err:   loaderr.New(loaderr.KindBuildFailure, "nu").Log("[stderr] syntax error\n").Build(),
	}
	reg := newTestRegistry(nil,
		WithResolver(&fakeResolver{candidates: missing("/x/libnu.so")}),
		WithBuilder(builder),
		WithOpener(&fakeOpener{}),
	)

	const callers = 16
	errs := make([]error, callers)
	start := make(chan struct{})
	var wg sync.WaitGroup

	// --- Act ---
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = reg.Load("nu")
		}()
	}
	close(start)
	wg.Wait()

	// --- Assert ---
	assert.Equal(t, int32(1), builder.calls.Load())
	for i := range callers {
		require.Error(t, errs[i])
		assert.True(t, errors.Is(errs[i], loaderr.ErrBuildFailure))
		assert.Contains(t, errs[i].Error(), "[stderr] syntax error")
	}
	assert.Equal(t, Failed, reg.State("nu"))
}

func TestLoad_LogsModuleOnce(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	exe, binDir := testutil.FakeExecutable(t)
	testutil.WriteFile(t, filepath.Join(binDir, platform.LibraryFile("xi")), "lib")
	logger, logs := testutil.Logger()
	reg := New(
		WithLogger(logger),
		WithEnv(testutil.Env(nil)),
		WithResolver(searchpath.New(searchpath.WithExecutable(exe))),
		WithBuilder(&fakeBuilder{}),
		WithOpener(&fakeOpener{}),
	)

	// --- Act ---
	_, err := reg.Load("xi")

	// --- Assert ---
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	require.NotEmpty(t, lines)
	for _, line := range lines {
		assert.Equal(t, 1, strings.Count(line, "module=xi"), line)
	}
}
