package dynmod

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greeter interface{ Greet() string }

type english struct{}

func (english) Greet() string { return "hello" }

func TestLoadAs_AssertsHandleType(t *testing.T) {
	t.Parallel()

	load := func(string) (Module, error) { return english{}, nil }

	g, err := loadAs[greeter](load, "greeter")
	require.NoError(t, err)
	assert.Equal(t, "hello", g.Greet())

	_, err = loadAs[fmt.Stringer](load, "greeter")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not implement fmt.Stringer")
}

func TestLoadAs_PassesLoadErrorThrough(t *testing.T) {
	t.Parallel()

	load := func(string) (Module, error) { return nil, ErrLoadFailure }

	_, err := loadAs[greeter](load, "greeter")

	assert.True(t, errors.Is(err, ErrLoadFailure))
}

func TestLoad_InvalidName(t *testing.T) {
	t.Parallel()

	_, err := Load("../escape")

	assert.True(t, errors.Is(err, ErrModuleNotFound))
	assert.Panics(t, func() { MustLoad("a/b") })
}

func TestLoad_SkipModeWithoutBinary(t *testing.T) {
	// --- Arrange ---
	dir := t.TempDir()
	t.Setenv("DYNMOD_MOD_DIR", dir)
	t.Setenv("DYNMOD_BUILD", "skip")

	// --- Act ---
	_, err := Load("facade-missing")
	_, again := Load("facade-missing")

	// --- Assert ---
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModuleNotFound))
	assert.Contains(t, err.Error(), filepath.Join(dir, "libfacade-missing"))
	assert.True(t, errors.Is(again, ErrModuleNotFound))
	assert.Contains(t, again.Error(), "(previous failure)")
	assert.False(t, Loaded("facade-missing"))
}
