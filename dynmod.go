package dynmod

import (
	"fmt"
	"reflect"

	"github.com/vk/dynmod/internal/dl"
	"github.com/vk/dynmod/internal/loaderr"
	"github.com/vk/dynmod/internal/registry"
)

// Module is the type-erased handle a module's entry point returns.
type Module = any

// ForeignModule is the handle of a C-ABI module.
type ForeignModule = dl.ForeignModule

// Entry-point symbol names.
const (
	EntrySymbol        = dl.EntrySymbol
	ForeignEntrySymbol = dl.ForeignEntrySymbol
)

// Errors returned by Load, for use with errors.Is.
var (
	ErrPathOverrideInvalid = loaderr.ErrPathOverrideInvalid
	ErrModuleNotFound      = loaderr.ErrModuleNotFound
	ErrBuildFailure        = loaderr.ErrBuildFailure
	ErrLoadFailure         = loaderr.ErrLoadFailure
	ErrSymbolResolution    = loaderr.ErrSymbolResolution
)

// Load returns the handle of the named module, building and loading it on
// first use. Concurrent and repeated calls share one load.
func Load(name string) (Module, error) {
	return registry.Default().Load(name)
}

// MustLoad is like Load but panics on failure. It suits hosts that cannot
// run without the module.
func MustLoad(name string) Module {
	m, err := Load(name)
	if err != nil {
		panic(err)
	}
	return m
}

// LoadAs loads the named module and asserts its handle to T, usually the
// interface the module implements.
func LoadAs[T any](name string) (T, error) {
	return loadAs[T](Load, name)
}

func loadAs[T any](load func(string) (Module, error), name string) (T, error) {
	var zero T
	m, err := load(name)
	if err != nil {
		return zero, err
	}
	v, ok := m.(T)
	if !ok {
		return zero, fmt.Errorf("module %s has type %T, which does not implement %v", name, m, reflect.TypeFor[T]())
	}
	return v, nil
}

// Loaded reports whether the named module has been loaded successfully in
// this process.
func Loaded(name string) bool {
	return registry.Default().State(name) == registry.Loaded
}
