//go:build linux || darwin

package dl

import (
	"context"

	"github.com/ebitengine/purego"
	"github.com/vk/dynmod/internal/ctxlog"
)

// ForeignModule is the handle of a C-ABI module: the library it lives in
// and the pointer its entry point returned.
type ForeignModule struct {
	Name     string
	Path     string
	Library  uintptr
	Instance uintptr
}

// Func binds the exported symbol to fptr, which must be a pointer to a Go
// function variable with a C-compatible signature.
func (m *ForeignModule) Func(symbol string, fptr any) error {
	addr, err := purego.Dlsym(m.Library, symbol)
	if err != nil {
		return symbolFailure(m.Name, m.Path).Detail("missing " + symbol).Cause(err).Build()
	}
	purego.RegisterFunc(fptr, addr)
	return nil
}

// Foreign opens C-ABI modules built with -buildmode=c-shared.
type Foreign struct{}

// Open dlopens path with immediate binding, resolves ForeignEntrySymbol
// and calls it once. The library is never closed.
func (Foreign) Open(ctx context.Context, module, path string) (any, error) {
	_, logger := ctxlog.WithModule(ctx, module)
	logger.Debug("Opening C library.", "path", path)

	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil || lib == 0 {
		return nil, loadFailure(module, path).Cause(err).Build()
	}

	addr, err := purego.Dlsym(lib, ForeignEntrySymbol)
	if err != nil {
		return nil, symbolFailure(module, path).Detail("missing " + ForeignEntrySymbol).Cause(err).Build()
	}
	var entry func() uintptr
	purego.RegisterFunc(&entry, addr)

	instance := entry()
	if instance == 0 {
		return nil, loadFailure(module, path).Detail(ForeignEntrySymbol + " returned NULL").Build()
	}
	return &ForeignModule{Name: module, Path: path, Library: lib, Instance: instance}, nil
}
