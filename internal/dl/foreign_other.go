//go:build !linux && !darwin

package dl

import (
	"context"
	"runtime"
)

// ForeignModule is the handle of a C-ABI module.
type ForeignModule struct {
	Name     string
	Path     string
	Library  uintptr
	Instance uintptr
}

// Func always fails: C-ABI modules cannot be opened on this platform.
func (m *ForeignModule) Func(symbol string, fptr any) error {
	return symbolFailure(m.Name, m.Path).Detail("unsupported on " + runtime.GOOS).Build()
}

// Foreign opens C-ABI modules.
type Foreign struct{}

// Open always fails on this platform.
func (Foreign) Open(_ context.Context, module, path string) (any, error) {
	return nil, loadFailure(module, path).Detail("C-ABI modules unsupported on " + runtime.GOOS).Build()
}
