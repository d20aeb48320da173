package dl

import (
	"context"
	"fmt"

	"github.com/vk/dynmod/internal/config"
	"github.com/vk/dynmod/internal/loaderr"
)

const (
	// EntrySymbol is exported by Go-ABI modules.
	EntrySymbol = "DynmodEntry"
	// ForeignEntrySymbol is exported by C-ABI modules.
	ForeignEntrySymbol = "dynmod_entry"
)

// Opener opens the library at path and returns the module's handle.
type Opener interface {
	Open(ctx context.Context, module, path string) (any, error)
}

// ForABI returns the opener for abi. Anything but config.ABIC gets the
// Go plugin opener.
func ForABI(abi config.ABI) Opener {
	if abi == config.ABIC {
		return Foreign{}
	}
	return GoPlugin{}
}

// entryFunc accepts the two shapes a Go-ABI entry point may take: a
// function, or a variable holding one.
func entryFunc(sym any) (func() any, error) {
	switch fn := sym.(type) {
	case func() any:
		return fn, nil
	case *func() any:
		if fn == nil || *fn == nil {
			return nil, fmt.Errorf("entry point variable is nil")
		}
		return *fn, nil
	default:
		return nil, fmt.Errorf("entry point has type %T, want func() any", sym)
	}
}

func loadFailure(module, path string) *loaderr.Builder {
	return loaderr.New(loaderr.KindLoadFailure, module).Path(path)
}

func symbolFailure(module, path string) *loaderr.Builder {
	return loaderr.New(loaderr.KindSymbolResolution, module).Path(path)
}
