package dl

import (
	"context"
	"plugin"

	"github.com/vk/dynmod/internal/ctxlog"
)

// GoPlugin opens Go-ABI modules built with -buildmode=plugin. The plugin
// runtime needs cgo on linux and darwin; without it plugin.Open reports the
// lack of support and Open returns that as a load failure.
type GoPlugin struct{}

// Open loads the plugin, looks up EntrySymbol and calls it once.
func (GoPlugin) Open(ctx context.Context, module, path string) (any, error) {
	_, logger := ctxlog.WithModule(ctx, module)
	logger.Debug("Opening Go plugin.", "path", path)

	p, err := plugin.Open(path)
	if err != nil {
		return nil, loadFailure(module, path).Cause(err).Build()
	}

	sym, err := p.Lookup(EntrySymbol)
	if err != nil {
		return nil, symbolFailure(module, path).Detail("missing " + EntrySymbol).Cause(err).Build()
	}
	entry, err := entryFunc(sym)
	if err != nil {
		return nil, symbolFailure(module, path).Detail(err.Error()).Build()
	}

	handle := entry()
	if handle == nil {
		return nil, loadFailure(module, path).Detail(EntrySymbol + " returned nil").Build()
	}
	return handle, nil
}
