package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/dynmod/internal/searchpath"
	"github.com/vk/dynmod/internal/watch"
)

// Paths lists where module's binary is looked for.
func (a *App) Paths(ctx context.Context, module string) (searchpath.Candidates, error) {
	s, err := a.Settings()
	if err != nil {
		return nil, err
	}
	return a.resolver.Resolve(a.Context(ctx), module, s)
}

// Build runs the build trigger once, regardless of DYNMOD_BUILD=skip.
func (a *App) Build(ctx context.Context, module string) (string, error) {
	s, err := a.Settings()
	if err != nil {
		return "", err
	}
	return a.trigger.Build(a.Context(ctx), module, s)
}

// Load loads module into this process through the app's registry.
func (a *App) Load(module string) (any, error) {
	return a.Registry().Load(module)
}

// Watch rebuilds module on every source change until ctx is done. With a
// healthcheck port configured, the status server runs for the duration.
func (a *App) Watch(ctx context.Context, module string, opts ...watch.Option) error {
	s, err := a.Settings()
	if err != nil {
		return err
	}
	ctx = a.Context(ctx)

	a.setStatus(WatchStatus{Module: module, State: "starting"})
	if a.config.HealthcheckPort > 0 {
		if err := a.startHealthcheckServer(ctx, a.config.HealthcheckPort); err != nil {
			return err
		}
		defer a.closeHealthCheckServer(ctx)
	}

	opts = append([]watch.Option{
		watch.WithStarted(func(dir string) {
			a.updateStatus(func(st *WatchStatus) {
				st.State = "watching"
				st.SourceDir = dir
			})
		}),
		watch.WithBuildHook(func(path string, err error) {
			a.updateStatus(func(st *WatchStatus) {
				st.Builds++
				st.LastBuild = time.Now().UTC()
				st.LastPath = path
				st.LastError = ""
				if err != nil {
					st.LastError = err.Error()
				}
			})
		}),
	}, opts...)

	if err := watch.New(a.trigger, a.trigger, opts...).Run(ctx, module, s); err != nil {
		return fmt.Errorf("watching %s: %w", module, err)
	}
	return nil
}
