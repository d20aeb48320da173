package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/vk/dynmod/internal/ctxlog"
)

// WatchStatus is what the status endpoint reports about a running watch.
type WatchStatus struct {
	Module    string    `json:"module"`
	State     string    `json:"state"`
	SourceDir string    `json:"source_dir,omitempty"`
	Builds    int       `json:"builds"`
	LastBuild time.Time `json:"last_build,omitzero"`
	LastPath  string    `json:"last_path,omitempty"`
	LastError string    `json:"last_error,omitempty"`
}

func (a *App) setStatus(st WatchStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = st
}

func (a *App) updateStatus(fn func(*WatchStatus)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	fn(&a.status)
}

// Status returns a copy of the current watch status.
func (a *App) Status() WatchStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// healthHandler answers liveness checks.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// statusHandler reports the last rebuild. It answers 503 while the most
// recent build is failing so health checks notice a broken module.
func (a *App) statusHandler(w http.ResponseWriter, r *http.Request) {
	st := a.Status()
	w.Header().Set("Content-Type", "application/json")
	if st.LastError != "" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(st); err != nil {
		a.logger.Error("Failed to encode status.", "error", err)
	}
}

func (a *App) statusMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/status", a.statusHandler)
	return mux
}

// startHealthcheckServer binds the port before returning so a busy port is
// reported to the caller, then serves in the background.
func (a *App) startHealthcheckServer(ctx context.Context, port int) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Configuring health check server.")

	addr := fmt.Sprintf(":%d", port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("health check server: %w", err)
	}
	a.httpServer = &http.Server{Handler: a.statusMux(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("🩺 Health check server starting", "address", fmt.Sprintf("http://localhost%s/health", addr))
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Health check server failed unexpectedly", "error", err)
		}
	}()
	return nil
}

func (a *App) closeHealthCheckServer(ctx context.Context) {
	logger := ctxlog.FromContext(ctx)
	if a.httpServer == nil {
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	logger.Info("🩺 Shutting down health check server...")
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Health check server shutdown failed", "error", err)
	}
}
