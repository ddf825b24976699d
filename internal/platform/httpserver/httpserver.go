// Package httpserver runs the API listener with a bounded graceful drain.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"rollcall/internal/platform/config"
)

// Serve accepts on ln until ctx is done, then lets in-flight requests finish
// within cfg.ShutdownTimeout. It returns early if the listener fails.
func Serve(ctx context.Context, ln net.Listener, cfg config.ServerConfig, handler http.Handler, log *slog.Logger) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	log.InfoContext(ctx, "listening", "addr", ln.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		log.Warn("graceful shutdown incomplete", "error", err)
		_ = srv.Close()
	}
	return nil
}

// ListenAndServe binds cfg.Addr and calls Serve.
func ListenAndServe(ctx context.Context, cfg config.ServerConfig, handler http.Handler, log *slog.Logger) error {
	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	return Serve(ctx, ln, cfg, handler, log)
}
