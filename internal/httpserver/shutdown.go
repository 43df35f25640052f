package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// DefaultShutdownTimeout controls how long to wait for graceful shutdowns when no
// timeout is configured.
const DefaultShutdownTimeout = 10 * time.Second

// Run serves with serve until ctx is cancelled, then drains in-flight requests for at
// most timeout. A clean shutdown returns nil.
func Run(ctx context.Context, srv *Server, serve func() error, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- serve()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
