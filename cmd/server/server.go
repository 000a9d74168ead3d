package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// shutdownTimeout bounds how long in-flight requests get to finish once
// shutdown starts.
const shutdownTimeout = 10 * time.Second

// startHTTPServer returns an errgroup-compatible function that serves the
// router until the context is cancelled, then shuts the server down
// gracefully. A listen failure is returned so the group tears down the
// worker and scheduler with it.
func (app *application) startHTTPServer(ctx context.Context, router http.Handler) func() error {
	return func() error {
		server := &http.Server{
			Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			app.logger.Info("starting server", "port", app.config.Server.Port)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			if err != nil {
				return fmt.Errorf("http server failed: %w", err)
			}
			return nil
		case <-ctx.Done():
			app.logger.Info("shutting down http server")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			app.logger.Error("http server shutdown failed", "error", err)
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		app.logger.Info("http server shutdown completed")
		return nil
	}
}
