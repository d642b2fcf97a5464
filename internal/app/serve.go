package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdex/internal/server"
	"github.com/dgnsrekt/gexdex/internal/stream"
)

// Serve runs the HTTP API until ctx is done, then shuts down gracefully.
func (a *App) Serve(ctx context.Context) error {
	opts := server.RouterOptions{
		ValidateRequests: a.Config.Server.ValidateRequest,
		Gatherer:         a.Registry,
	}

	streamCtx, stopStream := context.WithCancel(ctx)
	defer stopStream()
	if a.Config.Server.StreamEnabled {
		hub := stream.NewHub(stream.GroupValidator(a.Symbols), a.logger)
		streamer, err := stream.NewStreamer(hub, a.Service, a.Config.Server.StreamInterval(), a.logger)
		if err != nil {
			return err
		}
		go hub.Run(streamCtx)
		go streamer.Run(streamCtx)
		opts.Stream = hub
	}

	router, err := server.NewRouter(server.NewServer(a.Service, a.logger), opts, a.logger)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:         ":" + a.Config.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: a.Config.Analysis.Budget() + 10*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.Server.ShutdownTimeout())
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}
