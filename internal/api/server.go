package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"payment-gateway/internal/config"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type HTTPServer struct {
	server          *http.Server
	shutdownTimeout time.Duration
	logger          *slog.Logger
}

func NewHTTPServer(handler http.Handler, cfg config.Server, logger *slog.Logger) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              net.JoinHostPort("", cfg.Port),
			Handler:           handler,
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
}

// Run serves until SIGINT, SIGTERM or the end of ctx, then shuts the server
// down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	const op = "api.HTTPServer.Run"

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		s.logger.Info("Starting HTTP server", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, op)
		}
		return nil
	})

	eg.Go(func() error {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stop)

		select {
		case sig := <-stop:
			s.logger.Info("Shutdown signal received", "signal", sig.String(), "timeout", s.shutdownTimeout.String())
		case <-ctx.Done():
		}
		return s.Stop(context.WithoutCancel(ctx))
	})

	return eg.Wait()
}

func (s *HTTPServer) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "api.HTTPServer.Stop")
	}
	s.logger.Info("HTTP server stopped")
	return nil
}
