package app

import (
	"context"
	"github.com/go-chi/chi/v5"
	"github.com/mufasadev/coin-settlement/internal/config"
	"github.com/mufasadev/coin-settlement/internal/errors"
	"github.com/mufasadev/coin-settlement/pkg/log"
	"github.com/rs/zerolog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

const shutdownTimeout = 30 * time.Second

// Background is a long running job stopped together with the server.
type Background interface {
	Run(ctx context.Context)
}

type Service struct {
	config     *config.Config
	background []Background
	logger     *zerolog.Logger
}

// NewService creates a new instance of the service
func NewService(cfg *config.Config, background ...Background) *Service {
	l := log.GetLogger()
	return &Service{config: cfg, background: background, logger: &l}
}

// Run starts the background jobs and the server and blocks until ctx is cancelled or the process
// is signalled. Jobs are stopped after in-flight requests have drained.
func (s *Service) Run(ctx context.Context, router chi.Router) {
	server := &http.Server{
		Addr:              s.config.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	jobsCtx, stopJobs := context.WithCancel(context.WithoutCancel(ctx))
	var jobs sync.WaitGroup
	for _, b := range s.background {
		jobs.Add(1)
		go func(b Background) {
			defer jobs.Done()
			b.Run(jobsCtx)
		}(b)
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal().Err(err).Msg(errors.ErrorFailedToRunTheServer)
		}
	}()

	s.logger.Info().Str("addr", server.Addr).Msg("Server is listening")
	s.shutdown(ctx, server)

	stopJobs()
	jobs.Wait()
	s.logger.Info().Msg("Background jobs stopped")
}

// shutdown waits for a stop signal and drains the server without interrupting active connections.
func (s *Service) shutdown(ctx context.Context, server *http.Server) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-ctx.Done():
		s.logger.Info().Msg("Server is shutting down due to context cancellation...")
	case sig := <-quit:
		s.logger.Info().Str("signal", sig.String()).Msg("Server is shutting down...")
	}

	ctxShutdown, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		s.logger.Error().Err(err).Msg(errors.ErrorFailedToShutdownTheServer)
	}
	s.logger.Info().Msg("Server stopped")
}
