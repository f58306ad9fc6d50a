package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/ramen-pos/internal/board"
	"github.com/xenking/ramen-pos/internal/command"
	"github.com/xenking/ramen-pos/internal/display"
	"github.com/xenking/ramen-pos/internal/stream"
	"github.com/xenking/ramen-pos/pkg/health"
)

// RunKitchen starts the event stream, the board projector and the display
// server, and shuts them down gracefully once ctx is cancelled.
func RunKitchen(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing kitchen display",
		zap.String("addr", cfg.Display.Addr),
		zap.String("backend", cfg.Backend.BaseURL),
		zap.String("transport", cfg.Stream.Transport),
	)

	api, err := connectBackend(ctx, lg, m, cfg)
	if err != nil {
		return err
	}

	events := stream.NewClient(newDialer(cfg, api), cfg.Stream.Client, lg.Named("stream"))
	projector, err := board.NewProjector(api, cfg.Board, lg.Named("board"), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create projector")
	}
	dispatcher := command.NewDispatcher(api, lg.Named("command"), m.TracerProvider())

	// Health check service. Readiness follows the stream connection.
	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.AddReadinessCheck("stream", time.Second,
		health.StateCheck(events.State, stream.Connected),
		health.FailureThreshold(1),
		health.StartUnhealthy(),
	)
	healthSvc.Start(ctx, 5*time.Second)
	healthSvc.SetReady(true)

	srv := display.NewServer(projector, dispatcher, healthSvc, cfg.Display, lg.Named("display"))
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Long-poll requests hold the response for up to WaitTimeout.
		WriteTimeout:   cfg.Display.WaitTimeout + 10*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Display.Addr,
		Handler:        srv.Handler(m.TracerProvider(), m.MeterProvider()),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return events.Run(gctx)
	})
	g.Go(func() error {
		return projector.Run(gctx, events.Feed())
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Display.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		if err := events.Close(); err != nil {
			lg.Debug("Stream close", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	return g.Wait()
}
