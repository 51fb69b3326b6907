package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/yanqian/mars-clock/internal/domain/marsclock"
	"github.com/yanqian/mars-clock/internal/infra/config"
)

// App runs the clock in the configured mode, optionally next to the status server.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	clock    marsclock.Service
	channels marsclock.Channels
	server   *http.Server
}

// NewApp is used by Wire to build the runnable app.
func NewApp(cfg *config.Config, logger *slog.Logger, clock marsclock.Service, channels marsclock.Channels, server *http.Server) *App {
	return &App{
		cfg:      cfg,
		logger:   logger.With("component", "bootstrap"),
		clock:    clock,
		channels: channels,
		server:   server,
	}
}

// Run blocks until the selected mode finishes or ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	switch a.cfg.Mode {
	case "now":
		return a.runOnce(ctx)
	case "daily":
		return a.runDaily(ctx)
	default:
		return errors.New("unknown mode " + a.cfg.Mode)
	}
}

func (a *App) runOnce(ctx context.Context) error {
	report, err := a.clock.PostNow(ctx, marsclock.ModeCurrent, a.channels)
	if err != nil {
		return err
	}
	if report.Failed() > 0 {
		a.logger.Warn("posted with delivery failures", "event_id", report.EventID, "delivered", report.Delivered(), "failed", report.Failed(), "error", report.Err())
	}
	return nil
}

func (a *App) runDaily(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	if a.cfg.HTTP.Enabled && a.server != nil {
		go func() {
			a.logger.Info("status server starting", "address", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		defer a.shutdownServer()
	}

	loopErr := make(chan error, 1)
	go func() {
		loopErr <- a.clock.RunDailyLoop(ctx, a.cfg.Clock.CheckInterval, a.channels)
	}()

	select {
	case err := <-loopErr:
		if errors.Is(err, context.Canceled) {
			a.logger.Info("shutdown signal received")
			return nil
		}
		return err
	case err := <-errCh:
		cancel()
		<-loopErr
		return err
	}
}

func (a *App) shutdownServer() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("status server shutdown", "error", err)
	}
}
