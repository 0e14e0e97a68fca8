package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/donatemarket/internal/market"
	"github.com/alanyoungcy/donatemarket/internal/server"
	"github.com/alanyoungcy/donatemarket/internal/server/ws"
	"github.com/alanyoungcy/donatemarket/internal/service"
)

const shutdownTimeout = 5 * time.Second

// ServerMode runs the engine and HTTP API with no external backends.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, a.newMarketService(deps), nil, deps)
	return g.Wait()
}

// FullMode adds the audit log, settlement records, event bus, websocket
// stream, rate limiting and settlement archive.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		if err := hub.Run(ctx); err != nil {
			return fmt.Errorf("ws hub: %w", err)
		}
		return nil
	})

	a.startHTTPServer(ctx, g, a.newMarketService(deps), hub, deps)
	return g.Wait()
}

// newMarketService builds the registry and the service over it with whatever
// backends deps carries.
func (a *App) newMarketService(deps *Dependencies) *service.MarketService {
	opts := []service.Option{
		service.WithMaxQuestionLen(a.cfg.Market.MaxQuestionLen),
		service.WithNotifier(deps.Notifier),
	}
	if deps.SignalBus != nil {
		opts = append(opts, service.WithBus(deps.SignalBus))
	}
	if deps.AuditStore != nil {
		opts = append(opts, service.WithAudit(deps.AuditStore))
	}
	if deps.SettlementStore != nil || deps.Archiver != nil {
		opts = append(opts, service.WithSettlements(deps.SettlementStore, deps.Archiver))
	}
	if deps.LockManager != nil {
		opts = append(opts, service.WithLocks(deps.LockManager, a.cfg.Market.SettleLockTTL.Duration))
	}
	return service.NewMarketService(market.NewRegistry(), a.logger, opts...)
}

// startHTTPServer serves the API until ctx is cancelled, then shuts down
// gracefully.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, svc *service.MarketService, hub *ws.Hub, deps *Dependencies) {
	addr := fmt.Sprintf(":%d", a.cfg.Server.Port)

	h := server.NewHandler(server.Config{
		Mode:            a.cfg.Mode,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
		StartedAt:       time.Now().UTC(),
	}, svc, hub, deps.RateLimiter, a.logger)

	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.String("addr", addr),
			slog.Bool("websocket", hub != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.InfoContext(ctx, "HTTP server shutting down")
		if err := srv.Shutdown(shutCtx); err != nil {
			return err
		}
		if err := svc.Drain(shutCtx); err != nil {
			a.logger.WarnContext(shutCtx, "pending notifications dropped", slog.String("error", err.Error()))
		}
		return nil
	})
}
