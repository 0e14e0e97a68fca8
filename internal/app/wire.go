package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/alanyoungcy/donatemarket/internal/blob/s3"
	"github.com/alanyoungcy/donatemarket/internal/cache/redis"
	"github.com/alanyoungcy/donatemarket/internal/config"
	"github.com/alanyoungcy/donatemarket/internal/domain"
	"github.com/alanyoungcy/donatemarket/internal/notify"
	"github.com/alanyoungcy/donatemarket/internal/store/postgres"
)

// Dependencies bundles the backends a mode may use. In server mode every
// field except Notifier is nil.
type Dependencies struct {
	AuditStore      domain.AuditStore
	SettlementStore domain.SettlementStore

	SignalBus   domain.SignalBus
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager

	Archiver domain.SettlementArchiver

	Notifier *notify.Notifier
}

// Wire connects the backends the configured mode needs and returns them with
// a cleanup func that closes them in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Notifier: newNotifier(cfg.Notify, logger)}
	if !cfg.NeedsBackends() {
		return deps, cleanup, nil
	}

	// --- PostgreSQL ---
	pg, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pg.Close)

	if cfg.Postgres.RunMigrations {
		if err := pg.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	deps.AuditStore = postgres.NewAuditStore(pg.Pool())
	deps.SettlementStore = postgres.NewSettlementStore(pg.Pool())
	logger.InfoContext(ctx, "postgres connected")

	// --- Redis ---
	rc, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = rc.Close() })

	deps.SignalBus = redis.NewSignalBus(rc, int64(cfg.Redis.StreamMaxLen))
	deps.RateLimiter = redis.NewRateLimiter(rc)
	deps.LockManager = redis.NewLockManager(rc)
	logger.InfoContext(ctx, "redis connected", slog.String("addr", cfg.Redis.Addr))

	// --- S3 ---
	blob, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: s3: %w", err)
	}
	closers = append(closers, func() { _ = blob.Close() })

	if err := blob.Health(ctx); err != nil {
		// Settlements are still persisted in Postgres; archiving retries per
		// settlement.
		logger.WarnContext(ctx, "s3 bucket not reachable", slog.String("error", err.Error()))
	}
	deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(blob), cfg.S3.Prefix)

	return deps, cleanup, nil
}

func newNotifier(cfg config.NotifyConfig, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if strings.TrimSpace(cfg.TelegramToken) != "" && strings.TrimSpace(cfg.TelegramChatID) != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if strings.TrimSpace(cfg.DiscordWebhookURL) != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return notify.NewNotifier(senders, cfg.Events, logger)
}
