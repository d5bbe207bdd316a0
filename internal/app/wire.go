package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/avelhorn/hubtrader/internal/blob/s3"
	"github.com/avelhorn/hubtrader/internal/cache/redis"
	"github.com/avelhorn/hubtrader/internal/config"
	"github.com/avelhorn/hubtrader/internal/domain"
	"github.com/avelhorn/hubtrader/internal/notify"
	"github.com/avelhorn/hubtrader/internal/pipeline"
	"github.com/avelhorn/hubtrader/internal/platform/esi"
	"github.com/avelhorn/hubtrader/internal/profit"
	"github.com/avelhorn/hubtrader/internal/store/postgres"
)

// Dependencies bundles every constructed component the operating modes need.
// It is built by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	PriceStore       domain.PriceStore
	HistoryStore     domain.HistoryStore
	FetchJobStore    domain.FetchJobStore
	OrderStore       domain.OrderStore
	TransactionStore domain.TransactionStore
	ProfitStore      domain.ProfitStore

	// Redis-backed collaborators
	CommandBus  domain.CommandBus
	LockManager domain.LockManager
	RateLimiter domain.RateLimiter
	PriceCache  domain.PriceCache
	TokenSource domain.TokenSource

	// Pipeline components
	ESI          *esi.Client
	Fetcher      *pipeline.RegionFetcher
	Cleaner      *pipeline.Cleaner
	Backfiller   *pipeline.Backfiller
	Scheduler    *pipeline.Scheduler
	OrderSyncer  *pipeline.OrderSyncer
	ProfitEngine *profit.Engine

	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function to call on
// shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
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
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.PriceStore = postgres.NewPriceStore(pool)
	deps.HistoryStore = postgres.NewHistoryStore(pool)
	deps.FetchJobStore = postgres.NewFetchJobStore(pool)
	deps.OrderStore = postgres.NewOrderStore(pool)
	deps.TransactionStore = postgres.NewTransactionStore(pool)
	deps.ProfitStore = postgres.NewProfitStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
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
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.CommandBus = redis.NewCommandBus(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.PriceCache = redis.NewPriceCache(redisClient, cfg.Sync.CacheTTL.Duration)
	deps.TokenSource = redis.NewTokenSource(redisClient)

	// --- Upstream client ---
	deps.ESI = esi.NewClient(esi.ClientConfig{
		BaseURL:     cfg.ESI.BaseURL,
		UserAgent:   cfg.ESI.UserAgent,
		RateLimit:   cfg.ESI.RateLimit,
		RateWindow:  cfg.ESI.RateWindow.Duration,
		PageTimeout: cfg.ESI.PageTimeout.Duration,
	}, deps.RateLimiter)

	// --- Cold storage (optional) ---
	var archiver pipeline.HistoryArchiver
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
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
		archiver = s3blob.NewArchiver(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Pipeline ---
	deps.Fetcher = pipeline.NewRegionFetcher(
		deps.ESI, deps.PriceStore, deps.HistoryStore, deps.FetchJobStore, deps.PriceCache, logger,
	)
	deps.Cleaner = pipeline.NewCleaner(
		deps.HistoryStore, deps.FetchJobStore, archiver, cfg.Retention(), logger,
	)
	deps.Backfiller = pipeline.NewBackfiller(
		deps.ESI, deps.PriceStore, deps.HistoryStore, cfg.Scheduler.Regions, cfg.BackfillHorizon(), logger,
	)
	deps.Scheduler = pipeline.NewScheduler(
		deps.Fetcher, deps.Cleaner, deps.Backfiller, deps.CommandBus, deps.Notifier,
		pipeline.SchedulerConfig{
			Regions:         cfg.Scheduler.Regions,
			FetchInterval:   cfg.Scheduler.FetchInterval.Duration,
			CleanupInterval: cfg.Scheduler.CleanupInterval.Duration,
			CommandChannel:  cfg.Scheduler.CommandChannel,
		}, logger,
	)
	deps.OrderSyncer = pipeline.NewOrderSyncer(
		deps.ESI, deps.TokenSource, deps.OrderStore, deps.PriceCache, logger,
	)
	deps.ProfitEngine = profit.NewEngine(
		deps.TransactionStore, deps.ProfitStore, deps.LockManager,
		profit.Rates{
			SalesTax:  cfg.Profit.SalesTaxRate,
			BrokerFee: cfg.Profit.BrokerFeeRate,
		}, logger,
	)

	return deps, cleanup, nil
}
