package container

import (
	"context"
	"fmt"
	"oemcatalog/ingest/internal/client"
	"oemcatalog/ingest/internal/config"
	"oemcatalog/ingest/internal/extractor"
	"oemcatalog/ingest/internal/metrics"
	"oemcatalog/ingest/internal/proxy"
	"oemcatalog/ingest/internal/queue"
	"oemcatalog/ingest/internal/repository"
	"oemcatalog/ingest/internal/service"
	"oemcatalog/ingest/internal/sitemap"
	"oemcatalog/ingest/internal/state"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components of one ingestion run
type Container struct {
	Config       *config.Config
	Metrics      *metrics.Recorder
	Fetcher      client.Fetcher
	Repository   repository.CatalogRepository
	Queue        queue.Queue
	StateManager state.StateManager

	Service *service.Service

	redis *redis.Client
}

// New creates a new container with all dependencies initialized
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{
		Config:  cfg,
		Metrics: metrics.NewRecorder(),
	}

	repo, err := repository.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog store: %w", err)
	}
	c.Repository = repo

	if cfg.Redis.Enabled {
		if err := c.connectRedis(ctx); err != nil {
			c.Close()
			return nil, err
		}
	} else {
		log.Info("📝 Redis disabled, failed pages and checkpoints are kept in memory")
		c.Queue = queue.NewMemoryQueue()
		c.StateManager = state.NewMemoryStateManager()
	}

	proxySupplier := proxy.NewProxySupplier(ctx, cfg.Fetcher.Proxies, cfg.Sitemap.RootURL)

	c.Fetcher = client.NewFetcher(cfg.Fetcher, cfg.Referer(), proxySupplier,
		client.WithBlockCooldown(cfg.Fetcher.BlockCooldown),
		client.WithMetrics(c.Metrics),
	)

	c.Service = service.NewService(service.Deps{
		Fetcher:      c.Fetcher,
		Extractor:    extractor.NewHTMLExtractor(cfg.Extractor.Selectors),
		Repository:   c.Repository,
		Queue:        c.Queue,
		StateManager: c.StateManager,
		Metrics:      c.Metrics,
		Filter:       sitemap.Filter{Include: cfg.Sitemap.Include, Exclude: cfg.Sitemap.Exclude},
		MinIdleTime:  cfg.Redis.MinIdleTime,
	})

	return c, nil
}

func (c *Container) connectRedis(ctx context.Context) error {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", c.Config.Redis.Host, c.Config.Redis.Port),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.Database,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	c.redis = rdb
	log.Info("✅ Connected to Redis successfully")

	redisQueue, err := queue.NewRedisQueue(ctx, rdb, c.Config.Redis)
	if err != nil {
		return err
	}
	c.Queue = redisQueue
	c.StateManager = state.NewRedisStateManager(rdb)
	return nil
}

func (c *Container) runOptions() service.RunOptions {
	return service.RunOptions{
		RootURL:       c.Config.Sitemap.RootURL,
		Workers:       c.Config.Crawl.Workers,
		StartInterval: c.Config.Crawl.StartInterval,
		Resume:        c.Config.Crawl.Resume,
	}
}

// Crawl runs one full ingestion and pushes the run's metrics.
func (c *Container) Crawl(ctx context.Context) (*service.RunSummary, error) {
	summary, err := c.Service.Crawl(ctx, c.runOptions())
	if err != nil {
		return nil, err
	}
	c.pushMetrics(ctx, summary.RunID)
	return summary, nil
}

// RetryFailed re-runs the pages queued by earlier crawls.
func (c *Container) RetryFailed(ctx context.Context) (*service.RunSummary, error) {
	summary, err := c.Service.RetryFailed(ctx, c.runOptions())
	if err != nil {
		return nil, err
	}
	c.pushMetrics(ctx, summary.RunID)
	return summary, nil
}

func (c *Container) pushMetrics(ctx context.Context, runID string) {
	url := c.Config.Metrics.PushgatewayURL
	if url == "" {
		return
	}
	if err := c.Metrics.Push(context.WithoutCancel(ctx), url, c.Config.Metrics.Job, runID); err != nil {
		log.Warnf("⚠️ %v", err)
		return
	}
	log.Infof("📈 Pushed run metrics to %s", url)
}

// Close performs cleanup when shutting down
func (c *Container) Close() {
	log.Debug("Shutting down container...")

	if c.Repository != nil {
		c.Repository.Close()
	}
	if c.redis != nil {
		if err := c.redis.Close(); err != nil {
			log.Warnf("⚠️ Failed to close Redis client: %v", err)
		}
	}
}
