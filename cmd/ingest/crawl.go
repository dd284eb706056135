package main

import (
	"context"
	"oemcatalog/ingest/internal/config"
	"oemcatalog/ingest/internal/container"
	"oemcatalog/ingest/internal/service"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the sitemap tree and merge every catalog page",
		Long: `crawl expands the root sitemap, filters the leaf URLs and runs each
page through fetch, extract and merge on a bounded worker pool.

Pages that fail are queued for "ingest retry-failed". Interrupting a crawl
saves a checkpoint; run again with --resume to skip pages already done.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, map[string]string{
				"sitemap.root_url":     "root",
				"crawl.workers":        "workers",
				"crawl.start_interval": "interval",
				"crawl.resume":         "resume",
			})
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, (*container.Container).Crawl)
		},
	}

	cmd.Flags().String("root", "", "Root sitemap URL (overrides sitemap.root_url)")
	cmd.Flags().IntP("workers", "w", 0, "Maximum concurrent page tasks (overrides crawl.workers)")
	cmd.Flags().Duration("interval", 0, "Minimum gap between two task starts (overrides crawl.start_interval)")
	cmd.Flags().Bool("resume", false, "Skip pages completed by an interrupted crawl")

	return cmd
}

func NewRetryFailedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry-failed",
		Short: "Re-run the pages that failed in earlier crawls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, map[string]string{
				"crawl.workers": "workers",
			})
			if err != nil {
				return err
			}
			if !cfg.Redis.Enabled {
				log.Warn("⚠️ Redis is disabled, there is no failed-page queue to retry from")
			}
			return run(cmd.Context(), cfg, (*container.Container).RetryFailed)
		},
	}

	cmd.Flags().IntP("workers", "w", 0, "Maximum concurrent page tasks (overrides crawl.workers)")

	return cmd
}

// run builds the container, executes one run and tears it down. Only
// startup and sitemap failures are returned; page failures are in the summary.
func run(ctx context.Context, cfg *config.Config, fn func(*container.Container, context.Context) (*service.RunSummary, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := container.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	summary, err := fn(app, ctx)
	if err != nil {
		return err
	}

	if summary.Cancelled {
		log.Warn("🛑 Run interrupted, rerun with --resume to continue")
	} else {
		log.Info("✅ Run finished")
	}
	return nil
}
