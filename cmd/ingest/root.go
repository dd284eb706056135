package main

import (
	"errors"
	"fmt"
	"io/fs"
	"oemcatalog/ingest/internal/config"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest an OEM parts catalog from its sitemap into a relational store",
		Long: `ingest walks the sitemap tree of an OEM parts catalog, fetches every
catalog page politely, extracts make/model/year/assembly/part records and
merges them idempotently into the catalog tables.

Configuration is read from config.yaml (or --config), overridden by INGEST_*
environment variables and a .env file in the working directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("failed to load .env: %w", err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file (default: ./config.yaml)")
	cmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewRetryFailedCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}

// loadConfig reads the configuration with the command's flags bound on top,
// then configures logging from it.
func loadConfig(cmd *cobra.Command, bindings map[string]string) (*config.Config, error) {
	v := viper.New()

	bindings["log.level"] = "log-level"
	for key, name := range bindings {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return nil, fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWith(v, path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := setupLogging(cfg.Log); err != nil {
		return nil, err
	}
	log.Debug("Configuration loaded successfully")
	return cfg, nil
}

func setupLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}
