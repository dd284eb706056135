package main

import (
	"oemcatalog/ingest/internal/repository"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func NewMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the catalog tables if they do not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, map[string]string{})
			if err != nil {
				return err
			}

			repo, err := repository.Open(cmd.Context(), cfg.Database)
			if err != nil {
				return err
			}
			defer repo.Close()

			log.Infof("✅ Catalog schema ready (%s)", cfg.Database.Driver)
			return nil
		},
	}
}
