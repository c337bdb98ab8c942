package main

import (
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"uptime-report-backend/config"
	"uptime-report-backend/internal/db"
)

// options holds the flags shared by every command.
type options struct {
	configPath string
	driver     string
	dsn        string
	dataDir    string
}

// load resolves the configuration: the YAML file when given, then the
// environment, then explicit flags.
func (o *options) load() (*config.Config, error) {
	var cfg *config.Config
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if o.driver != "" {
		cfg.Database.Driver = o.driver
	}
	if o.dsn != "" {
		cfg.Database.DSN = o.dsn
	}
	if o.dataDir != "" {
		cfg.Ingest.Dir = o.dataDir
	}
	return cfg, nil
}

func (o *options) open() (*config.Config, *gorm.DB, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

func closeDB(gormDB *gorm.DB) {
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "uptimectl",
		Short: "Import site status data and compute uptime reports offline.",
		Long: `uptimectl works directly against the service database.

It loads the store, store_status and business_hours CSV files and computes the
uptime/downtime report over business hours for the last hour, day and week,
without going through the HTTP job queue.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to the YAML configuration file")
	flags.StringVar(&opts.driver, "db-driver", "", "database driver (postgres or sqlite)")
	flags.StringVar(&opts.dsn, "dsn", "", "database DSN")
	flags.StringVar(&opts.dataDir, "data-dir", "", "directory holding the CSV files")

	root.AddCommand(newImportCmd(opts), newReportCmd(opts))
	return root
}
