package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/yeremiapane/qr-restaurant/config"
	"github.com/yeremiapane/qr-restaurant/utils"
	"gorm.io/gorm"
)

var validFormats = []string{"text", "json"}

// rootOptions holds the global flags and what PersistentPreRunE derives from them.
type rootOptions struct {
	ConfigPath string
	Format     string
	DBDriver   string
	DBDSN      string

	cfg config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "tablectl",
		Short:         "Operate the QR restaurant backend",
		Long:          "Operator tooling for the QR table ordering backend: migrations, seed data, table QR codes and session maintenance.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return err
			}
			if opts.DBDriver != "" {
				cfg.DBDriver = opts.DBDriver
			}
			if opts.DBDSN != "" {
				cfg.DBDSN = opts.DBDSN
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			utils.ConfigureLogger(cfg.LogFormat, cfg.LogLevel)
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "path to config.yaml (default $CONFIG_FILE or ./config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DBDriver, "db-driver", "", "override DB_DRIVER")
	cmd.PersistentFlags().StringVar(&opts.DBDSN, "db-dsn", "", "override DB_DSN")

	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))
	cmd.AddCommand(newQRCommand(opts))
	cmd.AddCommand(newSweepCommand(opts))
	cmd.AddCommand(newScanCommand(opts))
	cmd.AddCommand(newStartCommand(opts))
	cmd.AddCommand(newForgetCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *rootOptions) openDB() (*gorm.DB, error) {
	db, err := config.InitDB(o.cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// emit writes data as indented JSON, or hands the writer to text for the text format.
func (o *rootOptions) emit(w io.Writer, data interface{}, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(data)
	}
	text(w)
	return nil
}
