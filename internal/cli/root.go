// Package cli is the catd command line.
package cli

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-cat/internal/config"
	"github.com/mind-engage/mindengage-cat/internal/db"
	"github.com/mind-engage/mindengage-cat/internal/platform/logger"
)

var rootCmd = &cobra.Command{
	Use:           "catd",
	Short:         "Adaptive assessment engine",
	Long:          "catd runs computer adaptive testing sessions over HTTP and manages their item bank and event logs.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// version is set via -ldflags at build time.
var version = "(devel)"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "catd", version)
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("driver", "", "Database driver: sqlite, postgres or memory (overrides DB_DRIVER)")
	rootCmd.PersistentFlags().String("db", "", "Database DSN (overrides DB_DSN)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(itemsCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the environment and applies persistent flag overrides.
func loadConfig(cmd *cobra.Command) config.Config {
	cfg := config.FromEnv()
	if v, _ := cmd.Flags().GetString("driver"); v != "" {
		cfg.DBDriver = v
	}
	if v, _ := cmd.Flags().GetString("db"); v != "" {
		cfg.DBDSN = v
	}
	return cfg
}

func newLogger(cfg config.Config) (*logger.Logger, error) {
	return logger.New(cfg.LogMode, logger.Options{Redact: cfg.LogRedaction, CandidateSalt: cfg.CandidateSalt})
}

func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if cfg.DBDriver == "memory" {
		return nil, fmt.Errorf("this command needs a database; driver %q keeps nothing", cfg.DBDriver)
	}
	return db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
}
