// Package cli is the ekaya-datagen command line: generating datasets,
// listing the generator catalogue and maintaining the run log.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-datagen/pkg/config"
	"github.com/ekaya-inc/ekaya-datagen/pkg/logging"
)

var (
	configPath string
	logLevel   string
	version    = "dev"
)

// NewRootCmd builds the command tree. Subcommands are added here so tests
// get a fresh tree per call.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "ekaya-datagen",
		Short: "Synthetic relational datasets for analytics demos",
		Long: `ekaya-datagen generates seeded, internally consistent table sets for
credit cards, loan risk, marketing, tech metrics, tax filings and financial
statements. Output goes to CSV, ZIP and XLSX files and optionally into a
PostgreSQL, SQL Server, MySQL or SQLite database.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(newGenerateCmd())
	root.AddCommand(newListCmd())
	root.AddCommand(newRunsCmd())
	root.AddCommand(newCheckCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute runs the root command.
func Execute(v string) error {
	version = v
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// loadConfig reads configuration and builds the logger it names.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath, version)
	if err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
