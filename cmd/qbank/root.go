package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/cobra"

	"github.com/brunobiangulo/qbank"
)

// defaultConfigName is looked up in the working directory before the XDG
// config home.
const defaultConfigName = "qbank.yaml"

// NewRootCmd creates the root command for qbank.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qbank",
		Short: "Extract multiple-choice questions from exam papers",
		Long: `qbank reads exam papers (PDF, DOCX or plain text), splits them into numbered
question blocks and keeps the ones with a stem and exactly four options.
Accepted questions are classified by chapter and topic, stored in a local
SQLite database and can be exported as CSV or XLSX.

Configuration is read from --config, ./qbank.yaml or
$XDG_CONFIG_HOME/qbank/config.yaml, then overridden by QBANK_* variables.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(setupLogger(getVerboseFlag(cmd)))
		},
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringP("config", "c", "", "Configuration file path")
	cmd.PersistentFlags().String("db", "", "Database file (overrides the configured location)")

	cmd.AddCommand(NewExtractCmd())
	cmd.AddCommand(NewImportCmd())
	cmd.AddCommand(NewDocumentsCmd())
	cmd.AddCommand(NewQuestionsCmd())
	cmd.AddCommand(NewSearchCmd())
	cmd.AddCommand(NewSimilarCmd())
	cmd.AddCommand(NewDeleteCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "qbank:", err)
		os.Exit(1)
	}
}

func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		return false
	}
	return verbose
}

func setupLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadConfig builds the configuration from the config file, QBANK_*
// variables and the --db flag, in that order.
func loadConfig(cmd *cobra.Command) (qbank.Config, error) {
	cfg := qbank.DefaultConfig()

	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		loaded, err := qbank.LoadConfig(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
		slog.Debug("config: loaded", "file", path)
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}
	return cfg, cfg.Validate()
}

// findConfig returns the first default config file that exists, or "".
func findConfig() string {
	if _, err := os.Stat(defaultConfigName); err == nil {
		return defaultConfigName
	}
	if p, err := xdg.SearchConfigFile(filepath.Join(qbank.AppName, "config.yaml")); err == nil {
		return p
	}
	return ""
}

// openEngine loads the configuration and opens an engine on it.
func openEngine(cmd *cobra.Command, opts ...qbank.Option) (qbank.Engine, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return qbank.New(cfg, opts...)
}
