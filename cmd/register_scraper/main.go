// Package main provides the register_scraper CLI.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jonathan/council-registers/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "register_scraper",
	Short: "Council register-of-interests scraper",
	Long: "register_scraper finds each councillor's register of interests on their council's website, " +
		"stores the document and its text, and records an audit row for every councillor it could not match.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	configPath string
	logLevel   string
	sqlitePath string

	// cfg is the resolved configuration, set before any subcommand runs.
	cfg *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "JSON config file overlaid on the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().StringVar(&sqlitePath, "sqlite", "", "Use a SQLite database file instead of PostgreSQL (overrides SQLITE_PATH)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup resolves configuration and installs the default logger.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		c.LogLevel = logLevel
	}
	if cmd.Flags().Changed("sqlite") {
		c.SQLitePath = sqlitePath
	}
	if err := c.Validate(); err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.SlogLevel()})))
	cfg = c
	return nil
}

// loadConfig reads the environment and overlays the JSON file at path, if any.
func loadConfig(path string) (*config.Config, error) {
	env := config.FromEnv()
	if path == "" {
		return env, nil
	}
	file, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	merged := file.MergeWithDefaults(*env)
	return &merged, nil
}
