package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hnproxy/internal/app"
	"hnproxy/internal/logger"
)

var (
	flagConfig string
	flagAddr   string
)

var rootCmd = &cobra.Command{
	Use:          "hnproxy",
	Short:        "Cached Hacker News newest-stories proxy",
	Long:         "hnproxy serves the newest Hacker News stories with caching, bounded upstream concurrency, search and pagination.",
	SilenceUsage: true,
	RunE:         runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (default "+app.DefaultConfigPath()+")")

	// the root command serves too
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().StringVar(&flagAddr, "addr", "", "HTTP listen address (overrides config)")
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newestCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hnproxy %s (commit: %s, built: %s)\n", version, commit, date)
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the default configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		_, _ = os.Stdout.Write(app.DefaultConfigYAML())
	},
}

// setup loads configuration and initializes the process logger.
func setup() (*app.Config, error) {
	cfg, err := app.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if err := logger.InitLogger(cfg.Env, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger.Log.Debug("Configuration loaded", zap.String("config", flagConfig), zap.String("env", cfg.Env))
	return cfg, nil
}
