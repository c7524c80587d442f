// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paper-triage CLI.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pdiddy/paper-triage/internal/config"
	"github.com/pdiddy/paper-triage/internal/observability"
	"github.com/pdiddy/paper-triage/internal/secrets"
	"github.com/pdiddy/paper-triage/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	secretsDir = ".secrets/"
	envFile    = ".env"
)

var (
	// cfg is the validated configuration, built before any subcommand runs.
	cfg types.PipelineConfig

	logger = zerolog.Nop()
)

// rootCmd is the base command for the paper-triage CLI.
var rootCmd = &cobra.Command{
	Use:   "paper-triage",
	Short: "Resumable enrichment pipeline for arXiv papers",
	Long: `paper-triage ingests arXiv papers by submission date or id list and runs
each one through metadata, content, embedding, validation, scoring and
reputation stages. Progress is stored per paper, so an interrupted or partly
failed run resumes without repeating completed work.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paper-triage.yaml or ~/.config/paper-triage/paper-triage.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (console, json)")
}

// loadConfig reads config and secrets and sets up the logger.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == versionCmd.Name() {
		return nil
	}

	file, _ := cmd.Flags().GetString("config")
	v, err := config.New(file)
	if err != nil {
		return err
	}
	if err := v.BindPFlag("logging.level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}
	if err := v.BindPFlag("logging.format", cmd.Flags().Lookup("log-format")); err != nil {
		return err
	}
	if cmd.Flags().Lookup("db") != nil && cmd.Flags().Changed("db") {
		db, _ := cmd.Flags().GetString("db")
		v.Set("store.path", db)
	}

	// Bootstrap logger for secret loading; replaced once config is built.
	boot := observability.NewLogger(observability.DefaultLoggingConfig())

	dirSecrets, err := secrets.Load(secretsDir, boot)
	if err != nil {
		return err
	}
	fileSecrets, err := secrets.LoadEnvFile(envFile)
	if err != nil {
		return err
	}
	s := secrets.Merge(secrets.FromEnv(), fileSecrets, dirSecrets)

	cfg, err = config.Build(v, s)
	if err != nil {
		return err
	}
	logger = observability.NewLogger(cfg.Logging)
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug().Str("file", used).Msg("using config file")
	}
	if names := secrets.Names(s); len(names) > 0 {
		logger.Debug().Strs("secrets", names).Msg("loaded secrets")
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
