package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"locksmith-coverage/internal/config"
	"locksmith-coverage/internal/db"
	"locksmith-coverage/internal/logging"
	"locksmith-coverage/internal/profile"
)

// app holds the state shared by every command after flags are resolved
type app struct {
	configPath string
	v          *viper.Viper
	cfg        config.Config
	logger     *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:   "keycov",
		Short: "Locksmith tool coverage - readiness and coverage gaps per vehicle",
		Long: `A CLI for ingesting vendor key-programming coverage data and answering
"can I service this vehicle with the tools I own?". Infers effective
per-tool coverage, classifies readiness, and projects coverage heatmaps
from SQLite-backed baselines, with a REST API for the same operations.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Path to YAML config file")
	flags.String("db", config.DefaultDBPath, "Path to SQLite coverage database")
	flags.String("profiles", config.DefaultProfilesPath, "Path to owned-tool profile store")
	flags.String("log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	flags.String("log-format", config.DefaultLogFormat, "Log format (console, json)")
	_ = a.v.BindPFlag("db.path", flags.Lookup("db"))
	_ = a.v.BindPFlag("profiles.path", flags.Lookup("profiles"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))

	rootCmd.AddCommand(
		serverCmd(a),
		ingestCmd(a),
		generateCmd(a),
		baselinesCmd(a),
		readinessCmd(a),
		heatmapCmd(a),
		inferCmd(a),
		tiersCmd(a),
		profileCmd(a),
		statsCmd(a),
		vehicleCmd(a),
	)
	return rootCmd
}

func (a *app) load() error {
	cfg, err := config.Load(a.v, a.configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// openDB opens the coverage database named by the resolved config
func (a *app) openDB() (*db.Database, error) {
	database, err := db.New(a.cfg.DB.Path)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return database, nil
}

func (a *app) openProfiles() (*profile.Store, error) {
	store, err := profile.Open(a.cfg.Profiles.Path)
	if err != nil {
		return nil, fmt.Errorf("profile store error: %w", err)
	}
	return store, nil
}
