package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MrCodeEU/faceadmin/pkg/config"
	"github.com/MrCodeEU/faceadmin/pkg/logging"
	"github.com/MrCodeEU/faceadmin/pkg/service"
	"github.com/MrCodeEU/faceadmin/pkg/storage"
)

// Version is the application version.
const Version = "0.2.0"

var (
	cfg        *config.Config
	configFile string
	debug      bool
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:     "faceadmin",
	Short:   "Face recognition login for administrators",
	Version: Version,
	Long: `faceadmin registers administrator faces and authenticates them against
the enrolled set, from a camera or from still images. It can run as a CLI,
an interactive demo, or an HTTP API for web front ends.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")
}

func initConfig() error {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	var err error
	if configFile != "" {
		cfg, err = config.Load(configFile)
	} else {
		cfg, err = config.LoadDefault()
	}
	if err != nil {
		if configFile != "" {
			return fmt.Errorf("failed to load config: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.DefaultConfig()
	}

	cfg.ApplyEnv()
	cfg.ExpandPaths()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := cfg.Logging.Level
	if debug {
		level = "debug"
	}
	if err := logging.Init(level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not initialize file logging: %v\n", err)
	}
	format := cfg.Logging.Format
	if logFormat != "" {
		format = logFormat
	}
	logging.SetFormat(format)

	logging.Debugf("faceadmin v%s starting", Version)
	logging.Debugf("Config loaded, storage dir: %s", cfg.Storage.DataDir)
	return nil
}

// openService loads the store and the recognition models.
func openService() (*service.Service, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	svc, err := service.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w (run 'faceadmin models download' to fetch the models)", err)
	}
	return svc, nil
}

// openStore loads only the identity store, for commands that do not need
// the models.
func openStore() (*storage.Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}
	return storage.Open(cfg.Storage.DataDir, cfg.Storage.EncryptionEnabled)
}
