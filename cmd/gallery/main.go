// Command gallery serves the candy machine gallery: it loads the configured candy machine,
// evaluates mint eligibility for a wallet and renders the wallet's NFTs.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"candy-gallery/internal/config"
	"candy-gallery/internal/logging"
)

var (
	// Global flags
	configPath string
	logLevel   string
	logFormat  string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "gallery",
	Short: "Candy machine gallery service",
	Long: `gallery loads a Metaplex candy machine and its candy guard, evaluates which guard
groups a wallet may mint through and lists the wallet's NFTs as a three column gallery.

Configuration is read from an optional YAML file, then .env and the environment,
then command line flags.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.LoadEnvFiles(".env"); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		logger, err = logging.New(cfg.Logging.Level, cfg.Logging.Format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger.Debug("configuration loaded",
			zap.String("network", cfg.Network()),
			zap.String("rpc", cfg.RPCEndpoint()),
			zap.String("candy_machine", cfg.Gallery.CandyMachineID))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML configuration file")
	pf.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", config.DefaultLogFormat, "Log format (json, console)")
	pf.String("rpc-endpoint", "", "Solana RPC HTTP endpoint")
	pf.String("candy-machine", "", "Candy machine address")
	pf.String("wallet", "", "Wallet address to check")

	rootCmd.AddCommand(serveCmd, snapshotCmd)
}

// applyFlags copies explicitly set flags over the loaded configuration.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("log-level", &c.Logging.Level)
	str("log-format", &c.Logging.Format)
	str("rpc-endpoint", &c.Solana.RPCEndpoint)
	str("candy-machine", &c.Gallery.CandyMachineID)
	str("wallet", &c.Gallery.Wallet)

	// Flags below only exist on serve. Changed reports false for unknown flags.
	str("http-addr", &c.HTTP.Addr)
	if flags.Changed("poll-interval") {
		c.Gallery.PollInterval, _ = flags.GetDuration("poll-interval")
	}
	if flags.Changed("use-memory") {
		c.Storage.UseMemory, _ = flags.GetBool("use-memory")
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
