// rmp-server serves a directory of record buckets over TCP.
package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/0xRadioAc7iv/go-rmp/core"
	"github.com/0xRadioAc7iv/go-rmp/internal/config"
	"github.com/0xRadioAc7iv/go-rmp/internal/metrics"
	"github.com/0xRadioAc7iv/go-rmp/internal/utils"
)

var (
	cfgFile     string
	workers     int
	logLevel    string
	metricsAddr string
	maxBodySize uint32
	ioTimeout   time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "rmp-server <port> <root-directory>",
		Short: "Serve records stored in per-hash bucket files",
		Long: `rmp-server listens on <port> and stores records under <root-directory>,
one JSON file per key hash. The directory is created if missing and locked
for the lifetime of the process.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServer,
	}

	rootCmd.Flags().StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	rootCmd.Flags().IntVarP(&workers, "workers", "w", 0, fmt.Sprintf("worker pool size (at least %d)", config.MinWorkers))
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", config.DefaultLogLevel, "log level (trace, debug, info, warn, error)")
	rootCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9100")
	rootCmd.Flags().Uint32Var(&maxBodySize, "max-body-size", 0, "largest accepted request body in bytes")
	rootCmd.Flags().DurationVar(&ioTimeout, "io-timeout", 0, "per-connection read/write deadline (0 disables)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	setupLogging(cfg.LogLevel)

	srv := core.NewServer(cfg)
	srv.Metrics = metrics.InitServerMetrics(metrics.Registry)

	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()

	ctx, stop := utils.SignalContext(cmd.Context())
	defer stop()

	log.Info().Msg("press Ctrl+C to stop")
	<-ctx.Done()
	log.Info().Msg("shutting down")

	return nil
}

// loadConfig merges the config file, positional arguments and flags, in
// increasing order of precedence.
func loadConfig(cmd *cobra.Command, args []string) (*config.ServerConfig, error) {
	cfg := config.DefaultServerConfig()
	if cfgFile != "" {
		var err error
		if cfg, err = config.LoadServerConfig(cfgFile); err != nil {
			return nil, err
		}
	}

	port, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("invalid port %q", args[0])
	}
	cfg.Port = port
	cfg.RootDir = args[1]

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if flags.Changed("max-body-size") {
		cfg.MaxBodySize = maxBodySize
	}
	if flags.Changed("io-timeout") {
		cfg.IOTimeout = ioTimeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}
