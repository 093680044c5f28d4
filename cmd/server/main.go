package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/buddychat/buddychat-server/internal/app"
	"github.com/buddychat/buddychat-server/internal/config"
	"github.com/buddychat/buddychat-server/internal/log"
)

var (
	configPath string
	addr       string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "buddychat-server",
	Short: "Instant messaging server with presence and offline delivery",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the messaging server",
	RunE: func(cmd *cobra.Command, args []string) error {
		bootLog := log.New(logLevel)

		cfg, path, err := config.Load(bootLog, configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if addr != "" {
			cfg.Addr = addr
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		logger := log.New(cfg.LogLevel)
		logger.Info().Str("config", path).Str("addr", cfg.Addr).Msg("starting buddychat server")

		application, err := app.New(&cfg, logger)
		if err != nil {
			return fmt.Errorf("init app: %w", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := application.Run(ctx); err != nil {
			return fmt.Errorf("server exited: %w", err)
		}
		logger.Info().Msg("server stopped")
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file")
	serveCmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address override")
	serveCmd.Flags().StringVar(&logLevel, "log-level", "", "log level override")
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
