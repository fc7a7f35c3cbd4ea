package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mama165/sdk-go/logs"
	"github.com/reedfamily/chatlog/internal/config"
	"github.com/reedfamily/chatlog/internal/server"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "chatlog",
	Short: "Chat and command logging for game servers",
	Long: `chatlog records player chat, private messages, commands and server
events into SQLite or MySQL and answers paginated history queries.`,
	SilenceUsage:               true,
	SuggestionsMinimumDistance: 2,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(cfgFile); err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		log = newLogger(cfg)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./config.yml)")
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.Debug.Enabled {
		return logs.GetLoggerFromLevel(slog.LevelDebug)
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	return logs.GetLoggerFromLevel(level)
}

// withCore opens the store and pipelines for a one-shot command and drains
// them afterwards. Interrupts cancel ctx.
func withCore(fn func(ctx context.Context, core *server.Core) error) error {
	core, err := server.NewCore(cfg, log)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runErr := fn(ctx, core)
	if err := core.Close(); err != nil {
		log.Warn("close failed", "error", err)
	}
	return runErr
}
