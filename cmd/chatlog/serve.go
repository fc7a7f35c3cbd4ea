package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reedfamily/chatlog/internal/config"
	"github.com/reedfamily/chatlog/internal/db"
	"github.com/reedfamily/chatlog/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, log tailers and retention schedule",
	Long: `Run the HTTP API, tail the configured containers and purge on the
retention schedule. SIGHUP reloads the logging rules, SIGINT or SIGTERM stops.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv, err := server.New(config.NewHolder(cfgFile, cfg), log)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}
		srv.Start()

		httpServer := &http.Server{
			Addr:         cfg.HTTP.Listen,
			Handler:      srv.Router(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("chatlog listening", "addr", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
		defer signal.Stop(sig)

	loop:
		for {
			select {
			case s := <-sig:
				if s == syscall.SIGHUP {
					if err := srv.Reload(); err != nil {
						log.Error("reload failed, keeping current config", "error", err)
					}
					continue
				}
				break loop
			case err = <-errCh:
				log.Error("http server failed", "error", err)
				break loop
			}
		}

		log.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(ctx); shutdownErr != nil {
			log.Warn("http shutdown", "error", shutdownErr)
		}
		return errors.Join(err, srv.Stop())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, dialect, err := db.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer conn.Close()

		schema, err := db.Migrate(conn, dialect, log)
		if err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		fmt.Println(okStyle.Render("schema up to date"))
		if !schema.EnrichedView {
			fmt.Println(faintStyle.Render("enriched chat view unavailable on this database"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}
