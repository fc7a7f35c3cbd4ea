package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/reedfamily/chatlog/internal/mapper"
	"github.com/reedfamily/chatlog/internal/retention"
	"github.com/reedfamily/chatlog/internal/server"
	"github.com/spf13/cobra"
)

var purgeOlderThan string

var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Write a test system message through the logging pipeline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(func(ctx context.Context, core *server.Core) error {
			p, ok := core.Dispatcher.Handle(mapper.Event{
				Kind:  mapper.KindSystem,
				Text:  "chatlog test message",
				World: cfg.Ingest.DefaultWorld,
			})
			if !ok {
				fmt.Println(warnStyle.Render("test message was not logged, check that logging and system messages are enabled"))
				return nil
			}
			if _, err := p.Wait(ctx); err != nil {
				return fmt.Errorf("failed to store test message: %w", err)
			}
			fmt.Println(okStyle.Render("test message stored as " + p.ID.String()))
			return nil
		})
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete chat and command records older than the given age",
	Long: `Delete chat messages and command logs older than --older-than, such as
90d or 720h. Records are archived first unless retention.archive is false.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		age, err := retention.ParseAge(purgeOlderThan)
		if err != nil {
			return fmt.Errorf("invalid --older-than %q: %w", purgeOlderThan, err)
		}
		return withCore(func(ctx context.Context, core *server.Core) error {
			res, err := core.Retention.Purge(ctx, age)
			if err != nil {
				return fmt.Errorf("failed to purge records: %w", err)
			}
			t := newTable("Cutoff", "Chat", "Commands", "Sessions").
				Row(stamp(res.Cutoff),
					strconv.FormatInt(res.Purged.Chat, 10),
					strconv.FormatInt(res.Purged.Commands, 10),
					strconv.FormatInt(res.Purged.Sessions, 10))
			fmt.Println(t)
			if res.Archive != nil {
				fmt.Println(faintStyle.Render("archived to " + res.Archive.Path))
			}
			return nil
		})
	},
}

func init() {
	purgeCmd.Flags().StringVar(&purgeOlderThan, "older-than", "", "age of the records to delete, such as 90d or 720h")
	_ = purgeCmd.MarkFlagRequired("older-than")
	rootCmd.AddCommand(testCmd, purgeCmd)
}
