package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/reedfamily/chatlog/internal/history"
	"github.com/reedfamily/chatlog/internal/model"
	"github.com/reedfamily/chatlog/internal/server"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// pageArg reads the optional page argument at position i. Missing, garbage
// and values below 1 all mean the first page.
func pageArg(args []string, i int) history.Page {
	n := 1
	if len(args) > i {
		n, _ = strconv.Atoi(args[i])
	}
	return history.NewPage(n, history.DefaultPageSize)
}

var historyCmd = &cobra.Command{
	Use:   "history <player> [page]",
	Short: "Show a player's chat and commands together",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := pageArg(args, 1)
		return withCore(func(ctx context.Context, core *server.Core) error {
			player, err := core.History.ResolvePlayer(args[0]).Wait(ctx)
			if err != nil {
				return err
			}
			entries, err := core.History.CombinedHistory(player.ID, p).Wait(ctx)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}
			printPage("History of "+player.Name, p.Number, len(entries), historyTable(entries))
			return nil
		})
	},
}

var historyChatCmd = &cobra.Command{
	Use:   "historychat <player> [page]",
	Short: "Show a player's chat messages",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := pageArg(args, 1)
		return withCore(func(ctx context.Context, core *server.Core) error {
			player, err := core.History.ResolvePlayer(args[0]).Wait(ctx)
			if err != nil {
				return err
			}
			msgs, err := core.History.ByPlayer(player.ID, p).Wait(ctx)
			if err != nil {
				return fmt.Errorf("failed to load chat: %w", err)
			}
			printPage("Chat of "+player.Name, p.Number, len(msgs), chatTable(msgs))
			return nil
		})
	},
}

var historyCmdCmd = &cobra.Command{
	Use:   "historycmd <player> [page]",
	Short: "Show a player's commands",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := pageArg(args, 1)
		return withCore(func(ctx context.Context, core *server.Core) error {
			player, err := core.History.ResolvePlayer(args[0]).Wait(ctx)
			if err != nil {
				return err
			}
			cmds, err := core.History.CommandsByPlayer(player.ID, p).Wait(ctx)
			if err != nil {
				return fmt.Errorf("failed to load commands: %w", err)
			}
			printPage("Commands of "+player.Name, p.Number, len(cmds), commandTable(cmds))
			return nil
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <term> [page]",
	Short: "Search chat messages, case-insensitively",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p := pageArg(args, 1)
		return withCore(func(ctx context.Context, core *server.Core) error {
			msgs, err := core.History.Search(args[0], p).Wait(ctx)
			if err != nil {
				return fmt.Errorf("failed to search: %w", err)
			}
			printPage(fmt.Sprintf("Messages containing %q", args[0]), p.Number, len(msgs), chatTable(msgs))
			return nil
		})
	},
}

var countCmd = &cobra.Command{
	Use:   "count <player>",
	Short: "Count a player's messages and commands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(func(ctx context.Context, core *server.Core) error {
			player, err := core.History.ResolvePlayer(args[0]).Wait(ctx)
			if err != nil {
				return err
			}
			c, err := core.History.CountByPlayer(player.ID).Wait(ctx)
			if err != nil {
				return fmt.Errorf("failed to count: %w", err)
			}
			t := newTable("Player", "Messages", "Commands").
				Row(player.Name, strconv.FormatInt(c.Messages, 10), strconv.FormatInt(c.Commands, 10))
			fmt.Println(t)
			return nil
		})
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database and pipeline statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCore(func(ctx context.Context, core *server.Core) error {
			page, err := core.History.Players(1).Wait(ctx)
			if err != nil {
				return fmt.Errorf("failed to load players: %w", err)
			}
			events, err := core.History.ServerEvents(cfg.Server.Name, history.NewPage(1, 5)).Wait(ctx)
			if err != nil {
				return fmt.Errorf("failed to load server events: %w", err)
			}
			s := core.Collector.Snapshot()
			t := newTable("Metric", "Value").
				Row("server", s.Server).
				Row("database", cfg.Database.Type).
				Row("enriched view", strconv.FormatBool(core.Store.Schema().EnrichedView)).
				Row("known players", strconv.FormatInt(page.Total, 10)).
				Row("write workers", strconv.Itoa(s.Writes.Workers)).
				Row("read workers", strconv.Itoa(s.Reads.Workers)).
				Row("open connections", strconv.Itoa(s.DB.Open))
			fmt.Println(t)

			rows := lo.Map(events, func(ev model.ServerEvent, _ int) []string {
				return []string{stamp(ev.At), string(ev.Type), string(ev.Severity), flat(ev.Message)}
			})
			printPage("Recent server events", 1, len(rows), newTable("Time", "Event", "Severity", "Message").Rows(rows...))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(historyCmd, historyChatCmd, historyCmdCmd, searchCmd, countCmd, statsCmd)
}
