package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/reedfamily/chatlog/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

var (
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	faintStyle = lipgloss.NewStyle().Faint(true)
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("99"))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		Headers(headers...)
}

func stamp(t time.Time) string {
	return t.Local().Format(timeLayout)
}

func flat(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

func printPage(title string, page, count int, t *table.Table) {
	fmt.Println(titleStyle.Render(title))
	if count == 0 {
		fmt.Println(faintStyle.Render(fmt.Sprintf("nothing on page %d", page)))
		return
	}
	fmt.Println(t)
	fmt.Println(faintStyle.Render(fmt.Sprintf("page %d, %d rows", page, count)))
}

func chatTable(msgs []model.ChatMessage) *table.Table {
	rows := make([][]string, 0, len(msgs))
	for _, m := range msgs {
		text := m.Content
		if m.Recipient != nil {
			text = "-> " + m.Recipient.Name + ": " + text
		}
		rows = append(rows, []string{stamp(m.At), m.World, m.Player.Name, string(m.Type), flat(text)})
	}
	return newTable("Time", "World", "Player", "Type", "Message").Rows(rows...)
}

func commandTable(cmds []model.CommandLog) *table.Table {
	rows := make([][]string, 0, len(cmds))
	for _, c := range cmds {
		who := string(c.Source)
		if c.Player != nil {
			who = c.Player.Name
		}
		cancelled := ""
		if c.Cancelled {
			cancelled = "✗"
		}
		rows = append(rows, []string{stamp(c.At), who, orDash(c.World), c.Command, cancelled})
	}
	return newTable("Time", "Sender", "World", "Command", "Cancelled").Rows(rows...)
}

func historyTable(entries []model.HistoryEntry) *table.Table {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		typ := string(e.Subtype)
		if e.Kind == model.EntryCommand {
			typ = string(e.Source)
		}
		rows = append(rows, []string{stamp(e.At), string(e.Kind), typ, orDash(e.World), flat(e.Text)})
	}
	return newTable("Time", "Kind", "Type", "World", "Text").Rows(rows...)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
