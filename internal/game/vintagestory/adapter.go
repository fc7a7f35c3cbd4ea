package vintagestory

import (
	"regexp"
	"strings"

	"github.com/reedfamily/chatlog/internal/game"
)

func init() {
	game.Register(&Adapter{})
}

type Adapter struct{}

var (
	joinRe  = regexp.MustCompile(`Player (\w+) joins`)
	leaveRe = regexp.MustCompile(`Player (\w+) left`)
	chatRe  = regexp.MustCompile(`\[Server Chat\] \d+ \| (\w+): (.+)`)
	startRe = regexp.MustCompile(`Dedicated Server now running`)
	stopRe  = regexp.MustCompile(`Server shutting down`)
)

func (a *Adapter) Game() string { return "vintagestory" }

func (a *Adapter) ParseLogLine(line string) *game.LogEvent {
	if m := chatRe.FindStringSubmatch(line); m != nil {
		return &game.LogEvent{Type: game.EventChat, Player: m[1], Message: m[2]}
	}
	if m := joinRe.FindStringSubmatch(line); m != nil {
		return &game.LogEvent{Type: game.EventJoin, Player: m[1]}
	}
	if m := leaveRe.FindStringSubmatch(line); m != nil {
		return &game.LogEvent{Type: game.EventLeave, Player: m[1]}
	}
	if startRe.MatchString(line) {
		return &game.LogEvent{Type: game.EventStart, Message: "server started"}
	}
	if stopRe.MatchString(line) {
		return &game.LogEvent{Type: game.EventStop, Message: "server stopping"}
	}
	if strings.Contains(line, "Error") || strings.Contains(line, "Exception") {
		return &game.LogEvent{Type: game.EventError, Message: line}
	}
	return nil
}
