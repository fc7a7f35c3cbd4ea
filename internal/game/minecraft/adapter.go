package minecraft

import (
	"regexp"
	"strings"

	"github.com/reedfamily/chatlog/internal/game"
)

func init() {
	game.Register(&Adapter{})
}

type Adapter struct{}

const prefix = `\[Server thread/INFO\].*?: `

var (
	uuidRe        = regexp.MustCompile(`UUID of player (\w+) is ([0-9a-fA-F-]{36})`)
	loginRe       = regexp.MustCompile(prefix + `(\w+)\[/([^\]]+)\] logged in`)
	joinRe        = regexp.MustCompile(prefix + `(\w+) joined the game`)
	leaveRe       = regexp.MustCompile(prefix + `(\w+) left the game`)
	chatRe        = regexp.MustCompile(prefix + `(?:\[Not Secure\] )?<(\w+)> (.+)`)
	broadcastRe   = regexp.MustCompile(prefix + `\[(Server|Rcon)\] (.+)`)
	commandRe     = regexp.MustCompile(prefix + `(\w+) issued server command: (.+)`)
	advancementRe = regexp.MustCompile(prefix + `(\w+) has (?:made the advancement|completed the challenge|reached the goal) \[(.+)\]`)
	deathRe       = regexp.MustCompile(prefix + `((\w+) (?:was |fell |drowned|died|burned to death|blew up|hit the ground too hard|starved to death|suffocated|tried to swim in lava|went up in flames|withered away|froze to death|walked into|experienced kinetic energy|discovered the floor was lava|went off with a bang|didn't want to live).*)`)
	startRe       = regexp.MustCompile(prefix + `Done \([0-9.]+s\)!`)
	stopRe        = regexp.MustCompile(prefix + `Stopping (?:the )?server`)
)

func (a *Adapter) Game() string { return "minecraft" }

func (a *Adapter) ParseLogLine(line string) *game.LogEvent {
	// Chat is matched first so player text can never pose as a system line.
	if m := chatRe.FindStringSubmatch(line); m != nil {
		return &game.LogEvent{Type: game.EventChat, Player: m[1], Message: m[2]}
	}
	if m := uuidRe.FindStringSubmatch(line); m != nil {
		return &game.LogEvent{Type: game.EventUUID, Player: m[1], Value: strings.ToLower(m[2])}
	}
	if m := loginRe.FindStringSubmatch(line); m != nil {
		return &game.LogEvent{Type: game.EventLogin, Player: m[1], Value: m[2]}
	}
	if m := joinRe.FindStringSubmatch(line); m != nil {
		return &game.LogEvent{Type: game.EventJoin, Player: m[1]}
	}
	if m := leaveRe.FindStringSubmatch(line); m != nil {
		return &game.LogEvent{Type: game.EventLeave, Player: m[1]}
	}
	if m := broadcastRe.FindStringSubmatch(line); m != nil {
		return &game.LogEvent{Type: game.EventBroadcast, Player: m[1], Message: m[2]}
	}
	if m := commandRe.FindStringSubmatch(line); m != nil {
		return &game.LogEvent{Type: game.EventCommand, Player: m[1], Message: m[2]}
	}
	if m := advancementRe.FindStringSubmatch(line); m != nil {
		return &game.LogEvent{Type: game.EventAdvancement, Player: m[1], Title: m[2]}
	}
	if m := deathRe.FindStringSubmatch(line); m != nil {
		return &game.LogEvent{Type: game.EventDeath, Player: m[2], Message: m[1]}
	}
	if startRe.MatchString(line) {
		return &game.LogEvent{Type: game.EventStart, Message: "server started"}
	}
	if stopRe.MatchString(line) {
		return &game.LogEvent{Type: game.EventStop, Message: "server stopping"}
	}
	if strings.Contains(line, "ERROR") || strings.Contains(line, "FATAL") {
		return &game.LogEvent{Type: game.EventError, Message: line}
	}
	return nil
}
