package minecraft

import (
	"testing"

	"github.com/reedfamily/chatlog/internal/game"
	"github.com/stretchr/testify/require"
)

func TestAdapter_ParseLogLine(t *testing.T) {
	const p = "[12:00:00] [Server thread/INFO]: "
	tests := []struct {
		name string
		line string
		want *game.LogEvent
	}{
		{"chat", p + "<Steve> hello there", &game.LogEvent{Type: game.EventChat, Player: "Steve", Message: "hello there"}},
		{"unsigned chat", p + "[Not Secure] <Alex> hi", &game.LogEvent{Type: game.EventChat, Player: "Alex", Message: "hi"}},
		{"chat posing as join", p + "<Steve> Alex joined the game", &game.LogEvent{Type: game.EventChat, Player: "Steve", Message: "Alex joined the game"}},
		{"uuid", "[12:00:00] [User Authenticator #1/INFO]: UUID of player Steve is 8667BA71-B85A-4004-AF54-457A9734EED7",
			&game.LogEvent{Type: game.EventUUID, Player: "Steve", Value: "8667ba71-b85a-4004-af54-457a9734eed7"}},
		{"login", p + "Steve[/10.0.0.7:51234] logged in with entity id 42 at (0.5, 64.0, 0.5)",
			&game.LogEvent{Type: game.EventLogin, Player: "Steve", Value: "10.0.0.7:51234"}},
		{"join", p + "Steve joined the game", &game.LogEvent{Type: game.EventJoin, Player: "Steve"}},
		{"leave", p + "Steve left the game", &game.LogEvent{Type: game.EventLeave, Player: "Steve"}},
		{"say", p + "[Server] restart in 5", &game.LogEvent{Type: game.EventBroadcast, Player: "Server", Message: "restart in 5"}},
		{"rcon say", p + "[Rcon] backup done", &game.LogEvent{Type: game.EventBroadcast, Player: "Rcon", Message: "backup done"}},
		{"command", p + "Steve issued server command: /home base", &game.LogEvent{Type: game.EventCommand, Player: "Steve", Message: "/home base"}},
		{"advancement", p + "Steve has made the advancement [Stone Age]", &game.LogEvent{Type: game.EventAdvancement, Player: "Steve", Title: "Stone Age"}},
		{"challenge", p + "Steve has completed the challenge [Monsters Hunted]", &game.LogEvent{Type: game.EventAdvancement, Player: "Steve", Title: "Monsters Hunted"}},
		{"death", p + "Steve was slain by Zombie", &game.LogEvent{Type: game.EventDeath, Player: "Steve", Message: "Steve was slain by Zombie"}},
		{"drowned", p + "Alex drowned", &game.LogEvent{Type: game.EventDeath, Player: "Alex", Message: "Alex drowned"}},
		{"start", p + `Done (3.214s)! For help, type "help"`, &game.LogEvent{Type: game.EventStart, Message: "server started"}},
		{"stop", p + "Stopping the server", &game.LogEvent{Type: game.EventStop, Message: "server stopping"}},
		{"error", "[12:00:00] [Server thread/ERROR]: Encountered an unexpected exception", &game.LogEvent{Type: game.EventError, Message: "[12:00:00] [Server thread/ERROR]: Encountered an unexpected exception"}},
		{"noise", p + "Preparing spawn area: 83%", nil},
	}
	a := &Adapter{}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, a.ParseLogLine(tt.line))
		})
	}
}

func TestAdapter_Registered(t *testing.T) {
	req := require.New(t)
	a, err := game.Lookup("minecraft")
	req.NoError(err)
	req.Equal("minecraft", a.Game())

	_, err = game.Lookup("tetris")
	req.ErrorContains(err, "unknown game")
}
