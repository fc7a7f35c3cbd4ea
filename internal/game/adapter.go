package game

// GameAdapter parses a game server's console output.
type GameAdapter interface {
	// Game returns the game identifier (e.g., "minecraft", "vintagestory")
	Game() string

	// ParseLogLine extracts a structured event from one log line, or nil
	ParseLogLine(line string) *LogEvent
}

type EventType string

const (
	EventJoin        EventType = "player_join"
	EventLeave       EventType = "player_leave"
	EventLogin       EventType = "player_login"
	EventUUID        EventType = "player_uuid"
	EventChat        EventType = "chat"
	EventBroadcast   EventType = "broadcast"
	EventCommand     EventType = "command"
	EventDeath       EventType = "death"
	EventAdvancement EventType = "advancement"
	EventStart       EventType = "server_start"
	EventStop        EventType = "server_stop"
	EventError       EventType = "error"
)

type LogEvent struct {
	Type    EventType
	Player  string
	Message string
	// Title is the advancement title for EventAdvancement.
	Title string
	// Value carries the UUID for EventUUID and the address for EventLogin.
	Value string
}
