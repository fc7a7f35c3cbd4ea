package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageChat        MessageType = "CHAT"
	MessagePrivate     MessageType = "PRIVATE"
	MessageBroadcast   MessageType = "BROADCAST"
	MessageCommand     MessageType = "COMMAND"
	MessageSystem      MessageType = "SYSTEM"
	MessageJoin        MessageType = "JOIN"
	MessageLeave       MessageType = "LEAVE"
	MessageDeath       MessageType = "DEATH"
	MessageAchievement MessageType = "ACHIEVEMENT"
)

type SourceType string

const (
	SourcePlayer       SourceType = "PLAYER"
	SourceConsole      SourceType = "CONSOLE"
	SourceRCON         SourceType = "RCON"
	SourceCommandBlock SourceType = "COMMAND_BLOCK"
	SourceOther        SourceType = "OTHER"
)

// EntryKind tags a HistoryEntry with the collection it was read from.
type EntryKind string

const (
	EntryChat    EntryKind = "CHAT"
	EntryCommand EntryKind = "COMMAND"
)

// Identity is a player as seen at event time. The ID never changes for a
// player, the Name is whatever they were called when the record was captured.
type Identity struct {
	ID   uuid.UUID `json:"uuid"`
	Name string    `json:"name"`
}

// Console is the identity attributed to messages that have no player behind them.
var Console = Identity{ID: uuid.Nil, Name: "CONSOLE"}

type Location struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type ChatMessage struct {
	ID        uuid.UUID       `json:"id"`
	Server    string          `json:"server"`
	World     string          `json:"world"`
	Player    Identity        `json:"player"`
	Content   string          `json:"content"`
	Type      MessageType     `json:"type"`
	Channel   string          `json:"channel"`
	Location  *Location       `json:"location,omitempty"`
	Recipient *Identity       `json:"recipient,omitempty"`
	Cancelled bool            `json:"cancelled"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	At        time.Time       `json:"timestamp"`
}

type CommandLog struct {
	ID        uuid.UUID       `json:"id"`
	Server    string          `json:"server"`
	Source    SourceType      `json:"source"`
	Player    *Identity       `json:"player,omitempty"`
	Command   string          `json:"command"`
	World     string          `json:"world,omitempty"`
	Location  *Location       `json:"location,omitempty"`
	Cancelled bool            `json:"cancelled"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	At        time.Time       `json:"timestamp"`
}

// HistoryEntry is one row of a player's combined chat and command history.
type HistoryEntry struct {
	Kind      EntryKind   `json:"kind"`
	At        time.Time   `json:"timestamp"`
	Text      string      `json:"text"`
	Subtype   MessageType `json:"subtype,omitempty"`
	Source    SourceType  `json:"source,omitempty"`
	World     string      `json:"world,omitempty"`
	Location  *Location   `json:"location,omitempty"`
	Cancelled bool        `json:"cancelled"`
}

type PlayerSession struct {
	ID          uuid.UUID  `json:"id"`
	Player      Identity   `json:"player"`
	Server      string     `json:"server"`
	LoginAt     time.Time  `json:"login_time"`
	LogoutAt    *time.Time `json:"logout_time,omitempty"`
	IPAddress   string     `json:"ip_address,omitempty"`
	ClientBrand string     `json:"client_brand,omitempty"`
}

// EnrichedChatMessage is a chat row joined with the session that was open
// when it was sent.
type EnrichedChatMessage struct {
	ChatMessage
	IPAddress   string `json:"ip_address,omitempty"`
	ClientBrand string `json:"client_brand,omitempty"`
}

type EventType string

const (
	EventServerStart   EventType = "SERVER_START"
	EventServerStop    EventType = "SERVER_STOP"
	EventServerRestart EventType = "SERVER_RESTART"
	EventPluginLoad    EventType = "PLUGIN_LOAD"
	EventPluginUnload  EventType = "PLUGIN_UNLOAD"
	EventWorldLoad     EventType = "WORLD_LOAD"
	EventWorldUnload   EventType = "WORLD_UNLOAD"
	EventBackup        EventType = "BACKUP"
	EventError         EventType = "ERROR"
	EventWarning       EventType = "WARNING"
	EventInfo          EventType = "INFO"
)

type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

type ServerEvent struct {
	ID       uuid.UUID       `json:"id"`
	Server   string          `json:"server"`
	Type     EventType       `json:"type"`
	Message  string          `json:"message"`
	Severity Severity        `json:"severity"`
	Metadata json.RawMessage `json:"metadata,omitempty"`
	At       time.Time       `json:"timestamp"`
}

// Player summarises a known player for the player browser.
type Player struct {
	Identity
	LastSeen time.Time `json:"last_seen"`
}
