package mapper

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reedfamily/chatlog/internal/config"
	"github.com/reedfamily/chatlog/internal/model"
	"github.com/samber/lo"
)

type Kind string

const (
	KindChat           Kind = "chat"
	KindPrivate        Kind = "private"
	KindBroadcast      Kind = "broadcast"
	KindSystem         Kind = "system"
	KindCommand        Kind = "command"
	KindConsoleCommand Kind = "console_command"
	KindRCONCommand    Kind = "rcon_command"
	KindBlockCommand   Kind = "command_block"
	KindOtherCommand   Kind = "other_command"
	KindJoin           Kind = "join"
	KindLeave          Kind = "leave"
	KindDeath          Kind = "death"
	KindAdvancement    Kind = "advancement"
)

// Kinds lists every event kind the mapper understands.
var Kinds = []Kind{
	KindChat, KindPrivate, KindBroadcast, KindSystem,
	KindCommand, KindConsoleCommand, KindRCONCommand, KindBlockCommand, KindOtherCommand,
	KindJoin, KindLeave, KindDeath, KindAdvancement,
}

const (
	ChannelGlobal  = "global"
	ChannelPrivate = "private"
	ChannelSystem  = "system"
)

type Advancement struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	Announce bool   `json:"announce"`
}

// Event is a game event as delivered by whatever watches the server.
type Event struct {
	Kind        Kind            `json:"kind"`
	Actor       *model.Identity `json:"actor,omitempty"`
	Text        string          `json:"text,omitempty"`
	World       string          `json:"world,omitempty"`
	Location    *model.Location `json:"location,omitempty"`
	Channel     string          `json:"channel,omitempty"`
	Cancelled   bool            `json:"cancelled,omitempty"`
	Recipient   *model.Identity `json:"recipient,omitempty"`
	Metadata    map[string]any  `json:"metadata,omitempty"`
	Advancement *Advancement    `json:"advancement,omitempty"`
	IPAddress   string          `json:"ip_address,omitempty"`
	ClientBrand string          `json:"client_brand,omitempty"`
}

// Record holds exactly one of a chat message or a command log.
type Record struct {
	Chat    *model.ChatMessage
	Command *model.CommandLog
}

func (r Record) ID() uuid.UUID {
	if r.Chat != nil {
		return r.Chat.ID
	}
	return r.Command.ID
}

// Mapper turns events into records according to one config snapshot. It does
// no I/O and is safe for concurrent use.
type Mapper struct {
	server   string
	cfg      config.Logging
	channels map[string]struct{}
	names    map[string]struct{}
	ids      map[uuid.UUID]struct{}
	redactor *Redactor
	now      func() time.Time
	newID    func() uuid.UUID
}

type Option func(*Mapper)

func WithClock(now func() time.Time) Option {
	return func(m *Mapper) { m.now = now }
}

func WithIDs(newID func() uuid.UUID) Option {
	return func(m *Mapper) { m.newID = newID }
}

func New(server string, cfg config.Logging, opts ...Option) (*Mapper, error) {
	redactor, err := NewRedactor()
	if err != nil {
		return nil, err
	}
	m := &Mapper{
		server:   server,
		cfg:      cfg,
		channels: map[string]struct{}{},
		names:    map[string]struct{}{},
		ids:      map[uuid.UUID]struct{}{},
		redactor: redactor,
		now:      time.Now,
		newID:    uuid.New,
	}
	for _, c := range cfg.Channels {
		m.channels[strings.ToLower(c)] = struct{}{}
	}
	for _, p := range cfg.ExcludedPlayers {
		if id, err := uuid.Parse(p); err == nil {
			m.ids[id] = struct{}{}
			continue
		}
		m.names[strings.ToLower(p)] = struct{}{}
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Mapper) Server() string {
	return m.server
}

// Excluded reports whether the player is on the exclusion list, by UUID or
// by name ignoring case.
func (m *Mapper) Excluded(p model.Identity) bool {
	if _, ok := m.ids[p.ID]; ok {
		return true
	}
	_, ok := m.names[strings.ToLower(p.Name)]
	return ok
}

func (m *Mapper) enabled(k Kind) bool {
	t := m.cfg.LogTypes
	switch k {
	case KindChat:
		return t.Chat
	case KindPrivate:
		return t.PrivateMessages
	case KindBroadcast:
		return t.Broadcasts
	case KindSystem:
		return t.SystemMessages
	case KindCommand, KindConsoleCommand, KindRCONCommand, KindBlockCommand, KindOtherCommand:
		return t.Commands
	case KindJoin, KindLeave:
		return t.JoinLeave
	case KindDeath:
		return t.DeathMessages
	case KindAdvancement:
		return t.Achievements
	}
	return false
}

func (m *Mapper) channelAllowed(channel string) bool {
	if len(m.channels) == 0 {
		return true
	}
	_, ok := m.channels[strings.ToLower(channel)]
	return ok
}

// Map produces the record for ev, or reports false when the event is
// filtered out or lacks the data a record needs.
func (m *Mapper) Map(ev Event) (Record, bool) {
	if !m.cfg.Enabled || !m.enabled(ev.Kind) {
		return Record{}, false
	}
	if ev.Actor != nil && m.Excluded(*ev.Actor) {
		return Record{}, false
	}
	switch ev.Kind {
	case KindCommand, KindConsoleCommand, KindRCONCommand, KindBlockCommand, KindOtherCommand:
		return m.command(ev)
	}
	return m.chat(ev)
}

func (m *Mapper) stamp() (uuid.UUID, time.Time) {
	return m.newID(), m.now().UTC().Truncate(time.Microsecond)
}

func (m *Mapper) chat(ev Event) (Record, bool) {
	if ev.World == "" {
		return Record{}, false
	}
	var (
		msgType model.MessageType
		channel = ChannelSystem
		text    = ev.Text
		meta    = ev.Metadata
		player  model.Identity
	)
	switch ev.Kind {
	case KindBroadcast, KindSystem:
		player = model.Console
		if ev.Actor != nil {
			player = *ev.Actor
		}
	default:
		if ev.Actor == nil {
			return Record{}, false
		}
		player = *ev.Actor
	}

	switch ev.Kind {
	case KindChat:
		msgType, channel = model.MessageChat, ev.Channel
		if channel == "" {
			channel = ChannelGlobal
		}
		if !m.channelAllowed(channel) {
			return Record{}, false
		}
	case KindPrivate:
		if ev.Recipient == nil {
			return Record{}, false
		}
		msgType, channel = model.MessagePrivate, ChannelPrivate
	case KindBroadcast:
		msgType = model.MessageBroadcast
	case KindSystem:
		msgType = model.MessageSystem
	case KindJoin:
		msgType = model.MessageJoin
		text = orDefault(text, player.Name+" joined the game")
	case KindLeave:
		msgType = model.MessageLeave
		text = orDefault(text, player.Name+" left the game")
	case KindDeath:
		msgType = model.MessageDeath
		text = orDefault(text, player.Name+" died")
	case KindAdvancement:
		if ev.Advancement == nil || !ev.Advancement.Announce {
			return Record{}, false
		}
		msgType = model.MessageAchievement
		text = orDefault(text, player.Name+" has made the advancement ["+ev.Advancement.Title+"]")
		meta = lo.Assign(meta, map[string]any{"advancement_key": ev.Advancement.Key})
	default:
		return Record{}, false
	}
	if text == "" {
		return Record{}, false
	}

	metadata, ok := encode(meta)
	if !ok {
		return Record{}, false
	}
	var recipient *model.Identity
	if ev.Recipient != nil {
		recipient = lo.ToPtr(*ev.Recipient)
	}
	id, at := m.stamp()
	return Record{Chat: &model.ChatMessage{
		ID:        id,
		Server:    m.server,
		World:     ev.World,
		Player:    player,
		Content:   Truncate(text, m.cfg.MaxMessageLength),
		Type:      msgType,
		Channel:   channel,
		Location:  copyLocation(ev.Location),
		Recipient: recipient,
		Cancelled: ev.Cancelled,
		Metadata:  metadata,
		At:        at,
	}}, true
}

func (m *Mapper) command(ev Event) (Record, bool) {
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return Record{}, false
	}
	var source model.SourceType
	switch ev.Kind {
	case KindCommand:
		if ev.Actor == nil || ev.World == "" {
			return Record{}, false
		}
		source = model.SourcePlayer
	case KindConsoleCommand:
		source = model.SourceConsole
	case KindRCONCommand:
		source = model.SourceRCON
	case KindBlockCommand:
		if ev.World == "" {
			return Record{}, false
		}
		source = model.SourceCommandBlock
	default:
		source = model.SourceOther
	}
	if m.cfg.FilterSensitive {
		text = m.redactor.Redact(text)
	}
	metadata, ok := encode(ev.Metadata)
	if !ok {
		return Record{}, false
	}
	var player *model.Identity
	if ev.Actor != nil {
		player = lo.ToPtr(*ev.Actor)
	}
	id, at := m.stamp()
	return Record{Command: &model.CommandLog{
		ID:        id,
		Server:    m.server,
		Source:    source,
		Player:    player,
		Command:   Truncate(text, m.cfg.MaxMessageLength),
		World:     ev.World,
		Location:  copyLocation(ev.Location),
		Cancelled: ev.Cancelled,
		Metadata:  metadata,
		At:        at,
	}}, true
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func encode(meta map[string]any) (json.RawMessage, bool) {
	if len(meta) == 0 {
		return nil, true
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, false
	}
	return b, true
}

func copyLocation(loc *model.Location) *model.Location {
	if loc == nil {
		return nil
	}
	l := *loc
	return &l
}
