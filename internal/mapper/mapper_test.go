package mapper

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/reedfamily/chatlog/internal/config"
	"github.com/reedfamily/chatlog/internal/model"
	"github.com/stretchr/testify/require"
)

var (
	fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 123456789, time.FixedZone("CEST", 2*3600))
	fixedID  = uuid.MustParse("00000000-0000-0000-0000-000000000042")
	steve    = model.Identity{ID: uuid.MustParse("8667ba71-b85a-4004-af54-457a9734eed7"), Name: "Steve"}
	alice    = model.Identity{ID: uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"), Name: "Alice"}
)

func allTypes() config.LogTypes {
	return config.LogTypes{
		Chat: true, PrivateMessages: true, Commands: true, SystemMessages: true,
		JoinLeave: true, DeathMessages: true, Achievements: true, Broadcasts: true,
	}
}

func loggingConfig() config.Logging {
	return config.Logging{
		Enabled:          true,
		LogTypes:         allTypes(),
		FilterSensitive:  true,
		MaxMessageLength: 1000,
	}
}

func newMapper(t *testing.T, cfg config.Logging) *Mapper {
	t.Helper()
	m, err := New("survival", cfg,
		WithClock(func() time.Time { return fixedNow }),
		WithIDs(func() uuid.UUID { return fixedID }),
	)
	require.NoError(t, err)
	return m
}

func TestMap_Chat(t *testing.T) {
	req := require.New(t)
	m := newMapper(t, loggingConfig())
	p := steve

	rec, ok := m.Map(Event{Kind: KindChat, Actor: &p, Text: "hello", World: "world", Location: &model.Location{X: 1, Y: 2, Z: 3}})
	req.True(ok)
	req.Nil(rec.Command)
	req.Equal(model.ChatMessage{
		ID:       fixedID,
		Server:   "survival",
		World:    "world",
		Player:   steve,
		Content:  "hello",
		Type:     model.MessageChat,
		Channel:  ChannelGlobal,
		Location: &model.Location{X: 1, Y: 2, Z: 3},
		At:       fixedNow.UTC().Truncate(time.Microsecond),
	}, *rec.Chat)
	req.Equal(time.UTC, rec.Chat.At.Location())
	req.Equal(fixedID, rec.ID())
}

func TestMap_SystemKinds(t *testing.T) {
	p := steve
	tests := []struct {
		name    string
		event   Event
		content string
		typ     model.MessageType
		meta    string
	}{
		{"join", Event{Kind: KindJoin, Actor: &p, World: "world"}, "Steve joined the game", model.MessageJoin, ""},
		{"leave", Event{Kind: KindLeave, Actor: &p, World: "world"}, "Steve left the game", model.MessageLeave, ""},
		{"death default", Event{Kind: KindDeath, Actor: &p, World: "world"}, "Steve died", model.MessageDeath, ""},
		{"death text", Event{Kind: KindDeath, Actor: &p, World: "world", Text: "Steve fell from a high place"}, "Steve fell from a high place", model.MessageDeath, ""},
		{
			"advancement",
			Event{Kind: KindAdvancement, Actor: &p, World: "world", Advancement: &Advancement{Key: "story/mine_stone", Title: "Stone Age", Announce: true}},
			"Steve has made the advancement [Stone Age]", model.MessageAchievement, `{"advancement_key":"story/mine_stone"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			rec, ok := newMapper(t, loggingConfig()).Map(tt.event)
			req.True(ok)
			req.Equal(tt.content, rec.Chat.Content)
			req.Equal(tt.typ, rec.Chat.Type)
			req.Equal(ChannelSystem, rec.Chat.Channel)
			if tt.meta == "" {
				req.Nil(rec.Chat.Metadata)
			} else {
				req.JSONEq(tt.meta, string(rec.Chat.Metadata))
			}
		})
	}
}

func TestMap_BroadcastWithoutActorUsesConsole(t *testing.T) {
	req := require.New(t)
	rec, ok := newMapper(t, loggingConfig()).Map(Event{Kind: KindBroadcast, Text: "Restart in 5 minutes", World: "world"})
	req.True(ok)
	req.Equal(model.Console, rec.Chat.Player)
	req.Equal(model.MessageBroadcast, rec.Chat.Type)
}

func TestMap_Private(t *testing.T) {
	req := require.New(t)
	m := newMapper(t, loggingConfig())
	p, r := steve, alice
	r.Name = "Bob"

	rec, ok := m.Map(Event{Kind: KindPrivate, Actor: &p, Recipient: &r, Text: "psst", World: "world"})
	req.True(ok)
	req.Equal(ChannelPrivate, rec.Chat.Channel)
	req.Equal(&r, rec.Chat.Recipient)

	_, ok = m.Map(Event{Kind: KindPrivate, Actor: &p, Text: "psst", World: "world"})
	req.False(ok)
}

func TestMap_Declines(t *testing.T) {
	p, a := steve, alice
	disabled := loggingConfig()
	disabled.Enabled = false
	noDeaths := loggingConfig()
	noDeaths.LogTypes.DeathMessages = false
	noCommands := loggingConfig()
	noCommands.LogTypes.Commands = false
	excluded := loggingConfig()
	excluded.ExcludedPlayers = []string{"alice", steve.ID.String()}
	channels := loggingConfig()
	channels.Channels = []string{"global", "Staff"}

	tests := []struct {
		name  string
		cfg   config.Logging
		event Event
	}{
		{"logging disabled", disabled, Event{Kind: KindChat, Actor: &p, Text: "hi", World: "world"}},
		{"category disabled", noDeaths, Event{Kind: KindDeath, Actor: &p, World: "world"}},
		{"commands disabled", noCommands, Event{Kind: KindCommand, Actor: &p, Text: "/spawn", World: "world"}},
		{"excluded by name", excluded, Event{Kind: KindChat, Actor: &a, Text: "hi", World: "world"}},
		{"excluded by uuid", excluded, Event{Kind: KindCommand, Actor: &p, Text: "/spawn", World: "world"}},
		{"excluded join", excluded, Event{Kind: KindJoin, Actor: &a, World: "world"}},
		{"channel not allowed", channels, Event{Kind: KindChat, Actor: &p, Text: "hi", World: "world", Channel: "trade"}},
		{"missing world", loggingConfig(), Event{Kind: KindChat, Actor: &p, Text: "hi"}},
		{"missing actor", loggingConfig(), Event{Kind: KindChat, Text: "hi", World: "world"}},
		{"player command without actor", loggingConfig(), Event{Kind: KindCommand, Text: "/spawn", World: "world"}},
		{"empty command", loggingConfig(), Event{Kind: KindConsoleCommand, Text: "  "}},
		{"block command without world", loggingConfig(), Event{Kind: KindBlockCommand, Text: "say hi"}},
		{"silent advancement", loggingConfig(), Event{Kind: KindAdvancement, Actor: &p, World: "world", Advancement: &Advancement{Key: "recipes/x", Announce: false}}},
		{"unencodable metadata", loggingConfig(), Event{Kind: KindChat, Actor: &p, Text: "hi", World: "world", Metadata: map[string]any{"f": func() {}}}},
		{"unknown kind", loggingConfig(), Event{Kind: "teleport", Actor: &p, World: "world"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := newMapper(t, tt.cfg).Map(tt.event)
			require.False(t, ok)
		})
	}
}

func TestMap_ChannelAllowList(t *testing.T) {
	req := require.New(t)
	cfg := loggingConfig()
	cfg.Channels = []string{"global", "Staff"}
	m := newMapper(t, cfg)
	p := steve

	rec, ok := m.Map(Event{Kind: KindChat, Actor: &p, Text: "hi", World: "world", Channel: "staff"})
	req.True(ok)
	req.Equal("staff", rec.Chat.Channel)

	_, ok = m.Map(Event{Kind: KindChat, Actor: &p, Text: "hi", World: "world"})
	req.True(ok)
}

func TestMap_Commands(t *testing.T) {
	p := steve
	tests := []struct {
		name   string
		event  Event
		source model.SourceType
		text   string
	}{
		{"player", Event{Kind: KindCommand, Actor: &p, World: "world", Text: "/home base"}, model.SourcePlayer, "/home base"},
		{"console", Event{Kind: KindConsoleCommand, Text: "save-all"}, model.SourceConsole, "save-all"},
		{"rcon", Event{Kind: KindRCONCommand, Text: "whitelist add Steve"}, model.SourceRCON, "whitelist add Steve"},
		{"command block", Event{Kind: KindBlockCommand, World: "world", Text: "say hello"}, model.SourceCommandBlock, "say hello"},
		{"other", Event{Kind: KindOtherCommand, Text: "reload"}, model.SourceOther, "reload"},
		{"login redacted", Event{Kind: KindCommand, Actor: &p, World: "world", Text: "/login mypassword"}, model.SourcePlayer, "/login [FILTERED]"},
		{"console op redacted", Event{Kind: KindConsoleCommand, Text: "op Steve"}, model.SourceConsole, "op [FILTERED]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			rec, ok := newMapper(t, loggingConfig()).Map(tt.event)
			req.True(ok)
			req.Nil(rec.Chat)
			req.Equal(tt.source, rec.Command.Source)
			req.Equal(tt.text, rec.Command.Command)
			req.Equal("survival", rec.Command.Server)
		})
	}
}

func TestMap_RedactionCanBeDisabled(t *testing.T) {
	req := require.New(t)
	cfg := loggingConfig()
	cfg.FilterSensitive = false
	p := steve

	rec, ok := newMapper(t, cfg).Map(Event{Kind: KindCommand, Actor: &p, World: "world", Text: "/login hunter2"})
	req.True(ok)
	req.Equal("/login hunter2", rec.Command.Command)
}

func TestMap_Truncation(t *testing.T) {
	req := require.New(t)
	cfg := loggingConfig()
	cfg.MaxMessageLength = 10
	m := newMapper(t, cfg)
	p := steve

	rec, ok := m.Map(Event{Kind: KindChat, Actor: &p, World: "world", Text: "this message is too long"})
	req.True(ok)
	req.Equal("this me...", rec.Chat.Content)

	rec, ok = m.Map(Event{Kind: KindChat, Actor: &p, World: "world", Text: "just right"})
	req.True(ok)
	req.Equal("just right", rec.Chat.Content)

	rec, ok = m.Map(Event{Kind: KindCommand, Actor: &p, World: "world", Text: "/give Steve diamond 64"})
	req.True(ok)
	req.Equal("/give S...", rec.Command.Command)
}

func TestRedactor(t *testing.T) {
	r, err := NewRedactor()
	require.NoError(t, err)
	tests := map[string]string{
		"/login mypassword":          "/login [FILTERED]",
		"/LOGIN secret":              "/LOGIN [FILTERED]",
		"/register pw pw":            "/register [FILTERED]",
		"/op Steve":                  "/op [FILTERED]",
		"/deop Steve":                "/deop [FILTERED]",
		"/minecraft:op Steve":        "/minecraft:op [FILTERED]",
		"/auth set-password hunter2": "/auth [FILTERED]",
		"/api token abc123":          "/api [FILTERED]",
		"/login":                     "/login",
		"/tp Steve Alex":             "/tp Steve Alex",
		"/opinion poll":              "/opinion poll",
		"/msg Alex hi":               "/msg Alex hi",
	}
	for in, want := range tests {
		require.Equal(t, want, r.Redact(in), in)
	}
}

func TestTruncate(t *testing.T) {
	req := require.New(t)
	req.Equal("abc", Truncate("abc", 3))
	req.Equal("ab...", Truncate("abcdef", 5))
	req.Equal("abcdef", Truncate("abcdef", 0))

	long := strings.Repeat("é", 2000)
	out := Truncate(long, 1000)
	req.Equal(1000, utf8.RuneCountInString(out))
	req.True(strings.HasSuffix(out, "..."))
	req.True(utf8.ValidString(out))
}
