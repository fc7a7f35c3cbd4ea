package retention

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/reedfamily/chatlog/internal/config"
	"github.com/reedfamily/chatlog/internal/db"
	"github.com/reedfamily/chatlog/internal/model"
	"github.com/reedfamily/chatlog/internal/store"
	"github.com/stretchr/testify/require"
)

var (
	now   = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	steve = model.Identity{ID: uuid.MustParse("8667ba71-b85a-4004-af54-457a9734eed7"), Name: "Steve"}
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	dbCfg := config.Database{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "chatlog.db"),
		Pool: config.Pool{ConnectionTimeout: 5 * time.Second},
	}
	conn, dialect, err := db.Open(dbCfg)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	schema, err := db.Migrate(conn, dialect, log)
	require.NoError(t, err)
	return store.New(conn, dialect, schema, dbCfg.Pool, log)
}

func seed(t *testing.T, s *store.Store) {
	t.Helper()
	ctx := context.Background()
	for i, age := range []time.Duration{100 * 24 * time.Hour, 95 * 24 * time.Hour, time.Hour} {
		require.NoError(t, s.InsertChatMessage(ctx, model.ChatMessage{
			ID: uuid.New(), Server: "survival", World: "world", Player: steve,
			Content: []string{"old", "older", "fresh"}[i], Type: model.MessageChat, Channel: "global", At: now.Add(-age),
		}))
	}
	p := steve
	require.NoError(t, s.InsertCommandLog(ctx, model.CommandLog{
		ID: uuid.New(), Server: "survival", Source: model.SourcePlayer, Player: &p,
		Command: "/spawn", World: "world", At: now.Add(-200 * 24 * time.Hour),
	}))
}

func TestService_PurgeArchivesThenDeletes(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	seed(t, s)
	dir := t.TempDir()
	svc := NewService(s, "survival", dir, logs.GetLoggerFromLevel(slog.LevelDebug))
	svc.now = func() time.Time { return now }

	res, err := svc.Purge(context.Background(), 90*24*time.Hour)
	req.NoError(err)
	req.Equal(store.Purged{Chat: 2, Commands: 1}, res.Purged)
	req.NotNil(res.Archive)
	req.EqualValues(2, res.Archive.Chat)
	req.EqualValues(1, res.Archive.Commands)

	var lines []Archived
	req.NoError(ReadArchive(res.Archive.Path, func(a Archived) error {
		lines = append(lines, a)
		return nil
	}))
	req.Len(lines, 3)
	req.Equal("old", lines[0].Chat.Content)
	req.Equal("older", lines[1].Chat.Content)
	req.Equal(model.EntryCommand, lines[2].Kind)
	req.Equal("/spawn", lines[2].Command.Command)

	left, err := s.ChatByPlayer(context.Background(), steve.ID, 10, 0)
	req.NoError(err)
	req.Len(left, 1)
	req.Equal("fresh", left[0].Content)

	events, err := s.ServerEvents(context.Background(), "survival", 10, 0)
	req.NoError(err)
	req.Len(events, 1)
	req.Equal(model.EventBackup, events[0].Type)
}

func TestService_PurgeWithoutArchive(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	seed(t, s)
	svc := NewService(s, "survival", "", logs.GetLoggerFromLevel(slog.LevelDebug))
	svc.now = func() time.Time { return now }

	res, err := svc.Purge(context.Background(), 90*24*time.Hour)
	req.NoError(err)
	req.Nil(res.Archive)
	req.EqualValues(2, res.Purged.Chat)

	_, err = svc.Purge(context.Background(), 0)
	req.ErrorIs(err, ErrInvalidAge)
}

func TestService_FailedArchiveKeepsRecords(t *testing.T) {
	req := require.New(t)
	s := newTestStore(t)
	seed(t, s)
	blocker := filepath.Join(t.TempDir(), "file")
	req.NoError(os.WriteFile(blocker, []byte("x"), 0644))
	svc := NewService(s, "survival", filepath.Join(blocker, "archive"), logs.GetLoggerFromLevel(slog.LevelDebug))
	svc.now = func() time.Time { return now }

	_, err := svc.Purge(context.Background(), 90*24*time.Hour)
	req.Error(err)
	left, err := s.ChatByPlayer(context.Background(), steve.ID, 10, 0)
	req.NoError(err)
	req.Len(left, 3)
}

func TestParseAge(t *testing.T) {
	req := require.New(t)
	d, err := ParseAge("90d")
	req.NoError(err)
	req.Equal(90*24*time.Hour, d)

	d, err = ParseAge("36h")
	req.NoError(err)
	req.Equal(36*time.Hour, d)

	for _, bad := range []string{"0d", "-3d", "xd", "-1h"} {
		_, err = ParseAge(bad)
		req.ErrorIs(err, ErrInvalidAge, bad)
	}
	_, err = ParseAge("soon")
	req.Error(err)
}
