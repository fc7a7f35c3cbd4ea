package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/reedfamily/chatlog/internal/config"
	"github.com/reedfamily/chatlog/internal/feed"
	"github.com/reedfamily/chatlog/internal/mapper"
	"github.com/reedfamily/chatlog/internal/model"
	"github.com/reedfamily/chatlog/internal/pipeline"
	"github.com/reedfamily/chatlog/internal/stats"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	steve = model.Identity{ID: uuid.MustParse("8667ba71-b85a-4004-af54-457a9734eed7"), Name: "Steve"}
	alice = model.Identity{ID: uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5"), Name: "Alice"}
)

type fakeWriter struct {
	mu       sync.Mutex
	err      error
	chats    []model.ChatMessage
	commands []model.CommandLog
	batches  int
	opened   []model.PlayerSession
	closed   []uuid.UUID
	ended    []string
	events   []model.ServerEvent
}

func (w *fakeWriter) InsertChatMessage(_ context.Context, m model.ChatMessage) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.chats = append(w.chats, m)
	return nil
}

func (w *fakeWriter) InsertCommandLog(_ context.Context, c model.CommandLog) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.commands = append(w.commands, c)
	return nil
}

func (w *fakeWriter) InsertBatch(_ context.Context, msgs []model.ChatMessage, cmds []model.CommandLog) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.batches++
	w.chats = append(w.chats, msgs...)
	w.commands = append(w.commands, cmds...)
	return nil
}

func (w *fakeWriter) OpenSession(_ context.Context, ps model.PlayerSession) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.opened = append(w.opened, ps)
	return nil
}

func (w *fakeWriter) CloseSession(_ context.Context, player uuid.UUID, _ string, _ time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = append(w.closed, player)
	return nil
}

func (w *fakeWriter) CloseOpenSessions(_ context.Context, server string, _ time.Time) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ended = append(w.ended, server)
	return 2, nil
}

func (w *fakeWriter) InsertServerEvent(_ context.Context, ev model.ServerEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events = append(w.events, ev)
	return nil
}

func loggingConfig() config.Logging {
	return config.Logging{
		Enabled: true,
		LogTypes: config.LogTypes{
			Chat: true, PrivateMessages: true, Commands: true, SystemMessages: true,
			JoinLeave: true, DeathMessages: true, Achievements: true, Broadcasts: true,
		},
		FilterSensitive:  true,
		MaxMessageLength: 1000,
		ExcludedPlayers:  []string{"alice"},
	}
}

type fixture struct {
	dispatcher *Dispatcher
	writer     *fakeWriter
	pool       *pipeline.Pool
	stats      *stats.Collector
}

func newFixture(t *testing.T, pub feed.Publisher) *fixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	m, err := mapper.New("survival", loggingConfig())
	require.NoError(t, err)
	pool := pipeline.NewPool("writes", 2, 16, log)
	t.Cleanup(func() { pool.Shutdown(time.Second) })
	st := stats.NewCollector("survival", pool, nil, nil, log)
	w := &fakeWriter{}
	return &fixture{
		dispatcher: NewDispatcher(m, w, pool, pub, st, log),
		writer:     w,
		pool:       pool,
		stats:      st,
	}
}

func waitCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestDispatcher_PersistsAndPublishes(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	pub := feed.NewMockPublisher(ctrl)
	f := newFixture(t, pub)

	var got feed.Entry
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, e feed.Entry) error {
		got = e
		return nil
	}).Times(1)

	p := steve
	fut, ok := f.dispatcher.Handle(mapper.Event{Kind: mapper.KindChat, Actor: &p, Text: "hello", World: "world"})
	req.True(ok)
	_, err := fut.Wait(waitCtx(t))
	req.NoError(err)

	req.Len(f.writer.chats, 1)
	req.Equal(fut.ID, f.writer.chats[0].ID)
	req.Equal(steve, f.writer.chats[0].Player)
	req.Equal("survival", got.Server)
	req.Equal(&f.writer.chats[0], got.Chat)
	s := f.stats.Snapshot()
	req.EqualValues(1, s.Persisted)
	req.EqualValues(1, s.Mapped["chat"])
}

func TestDispatcher_ExcludedPlayerNeverReachesThePool(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	pub := feed.NewMockPublisher(ctrl)
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)
	f := newFixture(t, pub)

	p := alice
	fut, ok := f.dispatcher.Handle(mapper.Event{Kind: mapper.KindChat, Actor: &p, Text: "hi", World: "world"})
	req.False(ok)
	req.Nil(fut)
	req.Zero(f.pool.Stats().Submitted)
	req.EqualValues(1, f.stats.Snapshot().Declined)
	req.Empty(f.writer.chats)
}

func TestDispatcher_WriteFailureIsCountedNotPublished(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	pub := feed.NewMockPublisher(ctrl)
	pub.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)
	f := newFixture(t, pub)
	boom := errors.New("disk full")
	f.writer.err = boom

	fut, ok := f.dispatcher.Handle(mapper.Event{Kind: mapper.KindConsoleCommand, Text: "/save-all"})
	req.True(ok)
	_, err := fut.Wait(waitCtx(t))
	req.ErrorIs(err, boom)
	req.EqualValues(1, f.stats.Snapshot().Failed)
	req.Zero(f.stats.Snapshot().Persisted)
}

func TestDispatcher_TracksSessions(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	p := steve

	join, ok := f.dispatcher.Handle(mapper.Event{Kind: mapper.KindJoin, Actor: &p, World: "world", IPAddress: "10.0.0.7", ClientBrand: "vanilla"})
	req.True(ok)
	_, err := join.Wait(waitCtx(t))
	req.NoError(err)

	leave, ok := f.dispatcher.Handle(mapper.Event{Kind: mapper.KindLeave, Actor: &p, World: "world"})
	req.True(ok)
	_, err = leave.Wait(waitCtx(t))
	req.NoError(err)

	req.Len(f.writer.opened, 1)
	req.Equal(steve, f.writer.opened[0].Player)
	req.Equal("10.0.0.7", f.writer.opened[0].IPAddress)
	req.Equal("vanilla", f.writer.opened[0].ClientBrand)
	req.Equal(f.writer.chats[0].At, f.writer.opened[0].LoginAt)
	req.Equal([]uuid.UUID{steve.ID}, f.writer.closed)
}

func TestDispatcher_HandleBatch(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)
	s, a := steve, alice

	fut, ids := f.dispatcher.HandleBatch([]mapper.Event{
		{Kind: mapper.KindChat, Actor: &s, Text: "one", World: "world"},
		{Kind: mapper.KindChat, Actor: &a, Text: "excluded", World: "world"},
		{Kind: mapper.KindCommand, Actor: &s, Text: "/spawn", World: "world"},
	})
	req.Len(ids, 2)
	_, err := fut.Wait(waitCtx(t))
	req.NoError(err)
	req.Equal(1, f.writer.batches)
	req.Len(f.writer.chats, 1)
	req.Len(f.writer.commands, 1)
	req.Equal(ids, []uuid.UUID{f.writer.chats[0].ID, f.writer.commands[0].ID})
	req.EqualValues(1, f.stats.Snapshot().Declined)

	fut, ids = f.dispatcher.HandleBatch([]mapper.Event{{Kind: mapper.KindChat, Actor: &a, Text: "x", World: "world"}})
	req.Empty(ids)
	req.Nil(fut)
}

func TestDispatcher_SwapAppliesToNewEvents(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)

	cfg := loggingConfig()
	cfg.LogTypes.Chat = false
	m, err := mapper.New("survival", cfg)
	req.NoError(err)
	f.dispatcher.Swap(m)

	p := steve
	_, ok := f.dispatcher.Handle(mapper.Event{Kind: mapper.KindChat, Actor: &p, Text: "hello", World: "world"})
	req.False(ok)
	req.Same(m, f.dispatcher.Mapper())
}

func TestDispatcher_RecordServerEvent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)

	_, err := f.dispatcher.RecordServerEvent(model.EventServerStart, model.SeverityLow, "server started").Wait(waitCtx(t))
	req.NoError(err)
	req.Len(f.writer.events, 1)
	req.Equal("survival", f.writer.events[0].Server)
	req.Equal(model.EventServerStart, f.writer.events[0].Type)
}

func TestDispatcher_EndSessions(t *testing.T) {
	req := require.New(t)
	f := newFixture(t, nil)

	_, err := f.dispatcher.EndSessions().Wait(waitCtx(t))
	req.NoError(err)
	req.Equal([]string{"survival"}, f.writer.ended)
}
