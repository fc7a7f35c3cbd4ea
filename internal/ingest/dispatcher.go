package ingest

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/reedfamily/chatlog/internal/feed"
	"github.com/reedfamily/chatlog/internal/mapper"
	"github.com/reedfamily/chatlog/internal/model"
	"github.com/reedfamily/chatlog/internal/pipeline"
	"github.com/reedfamily/chatlog/internal/stats"
)

// Writer is the part of the store the write path needs.
type Writer interface {
	InsertChatMessage(ctx context.Context, m model.ChatMessage) error
	InsertCommandLog(ctx context.Context, c model.CommandLog) error
	InsertBatch(ctx context.Context, msgs []model.ChatMessage, cmds []model.CommandLog) error
	OpenSession(ctx context.Context, ps model.PlayerSession) error
	CloseSession(ctx context.Context, player uuid.UUID, server string, at time.Time) error
	CloseOpenSessions(ctx context.Context, server string, at time.Time) (int64, error)
	InsertServerEvent(ctx context.Context, ev model.ServerEvent) error
}

// Pending is a record accepted for writing. The future resolves once the
// record is stored.
type Pending struct {
	ID uuid.UUID
	*pipeline.Future[struct{}]
}

// Dispatcher maps events on the caller's goroutine and hands the resulting
// records to the write pool. Handle never blocks on the database.
type Dispatcher struct {
	mapper atomic.Pointer[mapper.Mapper]
	writer Writer
	writes *pipeline.Pool
	feed   feed.Publisher
	stats  *stats.Collector
	log    *slog.Logger
	now    func() time.Time
}

func NewDispatcher(m *mapper.Mapper, w Writer, writes *pipeline.Pool, pub feed.Publisher, st *stats.Collector, log *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		writer: w,
		writes: writes,
		feed:   pub,
		stats:  st,
		log:    log,
		now:    time.Now,
	}
	d.mapper.Store(m)
	return d
}

// Swap installs the mapper built from a reloaded config. Events already
// mapped keep the snapshot they were mapped with.
func (d *Dispatcher) Swap(m *mapper.Mapper) {
	d.mapper.Store(m)
}

func (d *Dispatcher) Mapper() *mapper.Mapper {
	return d.mapper.Load()
}

// Handle maps ev and schedules the write. It reports false, without
// touching the pool, when the mapper declines the event.
func (d *Dispatcher) Handle(ev mapper.Event) (*Pending, bool) {
	rec, ok := d.mapper.Load().Map(ev)
	if !ok {
		d.stats.Declined()
		d.log.Debug("event declined", "kind", ev.Kind)
		return nil, false
	}
	d.stats.Mapped(string(ev.Kind))

	fut := d.writes.Submit("persist "+string(ev.Kind), func(ctx context.Context) error {
		var err error
		if rec.Chat != nil {
			err = d.writer.InsertChatMessage(ctx, *rec.Chat)
		} else {
			err = d.writer.InsertCommandLog(ctx, *rec.Command)
		}
		if err != nil {
			d.stats.Failed()
			d.log.Error("failed to persist record", "id", rec.ID(), "kind", ev.Kind, "error", err)
			return err
		}
		d.persisted(ctx, ev, rec)
		return nil
	})
	return &Pending{ID: rec.ID(), Future: fut}, true
}

// HandleBatch maps every event and writes the accepted records in a single
// transaction. It returns the IDs of the accepted records, and a nil future
// when there are none.
func (d *Dispatcher) HandleBatch(evs []mapper.Event) (*pipeline.Future[struct{}], []uuid.UUID) {
	m := d.mapper.Load()
	var (
		accepted []mapper.Event
		records  []mapper.Record
		msgs     []model.ChatMessage
		cmds     []model.CommandLog
	)
	for _, ev := range evs {
		rec, ok := m.Map(ev)
		if !ok {
			d.stats.Declined()
			continue
		}
		d.stats.Mapped(string(ev.Kind))
		accepted = append(accepted, ev)
		records = append(records, rec)
		if rec.Chat != nil {
			msgs = append(msgs, *rec.Chat)
		} else {
			cmds = append(cmds, *rec.Command)
		}
	}
	if len(records) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, len(records))
	for i, rec := range records {
		ids[i] = rec.ID()
	}

	return d.writes.Submit("persist batch", func(ctx context.Context) error {
		if err := d.writer.InsertBatch(ctx, msgs, cmds); err != nil {
			for range records {
				d.stats.Failed()
			}
			d.log.Error("failed to persist batch", "records", len(records), "error", err)
			return err
		}
		for i, rec := range records {
			d.persisted(ctx, accepted[i], rec)
		}
		return nil
	}), ids
}

// RecordServerEvent schedules a lifecycle or diagnostic entry for the server.
func (d *Dispatcher) RecordServerEvent(typ model.EventType, sev model.Severity, msg string) *pipeline.Future[struct{}] {
	ev := model.ServerEvent{
		ID:       uuid.New(),
		Server:   d.mapper.Load().Server(),
		Type:     typ,
		Message:  msg,
		Severity: sev,
		At:       d.now().UTC().Truncate(time.Microsecond),
	}
	return d.writes.Submit("server event", func(ctx context.Context) error {
		if err := d.writer.InsertServerEvent(ctx, ev); err != nil {
			d.log.Error("failed to record server event", "type", typ, "error", err)
			return err
		}
		return nil
	})
}

// EndSessions closes every session still open on the server. The game server
// prints no leave lines when it crashes, so a start or stop ends them all.
func (d *Dispatcher) EndSessions() *pipeline.Future[struct{}] {
	server := d.mapper.Load().Server()
	at := d.now().UTC().Truncate(time.Microsecond)
	return d.writes.Submit("end sessions", func(ctx context.Context) error {
		n, err := d.writer.CloseOpenSessions(ctx, server, at)
		if err != nil {
			d.log.Error("failed to end open sessions", "error", err)
			return err
		}
		if n > 0 {
			d.log.Info("ended open sessions", "count", n)
		}
		return nil
	})
}

func (d *Dispatcher) persisted(ctx context.Context, ev mapper.Event, rec mapper.Record) {
	d.stats.Persisted()
	d.log.Debug("persisted record", "id", rec.ID(), "kind", ev.Kind)

	if err := d.track(ctx, ev, rec); err != nil {
		d.log.Warn("failed to track session", "kind", ev.Kind, "error", err)
	}
	if d.feed == nil {
		return
	}
	entry := feed.Entry{Chat: rec.Chat, Command: rec.Command}
	if rec.Chat != nil {
		entry.Server = rec.Chat.Server
	} else {
		entry.Server = rec.Command.Server
	}
	if err := d.feed.Publish(ctx, entry); err != nil {
		d.log.Warn("failed to publish to live feed", "id", rec.ID(), "error", err)
	}
}

// track opens a session on join and closes it on leave.
func (d *Dispatcher) track(ctx context.Context, ev mapper.Event, rec mapper.Record) error {
	if rec.Chat == nil {
		return nil
	}
	switch rec.Chat.Type {
	case model.MessageJoin:
		return d.writer.OpenSession(ctx, model.PlayerSession{
			ID:          uuid.New(),
			Player:      rec.Chat.Player,
			Server:      rec.Chat.Server,
			LoginAt:     rec.Chat.At,
			IPAddress:   ev.IPAddress,
			ClientBrand: ev.ClientBrand,
		})
	case model.MessageLeave:
		return d.writer.CloseSession(ctx, rec.Chat.Player.ID, rec.Chat.Server, rec.Chat.At)
	}
	return nil
}
