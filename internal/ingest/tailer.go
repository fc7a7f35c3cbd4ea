package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reedfamily/chatlog/internal/config"
	"github.com/reedfamily/chatlog/internal/docker"
	"github.com/reedfamily/chatlog/internal/game"
	"github.com/reedfamily/chatlog/internal/mapper"
	"github.com/reedfamily/chatlog/internal/model"
	"github.com/reedfamily/chatlog/internal/pipeline"
)

// LogSource is the docker surface the tailer reads from.
type LogSource interface {
	IsTTY(ctx context.Context, id string) (bool, error)
	ContainerLogs(ctx context.Context, id string, tail string) (io.ReadCloser, error)
}

// Sink receives what the tailer recognises in the log.
type Sink interface {
	Handle(ev mapper.Event) (*Pending, bool)
	RecordServerEvent(typ model.EventType, sev model.Severity, msg string) *pipeline.Future[struct{}]
	EndSessions() *pipeline.Future[struct{}]
}

const maxLine = 1 << 20

// Tailer follows one game server container's console and turns recognised
// lines into events.
type Tailer struct {
	src       LogSource
	sink      Sink
	adapter   game.GameAdapter
	container string
	world     string
	tail      string
	players   *Players
	log       *slog.Logger
	retry     time.Duration
}

func NewTailer(src LogSource, sink Sink, c config.Container, ingest config.Ingest, log *slog.Logger) (*Tailer, error) {
	adapter, err := game.Lookup(c.Game)
	if err != nil {
		return nil, fmt.Errorf("container %s: %w", c.Name, err)
	}
	tail := ingest.Tail
	if tail == "" {
		tail = "0"
	}
	return &Tailer{
		src:       src,
		sink:      sink,
		adapter:   adapter,
		container: c.Name,
		world:     ingest.DefaultWorld,
		tail:      tail,
		players:   NewPlayers(),
		log:       log.With("container", c.Name, "game", c.Game),
		retry:     5 * time.Second,
	}, nil
}

// Run follows the log until ctx is done, reconnecting when the stream ends
// (for example across a container restart).
func (t *Tailer) Run(ctx context.Context) {
	tail := t.tail
	for {
		err := t.follow(ctx, tail)
		if ctx.Err() != nil {
			return
		}
		t.log.Warn("log stream ended", "error", err, "retry", t.retry)
		// Lines printed while reconnecting were already read or are lost.
		tail = "0"
		select {
		case <-ctx.Done():
			return
		case <-time.After(t.retry):
		}
	}
}

func (t *Tailer) follow(ctx context.Context, tail string) error {
	tty, err := t.src.IsTTY(ctx, t.container)
	if err != nil {
		return err
	}
	rc, err := t.src.ContainerLogs(ctx, t.container, tail)
	if err != nil {
		return fmt.Errorf("container logs: %w", err)
	}
	defer rc.Close()

	t.log.Info("following container log", "tty", tty)
	if tty {
		return t.consume(rc)
	}
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(docker.Demux(pw, rc))
	}()
	defer pr.Close()
	return t.consume(pr)
}

func (t *Tailer) consume(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		t.line(strings.TrimRight(scanner.Text(), "\r"))
	}
	return scanner.Err()
}

func (t *Tailer) line(line string) {
	le := t.adapter.ParseLogLine(line)
	if le == nil {
		return
	}
	switch le.Type {
	case game.EventUUID:
		if id, err := uuid.Parse(le.Value); err == nil {
			t.players.Learn(le.Player, id)
		}
		return
	case game.EventLogin:
		t.players.SetAddress(le.Player, le.Value)
		return
	case game.EventStart:
		t.sink.EndSessions()
		t.sink.RecordServerEvent(model.EventServerStart, model.SeverityLow, le.Message)
		return
	case game.EventStop:
		t.sink.EndSessions()
		t.sink.RecordServerEvent(model.EventServerStop, model.SeverityLow, le.Message)
		return
	case game.EventError:
		t.sink.RecordServerEvent(model.EventError, model.SeverityHigh, le.Message)
		return
	}
	if ev, ok := t.event(le); ok {
		t.sink.Handle(ev)
	}
}

func (t *Tailer) event(le *game.LogEvent) (mapper.Event, bool) {
	ev := mapper.Event{
		World:    t.world,
		Text:     le.Message,
		Metadata: map[string]any{"container": t.container},
	}
	actor := func() *model.Identity {
		id := t.players.Identity(le.Player)
		return &id
	}
	switch le.Type {
	case game.EventChat:
		ev.Kind, ev.Actor, ev.Channel = mapper.KindChat, actor(), mapper.ChannelGlobal
	case game.EventBroadcast:
		ev.Kind = mapper.KindBroadcast
		ev.Metadata["sender"] = le.Player
	case game.EventCommand:
		ev.Kind, ev.Actor = mapper.KindCommand, actor()
	case game.EventDeath:
		ev.Kind, ev.Actor = mapper.KindDeath, actor()
	case game.EventAdvancement:
		ev.Kind, ev.Actor = mapper.KindAdvancement, actor()
		ev.Advancement = &mapper.Advancement{
			Key:      strings.ToLower(strings.ReplaceAll(le.Title, " ", "_")),
			Title:    le.Title,
			Announce: true,
		}
	case game.EventJoin:
		ev.Kind, ev.Actor = mapper.KindJoin, actor()
		ev.IPAddress = host(t.players.TakeAddress(le.Player))
	case game.EventLeave:
		ev.Kind, ev.Actor = mapper.KindLeave, actor()
	default:
		return mapper.Event{}, false
	}
	return ev, true
}

func host(addr string) string {
	if h, _, err := net.SplitHostPort(addr); err == nil {
		return h
	}
	return addr
}
