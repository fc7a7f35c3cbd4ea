package retention

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reedfamily/chatlog/internal/model"
	"github.com/reedfamily/chatlog/internal/store"
)

var ErrInvalidAge = errors.New("retention age must be positive")

// ParseAge accepts Go durations plus a whole number of days such as "90d".
func ParseAge(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, ErrInvalidAge
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, ErrInvalidAge
	}
	return d, nil
}

// Store is the part of the store a purge needs.
type Store interface {
	ForEachChatBefore(ctx context.Context, cutoff time.Time, fn func(model.ChatMessage) error) error
	ForEachCommandBefore(ctx context.Context, cutoff time.Time, fn func(model.CommandLog) error) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (store.Purged, error)
	InsertServerEvent(ctx context.Context, ev model.ServerEvent) error
}

type Result struct {
	Cutoff  time.Time    `json:"cutoff"`
	Purged  store.Purged `json:"purged"`
	Archive *Archive     `json:"archive,omitempty"`
}

// Service removes old records, archiving them first when an archive
// directory is configured.
type Service struct {
	store      Store
	server     string
	archiveDir string
	log        *slog.Logger
	now        func() time.Time
}

func NewService(s Store, server, archiveDir string, log *slog.Logger) *Service {
	return &Service{
		store:      s,
		server:     server,
		archiveDir: archiveDir,
		log:        log,
		now:        time.Now,
	}
}

func (s *Service) Purge(ctx context.Context, olderThan time.Duration) (*Result, error) {
	if olderThan <= 0 {
		return nil, ErrInvalidAge
	}
	now := s.now()
	res := &Result{Cutoff: now.Add(-olderThan).UTC()}

	if s.archiveDir != "" {
		a, err := writeArchive(ctx, s.store, s.archiveDir, s.server, res.Cutoff, now)
		if err != nil {
			return nil, err
		}
		res.Archive = a
		s.log.Info("archived old records", "path", a.Path, "chat", a.Chat, "commands", a.Commands)
	}

	purged, err := s.store.DeleteBefore(ctx, res.Cutoff)
	if err != nil {
		return nil, fmt.Errorf("purge: %w", err)
	}
	res.Purged = purged
	s.log.Info("purged old records", "cutoff", res.Cutoff, "chat", purged.Chat, "commands", purged.Commands, "sessions", purged.Sessions)

	ev := model.ServerEvent{
		ID:       uuid.New(),
		Server:   s.server,
		Type:     model.EventBackup,
		Message:  fmt.Sprintf("purged %d chat messages and %d commands older than %s", purged.Chat, purged.Commands, res.Cutoff.Format(time.RFC3339)),
		Severity: model.SeverityLow,
		At:       now.UTC().Truncate(time.Microsecond),
	}
	if err := s.store.InsertServerEvent(ctx, ev); err != nil {
		s.log.Warn("failed to record purge", "error", err)
	}
	return res, nil
}
