package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/reedfamily/chatlog/internal/model"
	"github.com/reedfamily/chatlog/internal/pipeline"
	"github.com/reedfamily/chatlog/internal/store"
)

var ErrInvalidRange = errors.New("range end is before its start")

// Service answers history queries off the caller's goroutine. Every method
// returns immediately with a future that resolves on the read pool.
type Service struct {
	store *store.Store
	reads *pipeline.Pool
}

func NewService(st *store.Store, reads *pipeline.Pool) *Service {
	return &Service{store: st, reads: reads}
}

func (s *Service) ByPlayer(player uuid.UUID, p Page) *pipeline.Future[[]model.ChatMessage] {
	return pipeline.Go(s.reads, "chat by player", func(ctx context.Context) ([]model.ChatMessage, error) {
		return s.store.ChatByPlayer(ctx, player, p.Limit(), p.Offset())
	})
}

func (s *Service) CommandsByPlayer(player uuid.UUID, p Page) *pipeline.Future[[]model.CommandLog] {
	return pipeline.Go(s.reads, "commands by player", func(ctx context.Context) ([]model.CommandLog, error) {
		return s.store.CommandsByPlayer(ctx, player, p.Limit(), p.Offset())
	})
}

func (s *Service) ByTimeRange(start, end time.Time, p Page) *pipeline.Future[[]model.ChatMessage] {
	if end.Before(start) {
		return pipeline.Failed[[]model.ChatMessage](ErrInvalidRange)
	}
	return pipeline.Go(s.reads, "chat by time range", func(ctx context.Context) ([]model.ChatMessage, error) {
		return s.store.ChatByTimeRange(ctx, start, end, p.Limit(), p.Offset())
	})
}

func (s *Service) Search(term string, p Page) *pipeline.Future[[]model.ChatMessage] {
	return pipeline.Go(s.reads, "search chat", func(ctx context.Context) ([]model.ChatMessage, error) {
		return s.store.SearchChat(ctx, term, p.Limit(), p.Offset())
	})
}

func (s *Service) CombinedHistory(player uuid.UUID, p Page) *pipeline.Future[[]model.HistoryEntry] {
	return pipeline.Go(s.reads, "combined history", func(ctx context.Context) ([]model.HistoryEntry, error) {
		return s.store.CombinedHistory(ctx, player, p.Limit(), p.Offset())
	})
}

func (s *Service) EnrichedByPlayer(player uuid.UUID, p Page) *pipeline.Future[[]model.EnrichedChatMessage] {
	return pipeline.Go(s.reads, "enriched chat", func(ctx context.Context) ([]model.EnrichedChatMessage, error) {
		return s.store.EnrichedChatByPlayer(ctx, player, p.Limit(), p.Offset())
	})
}

func (s *Service) Sessions(player uuid.UUID, p Page) *pipeline.Future[[]model.PlayerSession] {
	return pipeline.Go(s.reads, "sessions", func(ctx context.Context) ([]model.PlayerSession, error) {
		return s.store.Sessions(ctx, player, p.Limit(), p.Offset())
	})
}

func (s *Service) ServerEvents(server string, p Page) *pipeline.Future[[]model.ServerEvent] {
	return pipeline.Go(s.reads, "server events", func(ctx context.Context) ([]model.ServerEvent, error) {
		return s.store.ServerEvents(ctx, server, p.Limit(), p.Offset())
	})
}

// Counts is how much a player has said and run.
type Counts struct {
	Messages int64 `json:"messages"`
	Commands int64 `json:"commands"`
}

// CountByPlayer is zero, not an error, for players with no records.
func (s *Service) CountByPlayer(player uuid.UUID) *pipeline.Future[Counts] {
	return pipeline.Go(s.reads, "count by player", func(ctx context.Context) (Counts, error) {
		var (
			c   Counts
			err error
		)
		if c.Messages, err = s.store.CountChatByPlayer(ctx, player); err != nil {
			return Counts{}, err
		}
		if c.Commands, err = s.store.CountCommandsByPlayer(ctx, player); err != nil {
			return Counts{}, err
		}
		return c, nil
	})
}

// PlayerPage is one page of the player browser.
type PlayerPage struct {
	Players []model.Player `json:"players"`
	Page    int            `json:"page"`
	MaxPage int            `json:"max_page"`
	Total   int64          `json:"total"`
}

// Players lists known players. MaxPage is computed from the player count at
// the time of the request and may be stale by the time the next page is read.
func (s *Service) Players(page int) *pipeline.Future[PlayerPage] {
	p := Page{Number: clampNumber(page), Size: PlayersPageSize}
	return pipeline.Go(s.reads, "players", func(ctx context.Context) (PlayerPage, error) {
		total, err := s.store.CountPlayers(ctx)
		if err != nil {
			return PlayerPage{}, err
		}
		players, err := s.store.Players(ctx, p.Limit(), p.Offset())
		if err != nil {
			return PlayerPage{}, err
		}
		return PlayerPage{Players: players, Page: p.Number, MaxPage: PageCount(total, p.Size), Total: total}, nil
	})
}

// ResolvePlayer accepts a UUID or the last known name of a player.
func (s *Service) ResolvePlayer(nameOrID string) *pipeline.Future[model.Identity] {
	return pipeline.Go(s.reads, "resolve player", func(ctx context.Context) (model.Identity, error) {
		if id, err := uuid.Parse(nameOrID); err == nil {
			found, err := s.store.ResolvePlayerByID(ctx, id)
			if errors.Is(err, store.ErrPlayerNotFound) {
				return model.Identity{ID: id}, nil
			}
			return found, err
		}
		id, err := s.store.ResolvePlayer(ctx, nameOrID)
		if err != nil {
			return model.Identity{}, fmt.Errorf("resolve %s: %w", nameOrID, err)
		}
		return id, nil
	})
}
