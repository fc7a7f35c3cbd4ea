package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/reedfamily/chatlog/internal/model"
)

// All listing queries order by capture time, newest first, and break ties by
// storage order so that consecutive pages never overlap.

func (s *Store) queryChat(ctx context.Context, op, query string, args ...any) ([]model.ChatMessage, error) {
	msgs := []model.ChatMessage{}
	err := s.run(ctx, op, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanChat(rows)
			if err != nil {
				return fmt.Errorf("%s: scan: %w", op, err)
			}
			msgs = append(msgs, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

func (s *Store) ChatByPlayer(ctx context.Context, player uuid.UUID, limit, offset int) ([]model.ChatMessage, error) {
	return s.queryChat(ctx, "chat by player",
		`SELECT `+chatColumns+` FROM chat_messages WHERE player_uuid = ?
		ORDER BY logged_at DESC, id DESC LIMIT ? OFFSET ?`,
		player.String(), limit, offset,
	)
}

// ChatByTimeRange returns messages captured in [start, end].
func (s *Store) ChatByTimeRange(ctx context.Context, start, end time.Time, limit, offset int) ([]model.ChatMessage, error) {
	return s.queryChat(ctx, "chat by time range",
		`SELECT `+chatColumns+` FROM chat_messages WHERE logged_at >= ? AND logged_at <= ?
		ORDER BY logged_at DESC, id DESC LIMIT ? OFFSET ?`,
		ts(start), ts(end), limit, offset,
	)
}

// SearchChat matches term anywhere in the message content, ignoring case.
// LIKE wildcards in term match literally.
func (s *Store) SearchChat(ctx context.Context, term string, limit, offset int) ([]model.ChatMessage, error) {
	return s.queryChat(ctx, "search chat",
		`SELECT `+chatColumns+` FROM chat_messages WHERE `+s.dialect.Lower("message_content")+` LIKE ? ESCAPE '!'
		ORDER BY logged_at DESC, id DESC LIMIT ? OFFSET ?`,
		likePattern(term), limit, offset,
	)
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func likePattern(term string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
}

func (s *Store) CommandsByPlayer(ctx context.Context, player uuid.UUID, limit, offset int) ([]model.CommandLog, error) {
	cmds := []model.CommandLog{}
	err := s.run(ctx, "commands by player", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+commandColumns+` FROM command_logs WHERE player_uuid = ?
			ORDER BY logged_at DESC, id DESC LIMIT ? OFFSET ?`,
			player.String(), limit, offset,
		)
		if err != nil {
			return fmt.Errorf("commands by player: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanCommand(rows)
			if err != nil {
				return fmt.Errorf("commands by player: scan: %w", err)
			}
			cmds = append(cmds, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return cmds, nil
}

const combinedHistory = `SELECT kind, ts, body, subtype, source, world, lx, ly, lz, cancelled FROM (
	SELECT 'CHAT' AS kind, id AS seq, logged_at AS ts, message_content AS body,
		message_type AS subtype, NULL AS source, world_name AS world,
		location_x AS lx, location_y AS ly, location_z AS lz, is_cancelled AS cancelled
	FROM chat_messages WHERE player_uuid = ?
	UNION ALL
	SELECT 'COMMAND', id, logged_at, command_text,
		NULL, source_type, world_name,
		location_x, location_y, location_z, is_cancelled
	FROM command_logs WHERE player_uuid = ?
) history
ORDER BY ts DESC, seq DESC LIMIT ? OFFSET ?`

// CombinedHistory merges a player's chat and commands into one timeline.
func (s *Store) CombinedHistory(ctx context.Context, player uuid.UUID, limit, offset int) ([]model.HistoryEntry, error) {
	entries := []model.HistoryEntry{}
	err := s.run(ctx, "combined history", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, combinedHistory, player.String(), player.String(), limit, offset)
		if err != nil {
			return fmt.Errorf("combined history: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				e               model.HistoryEntry
				at              dbTime
				subtype, source sql.NullString
				world           sql.NullString
				loc             nullLocation
			)
			dest := []any{&e.Kind, &at, &e.Text, &subtype, &source, &world}
			dest = append(dest, loc.dest()...)
			dest = append(dest, &e.Cancelled)
			if err := rows.Scan(dest...); err != nil {
				return fmt.Errorf("combined history: scan: %w", err)
			}
			e.At = at.Time
			e.Subtype = model.MessageType(subtype.String)
			e.Source = model.SourceType(source.String)
			e.World = world.String
			e.Location = loc.value()
			entries = append(entries, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) count(ctx context.Context, op, query string, args ...any) (int64, error) {
	var n int64
	err := s.run(ctx, op, func(ctx context.Context) error {
		if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		return nil
	})
	return n, err
}

// CountChatByPlayer returns 0 for players with no messages.
func (s *Store) CountChatByPlayer(ctx context.Context, player uuid.UUID) (int64, error) {
	return s.count(ctx, "count chat", `SELECT COUNT(*) FROM chat_messages WHERE player_uuid = ?`, player.String())
}

func (s *Store) CountCommandsByPlayer(ctx context.Context, player uuid.UUID) (int64, error) {
	return s.count(ctx, "count commands", `SELECT COUNT(*) FROM command_logs WHERE player_uuid = ?`, player.String())
}

// EnrichedChatByPlayer reads a player's chat joined with session metadata.
// It fails with ErrViewUnavailable when the view could not be created.
func (s *Store) EnrichedChatByPlayer(ctx context.Context, player uuid.UUID, limit, offset int) ([]model.EnrichedChatMessage, error) {
	if !s.schema.EnrichedView {
		return nil, ErrViewUnavailable
	}
	msgs := []model.EnrichedChatMessage{}
	err := s.run(ctx, "enriched chat", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT `+chatColumns+`, ip_address, client_brand FROM v_chat_messages_full
			WHERE player_uuid = ? ORDER BY logged_at DESC, id DESC LIMIT ? OFFSET ?`,
			player.String(), limit, offset,
		)
		if err != nil {
			return fmt.Errorf("enriched chat: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var ip, brand sql.NullString
			m, err := scanChat(rows, &ip, &brand)
			if err != nil {
				return fmt.Errorf("enriched chat: scan: %w", err)
			}
			msgs = append(msgs, model.EnrichedChatMessage{ChatMessage: m, IPAddress: ip.String, ClientBrand: brand.String})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// ResolvePlayer finds the identity last seen under name, ignoring case.
func (s *Store) ResolvePlayer(ctx context.Context, name string) (model.Identity, error) {
	var id model.Identity
	err := s.run(ctx, "resolve player", func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx,
			`SELECT player_uuid, player_name FROM (
				SELECT player_uuid, player_name, logged_at FROM chat_messages WHERE `+s.dialect.Lower("player_name")+` = ?
				UNION ALL
				SELECT player_uuid, player_name, logged_at FROM command_logs WHERE `+s.dialect.Lower("player_name")+` = ?
			) p ORDER BY logged_at DESC LIMIT 1`,
			strings.ToLower(name), strings.ToLower(name),
		)
		if err := row.Scan(&id.ID, &id.Name); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrPlayerNotFound
			}
			return fmt.Errorf("resolve player: %w", err)
		}
		return nil
	})
	return id, err
}

// ResolvePlayerByID returns the player's most recent name.
func (s *Store) ResolvePlayerByID(ctx context.Context, player uuid.UUID) (model.Identity, error) {
	id := model.Identity{ID: player}
	err := s.run(ctx, "resolve player by id", func(ctx context.Context) error {
		row := s.db.QueryRowContext(ctx,
			`SELECT player_name FROM (
				SELECT player_name, logged_at FROM chat_messages WHERE player_uuid = ?
				UNION ALL
				SELECT player_name, logged_at FROM command_logs WHERE player_uuid = ?
			) p ORDER BY logged_at DESC LIMIT 1`,
			player.String(), player.String(),
		)
		if err := row.Scan(&id.Name); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrPlayerNotFound
			}
			return fmt.Errorf("resolve player: %w", err)
		}
		return nil
	})
	return id, err
}

// Players lists everyone who has chatted, most recently seen first.
func (s *Store) Players(ctx context.Context, limit, offset int) ([]model.Player, error) {
	players := []model.Player{}
	err := s.run(ctx, "players", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT c.player_uuid, c.player_name, c.logged_at FROM chat_messages c
			JOIN (SELECT player_uuid, MAX(id) AS last_id FROM chat_messages
				WHERE player_uuid <> ? GROUP BY player_uuid) l ON c.id = l.last_id
			ORDER BY c.logged_at DESC, c.id DESC LIMIT ? OFFSET ?`,
			uuid.Nil.String(), limit, offset,
		)
		if err != nil {
			return fmt.Errorf("players: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				p  model.Player
				at dbTime
			)
			if err := rows.Scan(&p.ID, &p.Name, &at); err != nil {
				return fmt.Errorf("players: scan: %w", err)
			}
			p.LastSeen = at.Time
			players = append(players, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return players, nil
}

func (s *Store) CountPlayers(ctx context.Context) (int64, error) {
	return s.count(ctx, "count players",
		`SELECT COUNT(DISTINCT player_uuid) FROM chat_messages WHERE player_uuid <> ?`, uuid.Nil.String())
}
