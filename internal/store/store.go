package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/reedfamily/chatlog/internal/config"
	"github.com/reedfamily/chatlog/internal/db"
	"github.com/reedfamily/chatlog/internal/model"
)

var (
	ErrViewUnavailable = errors.New("enriched chat view unavailable")
	ErrPlayerNotFound  = errors.New("player not found")
)

// Store is the SQL access layer shared by the write pipeline and the query
// service. Every call borrows one pooled connection and releases it before
// returning.
type Store struct {
	db      *sql.DB
	dialect db.Dialect
	schema  db.Schema
	log     *slog.Logger
	timeout time.Duration
	leak    time.Duration
}

func New(conn *sql.DB, dialect db.Dialect, schema db.Schema, pool config.Pool, log *slog.Logger) *Store {
	return &Store{
		db:      conn,
		dialect: dialect,
		schema:  schema,
		log:     log,
		timeout: pool.ConnectionTimeout,
		leak:    pool.LeakDetectionThreshold,
	}
}

func (s *Store) Schema() db.Schema {
	return s.schema
}

func (s *Store) Stats() sql.DBStats {
	return s.db.Stats()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.run(ctx, "ping", func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

// run bounds fn by the connection timeout and warns when it holds its
// connection past the leak detection threshold.
func (s *Store) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	start := time.Now()
	err := fn(ctx)
	if elapsed := time.Since(start); s.leak > 0 && elapsed > s.leak {
		s.log.Warn("connection held past leak threshold", "op", op, "elapsed", elapsed)
	}
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const insertChat = `INSERT INTO chat_messages (` + chatColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertChatMessage(ctx context.Context, ex execer, m model.ChatMessage) error {
	args := []any{m.ID.String(), m.Server, m.World, m.Player.ID.String(), m.Player.Name, m.Content, string(m.Type), m.Channel}
	args = append(args, locationArgs(m.Location)...)
	args = append(args, identityArgs(m.Recipient)...)
	args = append(args, m.Cancelled, metadataArg(m.Metadata), ts(m.At))
	_, err := ex.ExecContext(ctx, insertChat, args...)
	return err
}

const insertCommand = `INSERT INTO command_logs (` + commandColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func insertCommandLog(ctx context.Context, ex execer, c model.CommandLog) error {
	args := []any{c.ID.String(), c.Server, string(c.Source)}
	args = append(args, identityArgs(c.Player)...)
	args = append(args, c.Command, nullString(c.World))
	args = append(args, locationArgs(c.Location)...)
	args = append(args, c.Cancelled, metadataArg(c.Metadata), ts(c.At))
	_, err := ex.ExecContext(ctx, insertCommand, args...)
	return err
}

func (s *Store) InsertChatMessage(ctx context.Context, m model.ChatMessage) error {
	return s.run(ctx, "insert chat", func(ctx context.Context) error {
		if err := insertChatMessage(ctx, s.db, m); err != nil {
			return fmt.Errorf("insert chat message %s: %w", m.ID, err)
		}
		return nil
	})
}

func (s *Store) InsertCommandLog(ctx context.Context, c model.CommandLog) error {
	return s.run(ctx, "insert command", func(ctx context.Context) error {
		if err := insertCommandLog(ctx, s.db, c); err != nil {
			return fmt.Errorf("insert command log %s: %w", c.ID, err)
		}
		return nil
	})
}

// InsertBatch writes chat messages and command logs in one transaction.
// Either every row is committed or none is.
func (s *Store) InsertBatch(ctx context.Context, msgs []model.ChatMessage, cmds []model.CommandLog) error {
	return s.inTx(ctx, "insert batch", func(ctx context.Context, tx *sql.Tx) error {
		for _, m := range msgs {
			if err := insertChatMessage(ctx, tx, m); err != nil {
				return fmt.Errorf("insert chat message %s: %w", m.ID, err)
			}
		}
		for _, c := range cmds {
			if err := insertCommandLog(ctx, tx, c); err != nil {
				return fmt.Errorf("insert command log %s: %w", c.ID, err)
			}
		}
		return nil
	})
}

func (s *Store) InsertChatMessages(ctx context.Context, msgs []model.ChatMessage) error {
	return s.InsertBatch(ctx, msgs, nil)
}

func (s *Store) InsertCommandLogs(ctx context.Context, cmds []model.CommandLog) error {
	return s.InsertBatch(ctx, nil, cmds)
}

func (s *Store) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return s.run(ctx, op, func(ctx context.Context) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin: %w", err)
		}
		if err := fn(ctx, tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.log.Error("rollback failed", "op", op, "error", rbErr)
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		return nil
	})
}

// OpenSession starts a session for the player, first ending any session the
// player still has open on the same server one microsecond before the new
// login. A player has at most one open session per server and sessions never
// overlap.
func (s *Store) OpenSession(ctx context.Context, ps model.PlayerSession) error {
	return s.inTx(ctx, "open session", func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE player_sessions SET logout_time = ?
			WHERE player_uuid = ? AND server_name = ? AND logout_time IS NULL`,
			ts(ps.LoginAt.Add(-time.Microsecond)), ps.Player.ID.String(), ps.Server,
		); err != nil {
			return fmt.Errorf("end previous session for %s: %w", ps.Player.Name, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO player_sessions (session_uuid, player_uuid, player_name, server_name, login_time, ip_address, client_brand)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ps.ID.String(), ps.Player.ID.String(), ps.Player.Name, ps.Server, ts(ps.LoginAt),
			nullString(ps.IPAddress), nullString(ps.ClientBrand),
		); err != nil {
			return fmt.Errorf("open session for %s: %w", ps.Player.Name, err)
		}
		return nil
	})
}

// CloseSession stamps the logout time on the player's open sessions.
func (s *Store) CloseSession(ctx context.Context, player uuid.UUID, server string, at time.Time) error {
	return s.run(ctx, "close session", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`UPDATE player_sessions SET logout_time = ?
			WHERE player_uuid = ? AND server_name = ? AND logout_time IS NULL`,
			ts(at), player.String(), server,
		)
		if err != nil {
			return fmt.Errorf("close session for %s: %w", player, err)
		}
		return nil
	})
}

// CloseOpenSessions ends every session opened on the server before at and
// still open, used when the server itself starts or stops.
func (s *Store) CloseOpenSessions(ctx context.Context, server string, at time.Time) (int64, error) {
	var n int64
	err := s.run(ctx, "close open sessions", func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE player_sessions SET logout_time = ?
			WHERE server_name = ? AND logout_time IS NULL AND login_time < ?`,
			ts(at), server, ts(at),
		)
		if err != nil {
			return fmt.Errorf("close open sessions: %w", err)
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

func (s *Store) InsertServerEvent(ctx context.Context, ev model.ServerEvent) error {
	return s.run(ctx, "insert server event", func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO server_events (event_uuid, server_name, event_type, message, severity, metadata_json, logged_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ev.ID.String(), ev.Server, string(ev.Type), ev.Message, string(ev.Severity), metadataArg(ev.Metadata), ts(ev.At),
		)
		if err != nil {
			return fmt.Errorf("insert server event: %w", err)
		}
		return nil
	})
}

func (s *Store) ServerEvents(ctx context.Context, server string, limit, offset int) ([]model.ServerEvent, error) {
	var events []model.ServerEvent
	err := s.run(ctx, "server events", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT event_uuid, server_name, event_type, message, severity, metadata_json, logged_at
			FROM server_events WHERE server_name = ?
			ORDER BY logged_at DESC, id DESC LIMIT ? OFFSET ?`,
			server, limit, offset,
		)
		if err != nil {
			return fmt.Errorf("query server events: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				ev   model.ServerEvent
				meta sql.NullString
				at   dbTime
			)
			if err := rows.Scan(&ev.ID, &ev.Server, &ev.Type, &ev.Message, &ev.Severity, &meta, &at); err != nil {
				return fmt.Errorf("scan server event: %w", err)
			}
			ev.Metadata = metadataValue(meta)
			ev.At = at.Time
			events = append(events, ev)
		}
		return rows.Err()
	})
	return events, err
}

// Sessions lists a player's sessions, most recent login first.
func (s *Store) Sessions(ctx context.Context, player uuid.UUID, limit, offset int) ([]model.PlayerSession, error) {
	var sessions []model.PlayerSession
	err := s.run(ctx, "sessions", func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx,
			`SELECT session_uuid, player_uuid, player_name, server_name, login_time, logout_time, ip_address, client_brand
			FROM player_sessions WHERE player_uuid = ?
			ORDER BY login_time DESC, id DESC LIMIT ? OFFSET ?`,
			player.String(), limit, offset,
		)
		if err != nil {
			return fmt.Errorf("query sessions: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var (
				ps            model.PlayerSession
				login, logout dbTime
				ip, brand     sql.NullString
			)
			if err := rows.Scan(&ps.ID, &ps.Player.ID, &ps.Player.Name, &ps.Server, &login, &logout, &ip, &brand); err != nil {
				return fmt.Errorf("scan session: %w", err)
			}
			ps.LoginAt = login.Time
			ps.LogoutAt = logout.ptr()
			ps.IPAddress = ip.String
			ps.ClientBrand = brand.String
			sessions = append(sessions, ps)
		}
		return rows.Err()
	})
	return sessions, err
}
