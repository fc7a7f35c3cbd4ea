package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/reedfamily/chatlog/internal/model"
)

// ForEachChatBefore streams every chat message captured before cutoff, oldest
// first. It stops at the first error returned by fn.
func (s *Store) ForEachChatBefore(ctx context.Context, cutoff time.Time, fn func(model.ChatMessage) error) error {
	return s.forEach(ctx, "export chat",
		`SELECT `+chatColumns+` FROM chat_messages WHERE logged_at < ? ORDER BY logged_at, id`,
		cutoff, func(rows *sql.Rows) error {
			m, err := scanChat(rows)
			if err != nil {
				return err
			}
			return fn(m)
		})
}

func (s *Store) ForEachCommandBefore(ctx context.Context, cutoff time.Time, fn func(model.CommandLog) error) error {
	return s.forEach(ctx, "export commands",
		`SELECT `+commandColumns+` FROM command_logs WHERE logged_at < ? ORDER BY logged_at, id`,
		cutoff, func(rows *sql.Rows) error {
			c, err := scanCommand(rows)
			if err != nil {
				return err
			}
			return fn(c)
		})
}

// exports may take a while, so they are not bound by the connection timeout
func (s *Store) forEach(ctx context.Context, op, query string, cutoff time.Time, each func(*sql.Rows) error) error {
	rows, err := s.db.QueryContext(ctx, query, ts(cutoff))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	for rows.Next() {
		if err := each(rows); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return rows.Err()
}

// Purged counts the rows removed by DeleteBefore.
type Purged struct {
	Chat     int64 `json:"chat_messages"`
	Commands int64 `json:"command_logs"`
	Sessions int64 `json:"player_sessions"`
}

// DeleteBefore removes chat messages, command logs and closed sessions older
// than cutoff in a single transaction.
func (s *Store) DeleteBefore(ctx context.Context, cutoff time.Time) (Purged, error) {
	var p Purged
	err := s.inTx(ctx, "purge", func(ctx context.Context, tx *sql.Tx) error {
		var err error
		if p.Chat, err = deleteRows(ctx, tx, `DELETE FROM chat_messages WHERE logged_at < ?`, cutoff); err != nil {
			return fmt.Errorf("purge chat: %w", err)
		}
		if p.Commands, err = deleteRows(ctx, tx, `DELETE FROM command_logs WHERE logged_at < ?`, cutoff); err != nil {
			return fmt.Errorf("purge commands: %w", err)
		}
		if p.Sessions, err = deleteRows(ctx, tx, `DELETE FROM player_sessions WHERE logout_time IS NOT NULL AND logout_time < ?`, cutoff); err != nil {
			return fmt.Errorf("purge sessions: %w", err)
		}
		return nil
	})
	return p, err
}

func deleteRows(ctx context.Context, tx *sql.Tx, query string, cutoff time.Time) (int64, error) {
	res, err := tx.ExecContext(ctx, query, ts(cutoff))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
