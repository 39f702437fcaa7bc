// Package chatstore caches the chat list in SQLite so it can be shown
// before the session is ready.
package chatstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danhigham/tgcore/internal/domain"
)

type Store struct {
	db *sql.DB
}

// Open opens (or creates) the cache at path.
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS chats (
		position     INTEGER NOT NULL,
		id           INTEGER PRIMARY KEY,
		title        TEXT NOT NULL,
		unread       INTEGER NOT NULL DEFAULT 0,
		msg_id       INTEGER,
		msg_sender   TEXT,
		msg_text     TEXT,
		msg_markdown TEXT,
		msg_date     TEXT,
		msg_out      INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_chats_position ON chats(position);
	`)
	return err
}

// Save replaces the cached list with chats, keeping their order.
func (s *Store) Save(ctx context.Context, chats []domain.Chat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chats`); err != nil {
		return fmt.Errorf("clear chats: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chats (position, id, title, unread, msg_id, msg_sender, msg_text, msg_markdown, msg_date, msg_out)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, c := range chats {
		var (
			msgID                  sql.NullInt64
			sender, text, md, date sql.NullString
			out                    sql.NullBool
		)
		if m := c.LastMessage; m != nil {
			msgID = sql.NullInt64{Int64: int64(m.ID), Valid: true}
			sender = sql.NullString{String: m.SenderName, Valid: true}
			text = sql.NullString{String: m.Text, Valid: true}
			md = sql.NullString{String: m.Markdown, Valid: true}
			date = sql.NullString{String: m.Date.UTC().Format(time.RFC3339Nano), Valid: true}
			out = sql.NullBool{Bool: m.Out, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, i, c.ID, c.Title, c.UnreadCount, msgID, sender, text, md, date, out); err != nil {
			return fmt.Errorf("insert chat %d: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Load returns the cached list in saved order.
func (s *Store) Load(ctx context.Context) ([]domain.Chat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, unread, msg_id, msg_sender, msg_text, msg_markdown, msg_date, msg_out
		FROM chats ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query chats: %w", err)
	}
	defer rows.Close()

	var chats []domain.Chat
	for rows.Next() {
		var (
			c                      domain.Chat
			msgID                  sql.NullInt64
			sender, text, md, date sql.NullString
			out                    sql.NullBool
		)
		if err := rows.Scan(&c.ID, &c.Title, &c.UnreadCount, &msgID, &sender, &text, &md, &date, &out); err != nil {
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		if msgID.Valid {
			t, err := time.Parse(time.RFC3339Nano, date.String)
			if err != nil {
				return nil, fmt.Errorf("chat %d: parse date: %w", c.ID, err)
			}
			c.LastMessage = &domain.Message{
				ID:         int(msgID.Int64),
				ChatID:     c.ID,
				SenderName: sender.String,
				Text:       text.String,
				Markdown:   md.String,
				Date:       t,
				Out:        out.Bool,
			}
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}
