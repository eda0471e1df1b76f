// Package store persists ingested messages in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/shineum/mailthread/internal/ingest"
)

// ErrNotFound is returned when no message matches a lookup.
var ErrNotFound = errors.New("message not found")

// SQLiteStore stores messages and their attachments in a SQLite database.
// It implements ingest.Sink.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ ingest.Sink = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path, enables WAL mode
// and applies pending migrations. ":memory:" opens a private in-memory
// database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	current := 0

	var tables int
	err := s.db.Get(&tables, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'")
	if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	}
	if tables > 0 {
		if err := s.db.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("failed to apply migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// messageRow is the messages table layout.
type messageRow struct {
	ID         string    `db:"id"`
	BoardID    string    `db:"board_id"`
	CardID     string    `db:"card_id"`
	MessageID  string    `db:"message_id"`
	InReplyTo  string    `db:"in_reply_to"`
	Refs       string    `db:"refs"`
	From       string    `db:"from_addr"`
	FromName   string    `db:"from_name"`
	To         string    `db:"to_addrs"`
	Cc         string    `db:"cc_addrs"`
	Subject    string    `db:"subject"`
	SentAt     time.Time `db:"sent_at"`
	ReceivedAt time.Time `db:"received_at"`
	HTML       string    `db:"html"`
	MainHTML   string    `db:"main_html"`
	QuotedHTML string    `db:"quoted_html"`
	Styles     string    `db:"styles"`
	Text       string    `db:"text"`
	MainText   string    `db:"main_text"`
	QuotedText string    `db:"quoted_text"`
}

// Save inserts msg, replacing any earlier copy with the same ID along with
// its attachments.
func (s *SQLiteStore) Save(ctx context.Context, msg *ingest.Message) error {
	refs, err := marshalList(msg.References)
	if err != nil {
		return fmt.Errorf("failed to encode references of %s: %w", msg.ID, err)
	}
	to, err := marshalList(msg.To)
	if err != nil {
		return fmt.Errorf("failed to encode recipients of %s: %w", msg.ID, err)
	}
	cc, err := marshalList(msg.Cc)
	if err != nil {
		return fmt.Errorf("failed to encode cc of %s: %w", msg.ID, err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.NamedExecContext(ctx, `
		INSERT OR REPLACE INTO messages (
			id, board_id, card_id, message_id, in_reply_to, refs,
			from_addr, from_name, to_addrs, cc_addrs, subject,
			sent_at, received_at,
			html, main_html, quoted_html, styles,
			text, main_text, quoted_text
		) VALUES (
			:id, :board_id, :card_id, :message_id, :in_reply_to, :refs,
			:from_addr, :from_name, :to_addrs, :cc_addrs, :subject,
			:sent_at, :received_at,
			:html, :main_html, :quoted_html, :styles,
			:text, :main_text, :quoted_text
		)`,
		messageRow{
			ID:         msg.ID,
			BoardID:    msg.BoardID,
			CardID:     msg.CardID,
			MessageID:  msg.MessageID,
			InReplyTo:  msg.InReplyTo,
			Refs:       refs,
			From:       msg.From,
			FromName:   msg.FromName,
			To:         to,
			Cc:         cc,
			Subject:    msg.Subject,
			SentAt:     msg.SentAt.UTC(),
			ReceivedAt: msg.ReceivedAt.UTC(),
			HTML:       msg.HTML,
			MainHTML:   msg.MainHTML,
			QuotedHTML: msg.QuotedHTML,
			Styles:     msg.Styles,
			Text:       msg.Text,
			MainText:   msg.MainText,
			QuotedText: msg.QuotedText,
		})
	if err != nil {
		return fmt.Errorf("failed to save message %s: %w", msg.ID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM attachments WHERE message_id = ?", msg.ID); err != nil {
		return fmt.Errorf("failed to clear attachments of %s: %w", msg.ID, err)
	}
	for i, a := range msg.Attachments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attachments (
				id, message_id, position, filename, mime_type, content_id, inline, size, content
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, msg.ID, i, a.Filename, a.MimeType, a.ContentID, a.Inline, a.Size, a.Content,
		)
		if err != nil {
			return fmt.Errorf("failed to save attachment %s of %s: %w", a.ID, msg.ID, err)
		}
	}

	return tx.Commit()
}

// Get returns the message with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*ingest.Message, error) {
	var row messageRow
	err := s.db.GetContext(ctx, &row, "SELECT * FROM messages WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", id, err)
	}
	return s.load(ctx, row)
}

// ListByCard returns a card's messages, oldest first.
func (s *SQLiteStore) ListByCard(ctx context.Context, boardID, cardID string) ([]*ingest.Message, error) {
	var rows []messageRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM messages WHERE board_id = ? AND card_id = ? ORDER BY sent_at, received_at",
		boardID, cardID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages of card %s: %w", cardID, err)
	}

	out := make([]*ingest.Message, 0, len(rows))
	for _, row := range rows {
		msg, err := s.load(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, msg)
	}
	return out, nil
}

// Latest returns the most recent message on a card.
func (s *SQLiteStore) Latest(ctx context.Context, boardID, cardID string) (*ingest.Message, error) {
	var row messageRow
	err := s.db.GetContext(ctx, &row,
		"SELECT * FROM messages WHERE board_id = ? AND card_id = ? ORDER BY sent_at DESC, received_at DESC LIMIT 1",
		boardID, cardID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest message of card %s: %w", cardID, err)
	}
	return s.load(ctx, row)
}

func (s *SQLiteStore) load(ctx context.Context, row messageRow) (*ingest.Message, error) {
	msg := &ingest.Message{
		ID:         row.ID,
		BoardID:    row.BoardID,
		CardID:     row.CardID,
		MessageID:  row.MessageID,
		InReplyTo:  row.InReplyTo,
		From:       row.From,
		FromName:   row.FromName,
		Subject:    row.Subject,
		SentAt:     row.SentAt.UTC(),
		ReceivedAt: row.ReceivedAt.UTC(),
		HTML:       row.HTML,
		MainHTML:   row.MainHTML,
		QuotedHTML: row.QuotedHTML,
		Styles:     row.Styles,
		Text:       row.Text,
		MainText:   row.MainText,
		QuotedText: row.QuotedText,
	}
	for _, f := range []struct {
		src string
		dst *[]string
	}{
		{row.Refs, &msg.References},
		{row.To, &msg.To},
		{row.Cc, &msg.Cc},
	} {
		if err := json.Unmarshal([]byte(f.src), f.dst); err != nil {
			return nil, fmt.Errorf("failed to decode message %s: %w", row.ID, err)
		}
	}

	err := s.db.SelectContext(ctx, &msg.Attachments, `
		SELECT id, message_id, filename, mime_type, content_id, inline, size, content
		FROM attachments WHERE message_id = ? ORDER BY position`, row.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load attachments of %s: %w", row.ID, err)
	}
	return msg, nil
}

// marshalList encodes a string list, storing nil as an empty array.
func marshalList(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	b, err := json.Marshal(list)
	return string(b), err
}
