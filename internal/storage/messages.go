package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/flowpbx/voicemail/internal/mailbox"
)

// MessageRepository implements mailbox.MessageStore on SQLite.
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a message repository.
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Insert stores a message metadata row. A duplicate message ID within the
// same mailbox overwrites the earlier row.
func (r *MessageRepository) Insert(ctx context.Context, box string, msg *mailbox.Message) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO voicemail_messages
		 (mailbox, message_id, caller_id, timestamp, duration, file_path, listened, listened_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, 0, NULL, datetime('now'))`,
		box, msg.ID, msg.CallerID, msg.Timestamp, msg.Duration, msg.FilePath,
	)
	if err != nil {
		return fmt.Errorf("inserting voicemail message: %w", err)
	}
	return nil
}

// List returns a mailbox's messages in arrival order (oldest first). With
// unreadOnly, only messages not yet marked listened are returned.
func (r *MessageRepository) List(ctx context.Context, box string, unreadOnly bool) ([]mailbox.Message, error) {
	query := `SELECT message_id, caller_id, timestamp, duration, file_path, listened
		 FROM voicemail_messages WHERE mailbox = ?`
	if unreadOnly {
		query += ` AND listened = 0`
	}
	query += ` ORDER BY timestamp ASC, rowid ASC`

	rows, err := r.db.QueryContext(ctx, query, box)
	if err != nil {
		return nil, fmt.Errorf("querying voicemail messages: %w", err)
	}
	defer rows.Close()

	var msgs []mailbox.Message
	for rows.Next() {
		var m mailbox.Message
		if err := rows.Scan(&m.ID, &m.CallerID, &m.Timestamp, &m.Duration,
			&m.FilePath, &m.Listened); err != nil {
			return nil, fmt.Errorf("scanning voicemail message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// MarkListened flags a message as listened.
func (r *MessageRepository) MarkListened(ctx context.Context, box, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE voicemail_messages SET listened = 1, listened_at = datetime('now')
		 WHERE mailbox = ? AND message_id = ?`, box, id)
	if err != nil {
		return fmt.Errorf("marking voicemail message listened: %w", err)
	}
	return nil
}

// Delete removes a message row, returning its file path and whether a row
// existed.
func (r *MessageRepository) Delete(ctx context.Context, box, id string) (string, bool, error) {
	var path string
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM voicemail_messages WHERE mailbox = ? AND message_id = ?
		 RETURNING file_path`, box, id).Scan(&path)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("deleting voicemail message: %w", err)
	}
	return path, true, nil
}

// DeleteExpired removes messages with a timestamp before the cutoff
// across all mailboxes and returns their file paths.
func (r *MessageRepository) DeleteExpired(ctx context.Context, before time.Time) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`DELETE FROM voicemail_messages WHERE timestamp < ? RETURNING file_path`, before)
	if err != nil {
		return nil, fmt.Errorf("deleting expired voicemail messages: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning deleted message path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// Ensure the repository satisfies the mailbox contract.
var _ mailbox.MessageStore = (*MessageRepository)(nil)
