package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Magnec/chatspace/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

const messageColumns = `id, room_id, sender_id, body, status, created_at, edited_at, edited_by`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(
		&m.ID,
		&m.RoomID,
		&m.SenderID,
		&m.Body,
		&m.Status,
		&m.CreatedAt,
		&m.EditedAt,
		&m.EditedBy,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MessageStore) Create(ctx context.Context, roomID, senderID uuid.UUID, body string) (*models.Message, error) {
	// Messages use bigserial; Postgres assigns the next id atomically,
	// which is what guarantees strictly increasing ids per room.
	query := `
		INSERT INTO messages (room_id, sender_id, body, status, created_at)
		VALUES ($1, $2, $3, 1, now())
		RETURNING ` + messageColumns

	m, err := scanMessage(s.pool.QueryRow(ctx, query, roomID, senderID, body))
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

func (s *MessageStore) GetByID(ctx context.Context, messageID int64) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1`

	m, err := scanMessage(s.pool.QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

// ListRecent is the initial-load query: newest active messages first.
// The caller reverses the slice into display order.
func (s *MessageStore) ListRecent(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_id = $1 AND status = 1
		ORDER BY id DESC
		LIMIT $2`

	return s.list(ctx, query, roomID, limit)
}

// ListSince is the incremental query: only active messages past the
// cursor, oldest first so the client can append in order.
func (s *MessageStore) ListSince(ctx context.Context, roomID uuid.UUID, sinceID int64, limit int) ([]models.Message, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM messages
		WHERE room_id = $1 AND status = 1 AND id > $2
		ORDER BY id ASC
		LIMIT $3`

	return s.list(ctx, query, roomID, sinceID, limit)
}

func (s *MessageStore) list(ctx context.Context, query string, args ...any) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

func (s *MessageStore) UpdateBody(ctx context.Context, messageID int64, body string, editorID uuid.UUID) (*models.Message, error) {
	// Single-row update: body plus the edit stamp, everything else
	// (id, room_id, created_at) untouched.
	query := `
		UPDATE messages
		SET body = $2, edited_at = now(), edited_by = $3
		WHERE id = $1
		RETURNING ` + messageColumns

	m, err := scanMessage(s.pool.QueryRow(ctx, query, messageID, body, editorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("update message: %w", err)
	}
	return m, nil
}

func (s *MessageStore) MarkDeleted(ctx context.Context, messageID int64, actorID uuid.UUID) error {
	// Soft delete, one-way. The edited_* stamp records who removed it.
	query := `
		UPDATE messages
		SET status = 0, edited_at = now(), edited_by = $2
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, messageID, actorID)
	if err != nil {
		return fmt.Errorf("mark message deleted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// DeleteAllInRoom physically removes every message in the room. This is
// the one place hard deletion happens; it backs the admin clear-history
// action and cannot be undone.
func (s *MessageStore) DeleteAllInRoom(ctx context.Context, roomID uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM messages WHERE room_id = $1`, roomID)
	if err != nil {
		return 0, fmt.Errorf("clear room history: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *MessageStore) RecentSenderIDs(ctx context.Context, roomID uuid.UUID, since time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT sender_id
		FROM messages
		WHERE room_id = $1 AND status = 1 AND created_at >= $2`

	rows, err := s.pool.Query(ctx, query, roomID, since)
	if err != nil {
		return nil, fmt.Errorf("recent senders: %w", err)
	}
	defer rows.Close()

	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan sender id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sender ids: %w", err)
	}

	return ids, nil
}
