package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Magnec/chatspace/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NotificationStore struct {
	pool *pgxpool.Pool
}

func NewNotificationStore(pool *pgxpool.Pool) *NotificationStore {
	return &NotificationStore{pool: pool}
}

func (s *NotificationStore) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, sender_id, room_id, message_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id, created_at`

	err := s.pool.QueryRow(ctx, query, n.UserID, n.SenderID, n.RoomID, n.MessageID, n.Body).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *NotificationStore) CountRecentForUser(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	query := `
		SELECT count(*)
		FROM notifications
		WHERE user_id = $1 AND created_at >= $2`

	var count int
	if err := s.pool.QueryRow(ctx, query, userID, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return count, nil
}
