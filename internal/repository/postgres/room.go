package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Magnec/chatspace/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RoomStore struct {
	pool *pgxpool.Pool
}

func NewRoomStore(pool *pgxpool.Pool) *RoomStore {
	return &RoomStore{pool: pool}
}

func (s *RoomStore) GetByID(ctx context.Context, roomID uuid.UUID) (*models.Room, error) {
	query := `
		SELECT id, slug, title, owner_id, visibility, created_at
		FROM rooms
		WHERE id = $1`

	var r models.Room
	err := s.pool.QueryRow(ctx, query, roomID).Scan(
		&r.ID,
		&r.Slug,
		&r.Title,
		&r.OwnerID,
		&r.Visibility,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get room: %w", err)
	}
	return &r, nil
}

func (s *RoomStore) GetBySlug(ctx context.Context, slug string) (*models.Room, error) {
	query := `
		SELECT id, slug, title, owner_id, visibility, created_at
		FROM rooms
		WHERE slug = $1`

	var r models.Room
	err := s.pool.QueryRow(ctx, query, slug).Scan(
		&r.ID,
		&r.Slug,
		&r.Title,
		&r.OwnerID,
		&r.Visibility,
		&r.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get room by slug: %w", err)
	}
	return &r, nil
}
