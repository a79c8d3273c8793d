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

type UserStore struct {
	pool *pgxpool.Pool
}

func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, username, display_name, avatar_url, password_hash, is_admin, created_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.DisplayName,
		&u.AvatarURL,
		&u.PasswordHash,
		&u.IsAdmin,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *UserStore) GetByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// GetByUsername resolves an exact username. Used for login and for
// @mention resolution; both need the exact name, no fuzzy matching.
func (s *UserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	u, err := scanUser(s.pool.QueryRow(ctx, query, username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return u, nil
}

func (s *UserStore) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`

	rows, err := s.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0, len(ids))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

func (s *UserStore) ListRecentPosters(ctx context.Context, roomID uuid.UUID, since time.Time, queryStr string) ([]models.User, error) {
	query := `
		SELECT DISTINCT ` + userColumns + `
		FROM users
		JOIN messages m ON m.sender_id = users.id
		WHERE m.room_id = $1 AND m.created_at >= $2 AND m.status = 1
		  AND ($3 = '' OR username ILIKE '%' || $3 || '%')
		ORDER BY username ASC`

	rows, err := s.pool.Query(ctx, query, roomID, since, queryStr)
	if err != nil {
		return nil, fmt.Errorf("list recent posters: %w", err)
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}
