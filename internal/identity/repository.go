package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound is returned when no user has the requested id.
var ErrUserNotFound = errors.New("user not found")

// Repository persists users.
type Repository interface {
	// Upsert inserts user unless a record with the same ExternalID exists.
	// Existing records are left untouched.
	Upsert(ctx context.Context, user User) error
	FindByID(ctx context.Context, id int64) (User, error)
}

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed identity repository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Upsert inserts the user if absent.
func (r *PostgresRepository) Upsert(ctx context.Context, user User) error {
	_, err := r.db.Exec(ctx, `INSERT INTO users (tg_id, username, role, balance_minor, referral_code, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)
        ON CONFLICT (tg_id) DO NOTHING`,
		user.ExternalID, user.Username, user.Role, user.Balance, user.ReferralCode, user.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert user %d: %w", user.ExternalID, err)
	}
	return nil
}

// FindByID fetches a user by platform id.
func (r *PostgresRepository) FindByID(ctx context.Context, id int64) (User, error) {
	row := r.db.QueryRow(ctx, `SELECT tg_id, username, role, balance_minor, referral_code, created_at
        FROM users WHERE tg_id = $1`, id)
	var (
		user      User
		createdAt time.Time
	)
	if err := row.Scan(&user.ExternalID, &user.Username, &user.Role, &user.Balance, &user.ReferralCode, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("find user %d: %w", id, err)
	}
	user.CreatedAt = createdAt.UTC()
	return user, nil
}
