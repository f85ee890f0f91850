package notification

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Record is a notification stored for a user's in-app inbox.
type Record struct {
	ID        int64
	UserID    int64
	Kind      string
	Title     string
	Message   string
	IsRead    bool
	Data      map[string]any
	CreatedAt time.Time
}

// Repository persists inbox records.
type Repository interface {
	Create(ctx context.Context, rec Record) (Record, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]Record, error)
	UnreadCount(ctx context.Context, userID int64) (int, error)
	// MarkRead flags the record as read if it belongs to userID.
	MarkRead(ctx context.Context, id, userID int64) (bool, error)
}

// PostgresRepository keeps the inbox in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed inbox.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, rec Record) (Record, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO notifications (user_tg_id, type, title, message, is_read, data, created_at)
        VALUES ($1, $2, $3, $4, false, $5, $6) RETURNING id`,
		rec.UserID, rec.Kind, rec.Title, rec.Message, rec.Data, rec.CreatedAt.UTC()).Scan(&rec.ID)
	if err != nil {
		return Record{}, fmt.Errorf("insert notification: %w", err)
	}
	return rec, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]Record, error) {
	rows, err := r.db.Query(ctx, `SELECT id, user_tg_id, type, title, message, is_read, data, created_at
        FROM notifications WHERE user_tg_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	recs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var rec Record
		err := row.Scan(&rec.ID, &rec.UserID, &rec.Kind, &rec.Title, &rec.Message, &rec.IsRead, &rec.Data, &rec.CreatedAt)
		rec.CreatedAt = rec.CreatedAt.UTC()
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan notifications: %w", err)
	}
	return recs, nil
}

func (r *PostgresRepository) UnreadCount(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE user_tg_id = $1 AND NOT is_read`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) MarkRead(ctx context.Context, id, userID int64) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE notifications SET is_read = true WHERE id = $1 AND user_tg_id = $2`, id, userID)
	if err != nil {
		return false, fmt.Errorf("mark notification %d read: %w", id, err)
	}
	return cmd.RowsAffected() == 1, nil
}

type memoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	records map[int64]Record
}

// NewMemoryRepository builds an in-memory inbox for tests and local runs.
func NewMemoryRepository() Repository {
	return &memoryRepository{records: make(map[int64]Record)}
}

func (r *memoryRepository) Create(_ context.Context, rec Record) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	rec.ID = r.nextID
	r.records[rec.ID] = rec
	return rec, nil
}

func (r *memoryRepository) ListByUser(_ context.Context, userID int64, limit int) ([]Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Record{}
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepository) UnreadCount(_ context.Context, userID int64) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rec := range r.records {
		if rec.UserID == userID && !rec.IsRead {
			n++
		}
	}
	return n, nil
}

func (r *memoryRepository) MarkRead(_ context.Context, id, userID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.UserID != userID {
		return false, nil
	}
	rec.IsRead = true
	r.records[id] = rec
	return true, nil
}
