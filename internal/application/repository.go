package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RequisitesUpdate describes a manual requisites assignment. It applies only
// while the application is in From and has no requisites yet.
type RequisitesUpdate struct {
	Text      string
	SentAt    time.Time
	ExpiresAt time.Time
	From      Status
	To        Status
}

// Repository persists applications. Every mutating method is a conditional
// write: it reports false instead of overwriting a state it did not expect.
type Repository interface {
	// Create inserts app, including any requisites, in one write and returns it
	// with its assigned ID. A taken payment code yields ErrDuplicateCode.
	Create(ctx context.Context, app Application) (Application, error)
	Get(ctx context.Context, id int64) (Application, error)
	ListByOwner(ctx context.Context, ownerID int64, filter ListFilter) ([]Application, error)
	ListByStatus(ctx context.Context, statuses []Status, limit, offset int) ([]Application, error)
	// Expire moves a non-terminal application whose deadline is before now to EXPIRED.
	Expire(ctx context.Context, id int64, now time.Time) (bool, error)
	// ExpireDue expires every overdue application and returns them.
	ExpireDue(ctx context.Context, now time.Time) ([]Application, error)
	// Transition moves id from one status to another unless its deadline passed.
	Transition(ctx context.Context, id int64, from, to Status, now time.Time) (bool, error)
	SetRequisites(ctx context.Context, id int64, update RequisitesUpdate) (bool, error)
}

const uniqueViolation = "23505"

const selectColumns = `id, user_tg_id, bank_id, amount_minor, payment_code, status,
        COALESCE(requisites_text_override, ''), requisites_sent_at, expires_at, created_at, updated_at`

// PostgresRepository stores applications in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an application.
func (r *PostgresRepository) Create(ctx context.Context, app Application) (Application, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO applications
        (user_tg_id, bank_id, amount_minor, payment_code, status, requisites_text_override,
         requisites_sent_at, expires_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $9)
        RETURNING `+selectColumns,
		app.OwnerID, app.BankID, app.Amount, app.PaymentCode, string(app.Status), app.RequisitesText,
		app.RequisitesSentAt, app.ExpiresAt, app.CreatedAt.UTC())
	created, err := scanApplication(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return Application{}, ErrDuplicateCode
		}
		return Application{}, fmt.Errorf("insert application: %w", err)
	}
	return created, nil
}

// Get fetches an application by id.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (Application, error) {
	row := r.db.QueryRow(ctx, `SELECT `+selectColumns+` FROM applications WHERE id = $1`, id)
	app, err := scanApplication(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Application{}, ErrNotFound
		}
		return Application{}, fmt.Errorf("get application %d: %w", id, err)
	}
	return app, nil
}

// ListByOwner returns the owner's applications, newest first.
func (r *PostgresRepository) ListByOwner(ctx context.Context, ownerID int64, filter ListFilter) ([]Application, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectColumns+` FROM applications
        WHERE user_tg_id = $1 AND ($2 = '' OR status = $2)
        ORDER BY created_at DESC, id DESC
        LIMIT $3 OFFSET $4`, ownerID, string(filter.Status), filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return collectApplications(rows)
}

// ListByStatus returns applications in any of statuses, oldest first.
func (r *PostgresRepository) ListByStatus(ctx context.Context, statuses []Status, limit, offset int) ([]Application, error) {
	rows, err := r.db.Query(ctx, `SELECT `+selectColumns+` FROM applications
        WHERE status = ANY($1)
        ORDER BY created_at, id
        LIMIT $2 OFFSET $3`, statusStrings(statuses), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list applications by status: %w", err)
	}
	return collectApplications(rows)
}

// Expire marks one overdue application as expired.
func (r *PostgresRepository) Expire(ctx context.Context, id int64, now time.Time) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE applications SET status = $1, updated_at = $2
        WHERE id = $3 AND expires_at IS NOT NULL AND expires_at < $2 AND NOT (status = ANY($4))`,
		string(StatusExpired), now.UTC(), id, statusStrings(terminalStatuses()))
	if err != nil {
		return false, fmt.Errorf("expire application %d: %w", id, err)
	}
	return cmd.RowsAffected() == 1, nil
}

// ExpireDue marks every overdue application as expired.
func (r *PostgresRepository) ExpireDue(ctx context.Context, now time.Time) ([]Application, error) {
	rows, err := r.db.Query(ctx, `UPDATE applications SET status = $1, updated_at = $2
        WHERE expires_at IS NOT NULL AND expires_at < $2 AND NOT (status = ANY($3))
        RETURNING `+selectColumns,
		string(StatusExpired), now.UTC(), statusStrings(terminalStatuses()))
	if err != nil {
		return nil, fmt.Errorf("expire due applications: %w", err)
	}
	return collectApplications(rows)
}

// Transition moves an application between statuses.
func (r *PostgresRepository) Transition(ctx context.Context, id int64, from, to Status, now time.Time) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE applications SET status = $1, updated_at = $2
        WHERE id = $3 AND status = $4 AND (expires_at IS NULL OR expires_at >= $2)`,
		string(to), now.UTC(), id, string(from))
	if err != nil {
		return false, fmt.Errorf("transition application %d: %w", id, err)
	}
	return cmd.RowsAffected() == 1, nil
}

// SetRequisites assigns requisites and starts the expiry timer.
func (r *PostgresRepository) SetRequisites(ctx context.Context, id int64, u RequisitesUpdate) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE applications
        SET requisites_text_override = $1, requisites_sent_at = $2, expires_at = $3, status = $4, updated_at = $2
        WHERE id = $5 AND status = $6 AND requisites_text_override IS NULL`,
		u.Text, u.SentAt.UTC(), u.ExpiresAt.UTC(), string(u.To), id, string(u.From))
	if err != nil {
		return false, fmt.Errorf("set requisites on application %d: %w", id, err)
	}
	return cmd.RowsAffected() == 1, nil
}

func scanApplication(row pgx.Row) (Application, error) {
	var (
		app    Application
		status string
	)
	if err := row.Scan(&app.ID, &app.OwnerID, &app.BankID, &app.Amount, &app.PaymentCode, &status,
		&app.RequisitesText, &app.RequisitesSentAt, &app.ExpiresAt, &app.CreatedAt, &app.UpdatedAt); err != nil {
		return Application{}, err
	}
	app.Status = Status(status)
	app.CreatedAt = app.CreatedAt.UTC()
	app.UpdatedAt = app.UpdatedAt.UTC()
	app.RequisitesSentAt = utcPtr(app.RequisitesSentAt)
	app.ExpiresAt = utcPtr(app.ExpiresAt)
	return app, nil
}

func collectApplications(rows pgx.Rows) ([]Application, error) {
	apps, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Application, error) {
		return scanApplication(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan applications: %w", err)
	}
	return apps, nil
}

func terminalStatuses() []Status {
	return []Status{StatusConfirmed, StatusRejected, StatusExpired}
}

func statusStrings(statuses []Status) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
