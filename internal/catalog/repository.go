package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrBankNotFound is returned for unknown bank ids.
	ErrBankNotFound = errors.New("bank not found")
	// ErrCountryNotFound is returned for unknown country ids.
	ErrCountryNotFound = errors.New("country not found")
)

// Repository is the read side of the bank directory.
type Repository interface {
	GetBank(ctx context.Context, id int64) (Bank, error)
	GetCountry(ctx context.Context, id int64) (Country, error)
	ListCountries(ctx context.Context, activeOnly bool) ([]Country, error)
	// ListBanks returns banks of countryID, or of every country when countryID is 0.
	ListBanks(ctx context.Context, countryID int64, activeOnly bool) ([]Bank, error)
}

// PostgresRepository reads the directory from PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a Postgres-backed directory.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetBank fetches a bank by id.
func (r *PostgresRepository) GetBank(ctx context.Context, id int64) (Bank, error) {
	row := r.db.QueryRow(ctx, `SELECT id, country_id, bank_name, requisites_text, is_active
        FROM banks WHERE id = $1`, id)
	var b Bank
	if err := row.Scan(&b.ID, &b.CountryID, &b.DisplayName, &b.RequisitesText, &b.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bank{}, ErrBankNotFound
		}
		return Bank{}, fmt.Errorf("get bank %d: %w", id, err)
	}
	return b, nil
}

// GetCountry fetches a country by id.
func (r *PostgresRepository) GetCountry(ctx context.Context, id int64) (Country, error) {
	row := r.db.QueryRow(ctx, `SELECT id, name, is_active FROM countries WHERE id = $1`, id)
	var c Country
	if err := row.Scan(&c.ID, &c.Name, &c.IsActive); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Country{}, ErrCountryNotFound
		}
		return Country{}, fmt.Errorf("get country %d: %w", id, err)
	}
	return c, nil
}

// ListCountries returns countries ordered by name.
func (r *PostgresRepository) ListCountries(ctx context.Context, activeOnly bool) ([]Country, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, is_active FROM countries
        WHERE ($1 = false OR is_active) ORDER BY name`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list countries: %w", err)
	}
	countries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Country, error) {
		var c Country
		err := row.Scan(&c.ID, &c.Name, &c.IsActive)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan countries: %w", err)
	}
	return countries, nil
}

// ListBanks returns banks ordered by display name.
func (r *PostgresRepository) ListBanks(ctx context.Context, countryID int64, activeOnly bool) ([]Bank, error) {
	rows, err := r.db.Query(ctx, `SELECT id, country_id, bank_name, requisites_text, is_active FROM banks
        WHERE ($1 = 0 OR country_id = $1) AND ($2 = false OR is_active)
        ORDER BY bank_name`, countryID, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list banks: %w", err)
	}
	banks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Bank, error) {
		var b Bank
		err := row.Scan(&b.ID, &b.CountryID, &b.DisplayName, &b.RequisitesText, &b.IsActive)
		return b, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan banks: %w", err)
	}
	return banks, nil
}
