package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"otp-verification-service/internal/account/domain"
)

type accountRow struct {
	ID            string `db:"id"`
	Username      string `db:"username"`
	Email         string `db:"email"`
	StatusCode    string `db:"status_code"`
	StatusName    string `db:"status_name"`
	IsDeleted     bool   `db:"is_deleted"`
	IsDeactivated bool   `db:"is_deactivated"`
}

// PostgresRepository reads accounts joined with their status label.
type PostgresRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresRepository returns an account repository that uses the given db (opened with the pgx driver).
func NewPostgresRepository(db *sql.DB, timeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: sqlx.NewDb(db, "pgx"), timeout: timeout}
}

// ResolveByIdentifier returns the account for an email or username, or nil if not found.
// Non-deleted rows win over deleted ones sharing the identifier.
func (r *PostgresRepository) ResolveByIdentifier(ctx context.Context, identifier string) (*domain.Account, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	identifier = strings.TrimSpace(identifier)
	var row accountRow
	err := r.db.GetContext(ctx, &row, `SELECT a.id, a.username, a.email, a.status_code, s.status_name,
			a.is_deleted, a.is_deactivated
		FROM accounts a
		JOIN account_statuses s ON s.status_code = a.status_code
		WHERE lower(a.email) = lower($1) OR a.username = $1
		ORDER BY a.is_deleted ASC, a.created_at DESC
		LIMIT 1`, identifier)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: resolve account: %v", ErrStoreUnavailable, err)
	}
	return &domain.Account{
		ID:            row.ID,
		Username:      row.Username,
		Email:         row.Email,
		StatusCode:    row.StatusCode,
		StatusName:    row.StatusName,
		IsDeleted:     row.IsDeleted,
		IsDeactivated: row.IsDeactivated,
	}, nil
}
