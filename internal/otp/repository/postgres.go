package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"otp-verification-service/internal/otp/domain"
)

const challengeColumns = `process_id, account_id, email, purpose, code_hash, device_id, device_name,
	created_at, expires_at, verified, verified_at, valid, failed_attempts`

// challengeRow mirrors the otp_challenges table.
type challengeRow struct {
	ProcessID      string         `db:"process_id"`
	AccountID      string         `db:"account_id"`
	Email          string         `db:"email"`
	Purpose        string         `db:"purpose"`
	CodeHash       string         `db:"code_hash"`
	DeviceID       sql.NullString `db:"device_id"`
	DeviceName     sql.NullString `db:"device_name"`
	CreatedAt      time.Time      `db:"created_at"`
	ExpiresAt      time.Time      `db:"expires_at"`
	Verified       bool           `db:"verified"`
	VerifiedAt     sql.NullTime   `db:"verified_at"`
	Valid          bool           `db:"valid"`
	FailedAttempts int            `db:"failed_attempts"`
}

// PostgresRepository is the Postgres-backed challenge store.
type PostgresRepository struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewPostgresRepository returns a challenge repository that uses the given db (opened with the pgx driver).
// timeout bounds every transaction and standalone statement; zero disables the bound.
func NewPostgresRepository(db *sql.DB, timeout time.Duration) *PostgresRepository {
	return &PostgresRepository{db: sqlx.NewDb(db, "pgx"), timeout: timeout}
}

func (r *PostgresRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// InTx runs fn inside a read-committed transaction. Rows read with GetForUpdate stay locked until commit,
// so concurrent verifications of one challenge are serialized.
func (r *PostgresRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return unavailable("begin", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return unavailable("commit", err)
	}
	return nil
}

// DeleteStale removes expired or invalidated challenges.
func (r *PostgresRepository) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE expires_at < $1 OR valid = false`, now)
	if err != nil {
		return 0, unavailable("delete stale", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("delete stale", err)
	}
	return n, nil
}

type pgTx struct {
	tx *sqlx.Tx
}

func (t *pgTx) LatestActive(ctx context.Context, key domain.Key, now time.Time) (*domain.Challenge, error) {
	var row challengeRow
	err := t.tx.GetContext(ctx, &row, `SELECT `+challengeColumns+`
		FROM otp_challenges
		WHERE account_id = $1 AND email = $2 AND device_id IS NOT DISTINCT FROM $3 AND purpose = $4
		  AND valid = true AND verified = false AND expires_at > $5
		ORDER BY created_at DESC
		LIMIT 1`,
		key.AccountID, key.Email, nullString(key.DeviceID), string(key.Purpose), now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("latest active", err)
	}
	return rowToDomain(&row), nil
}

func (t *pgTx) CountByDeviceSince(ctx context.Context, deviceID string, since time.Time) (int, error) {
	var n int
	err := t.tx.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM otp_challenges WHERE device_id = $1 AND created_at > $2`, deviceID, since)
	if err != nil {
		return 0, unavailable("count by device", err)
	}
	return n, nil
}

func (t *pgTx) CountByAccountSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	var n int
	err := t.tx.GetContext(ctx, &n,
		`SELECT COUNT(*) FROM otp_challenges WHERE account_id = $1 AND created_at > $2`, accountID, since)
	if err != nil {
		return 0, unavailable("count by account", err)
	}
	return n, nil
}

func (t *pgTx) SupersedeActive(ctx context.Context, key domain.Key, now time.Time) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `UPDATE otp_challenges SET expires_at = GREATEST($5, created_at + interval '1 microsecond')
		WHERE account_id = $1 AND email = $2 AND device_id IS NOT DISTINCT FROM $3 AND purpose = $4
		  AND valid = true AND verified = false AND expires_at > $5`,
		key.AccountID, key.Email, nullString(key.DeviceID), string(key.Purpose), now)
	if err != nil {
		return 0, unavailable("supersede", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, unavailable("supersede", err)
	}
	return n, nil
}

func (t *pgTx) Create(ctx context.Context, c *domain.Challenge) error {
	_, err := t.tx.NamedExecContext(ctx, `INSERT INTO otp_challenges (`+challengeColumns+`)
		VALUES (:process_id, :account_id, :email, :purpose, :code_hash, :device_id, :device_name,
			:created_at, :expires_at, :verified, :verified_at, :valid, :failed_attempts)`,
		domainToRow(c))
	if err != nil {
		return unavailable("create", err)
	}
	return nil
}

func (t *pgTx) GetForUpdate(ctx context.Context, accountID, email, processID string) (*domain.Challenge, error) {
	var row challengeRow
	err := t.tx.GetContext(ctx, &row, `SELECT `+challengeColumns+`
		FROM otp_challenges
		WHERE process_id = $1 AND account_id = $2 AND email = $3
		FOR UPDATE`,
		processID, accountID, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, unavailable("get for update", err)
	}
	return rowToDomain(&row), nil
}

func (t *pgTx) Update(ctx context.Context, c *domain.Challenge) error {
	verifiedAt := sql.NullTime{}
	if c.VerifiedAt != nil {
		verifiedAt = sql.NullTime{Time: *c.VerifiedAt, Valid: true}
	}
	res, err := t.tx.ExecContext(ctx, `UPDATE otp_challenges
		SET verified = $2, verified_at = $3, valid = $4, failed_attempts = $5
		WHERE process_id = $1 AND valid = true AND verified = false`,
		c.ProcessID, c.Verified, verifiedAt, c.Valid, c.FailedAttempts)
	if err != nil {
		return unavailable("update", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable("update", err)
	}
	if n == 0 {
		return ErrChallengeTerminal
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func domainToRow(c *domain.Challenge) *challengeRow {
	row := &challengeRow{
		ProcessID:      c.ProcessID,
		AccountID:      c.AccountID,
		Email:          c.Email,
		Purpose:        string(c.Purpose),
		CodeHash:       c.CodeHash,
		DeviceID:       nullString(c.DeviceID),
		DeviceName:     nullString(c.DeviceName),
		CreatedAt:      c.CreatedAt,
		ExpiresAt:      c.ExpiresAt,
		Verified:       c.Verified,
		Valid:          c.Valid,
		FailedAttempts: c.FailedAttempts,
	}
	if c.VerifiedAt != nil {
		row.VerifiedAt = sql.NullTime{Time: *c.VerifiedAt, Valid: true}
	}
	return row
}

func rowToDomain(row *challengeRow) *domain.Challenge {
	c := &domain.Challenge{
		ProcessID:      row.ProcessID,
		AccountID:      row.AccountID,
		Email:          row.Email,
		Purpose:        domain.Purpose(row.Purpose),
		CodeHash:       row.CodeHash,
		CreatedAt:      row.CreatedAt.UTC(),
		ExpiresAt:      row.ExpiresAt.UTC(),
		Verified:       row.Verified,
		Valid:          row.Valid,
		FailedAttempts: row.FailedAttempts,
	}
	if row.DeviceID.Valid {
		c.DeviceID = row.DeviceID.String
	}
	if row.DeviceName.Valid {
		c.DeviceName = row.DeviceName.String
	}
	if row.VerifiedAt.Valid {
		t := row.VerifiedAt.Time.UTC()
		c.VerifiedAt = &t
	}
	return c
}
