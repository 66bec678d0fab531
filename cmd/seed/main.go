// seed inserts development accounts for local testing. Run after migrations.
// Idempotent: existing accounts are left untouched.
package main

import (
	"context"
	"log"

	"github.com/jmoiron/sqlx"

	"otp-verification-service/internal/config"
	"otp-verification-service/internal/db"
)

type seedAccount struct {
	ID            string `db:"id"`
	Username      string `db:"username"`
	Email         string `db:"email"`
	StatusCode    string `db:"status_code"`
	IsDeleted     bool   `db:"is_deleted"`
	IsDeactivated bool   `db:"is_deactivated"`
}

// One account per admission outcome so every rejection path can be exercised by hand.
var seedAccounts = []seedAccount{
	{ID: "dev-account-001", Username: "dev", Email: "dev@example.com", StatusCode: "ACT"},
	{ID: "dev-account-002", Username: "suspended", Email: "suspended@example.com", StatusCode: "SUS"},
	{ID: "dev-account-003", Username: "deactivated", Email: "deactivated@example.com", StatusCode: "ACT", IsDeactivated: true},
	{ID: "dev-account-004", Username: "deleted", Email: "deleted@example.com", StatusCode: "ACT", IsDeleted: true},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx := context.Background()
	conn, err := db.Open(ctx, cfg.DatabaseURL, db.PoolConfig{MaxOpenConns: 2})
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	res, err := sqlx.NewDb(conn, "pgx").NamedExecContext(ctx, `INSERT INTO accounts
			(id, username, email, status_code, is_deleted, is_deactivated)
		VALUES (:id, :username, :email, :status_code, :is_deleted, :is_deactivated)
		ON CONFLICT (id) DO NOTHING`, seedAccounts)
	if err != nil {
		log.Fatalf("insert accounts: %v", err)
	}
	n, _ := res.RowsAffected()
	log.Printf("Seed completed: %d of %d accounts inserted.", n, len(seedAccounts))
	log.Printf("Dev login identifier: %s", seedAccounts[0].Email)
}
