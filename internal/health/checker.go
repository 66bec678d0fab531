// Package health reports readiness: the database answers and the admission policy evaluates.
package health

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const checkTimeout = 2 * time.Second

// Pinger is implemented by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// PolicyChecker is implemented by the OPA admission engine.
type PolicyChecker interface {
	HealthCheck(ctx context.Context) error
}

// Checker combines the readiness probes. Nil probes are skipped, so a memory-backed dev server is always ready.
type Checker struct {
	db     Pinger
	policy PolicyChecker
}

// NewChecker returns a Checker. db and policy may be nil.
func NewChecker(db Pinger, policy PolicyChecker) *Checker {
	return &Checker{db: db, policy: policy}
}

// Check runs every probe with a short deadline and joins their failures.
func (c *Checker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()
	var errs []error
	if c.db != nil {
		if err := c.db.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("database: %w", err))
		}
	}
	if c.policy != nil {
		if err := c.policy.HealthCheck(ctx); err != nil {
			errs = append(errs, fmt.Errorf("policy: %w", err))
		}
	}
	return errors.Join(errs...)
}
