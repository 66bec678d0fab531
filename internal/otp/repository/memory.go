package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"otp-verification-service/internal/otp/domain"
)

// MemoryRepository is an in-memory Repository. Transactions are serialized and
// run against a working copy that replaces the live set only on success.
// Used when no DATABASE_URL is configured (development) and in tests.
type MemoryRepository struct {
	mu   sync.Mutex
	rows map[string]domain.Challenge
}

// NewMemoryRepository returns an empty in-memory challenge store.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]domain.Challenge)}
}

// InTx runs fn against a copy of the store and commits it when fn returns nil.
func (r *MemoryRepository) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return unavailable("begin", err)
	}
	work := make(map[string]domain.Challenge, len(r.rows))
	for k, v := range r.rows {
		work[k] = v
	}
	if err := fn(ctx, &memTx{rows: work}); err != nil {
		return err
	}
	r.rows = work
	return nil
}

// DeleteStale removes expired or invalidated challenges.
func (r *MemoryRepository) DeleteStale(ctx context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.rows {
		if c.ExpiresAt.Before(now) || !c.Valid {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

// Get returns a copy of the challenge with processID, or nil if absent.
func (r *MemoryRepository) Get(processID string) *domain.Challenge {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[processID]
	if !ok {
		return nil
	}
	return &c
}

// Len returns the number of stored challenges.
func (r *MemoryRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type memTx struct {
	rows map[string]domain.Challenge
}

func (t *memTx) matching(key domain.Key) []domain.Challenge {
	var out []domain.Challenge
	for _, c := range t.rows {
		if c.Key() == key {
			out = append(out, c)
		}
	}
	return out
}

func (t *memTx) LatestActive(ctx context.Context, key domain.Key, now time.Time) (*domain.Challenge, error) {
	var active []domain.Challenge
	for _, c := range t.matching(key) {
		if c.Active(now) {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return nil, nil
	}
	sort.Slice(active, func(i, j int) bool { return active[i].CreatedAt.After(active[j].CreatedAt) })
	latest := active[0]
	return &latest, nil
}

func (t *memTx) CountByDeviceSince(ctx context.Context, deviceID string, since time.Time) (int, error) {
	n := 0
	for _, c := range t.rows {
		if c.DeviceID == deviceID && c.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) CountByAccountSince(ctx context.Context, accountID string, since time.Time) (int, error) {
	n := 0
	for _, c := range t.rows {
		if c.AccountID == accountID && c.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (t *memTx) SupersedeActive(ctx context.Context, key domain.Key, now time.Time) (int64, error) {
	var n int64
	for id, c := range t.rows {
		if c.Key() == key && c.Active(now) {
			c.ExpiresAt = c.SupersededExpiry(now)
			t.rows[id] = c
			n++
		}
	}
	return n, nil
}

func (t *memTx) Create(ctx context.Context, c *domain.Challenge) error {
	if _, exists := t.rows[c.ProcessID]; exists {
		return unavailable("create", errDuplicateProcessID)
	}
	if !c.ExpiresAt.After(c.CreatedAt) {
		return unavailable("create", errExpiryNotAfterCreate)
	}
	t.rows[c.ProcessID] = *c
	return nil
}

func (t *memTx) GetForUpdate(ctx context.Context, accountID, email, processID string) (*domain.Challenge, error) {
	c, ok := t.rows[processID]
	if !ok || c.AccountID != accountID || c.Email != email {
		return nil, nil
	}
	return &c, nil
}

func (t *memTx) Update(ctx context.Context, c *domain.Challenge) error {
	cur, ok := t.rows[c.ProcessID]
	if !ok || cur.Terminal() {
		return ErrChallengeTerminal
	}
	cur.Verified = c.Verified
	cur.VerifiedAt = c.VerifiedAt
	cur.Valid = c.Valid
	cur.FailedAttempts = c.FailedAttempts
	t.rows[c.ProcessID] = cur
	return nil
}
