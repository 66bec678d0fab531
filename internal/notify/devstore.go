package notify

import (
	"context"
	"sync"
	"time"
)

// DevStore keeps plain codes by process id for dev OTP mode (GET /dev/otp/{processId}).
// It doubles as the Notifier when email delivery is disabled. Never used in production.
type DevStore struct {
	mu   sync.RWMutex
	m    map[string]devEntry
	nowF func() time.Time
}

type devEntry struct {
	code      string
	expiresAt time.Time
}

// NewDevStore returns an empty dev OTP store.
func NewDevStore() *DevStore {
	return &DevStore{m: make(map[string]devEntry), nowF: time.Now}
}

// Deliver stores msg.Code under msg.ProcessID until msg.ExpiresAt. Expired entries are pruned first.
func (s *DevStore) Deliver(ctx context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.nowF()
	for id, e := range s.m {
		if !e.expiresAt.After(now) {
			delete(s.m, id)
		}
	}
	s.m[msg.ProcessID] = devEntry{code: msg.Code, expiresAt: msg.ExpiresAt}
	return nil
}

// Get returns the code for processID if present and not expired. Expired entries are dropped.
func (s *DevStore) Get(ctx context.Context, processID string) (string, bool) {
	s.mu.RLock()
	e, ok := s.m[processID]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}
	if !e.expiresAt.After(s.nowF()) {
		s.mu.Lock()
		delete(s.m, processID)
		s.mu.Unlock()
		return "", false
	}
	return e.code, true
}
