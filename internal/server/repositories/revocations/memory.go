package revocations

import (
	"context"
	"sync"
	"time"
)

type MemoryRepository struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{revoked: make(map[string]time.Time), now: time.Now}
}

func (r *MemoryRepository) Revoke(_ context.Context, jti string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if !until.After(now) {
		return nil
	}
	r.revoked[jti] = until
	r.purgeLocked(now)
	return nil
}

func (r *MemoryRepository) IsRevoked(_ context.Context, jti string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	until, ok := r.revoked[jti]
	if !ok {
		return false, nil
	}
	if !until.After(r.now()) {
		delete(r.revoked, jti)
		return false, nil
	}
	return true, nil
}

func (r *MemoryRepository) purgeLocked(now time.Time) {
	for jti, until := range r.revoked {
		if !until.After(now) {
			delete(r.revoked, jti)
		}
	}
}

func (r *MemoryRepository) Ping(context.Context) error { return nil }
