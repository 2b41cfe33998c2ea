package accounts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/cloudsentiment/internal/common"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps accounts in process memory. A single mutex covers
// both unique indexes, so check-and-insert is atomic.
type MemoryRepository struct {
	mu         sync.RWMutex
	byUsername map[string]models.Account
	byEmail    map[string]string
	now        func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byUsername: make(map[string]models.Account),
		byEmail:    make(map[string]string),
		now:        time.Now,
	}
}

func (r *MemoryRepository) Create(_ context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUsername[account.Username]; ok {
		return nil, fmt.Errorf("create account %q: %w", account.Username, common.ErrorConflict)
	}
	if _, ok := r.byEmail[account.Email]; ok {
		return nil, fmt.Errorf("create account %q: %w", account.Username, common.ErrorConflict)
	}

	a := *account
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now().UTC()
	}
	a.UpdatedAt = a.CreatedAt

	r.byUsername[a.Username] = a
	r.byEmail[a.Email] = a.Username

	out := a
	return &out, nil
}

func (r *MemoryRepository) FindByIdentifier(_ context.Context, identifier string) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if a, ok := r.byUsername[identifier]; ok {
		return &a, nil
	}
	if username, ok := r.byEmail[identifier]; ok {
		a := r.byUsername[username]
		return &a, nil
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) UpdateFields(_ context.Context, username string, update models.AccountUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byUsername[username]
	if !ok {
		return common.ErrorNotFound
	}
	if update.IsEmpty() {
		return nil
	}

	if update.Email != nil && *update.Email != a.Email {
		if owner, taken := r.byEmail[*update.Email]; taken && owner != username {
			return fmt.Errorf("update account %q: %w", username, common.ErrorConflict)
		}
		delete(r.byEmail, a.Email)
		a.Email = *update.Email
		r.byEmail[a.Email] = username
	}
	if update.Name != nil {
		a.Name = *update.Name
	}
	if update.PasswordHash != nil {
		a.PasswordHash = *update.PasswordHash
	}
	a.UpdatedAt = r.now().UTC()

	r.byUsername[username] = a
	return nil
}

func (r *MemoryRepository) MarkVerified(_ context.Context, email string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.byEmail[email]
	if !ok {
		return 0, nil
	}
	a := r.byUsername[username]
	a.Verified = true
	r.byUsername[username] = a
	return 1, nil
}

func (r *MemoryRepository) Delete(_ context.Context, username string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.byUsername[username]
	if !ok {
		return 0, nil
	}
	delete(r.byUsername, username)
	delete(r.byEmail, a.Email)
	return 1, nil
}

// Len returns the number of stored accounts.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUsername)
}
