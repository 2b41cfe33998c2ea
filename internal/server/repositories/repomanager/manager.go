// Package repomanager opens the configured account store and runs its schema
// migrations. The DSN scheme picks the backend:
//
//	postgres:// or postgresql://   PostgreSQL through pgx
//	sqlite: or file:               SQLite through modernc.org/sqlite
//	memory://                      process memory, nothing persisted
package repomanager

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/cloudsentiment/internal/server/repositories/accounts"
)

// RepositoryManager owns the storage handle behind the account repository.
type RepositoryManager interface {
	Accounts() accounts.Repository
	RunMigrations(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Open builds a RepositoryManager for dsn. Nothing is migrated here.
func Open(dsn string) (RepositoryManager, error) {
	switch {
	case dsn == "" || strings.HasPrefix(dsn, "memory://"):
		return NewMemoryRepositoryManager(), nil
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return NewSQLRepositoryManager(DialectPostgres, dsn)
	case strings.HasPrefix(dsn, "sqlite:"):
		return NewSQLRepositoryManager(DialectSQLite, strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite:"), "//"))
	case strings.HasPrefix(dsn, "file:"):
		return NewSQLRepositoryManager(DialectSQLite, dsn)
	default:
		return nil, fmt.Errorf("unsupported database dsn scheme: %q", dsn)
	}
}

// MemoryRepositoryManager serves an in-process account store.
type MemoryRepositoryManager struct {
	accounts *accounts.MemoryRepository
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{accounts: accounts.NewMemoryRepository()}
}

func (m *MemoryRepositoryManager) Accounts() accounts.Repository { return m.accounts }

func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Ping(context.Context) error { return nil }

func (m *MemoryRepositoryManager) Close() error { return nil }
