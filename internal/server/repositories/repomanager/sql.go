package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/cloudsentiment/internal/server/migrations"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/repositories/accounts"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Dialect couples a database/sql driver name with the goose dialect that
// migrates it.
type Dialect struct {
	Driver string
	Goose  string
}

var (
	DialectPostgres = Dialect{Driver: "pgx", Goose: "pgx"}
	DialectSQLite   = Dialect{Driver: "sqlite", Goose: "sqlite3"}
)

// sqlOpen is a seam for testing sql.Open.
var sqlOpen = sql.Open

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// SQLRepositoryManager vends SQL-backed repositories over one *sql.DB.
type SQLRepositoryManager struct {
	db       *sql.DB
	dialect  Dialect
	accounts *accounts.SQLRepository
}

// NewSQLRepositoryManager opens (but does not ping) the database.
func NewSQLRepositoryManager(dialect Dialect, dsn string) (*SQLRepositoryManager, error) {
	db, err := sqlOpen(dialect.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect.Driver, err)
	}
	if dialect == DialectSQLite {
		// SQLite serialises writers; one connection keeps the unique index
		// as the only arbiter between racing inserts.
		db.SetMaxOpenConns(1)
	}
	return newSQLRepositoryManager(db, dialect), nil
}

func newSQLRepositoryManager(db *sql.DB, dialect Dialect) *SQLRepositoryManager {
	return &SQLRepositoryManager{db: db, dialect: dialect, accounts: accounts.NewSQLRepository(db)}
}

func (m *SQLRepositoryManager) Accounts() accounts.Repository { return m.accounts }

// RunMigrations applies the embedded goose migrations.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect.Goose); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

func (m *SQLRepositoryManager) Ping(ctx context.Context) error {
	return m.db.PingContext(ctx)
}

func (m *SQLRepositoryManager) Close() error {
	return m.db.Close()
}
