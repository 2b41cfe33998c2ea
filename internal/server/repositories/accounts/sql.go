package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/cloudsentiment/internal/common"
	"github.com/dmitrijs2005/cloudsentiment/internal/dbx"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const pgUniqueViolation = "23505"

const accountColumns = `id, username, email, name, password_hash, verified, created_at, updated_at`

// SQLRepository stores accounts in the "accounts" table. The queries run
// unchanged on PostgreSQL (pgx) and SQLite (modernc).
type SQLRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLRepository(db dbx.DBTX) *SQLRepository {
	return &SQLRepository{db: db, now: time.Now}
}

func (r *SQLRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	a := *account
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now().UTC()
	}
	a.UpdatedAt = a.CreatedAt

	query :=
		`INSERT INTO accounts (` + accountColumns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		a.ID, a.Username, a.Email, a.Name, a.PasswordHash, a.Verified, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("create account %q: %w", a.Username, common.ErrorConflict)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &a, nil
}

func (r *SQLRepository) FindByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	query :=
		`SELECT ` + accountColumns + ` FROM accounts
		 WHERE username = $1 OR email = $1
		 ORDER BY CASE WHEN username = $1 THEN 0 ELSE 1 END
		 LIMIT 1`

	a := &models.Account{}
	err := r.db.QueryRowContext(ctx, query, identifier).Scan(
		&a.ID, &a.Username, &a.Email, &a.Name, &a.PasswordHash, &a.Verified, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return a, nil
}

func (r *SQLRepository) UpdateFields(ctx context.Context, username string, update models.AccountUpdate) error {
	if update.IsEmpty() {
		return r.ensureExists(ctx, username)
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if update.Name != nil {
		set("name", *update.Name)
	}
	if update.Email != nil {
		set("email", *update.Email)
	}
	if update.PasswordHash != nil {
		set("password_hash", *update.PasswordHash)
	}
	set("updated_at", r.now().UTC())

	args = append(args, username)
	query := fmt.Sprintf(`UPDATE accounts SET %s WHERE username = $%d`, strings.Join(sets, ", "), len(args))

	n, err := dbx.ExecAffected(ctx, r.db, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update account %q: %w", username, common.ErrorConflict)
		}
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}

	return nil
}

func (r *SQLRepository) ensureExists(ctx context.Context, username string) error {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM accounts WHERE username = $1`, username).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrorNotFound
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *SQLRepository) MarkVerified(ctx context.Context, email string) (int64, error) {
	n, err := dbx.ExecAffected(ctx, r.db, `UPDATE accounts SET verified = TRUE WHERE email = $1`, email)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func (r *SQLRepository) Delete(ctx context.Context, username string) (int64, error) {
	n, err := dbx.ExecAffected(ctx, r.db, `DELETE FROM accounts WHERE username = $1`, username)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			return strings.Contains(liteErr.Error(), "UNIQUE")
		}
	}

	return false
}
