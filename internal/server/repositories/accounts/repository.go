// Package accounts is the credential store: durable, uniqueness-enforcing
// persistence for Account records.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/cloudsentiment/internal/server/models"
)

// Repository is the credential store contract.
//
// Implementations must enforce username and email uniqueness atomically at
// the storage layer; a prior read by the caller is only a friendlier error
// path. Conflicts are reported as common.ErrorConflict and missing records
// as common.ErrorNotFound.
type Repository interface {
	// Create inserts the account, filling ID and timestamps when unset.
	Create(ctx context.Context, account *models.Account) (*models.Account, error)
	// FindByIdentifier looks the identifier up as a username, then as an email.
	FindByIdentifier(ctx context.Context, identifier string) (*models.Account, error)
	// UpdateFields applies the staged fields in one write. An email change is
	// checked for uniqueness against every other account.
	UpdateFields(ctx context.Context, username string, update models.AccountUpdate) error
	// MarkVerified flags the account owning email as verified and returns the
	// number of matched accounts. Re-marking is a no-op that still matches.
	MarkVerified(ctx context.Context, email string) (int64, error)
	// Delete removes the account and returns the number of deleted records.
	Delete(ctx context.Context, username string) (int64, error)
}
