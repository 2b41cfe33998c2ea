// Package revocations records access-token IDs that were logged out before
// their natural expiry.
package revocations

import (
	"context"
	"time"
)

// Repository is a deny-list of token IDs. Entries only need to outlive the
// token they name; expired entries may be dropped.
type Repository interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error
}
