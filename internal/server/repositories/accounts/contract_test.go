package accounts

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dmitrijs2005/cloudsentiment/internal/common"
	"github.com/dmitrijs2005/cloudsentiment/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRepositoryContract exercises the behaviour every Repository backend must share.
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) Repository) {
	ctx := context.Background()

	seed := func(t *testing.T, r Repository, username, email string) *models.Account {
		t.Helper()
		a, err := r.Create(ctx, &models.Account{Username: username, Email: email, PasswordHash: "hash-" + username})
		require.NoError(t, err)
		return a
	}

	t.Run("create and find by username or email", func(t *testing.T) {
		r := newRepo(t)
		created := seed(t, r, "alice", "alice@x.com")
		assert.NotEmpty(t, created.ID)
		assert.False(t, created.CreatedAt.IsZero())
		assert.False(t, created.Verified)

		byName, err := r.FindByIdentifier(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byName.ID)
		assert.Equal(t, "hash-alice", byName.PasswordHash)

		byEmail, err := r.FindByIdentifier(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.Equal(t, "alice", byEmail.Username)

		_, err = r.FindByIdentifier(ctx, "bob")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("duplicate username or email conflicts", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "alice", "alice@x.com")

		_, err := r.Create(ctx, &models.Account{Username: "alice", Email: "other@x.com", PasswordHash: "h"})
		assert.ErrorIs(t, err, common.ErrorConflict)

		_, err = r.Create(ctx, &models.Account{Username: "alice2", Email: "alice@x.com", PasswordHash: "h"})
		assert.ErrorIs(t, err, common.ErrorConflict)

		_, err = r.FindByIdentifier(ctx, "other@x.com")
		assert.ErrorIs(t, err, common.ErrorNotFound, "failed insert must not leave state behind")
		_, err = r.FindByIdentifier(ctx, "alice2")
		assert.ErrorIs(t, err, common.ErrorNotFound)
	})

	t.Run("concurrent creates with colliding identities have one winner", func(t *testing.T) {
		r := newRepo(t)
		const n = 16

		var sameName, sameEmail atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(2)
			go func(i int) {
				defer wg.Done()
				_, err := r.Create(ctx, &models.Account{Username: "racer", Email: fmt.Sprintf("racer%d@x.com", i), PasswordHash: "h"})
				if err == nil {
					sameName.Add(1)
				} else {
					assert.ErrorIs(t, err, common.ErrorConflict)
				}
			}(i)
			go func(i int) {
				defer wg.Done()
				_, err := r.Create(ctx, &models.Account{Username: fmt.Sprintf("mailer%d", i), Email: "shared@x.com", PasswordHash: "h"})
				if err == nil {
					sameEmail.Add(1)
				} else {
					assert.ErrorIs(t, err, common.ErrorConflict)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), sameName.Load())
		assert.Equal(t, int32(1), sameEmail.Load())
	})

	t.Run("update applies only supplied fields", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "alice", "alice@x.com")

		name := "Alice"
		require.NoError(t, r.UpdateFields(ctx, "alice", models.AccountUpdate{Name: &name}))

		got, err := r.FindByIdentifier(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "Alice", got.Name)
		assert.Equal(t, "alice@x.com", got.Email)
		assert.Equal(t, "hash-alice", got.PasswordHash)

		email, hash := "new@x.com", "hash-2"
		require.NoError(t, r.UpdateFields(ctx, "alice", models.AccountUpdate{Email: &email, PasswordHash: &hash}))

		got, err = r.FindByIdentifier(ctx, "new@x.com")
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
		assert.Equal(t, "hash-2", got.PasswordHash)

		_, err = r.FindByIdentifier(ctx, "alice@x.com")
		assert.ErrorIs(t, err, common.ErrorNotFound, "old email must be released")
	})

	t.Run("email update conflicts with other account only", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "alice", "alice@x.com")
		seed(t, r, "bob", "bob@x.com")
		before, err := r.FindByIdentifier(ctx, "alice")
		require.NoError(t, err)

		taken := "bob@x.com"
		err = r.UpdateFields(ctx, "alice", models.AccountUpdate{Email: &taken})
		assert.ErrorIs(t, err, common.ErrorConflict)

		after, err := r.FindByIdentifier(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, before, after)

		own := "alice@x.com"
		assert.NoError(t, r.UpdateFields(ctx, "alice", models.AccountUpdate{Email: &own}))
	})

	t.Run("empty update leaves record unchanged", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "alice", "alice@x.com")
		before, err := r.FindByIdentifier(ctx, "alice")
		require.NoError(t, err)

		require.NoError(t, r.UpdateFields(ctx, "alice", models.AccountUpdate{}))

		after, err := r.FindByIdentifier(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, before, after)

		assert.ErrorIs(t, r.UpdateFields(ctx, "ghost", models.AccountUpdate{}), common.ErrorNotFound)
		name := "x"
		assert.ErrorIs(t, r.UpdateFields(ctx, "ghost", models.AccountUpdate{Name: &name}), common.ErrorNotFound)
	})

	t.Run("mark verified is idempotent", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "alice", "alice@x.com")

		n, err := r.MarkVerified(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = r.MarkVerified(ctx, "alice@x.com")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		got, err := r.FindByIdentifier(ctx, "alice")
		require.NoError(t, err)
		assert.True(t, got.Verified)

		n, err = r.MarkVerified(ctx, "nobody@x.com")
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("delete removes record and frees identities", func(t *testing.T) {
		r := newRepo(t)
		seed(t, r, "alice", "alice@x.com")

		n, err := r.Delete(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = r.FindByIdentifier(ctx, "alice")
		assert.ErrorIs(t, err, common.ErrorNotFound)

		n, err = r.Delete(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)

		seed(t, r, "alice", "alice@x.com")
	})
}
