package linker

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryAccountRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		repo := NewInMemoryAccountRepository()
		account := Account{ID: uuid.New(), Username: "jane-doe", Email: "a@b.com", Status: StatusActive}

		require.NoError(t, repo.Create(ctx, account))

		got, err := repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, account.Username, got.Username)
		assert.Equal(t, account.Email, got.Email)
	})

	t.Run("GetMissing", func(t *testing.T) {
		repo := NewInMemoryAccountRepository()
		_, err := repo.GetByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("UniquenessIsCaseInsensitive", func(t *testing.T) {
		repo := NewInMemoryAccountRepository()
		account := Account{ID: uuid.New(), Username: "Jane-Doe", Email: "A@B.com", Status: StatusActive}
		require.NoError(t, repo.Create(ctx, account))

		taken, err := repo.UsernameTaken(ctx, "jane-doe")
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = repo.EmailTaken(ctx, "a@b.com")
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = repo.UsernameTaken(ctx, "someone-else")
		require.NoError(t, err)
		assert.False(t, taken)
	})

	t.Run("Delete", func(t *testing.T) {
		repo := NewInMemoryAccountRepository()
		account := Account{ID: uuid.New(), Username: "jane-doe", Email: "a@b.com"}
		require.NoError(t, repo.Create(ctx, account))

		require.NoError(t, repo.Delete(ctx, account.ID))

		_, err := repo.GetByID(ctx, account.ID)
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("GetReturnsCopy", func(t *testing.T) {
		repo := NewInMemoryAccountRepository()
		account := Account{ID: uuid.New(), Username: "jane-doe", Roles: []string{"authenticated"}}
		require.NoError(t, repo.Create(ctx, account))

		got, err := repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		got.Roles[0] = "mutated"

		again, err := repo.GetByID(ctx, account.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"authenticated"}, again.Roles)
	})
}

func TestInMemoryBindingRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("InsertAndGet", func(t *testing.T) {
		repo := NewInMemoryBindingRepository()
		accountID := uuid.New()

		bound, err := repo.Insert(ctx, "serial-1", accountID)
		require.NoError(t, err)
		assert.Equal(t, accountID, bound)

		got, err := repo.GetAccountID(ctx, "serial-1")
		require.NoError(t, err)
		assert.Equal(t, accountID, got)
	})

	t.Run("InsertKeepsFirstWinner", func(t *testing.T) {
		repo := NewInMemoryBindingRepository()
		first := uuid.New()
		second := uuid.New()

		bound, err := repo.Insert(ctx, "serial-1", first)
		require.NoError(t, err)
		assert.Equal(t, first, bound)

		bound, err = repo.Insert(ctx, "serial-1", second)
		require.NoError(t, err)
		assert.Equal(t, first, bound)
		assert.Equal(t, 1, repo.Count())
	})

	t.Run("GetMissing", func(t *testing.T) {
		repo := NewInMemoryBindingRepository()
		_, err := repo.GetAccountID(ctx, "unknown")
		assert.ErrorIs(t, err, ErrBindingNotFound)
	})
}
