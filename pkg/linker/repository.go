package linker

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrAccountNotFound is returned when no account exists for the given id.
var ErrAccountNotFound = errors.New("linker: account not found")

// ErrBindingNotFound is returned when no binding exists for the given
// provider user id.
var ErrBindingNotFound = errors.New("linker: binding not found")

// AccountRepository defines the account storage operations the linker
// needs. It also satisfies mapper.UniquenessChecker so username and email
// candidates can be checked against existing accounts.
type AccountRepository interface {
	Create(ctx context.Context, account Account) error
	GetByID(ctx context.Context, id uuid.UUID) (Account, error)
	Delete(ctx context.Context, id uuid.UUID) error

	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
}

// BindingRepository stores identity bindings. Insert must be atomic
// insert-if-absent: when a binding for providerUserID already exists the
// call is a no-op and the previously bound account id is returned, so two
// racing first logins for the same identity converge on one account.
type BindingRepository interface {
	Insert(ctx context.Context, providerUserID string, accountID uuid.UUID) (uuid.UUID, error)
	GetAccountID(ctx context.Context, providerUserID string) (uuid.UUID, error)
}
