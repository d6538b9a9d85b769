package linker

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryAccountRepository implements AccountRepository with
// mutex-guarded maps. Suitable for tests and single-instance deployments.
type InMemoryAccountRepository struct {
	mutex    sync.RWMutex
	accounts map[uuid.UUID]Account
}

// NewInMemoryAccountRepository creates an empty in-memory account store.
func NewInMemoryAccountRepository() *InMemoryAccountRepository {
	return &InMemoryAccountRepository{
		accounts: make(map[uuid.UUID]Account),
	}
}

// Create stores a new account. The username and email must be free.
func (r *InMemoryAccountRepository) Create(_ context.Context, account Account) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.accounts[account.ID]; exists {
		return fmt.Errorf("account already exists: %s", account.ID)
	}
	for _, existing := range r.accounts {
		if strings.EqualFold(existing.Username, account.Username) {
			return fmt.Errorf("username already taken: %s", account.Username)
		}
		if strings.EqualFold(existing.Email, account.Email) {
			return fmt.Errorf("email already taken: %s", account.Email)
		}
	}

	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

// GetByID loads an account by id. The returned account is a copy;
// mutating it does not change the stored one.
func (r *InMemoryAccountRepository) GetByID(_ context.Context, id uuid.UUID) (Account, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	account, exists := r.accounts[id]
	if !exists {
		return Account{}, ErrAccountNotFound
	}
	return cloneAccount(account), nil
}

// Delete removes an account. Deleting a missing account is a no-op.
func (r *InMemoryAccountRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.accounts, id)
	return nil
}

// UsernameTaken reports whether any account uses the username.
func (r *InMemoryAccountRepository) UsernameTaken(_ context.Context, username string) (bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, account := range r.accounts {
		if strings.EqualFold(account.Username, username) {
			return true, nil
		}
	}
	return false, nil
}

// EmailTaken reports whether any account uses the email address.
func (r *InMemoryAccountRepository) EmailTaken(_ context.Context, email string) (bool, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	for _, account := range r.accounts {
		if strings.EqualFold(account.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

// Update replaces a stored account. Used by tests to flip status or roles.
func (r *InMemoryAccountRepository) Update(_ context.Context, account Account) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.accounts[account.ID]; !exists {
		return ErrAccountNotFound
	}
	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

func cloneAccount(account Account) Account {
	account.Roles = append([]string(nil), account.Roles...)
	account.PasswordHash = append([]byte(nil), account.PasswordHash...)
	return account
}

// InMemoryBindingRepository implements BindingRepository with a
// mutex-guarded map. Insert rechecks under the write lock, so the
// insert-if-absent rule holds under concurrent logins.
type InMemoryBindingRepository struct {
	mutex    sync.RWMutex
	bindings map[string]Binding
}

// NewInMemoryBindingRepository creates an empty in-memory binding store.
func NewInMemoryBindingRepository() *InMemoryBindingRepository {
	return &InMemoryBindingRepository{
		bindings: make(map[string]Binding),
	}
}

// Insert records the binding unless one already exists for the provider
// user id. The account id bound after the call is returned either way.
func (r *InMemoryBindingRepository) Insert(_ context.Context, providerUserID string, accountID uuid.UUID) (uuid.UUID, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if existing, ok := r.bindings[providerUserID]; ok {
		return existing.AccountID, nil
	}

	r.bindings[providerUserID] = Binding{
		ProviderUserID: providerUserID,
		AccountID:      accountID,
		CreatedAt:      time.Now().UTC(),
	}
	return accountID, nil
}

// GetAccountID returns the account bound to the provider user id.
func (r *InMemoryBindingRepository) GetAccountID(_ context.Context, providerUserID string) (uuid.UUID, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	binding, ok := r.bindings[providerUserID]
	if !ok {
		return uuid.Nil, ErrBindingNotFound
	}
	return binding.AccountID, nil
}

// Count returns the number of stored bindings (useful for tests).
func (r *InMemoryBindingRepository) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.bindings)
}
