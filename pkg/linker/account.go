// Package linker binds EmercoinID identities to local user accounts: it
// finds the account bound to a certificate serial or creates one, and
// maintains the one-to-one identity binding that is written exactly once
// and never overwritten.
package linker

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a local account.
type Status string

const (
	// StatusActive accounts may log in.
	StatusActive Status = "active"
	// StatusBlocked accounts are pending approval or administratively
	// disabled.
	StatusBlocked Status = "blocked"
)

// Account is a principal in the host system.
type Account struct {
	ID           uuid.UUID
	Username     string
	Email        string
	Status       Status
	Roles        []string
	PasswordHash []byte
	CreatedAt    time.Time
}

// IsActive reports whether the account may log in.
func (a Account) IsActive() bool {
	return a.Status == StatusActive
}

// Binding is the persistent link between a provider identity and a local
// account. At most one binding exists per provider user id; once created
// it is never mutated.
type Binding struct {
	ProviderUserID string
	AccountID      uuid.UUID
	CreatedAt      time.Time
}
