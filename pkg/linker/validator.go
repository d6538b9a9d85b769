package linker

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
)

// ValidationError reports a candidate account that failed host validation
// rules. Message is safe to surface to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("linker: account validation failed: %s", e.Message)
}

// AccountValidator checks candidate account fields against host
// account-validation rules before anything is persisted.
type AccountValidator interface {
	ValidateAccount(ctx context.Context, account Account) error
}

// DefaultValidator applies the baseline rules most CMS installations
// enforce: a bounded username without whitespace and a parseable email.
type DefaultValidator struct {
	MaxUsernameLength int
}

// NewDefaultValidator creates a validator with a 60 character username cap.
func NewDefaultValidator() *DefaultValidator {
	return &DefaultValidator{MaxUsernameLength: 60}
}

// ValidateAccount implements AccountValidator.
func (v *DefaultValidator) ValidateAccount(_ context.Context, account Account) error {
	if account.Username == "" {
		return &ValidationError{Message: "username is empty"}
	}
	if len(account.Username) > v.MaxUsernameLength {
		return &ValidationError{Message: fmt.Sprintf("username exceeds %d characters", v.MaxUsernameLength)}
	}
	if strings.ContainsAny(account.Username, " \t\n") {
		return &ValidationError{Message: "username contains whitespace"}
	}
	if _, err := mail.ParseAddress(account.Email); err != nil {
		return &ValidationError{Message: fmt.Sprintf("invalid email address %q", account.Email)}
	}
	return nil
}
