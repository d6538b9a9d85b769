// Package authz decides whether a mapped local account may log in and,
// when it may, establishes the session.
package authz

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/emercoin/emcid-login/pkg/hooks"
	"github.com/emercoin/emcid-login/pkg/linker"
	"github.com/emercoin/emcid-login/pkg/sessiondata"
)

// Reason identifies why a login was denied.
type Reason string

const (
	ReasonAdminLoginDisabled Reason = "admin_login_disabled"
	ReasonRoleDisabled       Reason = "role_disabled"
	ReasonAccountBlocked     Reason = "account_blocked"
)

// DeniedError reports a denied login with the reason a caller can map
// to a user-facing message.
type DeniedError struct {
	Reason Reason
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("login denied: %s", e.Reason)
}

// SessionFinalizer establishes the authenticated session for an
// account once the login has been authorized, returning the issued
// session token.
type SessionFinalizer interface {
	Finalize(ctx context.Context, sess sessiondata.Store, account linker.Account) (string, error)
}

// Config carries the site's login policy.
type Config struct {
	// SuperuserID identifies the distinguished administrator account,
	// if the site has one.
	SuperuserID uuid.UUID
	// DisableAdminLogin blocks provider logins into the superuser
	// account, forcing it through the site's own password login.
	DisableAdminLogin bool
	// DisabledRoles lists roles whose members must not log in through
	// the provider.
	DisabledRoles []string
}

// Service applies the login policy and finalizes authorized sessions.
type Service struct {
	config    Config
	finalizer SessionFinalizer
	hooks     hooks.Hooks
}

// Option configures the Service.
type Option func(*Service)

// WithHooks installs flow hooks fired on successful login.
func WithHooks(h hooks.Hooks) Option {
	return func(s *Service) {
		s.hooks = h
	}
}

// NewService creates an authorization service with the given policy.
func NewService(config Config, finalizer SessionFinalizer, opts ...Option) *Service {
	s := &Service{
		config:    config,
		finalizer: finalizer,
		hooks:     hooks.NopHooks{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authorize checks the account against the login policy and, if it
// passes, finalizes the session and returns the issued token. The
// checks run in a fixed order so the caller always reports the most
// specific denial: superuser policy, then role policy, then account
// status.
func (s *Service) Authorize(ctx context.Context, sess sessiondata.Store, account linker.Account) (string, error) {
	if s.config.DisableAdminLogin && s.config.SuperuserID != uuid.Nil && account.ID == s.config.SuperuserID {
		slog.Info("Denied provider login for superuser account", "accountId", account.ID)
		return "", &DeniedError{Reason: ReasonAdminLoginDisabled}
	}

	if role, disabled := s.disabledRole(account); disabled {
		slog.Info("Denied provider login for disabled role", "accountId", account.ID, "role", role)
		return "", &DeniedError{Reason: ReasonRoleDisabled}
	}

	if !account.IsActive() {
		slog.Info("Denied provider login for blocked account", "accountId", account.ID)
		return "", &DeniedError{Reason: ReasonAccountBlocked}
	}

	token, err := s.finalizer.Finalize(ctx, sess, account)
	if err != nil {
		return "", fmt.Errorf("failed to finalize session: %w", err)
	}

	slog.Info("Provider login authorized", "accountId", account.ID, "username", account.Username)
	s.hooks.UserLoggedIn(ctx, account)
	return token, nil
}

func (s *Service) disabledRole(account linker.Account) (string, bool) {
	for _, role := range account.Roles {
		for _, disabled := range s.config.DisabledRoles {
			if role == disabled {
				return role, true
			}
		}
	}
	return "", false
}
