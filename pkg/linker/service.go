package linker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/emercoin/emcid-login/pkg/emcid"
	"github.com/emercoin/emcid-login/pkg/mapper"
	"github.com/emercoin/emcid-login/pkg/utils"
)

// RegistrationMode mirrors the host account-registration policy.
type RegistrationMode string

const (
	// RegisterAdminOnly blocks self-registration entirely.
	RegisterAdminOnly RegistrationMode = "admin_only"
	// RegisterVisitors lets visitors register and become active at once.
	RegisterVisitors RegistrationMode = "visitors"
	// RegisterVisitorsApproval lets visitors register but keeps the new
	// account blocked until an administrator approves it.
	RegisterVisitorsApproval RegistrationMode = "visitors_admin_approval"
)

// ErrNotLinked is returned when no local account is bound to a provider
// identity.
var ErrNotLinked = errors.New("linker: provider identity not linked to an account")

// ErrRegistrationBlocked is returned when host policy restricts account
// creation to administrators.
var ErrRegistrationBlocked = errors.New("linker: registration is restricted to administrators")

const generatedPasswordLength = 32

// AccountCreatedFunc is called synchronously after an account has been
// created and bound, so external collaborators can react (custom field
// population, notifications).
type AccountCreatedFunc func(ctx context.Context, account Account, providerUserID string)

// Service finds or creates local accounts for provider identities.
type Service struct {
	accounts         AccountRepository
	bindings         BindingRepository
	identityMapper   *mapper.IdentityMapper
	validator        AccountValidator
	registrationMode RegistrationMode
	defaultRoles     []string
	onAccountCreated AccountCreatedFunc
}

// Option configures a Service.
type Option func(*Service)

// WithValidator replaces the account validator.
func WithValidator(validator AccountValidator) Option {
	return func(s *Service) {
		s.validator = validator
	}
}

// WithRegistrationMode sets the host registration policy.
func WithRegistrationMode(mode RegistrationMode) Option {
	return func(s *Service) {
		s.registrationMode = mode
	}
}

// WithDefaultRoles sets the roles assigned to newly created accounts.
func WithDefaultRoles(roles ...string) Option {
	return func(s *Service) {
		s.defaultRoles = roles
	}
}

// WithAccountCreatedFunc registers the "account created" extension point.
func WithAccountCreatedFunc(fn AccountCreatedFunc) Option {
	return func(s *Service) {
		s.onAccountCreated = fn
	}
}

// NewService creates an account linker. By default registration requires
// admin approval and candidates are checked with the DefaultValidator.
func NewService(accounts AccountRepository, bindings BindingRepository, opts ...Option) *Service {
	s := &Service{
		accounts:         accounts,
		bindings:         bindings,
		identityMapper:   mapper.New(accounts),
		validator:        NewDefaultValidator(),
		registrationMode: RegisterVisitorsApproval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FindByProviderID returns the local account bound to the provider user
// id, or ErrNotLinked when the identity has never been seen.
func (s *Service) FindByProviderID(ctx context.Context, providerUserID string) (Account, error) {
	accountID, err := s.bindings.GetAccountID(ctx, providerUserID)
	if err != nil {
		if errors.Is(err, ErrBindingNotFound) {
			return Account{}, ErrNotLinked
		}
		return Account{}, fmt.Errorf("looking up binding: %w", err)
	}

	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return Account{}, fmt.Errorf("loading bound account %s: %w", accountID, err)
	}
	return account, nil
}

// CreateAccount creates a local account for a first-seen provider
// identity and binds it. Nothing is persisted when policy, validation or
// storage rejects the candidate. When two logins race on the same
// identity the binding decides the winner and the losing account is
// removed again.
func (s *Service) CreateAccount(ctx context.Context, identity emcid.Identity) (Account, error) {
	if s.registrationMode == RegisterAdminOnly {
		slog.Warn("account creation refused, registration is admin only",
			"provider_user_id", identity.ProviderUserID)
		return Account{}, ErrRegistrationBlocked
	}

	username, err := s.identityMapper.DeriveUsername(ctx, identity.FirstName, identity.LastName)
	if err != nil {
		return Account{}, fmt.Errorf("deriving username: %w", err)
	}
	email, err := s.identityMapper.DeriveEmail(ctx, identity.Email, username)
	if err != nil {
		return Account{}, fmt.Errorf("deriving email: %w", err)
	}

	// The password is machine-generated and never shown to anyone; the
	// account authenticates through the provider only.
	passwordHash, err := bcrypt.GenerateFromPassword(
		[]byte(utils.GenerateRandomString(generatedPasswordLength)), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, fmt.Errorf("hashing generated password: %w", err)
	}

	account := Account{
		ID:           uuid.New(),
		Username:     username,
		Email:        email,
		Status:       s.newAccountStatus(),
		Roles:        append([]string(nil), s.defaultRoles...),
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.validator.ValidateAccount(ctx, account); err != nil {
		slog.Error("new account failed validation",
			"username", account.Username, "email", utils.MaskEmail(account.Email), "err", err)
		return Account{}, err
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		slog.Error("failed to persist new account", "username", account.Username, "err", err)
		return Account{}, fmt.Errorf("persisting account: %w", err)
	}

	boundID, err := s.bindings.Insert(ctx, identity.ProviderUserID, account.ID)
	if err != nil {
		return Account{}, fmt.Errorf("binding identity: %w", err)
	}
	if boundID != account.ID {
		// Lost a race against a concurrent first login. The binding is
		// authoritative; drop the account we just created and return the
		// winner.
		slog.Warn("concurrent first login detected, discarding duplicate account",
			"provider_user_id", identity.ProviderUserID, "discarded", account.ID, "bound", boundID)
		if err := s.accounts.Delete(ctx, account.ID); err != nil {
			slog.Error("failed to remove duplicate account", "account_id", account.ID, "err", err)
		}
		winner, err := s.accounts.GetByID(ctx, boundID)
		if err != nil {
			return Account{}, fmt.Errorf("loading bound account %s: %w", boundID, err)
		}
		return winner, nil
	}

	slog.Info("new account created for provider identity",
		"username", account.Username, "account_id", account.ID,
		"provider_user_id", identity.ProviderUserID, "status", account.Status)

	if s.onAccountCreated != nil {
		s.onAccountCreated(ctx, account, identity.ProviderUserID)
	}

	return account, nil
}

// newAccountStatus returns the initial status host policy dictates.
func (s *Service) newAccountStatus() Status {
	if s.registrationMode == RegisterVisitors {
		return StatusActive
	}
	return StatusBlocked
}
