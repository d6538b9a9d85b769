// Package authflow orchestrates the provider login round trip: the
// outbound redirect, the callback, identity mapping and session
// establishment, with every failure branch ending in a safe redirect.
package authflow

import (
	"context"
	"errors"
	"log/slog"

	"github.com/emercoin/emcid-login/pkg/authz"
	"github.com/emercoin/emcid-login/pkg/emcid"
	"github.com/emercoin/emcid-login/pkg/hooks"
	"github.com/emercoin/emcid-login/pkg/linker"
	"github.com/emercoin/emcid-login/pkg/sessiondata"
)

// User-facing messages surfaced by the flow.
const (
	MsgNotConfigured      = "EmercoinID not configured properly. Contact site administrator."
	MsgInvalidUser        = "Invalid User"
	MsgLoginFailed        = "Login process with this EmercoinID certificate wasn't successful."
	MsgAwaitingActivation = "You will receive an email when site administrator activates your account."
	MsgReviewDetails      = "Please check your account details. Since you logged in with Emercoin ID, you don't need to update your password."
	MsgAccessDenied       = "Access denied."
)

// Level classifies a flow message for presentation.
type Level string

const (
	LevelStatus  Level = "status"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// CallbackParams are the query parameters the provider sends to the
// return endpoint.
type CallbackParams struct {
	Code             string
	State            string
	Error            string
	ErrorDescription string
}

// Outcome is the terminal result of a login attempt. Authorized is
// true only when a session was established; Token then carries the
// issued session token.
type Outcome struct {
	RedirectURL string
	Message     string
	Level       Level
	Authorized  bool
	Token       string
}

// Service drives the login flow against its collaborators.
type Service struct {
	provider    emcid.Provider
	client      *emcid.Client
	accounts    *linker.Service
	authorizer  *authz.Service
	hooks       hooks.Hooks
	redirectURI string

	loginPath                 string
	defaultPostLoginPath      string
	profilePath               string
	redirectNewUsersToProfile bool
}

// Option configures the Service.
type Option func(*Service)

// WithHooks installs flow hooks.
func WithHooks(h hooks.Hooks) Option {
	return func(s *Service) {
		s.hooks = h
	}
}

// WithLoginPath sets the generic login page failures redirect to.
func WithLoginPath(path string) Option {
	return func(s *Service) {
		s.loginPath = path
	}
}

// WithPostLoginPath sets the default destination after an authorized
// login when the session holds no better one.
func WithPostLoginPath(path string) Option {
	return func(s *Service) {
		s.defaultPostLoginPath = path
	}
}

// WithProfileRedirect sends first-login users to the profile page so
// they can review their generated account details.
func WithProfileRedirect(profilePath string) Option {
	return func(s *Service) {
		s.redirectNewUsersToProfile = true
		s.profilePath = profilePath
	}
}

// NewService creates the flow service. redirectURI is this
// application's return endpoint as registered with the provider.
func NewService(provider emcid.Provider, client *emcid.Client, accounts *linker.Service, authorizer *authz.Service, redirectURI string, opts ...Option) *Service {
	s := &Service{
		provider:             provider,
		client:               client,
		accounts:             accounts,
		authorizer:           authorizer,
		hooks:                hooks.NopHooks{},
		redirectURI:          redirectURI,
		loginPath:            "/login",
		defaultPostLoginPath: "/",
		profilePath:          "/profile",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitiateLogin validates the configuration, records the post-login
// destination and returns the provider authorization URL to redirect
// the user to.
func (s *Service) InitiateLogin(ctx context.Context, sess sessiondata.Store, returnTo string) (string, error) {
	if err := s.provider.Validate(); err != nil {
		return "", err
	}

	if returnTo != "" {
		sess.Set(sessiondata.PostLoginPathKey, returnTo)
	}

	s.hooks.BeforeRedirect(ctx, sess)

	authURL, err := s.provider.BuildAuthURL(s.redirectURI)
	if err != nil {
		return "", err
	}
	slog.Info("Redirecting to provider for authentication")
	return authURL, nil
}

// CompleteLogin handles the provider callback and runs the attempt to
// a terminal outcome. Once the access token has been stored, every
// branch that does not authorize the login clears it again.
func (s *Service) CompleteLogin(ctx context.Context, sess sessiondata.Store, cb CallbackParams) Outcome {
	if err := s.provider.Validate(); err != nil {
		slog.Error("Provider login attempted without full configuration", "err", err)
		return s.failure(MsgNotConfigured, LevelError)
	}

	if cb.Error != "" || cb.Code == "" || cb.State == "" {
		message := cb.ErrorDescription
		if message == "" {
			message = MsgAccessDenied
		}
		slog.Warn("Provider callback denied", "error", cb.Error, "description", cb.ErrorDescription)
		return s.failure(message, LevelError)
	}

	accessToken, err := s.client.ExchangeCode(ctx, cb.Code, s.redirectURI)
	if err != nil {
		message := MsgLoginFailed
		var exchangeErr *emcid.TokenExchangeError
		if errors.As(err, &exchangeErr) && exchangeErr.Description != "" {
			message = exchangeErr.Description
		}
		slog.Error("Token exchange failed", "err", err)
		return s.failure(message, LevelError)
	}

	// The token is stored so extension points can call the provider
	// API within this request. From here on, any outcome that is not
	// an authorized login must clear it again.
	sess.Set(sessiondata.AccessTokenKey, accessToken)
	authorized := false
	defer func() {
		if !authorized {
			sess.Set(sessiondata.AccessTokenKey, "")
		}
	}()

	identity, err := s.client.FetchIdentity(ctx, accessToken)
	if err != nil {
		slog.Error("Identity fetch failed", "err", err)
		return s.failure(MsgInvalidUser, LevelError)
	}

	account, err := s.accounts.FindByProviderID(ctx, identity.ProviderUserID)
	switch {
	case err == nil:
		outcome := s.authorize(ctx, sess, account, false)
		authorized = outcome.Authorized
		return outcome

	case errors.Is(err, linker.ErrNotLinked):
		outcome := s.register(ctx, sess, identity)
		authorized = outcome.Authorized
		return outcome

	default:
		slog.Error("Account lookup failed", "err", err)
		return s.failure(MsgLoginFailed, LevelError)
	}
}

// register creates an account for a never-seen identity and runs the
// authorizer on it.
func (s *Service) register(ctx context.Context, sess sessiondata.Store, identity emcid.Identity) Outcome {
	account, err := s.accounts.CreateAccount(ctx, identity)
	if err != nil {
		var validationErr *linker.ValidationError
		switch {
		case errors.As(err, &validationErr):
			slog.Warn("Account validation failed", "err", err)
			return s.failure(validationErr.Message, LevelError)
		case errors.Is(err, linker.ErrRegistrationBlocked):
			slog.Info("Registration blocked by policy")
			return s.failure(MsgAwaitingActivation, LevelWarning)
		default:
			slog.Error("Account creation failed", "err", err)
			return s.failure(MsgAwaitingActivation, LevelWarning)
		}
	}

	return s.authorize(ctx, sess, account, true)
}

// authorize runs the login authorizer and maps its verdict to a
// terminal outcome.
func (s *Service) authorize(ctx context.Context, sess sessiondata.Store, account linker.Account, newAccount bool) Outcome {
	sessionToken, err := s.authorizer.Authorize(ctx, sess, account)
	if err != nil {
		var denied *authz.DeniedError
		if !errors.As(err, &denied) {
			slog.Error("Session finalization failed", "err", err)
			return s.failure(MsgLoginFailed, LevelError)
		}
		if newAccount {
			// The account exists now but may not log in yet.
			return s.failure(MsgAwaitingActivation, LevelWarning)
		}
		return s.failure(MsgLoginFailed, LevelError)
	}

	if newAccount && s.redirectNewUsersToProfile {
		return Outcome{
			RedirectURL: s.profilePath,
			Message:     MsgReviewDetails,
			Level:       LevelStatus,
			Authorized:  true,
			Token:       sessionToken,
		}
	}

	return Outcome{
		RedirectURL: s.postLoginPath(sess),
		Authorized:  true,
		Token:       sessionToken,
	}
}

// postLoginPath consumes the destination saved before the redirect,
// falling back to the configured default.
func (s *Service) postLoginPath(sess sessiondata.Store) string {
	path, ok := sess.Get(sessiondata.PostLoginPathKey)
	if !ok || path == "" {
		return s.defaultPostLoginPath
	}
	sess.Delete(sessiondata.PostLoginPathKey)
	return path
}

func (s *Service) failure(message string, level Level) Outcome {
	return Outcome{
		RedirectURL: s.loginPath,
		Message:     message,
		Level:       level,
	}
}
