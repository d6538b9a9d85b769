package config

import (
	"github.com/google/uuid"

	"github.com/emercoin/emcid-login/pkg/linker"
)

// LoginConfig contains login policy settings.
// Fields have no env tags - populate manually or use NewLoginConfigFromEnv() for standard env var names.
type LoginConfig struct {
	// RegistrationMode controls what happens when a never-seen identity
	// logs in: "visitors", "visitors_admin_approval" or "admin_only"
	RegistrationMode string

	// DefaultRoles are assigned to accounts created by provider logins
	DefaultRoles []string

	// DisableAdminLogin blocks provider logins into the superuser account
	DisableAdminLogin bool

	// SuperuserID is the distinguished administrator account, if any
	SuperuserID string

	// DisabledRoles lists roles that must not log in through the provider
	DisabledRoles []string

	// RedirectNewUsersToProfile sends first-login users to their profile
	// page instead of the saved destination
	RedirectNewUsersToProfile bool

	// PostLoginPath is where users land after login when nothing better
	// is recorded in the session
	PostLoginPath string

	// ProfilePath is where first-login users are sent when
	// RedirectNewUsersToProfile is set
	ProfilePath string
}

// DefaultLoginConfig returns a LoginConfig with sensible defaults
func DefaultLoginConfig() LoginConfig {
	return LoginConfig{
		RegistrationMode:          string(linker.RegisterVisitorsApproval),
		DefaultRoles:              []string{"authenticated"},
		DisableAdminLogin:         true,
		RedirectNewUsersToProfile: true,
		PostLoginPath:             "/",
		ProfilePath:               "/profile",
	}
}

// NewLoginConfigFromEnv loads LoginConfig from standard environment variables.
//
// Environment variables:
//   - LOGIN_REGISTRATION_MODE: Registration mode (default: "visitors_admin_approval")
//   - LOGIN_DEFAULT_ROLES: Comma-separated roles for new accounts (default: "authenticated")
//   - LOGIN_DISABLE_ADMIN: Block provider logins for the superuser (default: true)
//   - LOGIN_SUPERUSER_ID: UUID of the superuser account
//   - LOGIN_DISABLED_ROLES: Comma-separated roles denied provider login
//   - LOGIN_REDIRECT_NEW_USERS_TO_PROFILE: Send first-login users to their profile (default: true)
//   - LOGIN_POST_LOGIN_PATH: Default post-login destination (default: "/")
//   - LOGIN_PROFILE_PATH: Profile page path (default: "/profile")
func NewLoginConfigFromEnv() LoginConfig {
	defaults := DefaultLoginConfig()
	return LoginConfig{
		RegistrationMode:          GetEnvOrDefault("LOGIN_REGISTRATION_MODE", defaults.RegistrationMode),
		DefaultRoles:              GetEnvSlice("LOGIN_DEFAULT_ROLES", defaults.DefaultRoles),
		DisableAdminLogin:         GetEnvBool("LOGIN_DISABLE_ADMIN", defaults.DisableAdminLogin),
		SuperuserID:               GetEnv("LOGIN_SUPERUSER_ID"),
		DisabledRoles:             GetEnvSlice("LOGIN_DISABLED_ROLES", nil),
		RedirectNewUsersToProfile: GetEnvBool("LOGIN_REDIRECT_NEW_USERS_TO_PROFILE", defaults.RedirectNewUsersToProfile),
		PostLoginPath:             GetEnvOrDefault("LOGIN_POST_LOGIN_PATH", defaults.PostLoginPath),
		ProfilePath:               GetEnvOrDefault("LOGIN_PROFILE_PATH", defaults.ProfilePath),
	}
}

// Superuser parses the configured superuser id, returning uuid.Nil
// when none is set or the value is not a UUID
func (c *LoginConfig) Superuser() uuid.UUID {
	if c.SuperuserID == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(c.SuperuserID)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// Mode returns the registration mode, falling back to approval-gated
// registration on unknown values
func (c *LoginConfig) Mode() linker.RegistrationMode {
	switch linker.RegistrationMode(c.RegistrationMode) {
	case linker.RegisterAdminOnly, linker.RegisterVisitors, linker.RegisterVisitorsApproval:
		return linker.RegistrationMode(c.RegistrationMode)
	default:
		return linker.RegisterVisitorsApproval
	}
}
