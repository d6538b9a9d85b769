package authflow

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emercoin/emcid-login/pkg/authz"
	"github.com/emercoin/emcid-login/pkg/emcid"
	"github.com/emercoin/emcid-login/pkg/hooks"
	"github.com/emercoin/emcid-login/pkg/linker"
	"github.com/emercoin/emcid-login/pkg/sessiondata"
	"github.com/emercoin/emcid-login/pkg/token"
)

// fakeProvider serves the token and infocard endpoints of an
// EmercoinID provider.
type fakeProvider struct {
	server *httptest.Server

	accessToken string
	serial      string
	infocard    map[string]string
	exchangeErr map[string]string // error/error_description body, if set
	exchanges   int
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	fp := &fakeProvider{
		accessToken: "tok-1",
		serial:      "ABC123",
		infocard: map[string]string{
			"Email":     "a@b.com",
			"FirstName": "Jane",
			"LastName":  "Doe",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		fp.exchanges++
		w.Header().Set("Content-Type", "application/json")
		if fp.exchangeErr != nil {
			json.NewEncoder(w).Encode(fp.exchangeErr)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"access_token": fp.accessToken})
	})
	mux.HandleFunc("/infocard/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"SSL_CLIENT_M_SERIAL": fp.serial,
			"infocard":            fp.infocard,
		})
	})

	fp.server = httptest.NewServer(mux)
	t.Cleanup(fp.server.Close)
	return fp
}

func (fp *fakeProvider) providerConfig() emcid.Provider {
	return emcid.Provider{
		ClientID:     "client",
		ClientSecret: "secret",
		AuthPageURL:  fp.server.URL + "/auth",
		TokenPageURL: fp.server.URL + "/token",
		InfocardURL:  fp.server.URL + "/infocard",
	}
}

type fixture struct {
	flow     *Service
	provider *fakeProvider
	accounts *linker.InMemoryAccountRepository
	bindings *linker.InMemoryBindingRepository
	sessions *sessiondata.InMemoryManager
}

func (f *fixture) session() sessiondata.Store {
	return f.sessions.For("session-1")
}

func newFixture(t *testing.T, mode linker.RegistrationMode, authzConfig authz.Config, flowOpts ...Option) *fixture {
	t.Helper()

	fp := newFakeProvider(t)
	provider := fp.providerConfig()
	client := emcid.NewClient(&provider)

	accounts := linker.NewInMemoryAccountRepository()
	bindings := linker.NewInMemoryBindingRepository()
	linkerSvc := linker.NewService(accounts, bindings,
		linker.WithRegistrationMode(mode),
		linker.WithDefaultRoles("authenticated"),
	)

	issuer := token.NewIssuer("flow-test-secret-32-characters!!!!!!", "emcid-login", "emcid-app")
	authorizer := authz.NewService(authzConfig, token.NewSessionFinalizer(issuer))

	flow := NewService(provider, client, linkerSvc, authorizer,
		"https://app.example/login/return", flowOpts...)

	return &fixture{
		flow:     flow,
		provider: fp,
		accounts: accounts,
		bindings: bindings,
		sessions: sessiondata.NewInMemoryManager(),
	}
}

func validCallback() CallbackParams {
	return CallbackParams{Code: "code-1", State: "state-1"}
}

func TestInitiateLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("BuildsAuthURLAndSavesPath", func(t *testing.T) {
		f := newFixture(t, linker.RegisterVisitors, authz.Config{})
		sess := f.session()

		authURL, err := f.flow.InitiateLogin(ctx, sess, "/docs")
		require.NoError(t, err)
		assert.Contains(t, authURL, "client_id=client")
		assert.Contains(t, authURL, "response_type=code")

		saved, ok := sess.Get(sessiondata.PostLoginPathKey)
		require.True(t, ok)
		assert.Equal(t, "/docs", saved)
	})

	t.Run("FiresBeforeRedirectHook", func(t *testing.T) {
		fired := 0
		hook := &redirectCounter{count: &fired}
		f := newFixture(t, linker.RegisterVisitors, authz.Config{}, WithHooks(hook))

		_, err := f.flow.InitiateLogin(ctx, f.session(), "")
		require.NoError(t, err)
		assert.Equal(t, 1, fired)
	})

	t.Run("UnconfiguredProviderFails", func(t *testing.T) {
		f := newFixture(t, linker.RegisterVisitors, authz.Config{})
		f.flow.provider = emcid.Provider{}

		_, err := f.flow.InitiateLogin(ctx, f.session(), "")
		assert.ErrorIs(t, err, emcid.ErrNotConfigured)
	})
}

type redirectCounter struct {
	hooks.NopHooks
	count *int
}

func (r *redirectCounter) BeforeRedirect(context.Context, sessiondata.Store) {
	*r.count++
}

func TestCompleteLogin(t *testing.T) {
	ctx := context.Background()

	t.Run("FirstSeenIdentityFullFlow", func(t *testing.T) {
		f := newFixture(t, linker.RegisterVisitors, authz.Config{})
		sess := f.session()

		outcome := f.flow.CompleteLogin(ctx, sess, validCallback())

		require.True(t, outcome.Authorized)
		assert.Equal(t, "/", outcome.RedirectURL)
		assert.NotEmpty(t, outcome.Token)

		// The account was created from the identity and bound.
		boundID, err := f.bindings.GetAccountID(ctx, "abc123")
		require.NoError(t, err)
		account, err := f.accounts.GetByID(ctx, boundID)
		require.NoError(t, err)
		assert.Equal(t, "jane-doe", account.Username)
		assert.Equal(t, "a@b.com", account.Email)
		assert.Equal(t, linker.StatusActive, account.Status)

		// The session holds both tokens.
		accessToken, ok := sess.Get(sessiondata.AccessTokenKey)
		require.True(t, ok)
		assert.Equal(t, "tok-1", accessToken)
		sessionToken, ok := sess.Get(sessiondata.SessionTokenKey)
		require.True(t, ok)
		assert.Equal(t, outcome.Token, sessionToken)
	})

	t.Run("NewUserRedirectedToProfile", func(t *testing.T) {
		f := newFixture(t, linker.RegisterVisitors, authz.Config{},
			WithProfileRedirect("/profile"))

		outcome := f.flow.CompleteLogin(ctx, f.session(), validCallback())

		require.True(t, outcome.Authorized)
		assert.Equal(t, "/profile", outcome.RedirectURL)
		assert.Equal(t, MsgReviewDetails, outcome.Message)
		assert.Equal(t, LevelStatus, outcome.Level)
	})

	t.Run("ReturningUserUsesSavedPath", func(t *testing.T) {
		f := newFixture(t, linker.RegisterVisitors, authz.Config{},
			WithProfileRedirect("/profile"))
		sess := f.session()

		// First login creates the account.
		first := f.flow.CompleteLogin(ctx, sess, validCallback())
		require.True(t, first.Authorized)

		// Second login is a plain login of a known identity; the saved
		// path wins over the profile redirect.
		_, err := f.flow.InitiateLogin(ctx, sess, "/docs")
		require.NoError(t, err)
		second := f.flow.CompleteLogin(ctx, sess, validCallback())

		require.True(t, second.Authorized)
		assert.Equal(t, "/docs", second.RedirectURL)
		assert.Empty(t, second.Message)

		// No duplicate account appeared.
		assert.Equal(t, 1, f.bindings.Count())
	})

	t.Run("ProviderDenialNeverEstablishesSession", func(t *testing.T) {
		f := newFixture(t, linker.RegisterVisitors, authz.Config{})
		sess := f.session()

		outcome := f.flow.CompleteLogin(ctx, sess, CallbackParams{
			Error:            "access_denied",
			ErrorDescription: "User rejected the request",
		})

		assert.False(t, outcome.Authorized)
		assert.Equal(t, "/login", outcome.RedirectURL)
		assert.Equal(t, "User rejected the request", outcome.Message)
		assert.Equal(t, LevelError, outcome.Level)

		// No token exchange happened and nothing reached the session.
		assert.Equal(t, 0, f.provider.exchanges)
		_, ok := sess.Get(sessiondata.AccessTokenKey)
		assert.False(t, ok)
		_, ok = sess.Get(sessiondata.SessionTokenKey)
		assert.False(t, ok)
		assert.Equal(t, 0, f.bindings.Count())
	})

	t.Run("MissingCodeDenied", func(t *testing.T) {
		f := newFixture(t, linker.RegisterVisitors, authz.Config{})

		outcome := f.flow.CompleteLogin(ctx, f.session(), CallbackParams{State: "state-1"})

		assert.False(t, outcome.Authorized)
		assert.Equal(t, MsgAccessDenied, outcome.Message)
	})

	t.Run("NotConfigured", func(t *testing.T) {
		f := newFixture(t, linker.RegisterVisitors, authz.Config{})
		f.flow.provider = emcid.Provider{}

		outcome := f.flow.CompleteLogin(ctx, f.session(), validCallback())

		assert.False(t, outcome.Authorized)
		assert.Equal(t, MsgNotConfigured, outcome.Message)
	})

	t.Run("TokenExchangeErrorSurfacesDescription", func(t *testing.T) {
		f := newFixture(t, linker.RegisterVisitors, authz.Config{})
		f.provider.exchangeErr = map[string]string{
			"error":             "invalid_grant",
			"error_description": "Code expired",
		}

		outcome := f.flow.CompleteLogin(ctx, f.session(), validCallback())

		assert.False(t, outcome.Authorized)
		assert.Equal(t, "Code expired", outcome.Message)
	})

	t.Run("MissingSerialIsInvalidUser", func(t *testing.T) {
		f := newFixture(t, linker.RegisterVisitors, authz.Config{})
		f.provider.serial = ""
		sess := f.session()

		outcome := f.flow.CompleteLogin(ctx, sess, validCallback())

		assert.False(t, outcome.Authorized)
		assert.Equal(t, MsgInvalidUser, outcome.Message)

		// The stored token was cleared on the failure branch.
		_, ok := sess.Get(sessiondata.AccessTokenKey)
		assert.False(t, ok)
	})

	t.Run("ApprovalModeNewUserAwaitsActivation", func(t *testing.T) {
		f := newFixture(t, linker.RegisterVisitorsApproval, authz.Config{})
		sess := f.session()

		outcome := f.flow.CompleteLogin(ctx, sess, validCallback())

		assert.False(t, outcome.Authorized)
		assert.Equal(t, MsgAwaitingActivation, outcome.Message)
		assert.Equal(t, LevelWarning, outcome.Level)

		// The account exists, blocked, with its binding; the token was
		// dropped with the denied login.
		boundID, err := f.bindings.GetAccountID(ctx, "abc123")
		require.NoError(t, err)
		account, err := f.accounts.GetByID(ctx, boundID)
		require.NoError(t, err)
		assert.Equal(t, linker.StatusBlocked, account.Status)

		_, ok := sess.Get(sessiondata.AccessTokenKey)
		assert.False(t, ok)
	})

	t.Run("RegistrationBlockedInAdminOnlyMode", func(t *testing.T) {
		f := newFixture(t, linker.RegisterAdminOnly, authz.Config{})

		outcome := f.flow.CompleteLogin(ctx, f.session(), validCallback())

		assert.False(t, outcome.Authorized)
		assert.Equal(t, MsgAwaitingActivation, outcome.Message)
		assert.Equal(t, 0, f.bindings.Count())
	})

	t.Run("RoleDisabledClearsToken", func(t *testing.T) {
		f := newFixture(t, linker.RegisterVisitors, authz.Config{
			DisabledRoles: []string{"editor"},
		})
		sess := f.session()

		// First login binds the account, then the host grants it a
		// role the policy shuts out.
		first := f.flow.CompleteLogin(ctx, sess, validCallback())
		require.True(t, first.Authorized)

		boundID, err := f.bindings.GetAccountID(ctx, "abc123")
		require.NoError(t, err)
		account, err := f.accounts.GetByID(ctx, boundID)
		require.NoError(t, err)
		account.Roles = []string{"authenticated", "editor"}
		require.NoError(t, f.accounts.Update(ctx, account))

		outcome := f.flow.CompleteLogin(ctx, sess, validCallback())

		assert.False(t, outcome.Authorized)
		assert.Equal(t, MsgLoginFailed, outcome.Message)
		_, ok := sess.Get(sessiondata.AccessTokenKey)
		assert.False(t, ok)
	})
}
