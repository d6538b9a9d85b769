// Package hooks defines the extension points the login flow fires at
// well-known moments, so host applications can react to provider
// logins without the flow knowing about them.
package hooks

import (
	"context"

	"github.com/emercoin/emcid-login/pkg/linker"
	"github.com/emercoin/emcid-login/pkg/sessiondata"
)

// Hooks receives notifications at the flow's extension points. Hook
// methods must not fail the flow; anything that can go wrong inside a
// hook is the hook's own problem to log.
type Hooks interface {
	// BeforeRedirect fires just before the user is sent to the
	// provider's authorization page. The session store is writable,
	// so a hook can stash state to pick up on return.
	BeforeRedirect(ctx context.Context, sess sessiondata.Store)

	// AccountCreated fires after a local account has been created for
	// a provider identity seen for the first time.
	AccountCreated(ctx context.Context, account linker.Account, providerUserID string)

	// UserLoggedIn fires after a login has been authorized and the
	// session established.
	UserLoggedIn(ctx context.Context, account linker.Account)
}

// NopHooks ignores every notification.
type NopHooks struct{}

func (NopHooks) BeforeRedirect(context.Context, sessiondata.Store)      {}
func (NopHooks) AccountCreated(context.Context, linker.Account, string) {}
func (NopHooks) UserLoggedIn(context.Context, linker.Account)           {}

// Multi fans each notification out to every registered hook in order.
type Multi struct {
	hooks []Hooks
}

// NewMulti creates a fan-out over the given hooks.
func NewMulti(hooks ...Hooks) *Multi {
	return &Multi{hooks: hooks}
}

func (m *Multi) BeforeRedirect(ctx context.Context, sess sessiondata.Store) {
	for _, h := range m.hooks {
		h.BeforeRedirect(ctx, sess)
	}
}

func (m *Multi) AccountCreated(ctx context.Context, account linker.Account, providerUserID string) {
	for _, h := range m.hooks {
		h.AccountCreated(ctx, account, providerUserID)
	}
}

func (m *Multi) UserLoggedIn(ctx context.Context, account linker.Account) {
	for _, h := range m.hooks {
		h.UserLoggedIn(ctx, account)
	}
}
