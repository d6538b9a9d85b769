package token

import (
	"context"
	"fmt"

	"github.com/emercoin/emcid-login/pkg/linker"
	"github.com/emercoin/emcid-login/pkg/sessiondata"
)

// SessionFinalizer issues a token for the account and records it in
// the session store. It satisfies the authorizer's finalizer contract.
type SessionFinalizer struct {
	issuer *Issuer
}

// NewSessionFinalizer creates a finalizer backed by the issuer.
func NewSessionFinalizer(issuer *Issuer) *SessionFinalizer {
	return &SessionFinalizer{issuer: issuer}
}

// Finalize issues the session token and stores it under the session's
// token key.
func (f *SessionFinalizer) Finalize(_ context.Context, sess sessiondata.Store, account linker.Account) (string, error) {
	signed, _, err := f.issuer.IssueToken(account)
	if err != nil {
		return "", fmt.Errorf("failed to issue session token: %w", err)
	}
	sess.Set(sessiondata.SessionTokenKey, signed)
	return signed, nil
}
