// Package mapper derives stable local account attributes from a provider
// identity: a unique username built from the certificate holder's name and
// a unique email address, synthesized under a reserved local domain when
// the certificate carries none.
package mapper

import (
	"context"
	"fmt"
	"math/rand/v2"
	"regexp"
	"strings"
)

const (
	// FallbackPrefix starts usernames generated for degenerate names.
	FallbackPrefix = "emcid_"

	// ReservedDomain hosts synthesized addresses for accounts whose
	// certificate carries no email. Nothing is ever delivered there.
	ReservedDomain = "emercoinid.local"

	suffixLength  = 5
	suffixCharset = "abcdefghijklmnopqrstuvwxyz0123456789"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// UniquenessChecker reports whether a candidate username or email is
// already used by an existing account. Implemented by the account
// repository.
type UniquenessChecker interface {
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
}

// IdentityMapper generates collision-free username and email candidates.
type IdentityMapper struct {
	checker UniquenessChecker
}

// New creates an IdentityMapper backed by the given uniqueness checker.
func New(checker UniquenessChecker) *IdentityMapper {
	return &IdentityMapper{checker: checker}
}

// DeriveUsername turns the certificate holder's name into a unique local
// username. The name is lower-cased, trimmed and internal whitespace runs
// become single hyphens. Degenerate names (normalized length of three or
// less) fall back to FallbackPrefix plus a random suffix. On collision a
// fresh suffix is appended until the name is free.
func (m *IdentityMapper) DeriveUsername(ctx context.Context, firstName, lastName string) (string, error) {
	base := strings.ToLower(strings.TrimSpace(firstName + " " + lastName))
	base = whitespaceRun.ReplaceAllString(base, "-")

	candidate := base
	if len(base) <= 3 {
		base = FallbackPrefix
		candidate = FallbackPrefix + randomSuffix()
	}

	for {
		taken, err := m.checker.UsernameTaken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("checking username %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		// 36^5 suffix space; terminates almost surely after one retry.
		candidate = base + "-" + randomSuffix()
	}
}

// DeriveEmail returns the certificate email when it is present and not
// already used by another account. Otherwise it synthesizes an address
// under ReservedDomain from the username, suffixing on collision until
// unique.
func (m *IdentityMapper) DeriveEmail(ctx context.Context, candidateEmail, username string) (string, error) {
	if candidateEmail != "" {
		taken, err := m.checker.EmailTaken(ctx, candidateEmail)
		if err != nil {
			return "", fmt.Errorf("checking email %q: %w", candidateEmail, err)
		}
		if !taken {
			return candidateEmail, nil
		}
	}

	local := strings.ToLower(strings.TrimSpace(username))
	local = whitespaceRun.ReplaceAllString(local, "")

	candidate := local + "@" + ReservedDomain
	for {
		taken, err := m.checker.EmailTaken(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("checking email %q: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
		candidate = local + "-" + randomSuffix() + "@" + ReservedDomain
	}
}

// randomSuffix returns five characters from [a-z0-9]. Collision
// avoidance only, not a security token.
func randomSuffix() string {
	b := make([]byte, suffixLength)
	for i := range b {
		b[i] = suffixCharset[rand.IntN(len(suffixCharset))]
	}
	return string(b)
}
