package mapper

import (
	"context"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChecker reports names and emails from fixed sets as taken.
type fakeChecker struct {
	usernames map[string]bool
	emails    map[string]bool
}

func newFakeChecker() *fakeChecker {
	return &fakeChecker{
		usernames: make(map[string]bool),
		emails:    make(map[string]bool),
	}
}

func (f *fakeChecker) UsernameTaken(_ context.Context, username string) (bool, error) {
	return f.usernames[username], nil
}

func (f *fakeChecker) EmailTaken(_ context.Context, email string) (bool, error) {
	return f.emails[email], nil
}

func TestDeriveUsername(t *testing.T) {
	ctx := context.Background()

	t.Run("NormalizesName", func(t *testing.T) {
		m := New(newFakeChecker())
		name, err := m.DeriveUsername(ctx, " Jane ", "Doe")
		require.NoError(t, err)
		assert.Equal(t, "jane-doe", name)
	})

	t.Run("CollapsesWhitespaceRuns", func(t *testing.T) {
		m := New(newFakeChecker())
		name, err := m.DeriveUsername(ctx, "Mary  Ann", "van  Dyke")
		require.NoError(t, err)
		assert.Equal(t, "mary-ann-van-dyke", name)
	})

	t.Run("DegenerateNameFallsBack", func(t *testing.T) {
		m := New(newFakeChecker())
		// "a b" normalizes to "a-b", length 3, which is degenerate.
		name, err := m.DeriveUsername(ctx, "A", "B")
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^emcid_[a-z0-9]{5}$`), name)
	})

	t.Run("EmptyNameFallsBack", func(t *testing.T) {
		m := New(newFakeChecker())
		name, err := m.DeriveUsername(ctx, "", "")
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^emcid_[a-z0-9]{5}$`), name)
	})

	t.Run("CollisionAppendsSuffix", func(t *testing.T) {
		checker := newFakeChecker()
		checker.usernames["john-doe"] = true

		m := New(checker)
		name, err := m.DeriveUsername(ctx, "John", "Doe")
		require.NoError(t, err)

		assert.NotEqual(t, "john-doe", name)
		assert.Regexp(t, regexp.MustCompile(`^john-doe-[a-z0-9]{5}$`), name)
	})
}

func TestDeriveEmail(t *testing.T) {
	ctx := context.Background()

	t.Run("FreeCandidateUsedUnchanged", func(t *testing.T) {
		m := New(newFakeChecker())
		email, err := m.DeriveEmail(ctx, "jane@example.com", "jane-doe")
		require.NoError(t, err)
		assert.Equal(t, "jane@example.com", email)
	})

	t.Run("EmptyCandidateSynthesized", func(t *testing.T) {
		m := New(newFakeChecker())
		email, err := m.DeriveEmail(ctx, "", "jane")
		require.NoError(t, err)
		assert.Equal(t, "jane@"+ReservedDomain, email)
	})

	t.Run("TakenCandidateSynthesized", func(t *testing.T) {
		checker := newFakeChecker()
		checker.emails["jane@example.com"] = true

		m := New(checker)
		email, err := m.DeriveEmail(ctx, "jane@example.com", "jane-doe")
		require.NoError(t, err)
		assert.Equal(t, "jane-doe@"+ReservedDomain, email)
	})

	t.Run("SynthesizedCollisionSuffixed", func(t *testing.T) {
		checker := newFakeChecker()
		checker.emails["jane@"+ReservedDomain] = true

		m := New(checker)
		email, err := m.DeriveEmail(ctx, "", "jane")
		require.NoError(t, err)

		assert.NotEqual(t, "jane@"+ReservedDomain, email)
		assert.Regexp(t, regexp.MustCompile(`^jane-[a-z0-9]{5}@`+regexp.QuoteMeta(ReservedDomain)+`$`), email)
	})

	t.Run("UsernameWithSpacesFlattened", func(t *testing.T) {
		m := New(newFakeChecker())
		email, err := m.DeriveEmail(ctx, "", " Jane Doe ")
		require.NoError(t, err)
		assert.Equal(t, "janedoe@"+ReservedDomain, email)
	})
}

func TestRandomSuffix(t *testing.T) {
	for i := 0; i < 20; i++ {
		s := randomSuffix()
		assert.Len(t, s, suffixLength)
		for _, r := range s {
			assert.True(t, strings.ContainsRune(suffixCharset, r))
		}
	}
}
