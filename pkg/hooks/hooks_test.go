package hooks

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emercoin/emcid-login/pkg/linker"
	"github.com/emercoin/emcid-login/pkg/notification"
	"github.com/emercoin/emcid-login/pkg/sessiondata"
)

type recordingHooks struct {
	NopHooks
	redirects int
	created   []string
	logins    []string
}

func (r *recordingHooks) BeforeRedirect(context.Context, sessiondata.Store) {
	r.redirects++
}

func (r *recordingHooks) AccountCreated(_ context.Context, account linker.Account, providerUserID string) {
	r.created = append(r.created, providerUserID)
}

func (r *recordingHooks) UserLoggedIn(_ context.Context, account linker.Account) {
	r.logins = append(r.logins, account.Username)
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	first := &recordingHooks{}
	second := &recordingHooks{}
	multi := NewMulti(first, second)

	sess := sessiondata.NewInMemoryManager().For("session-1")
	multi.BeforeRedirect(ctx, sess)
	multi.AccountCreated(ctx, linker.Account{Username: "jane-doe"}, "abc123")
	multi.UserLoggedIn(ctx, linker.Account{Username: "jane-doe"})

	for _, h := range []*recordingHooks{first, second} {
		assert.Equal(t, 1, h.redirects)
		assert.Equal(t, []string{"abc123"}, h.created)
		assert.Equal(t, []string{"jane-doe"}, h.logins)
	}
}

func TestNotifyHooks(t *testing.T) {
	ctx := context.Background()

	newManager := func(t *testing.T) (*notification.NotificationManager, *notification.MockNotifier) {
		t.Helper()
		nm, err := notification.NewNotificationManagerWithOptions(
			"https://example.org", notification.WithDefaultTemplates())
		require.NoError(t, err)
		mock := &notification.MockNotifier{}
		nm.RegisterNotifier(notification.EmailSystem, mock)
		return nm, mock
	}

	t.Run("ActiveAccountGetsWelcome", func(t *testing.T) {
		nm, mock := newManager(t)
		h := NewNotifyHooks(nm, "Example Site")

		h.AccountCreated(ctx, linker.Account{
			ID:       uuid.New(),
			Username: "jane-doe",
			Email:    "a@b.com",
			Status:   linker.StatusActive,
		}, "abc123")

		require.Len(t, mock.SentTypes, 1)
		assert.Equal(t, notification.WelcomeNotice, mock.SentTypes[0])
		assert.Equal(t, "a@b.com", mock.SentNotifications[0].To)
		assert.Equal(t, "Example Site", mock.SentNotifications[0].Data["SiteName"])
	})

	t.Run("BlockedAccountGetsPendingNotice", func(t *testing.T) {
		nm, mock := newManager(t)
		h := NewNotifyHooks(nm, "Example Site")

		h.AccountCreated(ctx, linker.Account{
			ID:       uuid.New(),
			Username: "jane-doe",
			Email:    "a@b.com",
			Status:   linker.StatusBlocked,
		}, "abc123")

		require.Len(t, mock.SentTypes, 1)
		assert.Equal(t, notification.AccountPendingNotice, mock.SentTypes[0])
	})
}
