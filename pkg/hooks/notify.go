package hooks

import (
	"context"
	"log/slog"

	"github.com/emercoin/emcid-login/pkg/linker"
	"github.com/emercoin/emcid-login/pkg/notification"
	"github.com/emercoin/emcid-login/pkg/utils"
)

// NotifyHooks emails new accounts about their standing: a pending
// notice when the account awaits approval, a welcome otherwise.
type NotifyHooks struct {
	NopHooks
	manager  *notification.NotificationManager
	siteName string
}

// NewNotifyHooks creates hooks that send notices through the manager.
func NewNotifyHooks(manager *notification.NotificationManager, siteName string) *NotifyHooks {
	return &NotifyHooks{manager: manager, siteName: siteName}
}

func (h *NotifyHooks) AccountCreated(ctx context.Context, account linker.Account, providerUserID string) {
	noticeType := notification.WelcomeNotice
	if account.Status == linker.StatusBlocked {
		noticeType = notification.AccountPendingNotice
	}

	data := notification.NotificationData{
		To: account.Email,
		Data: map[string]string{
			"Username":   account.Username,
			"SiteName":   h.siteName,
			"ProfileUrl": h.manager.BaseURL() + "/profile",
		},
	}

	if err := h.manager.Send(noticeType, notification.EmailSystem, data); err != nil {
		// Notices are best effort; the account is already created.
		slog.Error("Failed to send account notice",
			"type", noticeType, "email", utils.MaskEmail(account.Email), "err", err)
	}
}

var _ Hooks = (*NotifyHooks)(nil)
