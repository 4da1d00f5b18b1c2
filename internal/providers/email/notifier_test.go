package email_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/internal/providers/email"
	"github.com/ramonsarchive/ascend/internal/providers/email/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteNotifierUsesInviteTemplate(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)

	message := "see you there"
	expires := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)

	provider.EXPECT().
		SendTemplate(gomock.Any(), []string{"u2@x.com"}, email.TemplateInviteMember, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ []string, _ string, data map[string]any) error {
			assert.Equal(t, "Acme", data["scope_name"])
			assert.Equal(t, "MEMBER", data["role"])
			assert.Equal(t, "https://app.test/invite/tok", data["join_url"])
			assert.Equal(t, message, data["message"])
			assert.Contains(t, data["expires_at"], "2025")
			return nil
		})

	n := email.NewInviteNotifier(provider)
	err := n.SendInviteEmail(context.Background(), domain.InviteEmail{
		ToEmail:   "u2@x.com",
		ScopeKind: domain.ScopeOrganization,
		ScopeName: "Acme",
		Role:      domain.RoleMember,
		JoinURL:   "https://app.test/invite/tok",
		Message:   &message,
		ExpiresAt: &expires,
	})
	require.NoError(t, err)
}

func TestInviteNotifierPropagatesProviderError(t *testing.T) {
	ctrl := gomock.NewController(t)
	provider := mocks.NewMockProvider(ctrl)
	boom := errors.New("smtp down")
	provider.EXPECT().SendTemplate(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(boom)

	err := email.NewInviteNotifier(provider).SendInviteEmail(context.Background(), domain.InviteEmail{ToEmail: "a@b.c"})
	assert.ErrorIs(t, err, boom)
}

func TestRenderEmbeddedInviteTemplate(t *testing.T) {
	body, err := email.Render("", email.TemplateInviteMember, map[string]any{
		"scope_name": "Hack <Week>",
		"role":       "PARTICIPANT",
		"join_url":   "https://app.test/invite/abc",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Hack &lt;Week&gt;")
	assert.Contains(t, body, "https://app.test/invite/abc")
	assert.NotContains(t, body, "expires on")
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "You're invited to join Acme", email.Subject(email.TemplateInviteMember, map[string]any{"scope_name": "Acme"}))
	assert.Equal(t, "Custom", email.Subject(email.TemplateInviteMember, map[string]any{"subject": "Custom"}))
	assert.Equal(t, "Notification from Ascend", email.Subject("other", nil))
}
