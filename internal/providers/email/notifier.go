package email

import (
	"context"
	"time"

	"github.com/ramonsarchive/ascend/internal/membership/domain"
)

const TemplateInviteMember = "invite_member"

type inviteNotifier struct {
	provider Provider
}

// NewInviteNotifier renders invitations through the invite_member template.
func NewInviteNotifier(provider Provider) domain.Notifier {
	return &inviteNotifier{provider: provider}
}

func (n *inviteNotifier) SendInviteEmail(ctx context.Context, email domain.InviteEmail) error {
	data := map[string]any{
		"scope_name": email.ScopeName,
		"scope_kind": string(email.ScopeKind),
		"role":       string(email.Role),
		"join_url":   email.JoinURL,
	}
	if email.Message != nil && *email.Message != "" {
		data["message"] = *email.Message
	}
	if email.ExpiresAt != nil {
		data["expires_at"] = email.ExpiresAt.UTC().Format(time.RFC1123)
	}
	return n.provider.SendTemplate(ctx, []string{email.ToEmail}, TemplateInviteMember, data)
}
