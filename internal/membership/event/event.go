// Package event announces membership changes so read caches can be
// invalidated per scope.
package event

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/pkg/telemetry/correlation"
)

type ChangeType string

const (
	MemberAdded          ChangeType = "MEMBER_ADDED"
	MemberRoleChanged    ChangeType = "MEMBER_ROLE_CHANGED"
	MemberRemoved        ChangeType = "MEMBER_REMOVED"
	InviteCreated        ChangeType = "INVITE_CREATED"
	InviteAccepted       ChangeType = "INVITE_ACCEPTED"
	InviteDeclined       ChangeType = "INVITE_DECLINED"
	InviteRevoked        ChangeType = "INVITE_REVOKED"
	LinkCreated          ChangeType = "LINK_CREATED"
	LinkAccepted         ChangeType = "LINK_ACCEPTED"
	LinkRevoked          ChangeType = "LINK_REVOKED"
	JoinRequestCreated   ChangeType = "JOIN_REQUEST_CREATED"
	JoinRequestReviewed  ChangeType = "JOIN_REQUEST_REVIEWED"
	JoinRequestCancelled ChangeType = "JOIN_REQUEST_CANCELLED"
)

// ChangeEvent is emitted after a membership mutation commits.
type ChangeEvent struct {
	ScopeKind  domain.ScopeKind `json:"scope_kind"`
	ScopeID    snowflake.ID     `json:"scope_id"`
	ChangeType ChangeType       `json:"change_type"`
	SubjectID  snowflake.ID     `json:"subject_id,omitempty"`
	ActorID    snowflake.ID     `json:"actor_id,omitempty"`
	OccurredAt time.Time        `json:"occurred_at"`
	// Metadata carries correlation and trace ids of the request that caused the change.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// stamped fills Metadata from ctx unless the caller already set it.
func stamped(ctx context.Context, evt ChangeEvent) ChangeEvent {
	if evt.Metadata == nil {
		evt.Metadata = correlation.TraceMetadata(ctx)
	}
	return evt
}

type Publisher interface {
	Publish(ctx context.Context, evt ChangeEvent) error
}

type noopPublisher struct{}

func NewNoopPublisher() Publisher { return noopPublisher{} }

func (noopPublisher) Publish(context.Context, ChangeEvent) error { return nil }

type multiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher fans an event out to every publisher and joins their errors.
func NewMultiPublisher(publishers ...Publisher) Publisher {
	filtered := make([]Publisher, 0, len(publishers))
	for _, p := range publishers {
		if p != nil {
			filtered = append(filtered, p)
		}
	}
	return &multiPublisher{publishers: filtered}
}

func (m *multiPublisher) Publish(ctx context.Context, evt ChangeEvent) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
