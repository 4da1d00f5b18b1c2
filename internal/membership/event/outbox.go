package event

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ramonsarchive/ascend/internal/membership/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MembershipEvent is the outbox row relayed to downstream consumers.
type MembershipEvent struct {
	ID         snowflake.ID     `gorm:"primaryKey" json:"id"`
	ScopeKind  domain.ScopeKind `gorm:"type:text;not null;index:ix_membership_events_scope,priority:1" json:"scope_kind"`
	ScopeID    snowflake.ID     `gorm:"not null;index:ix_membership_events_scope,priority:2" json:"scope_id"`
	ChangeType ChangeType       `gorm:"type:text;not null" json:"change_type"`
	Payload    datatypes.JSON   `gorm:"type:jsonb;not null" json:"payload"`
	Published  bool             `gorm:"not null;default:false;index" json:"published"`
	CreatedAt  time.Time        `gorm:"not null" json:"created_at"`
}

// TableName sets the database table name.
func (MembershipEvent) TableName() string { return "membership_events" }

type outboxPublisher struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewOutboxPublisher(db *gorm.DB, genID *snowflake.Node) Publisher {
	return &outboxPublisher{
		db:    db,
		genID: genID,
	}
}

func (p *outboxPublisher) Publish(ctx context.Context, evt ChangeEvent) error {
	if evt.ScopeID == 0 || evt.ChangeType == "" {
		return errors.New("missing scope or change type")
	}

	payload, err := json.Marshal(stamped(ctx, evt))
	if err != nil {
		return err
	}

	row := MembershipEvent{
		ID:         p.genID.Generate(),
		ScopeKind:  evt.ScopeKind,
		ScopeID:    evt.ScopeID,
		ChangeType: evt.ChangeType,
		Payload:    datatypes.JSON(payload),
		CreatedAt:  evt.OccurredAt.UTC(),
	}
	return p.db.WithContext(ctx).Create(&row).Error
}
