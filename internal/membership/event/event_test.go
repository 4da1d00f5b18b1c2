package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/ramonsarchive/ascend/internal/config"
	"github.com/ramonsarchive/ascend/internal/membership/domain"
	"github.com/ramonsarchive/ascend/pkg/db"
	"github.com/ramonsarchive/ascend/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recordingPublisher struct {
	events []ChangeEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, evt ChangeEvent) error {
	r.events = append(r.events, evt)
	return r.err
}

func TestOutboxPublisherPersistsEvent(t *testing.T) {
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&MembershipEvent{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	pub := NewOutboxPublisher(conn, node)
	evt := ChangeEvent{
		ScopeKind:  domain.ScopeOrganization,
		ScopeID:    42,
		ChangeType: MemberAdded,
		SubjectID:  7,
		OccurredAt: time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
	}
	ctx := correlation.ContextWithCorrelationID(context.Background(), "corr-9")
	require.NoError(t, pub.Publish(ctx, evt))

	var rows []MembershipEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, MemberAdded, rows[0].ChangeType)
	assert.False(t, rows[0].Published)

	var decoded ChangeEvent
	require.NoError(t, json.Unmarshal(rows[0].Payload, &decoded))
	assert.Equal(t, evt.ScopeID, decoded.ScopeID)
	assert.Equal(t, evt.SubjectID, decoded.SubjectID)
	assert.Equal(t, "corr-9", decoded.Metadata["correlation_id"])
}

func TestOutboxPublisherRejectsIncompleteEvent(t *testing.T) {
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	pub := NewOutboxPublisher(nil, node)
	assert.Error(t, pub.Publish(context.Background(), ChangeEvent{ChangeType: MemberAdded}))
}

func TestMultiPublisherFansOutAndJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingPublisher{}
	failing := &recordingPublisher{err: boom}

	pub := NewMultiPublisher(ok, nil, failing)
	err := pub.Publish(context.Background(), ChangeEvent{ScopeID: 1, ChangeType: LinkCreated})

	assert.ErrorIs(t, err, boom)
	assert.Len(t, ok.events, 1)
	assert.Len(t, failing.events, 1)
}

func TestNewPublisherWithoutSinksIsNoop(t *testing.T) {
	pub := NewPublisher(Params{Cfg: config.Config{}, Log: zaptest.NewLogger(t)})
	assert.IsType(t, noopPublisher{}, pub)

	cfg := config.Config{Events: config.EventsConfig{RedisChannel: "membership"}}
	pub = NewPublisher(Params{Cfg: cfg, Log: zaptest.NewLogger(t)})
	assert.IsType(t, noopPublisher{}, pub)
}
