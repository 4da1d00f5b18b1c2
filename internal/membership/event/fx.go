package event

import (
	"github.com/bwmarrin/snowflake"
	"github.com/ramonsarchive/ascend/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("membership.event",
	fx.Provide(NewPublisher),
)

type Params struct {
	fx.In

	Cfg    config.Config
	DB     *gorm.DB
	GenID  *snowflake.Node
	Log    *zap.Logger
	Client *redis.Client `optional:"true"`
}

// NewPublisher assembles the configured sinks: the outbox table and/or a
// redis channel.
func NewPublisher(p Params) Publisher {
	var sinks []Publisher
	if p.Cfg.Events.Outbox {
		sinks = append(sinks, NewOutboxPublisher(p.DB, p.GenID))
	}
	if p.Cfg.Events.RedisChannel != "" {
		if p.Client == nil {
			p.Log.Warn("events redis channel set without redis", zap.String("channel", p.Cfg.Events.RedisChannel))
		} else {
			sinks = append(sinks, NewRedisPublisher(p.Client, p.Cfg.Events.RedisChannel))
		}
	}
	if len(sinks) == 0 {
		return NewNoopPublisher()
	}
	return NewMultiPublisher(sinks...)
}
