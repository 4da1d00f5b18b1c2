package ratelimit

import (
	"github.com/ramonsarchive/ascend/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("rate.limit",
	fx.Provide(NewLimiter),
)

type Params struct {
	fx.In

	Cfg    config.Config
	Rules  *config.MembershipConfigHolder
	Log    *zap.Logger
	Client *redis.Client `optional:"true"`
}

func NewLimiter(p Params) Limiter {
	if !p.Cfg.RateLimit.Enabled {
		return NewNoop()
	}
	if p.Client == nil {
		p.Log.Warn("rate limiting enabled without redis; limits are not enforced")
		return NewNoop()
	}
	return NewBucketLimiter(NewTokenBucket(p.Client), p.Rules, p.Log)
}
