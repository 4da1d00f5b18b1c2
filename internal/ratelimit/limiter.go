package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/ramonsarchive/ascend/internal/config"
	"go.uber.org/zap"
)

// Limiter gates an operation for a subject (user id or client IP).
type Limiter interface {
	Allow(ctx context.Context, operation, subject string) (bool, error)
}

// Key builds the bucket key for an operation and subject.
func Key(operation, subject string) string {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		subject = "anonymous"
	}
	return fmt.Sprintf("rl:%s:%s", operation, subject)
}

type noopLimiter struct{}

// NewNoop returns a limiter that allows everything.
func NewNoop() Limiter { return noopLimiter{} }

func (noopLimiter) Allow(context.Context, string, string) (bool, error) { return true, nil }

type bucketLimiter struct {
	bucket *TokenBucket
	rules  *config.MembershipConfigHolder
	log    *zap.Logger
}

// NewBucketLimiter applies per-operation rules from the membership config to a
// redis token bucket.
func NewBucketLimiter(bucket *TokenBucket, rules *config.MembershipConfigHolder, log *zap.Logger) Limiter {
	return &bucketLimiter{bucket: bucket, rules: rules, log: log.Named("ratelimit")}
}

func (l *bucketLimiter) Allow(ctx context.Context, operation, subject string) (bool, error) {
	rule := l.rules.Get().RateLimitFor(operation)
	res, err := l.bucket.Take(ctx, Key(operation, subject), rule.Rate, rule.Burst)
	if err != nil {
		return false, err
	}
	if !res.Allowed {
		l.log.Debug("rate limited",
			zap.String("operation", operation),
			zap.String("subject", subject),
			zap.Duration("retry_after", res.RetryAfter),
		)
	}
	return res.Allowed, nil
}
