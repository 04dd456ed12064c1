package authflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	errRateLimited        = errors.New("rate limited")
	errLimiterUnavailable = errors.New("rate limiter backend unavailable")
)

// flowLimiter enforces a per-identifier (and optionally per-IP) attempt
// budget for one flow using Redis counters with a cooldown TTL.
type flowLimiter struct {
	redis    redis.UniversalClient
	prefix   string
	max      int
	cooldown time.Duration
	perIP    bool
}

func newFlowLimiter(client redis.UniversalClient, prefix string, max int, cooldown time.Duration, perIP bool) *flowLimiter {
	if client == nil {
		return nil
	}
	return &flowLimiter{
		redis:    client,
		prefix:   prefix,
		max:      max,
		cooldown: cooldown,
		perIP:    perIP,
	}
}

func (l *flowLimiter) idKey(identifier string) string {
	return l.prefix + ":id:" + identifier
}

func (l *flowLimiter) ipKey(ip string) string {
	return l.prefix + ":ip:" + ip
}

// Check reports whether identifier+ip is still within budget. A nil limiter
// allows everything.
func (l *flowLimiter) Check(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	if err := l.checkCounter(ctx, l.idKey(identifier)); err != nil {
		return err
	}
	if l.perIP && ip != "" {
		if err := l.checkCounter(ctx, l.ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// Increment records one attempt. Returns errRateLimited when the attempt
// pushed the counter over budget.
func (l *flowLimiter) Increment(ctx context.Context, identifier, ip string) error {
	if l == nil {
		return nil
	}
	count, err := l.incrementWithTTL(ctx, l.idKey(identifier))
	if err != nil {
		return err
	}
	if count > int64(l.max) {
		return errRateLimited
	}
	if l.perIP && ip != "" {
		count, err = l.incrementWithTTL(ctx, l.ipKey(ip))
		if err != nil {
			return err
		}
		if count > int64(l.max) {
			return errRateLimited
		}
	}
	return nil
}

func (l *flowLimiter) checkCounter(ctx context.Context, key string) error {
	count, err := l.redis.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", errLimiterUnavailable, err)
	}
	if count >= int64(l.max) {
		return errRateLimited
	}
	return nil
}

func (l *flowLimiter) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, l.cooldown)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", errLimiterUnavailable, err)
	}
	return incr.Val(), nil
}
