package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// ErrInProgress means another trigger for the same plate holds the lock.
var ErrInProgress = errors.New("payment already in progress for vehicle")

type Lock interface {
	Release(ctx context.Context) error
}

type Locker interface {
	Obtain(ctx context.Context, key string) (Lock, error)
}

type redisLocker struct {
	locker *redislock.Client
	ttl    time.Duration
	opts   *redislock.Options
}

func NewRedisLocker(rds *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{
		locker: redislock.New(rds),
		ttl:    ttl,
		opts: &redislock.Options{
			RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), 3),
		},
	}
}

func (l *redisLocker) Obtain(ctx context.Context, key string) (Lock, error) {
	lock, err := l.locker.Obtain(ctx, key, l.ttl, l.opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrInProgress
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock: %w", err)
	}
	return lock, nil
}

// Guard allows at most one in-flight trigger per plate.
type Guard struct {
	next   Trigger
	locker Locker
}

func NewGuard(next Trigger, locker Locker) *Guard {
	return &Guard{next: next, locker: locker}
}

func (g *Guard) Trigger(ctx context.Context, req Request) (Result, error) {
	lock, err := g.locker.Obtain(ctx, "PAY:"+req.Plate)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			log.Warnf("failed to release payment lock for %s: %s", req.Plate, err)
		}
	}()
	return g.next.Trigger(ctx, req)
}
