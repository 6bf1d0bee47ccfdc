package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/rentpay-backend/pkg/redis"
)

const (
	defaultPeriodLockTTL = 10 * time.Minute
	unrecordedMarker     = "unrecorded"
)

// PeriodKey identifies one agreement's billing period.
type PeriodKey struct {
	CustomerID uuid.UUID
	PropertyID uuid.UUID
	Period     string
}

// PeriodLock serialises charges for the same (customer, property, period)
// across concurrent sweeps.
type PeriodLock interface {
	Acquire(ctx context.Context, key PeriodKey) (bool, error)
	Release(ctx context.Context, key PeriodKey) error
	// Pin keeps the key held until the given time regardless of owner. Used
	// when money moved but the payment row could not be written.
	Pin(ctx context.Context, key PeriodKey, until time.Time) error
}

type periodLockStore interface {
	redis.LockStore
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	BillingPeriodKey(customerID, propertyID, period string) string
}

// RedisPeriodLock implements PeriodLock with SETNX + TTL.
type RedisPeriodLock struct {
	store periodLockStore
	ttl   time.Duration
	owner string
	now   func() time.Time
}

func NewRedisPeriodLock(store periodLockStore, ttl time.Duration) (*RedisPeriodLock, error) {
	if store == nil {
		return nil, errors.New("redis store required for period lock")
	}
	if ttl <= 0 {
		ttl = defaultPeriodLockTTL
	}
	return &RedisPeriodLock{store: store, ttl: ttl, owner: uuid.NewString(), now: time.Now}, nil
}

func (l *RedisPeriodLock) key(k PeriodKey) string {
	return l.store.BillingPeriodKey(k.CustomerID.String(), k.PropertyID.String(), k.Period)
}

func (l *RedisPeriodLock) Acquire(ctx context.Context, key PeriodKey) (bool, error) {
	ok, err := l.store.SetNX(ctx, l.key(key), l.owner, l.ttl)
	if err != nil {
		return false, fmt.Errorf("setnx period lock: %w", err)
	}
	return ok, nil
}

// Release drops the key only while this process still owns it; a pinned key
// is left alone.
func (l *RedisPeriodLock) Release(ctx context.Context, key PeriodKey) error {
	redisKey := l.key(key)
	value, err := l.store.Get(ctx, redisKey)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("read period lock owner: %w", err)
	}
	if value != l.owner {
		return nil
	}
	if err := l.store.Del(ctx, redisKey); err != nil {
		return fmt.Errorf("delete period lock: %w", err)
	}
	return nil
}

func (l *RedisPeriodLock) Pin(ctx context.Context, key PeriodKey, until time.Time) error {
	ttl := until.Sub(l.now())
	if ttl < l.ttl {
		ttl = l.ttl
	}
	if err := l.store.Set(ctx, l.key(key), unrecordedMarker, ttl); err != nil {
		return fmt.Errorf("pin period lock: %w", err)
	}
	return nil
}
