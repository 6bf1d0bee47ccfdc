package billing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/rentpay-backend/pkg/redis"
)

type fakeLockStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeLockStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeLockStore) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	f.values[key] = value.(string)
	f.ttls[key] = ttl
	return nil
}

func (f *fakeLockStore) Get(_ context.Context, key string) (string, error) {
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeLockStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.values, key)
	}
	return nil
}

func (f *fakeLockStore) BillingPeriodKey(customerID, propertyID, period string) string {
	return "rentpay:billing:" + customerID + ":" + propertyID + ":" + period
}

func TestRedisPeriodLockAcquireRelease(t *testing.T) {
	store := newFakeLockStore()
	lock, err := NewRedisPeriodLock(store, time.Minute)
	require.NoError(t, err)
	other, err := NewRedisPeriodLock(store, time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	key := PeriodKey{CustomerID: uuid.New(), PropertyID: uuid.New(), Period: "2026-03"}

	ok, err := lock.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = other.Acquire(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, other.Release(ctx, key))
	assert.Len(t, store.values, 1)

	require.NoError(t, lock.Release(ctx, key))
	assert.Empty(t, store.values)

	require.NoError(t, lock.Release(ctx, key))
}

func TestRedisPeriodLockPinSurvivesRelease(t *testing.T) {
	store := newFakeLockStore()
	lock, err := NewRedisPeriodLock(store, time.Minute)
	require.NoError(t, err)
	now := time.Date(2026, time.March, 5, 9, 30, 0, 0, time.UTC)
	lock.now = func() time.Time { return now }

	ctx := context.Background()
	key := PeriodKey{CustomerID: uuid.New(), PropertyID: uuid.New(), Period: "2026-03"}
	_, err = lock.Acquire(ctx, key)
	require.NoError(t, err)

	until := time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, lock.Pin(ctx, key, until))
	require.NoError(t, lock.Release(ctx, key))

	redisKey := store.BillingPeriodKey(key.CustomerID.String(), key.PropertyID.String(), key.Period)
	assert.Equal(t, unrecordedMarker, store.values[redisKey])
	assert.Equal(t, until.Sub(now), store.ttls[redisKey])
}
