package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingKey(t *testing.T) {
	assert.Equal(t, "orderdesk:booking:42:2026-05-01", BookingKey(42, " 2026-05-01 "))
}

func TestNormalizeKeysSortsAndDedupes(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, normalizeKeys([]string{"b", "", "a", "b"}))
}

func TestMemoryLockerIsExclusive(t *testing.T) {
	l := NewMemoryLocker(5 * time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), []string{"k2", "k1"})
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				cur := atomic.LoadInt32(&maxInside)
				if n <= cur || atomic.CompareAndSwapInt32(&maxInside, cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
	assert.Empty(t, l.slots)
}

func TestMemoryLockerTimesOut(t *testing.T) {
	l := NewMemoryLocker(20 * time.Millisecond)

	release, err := l.Acquire(context.Background(), []string{"busy"})
	require.NoError(t, err)
	defer release()

	_, err = l.Acquire(context.Background(), []string{"free", "busy"})
	assert.ErrorIs(t, err, ErrLockTimeout)

	// the partially taken key must have been handed back
	other, err := l.Acquire(context.Background(), []string{"free"})
	require.NoError(t, err)
	other()
}

func TestMemoryLockerDisjointKeysDoNotBlock(t *testing.T) {
	l := NewMemoryLocker(20 * time.Millisecond)

	first, err := l.Acquire(context.Background(), []string{"item:1"})
	require.NoError(t, err)
	defer first()

	second, err := l.Acquire(context.Background(), []string{"item:2"})
	require.NoError(t, err)
	second()
	second()
}

func TestMemoryLockerEmptyKeys(t *testing.T) {
	release, err := NewMemoryLocker(0).Acquire(context.Background(), nil)
	require.NoError(t, err)
	release()
}
