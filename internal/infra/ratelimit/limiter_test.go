package ratelimit

import (
	"context"
	"fmt"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_Burst(t *testing.T) {
	l := New(testContext(t), 1, 2, 100, time.Hour)

	require.True(t, l.Allow("a"))
	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"))
	require.True(t, l.Allow("b"), "keys are limited independently")
}

func TestLimiter_EvictIdle(t *testing.T) {
	l := New(testContext(t), 1, 1, 100, time.Hour)
	require.True(t, l.Allow("a"))
	require.False(t, l.Allow("a"))

	l.evictIdle(time.Now().Add(2 * time.Hour))
	require.Zero(t, l.Len())
	require.True(t, l.Allow("a"), "a forgotten key starts with a full bucket")
}

func TestLimiter_CacheSizeBound(t *testing.T) {
	l := New(testContext(t), 1, 1, 3, time.Hour)
	for i := 0; i < 10; i++ {
		l.Allow(fmt.Sprintf("k%d", i))
	}
	require.Equal(t, 3, l.Len())

	// a non-positive size falls back to the default instead of failing
	d := New(testContext(t), 1, 1, 0, time.Hour)
	require.True(t, d.Allow("x"))
	require.Equal(t, 1, d.Len())
}

func TestLimiter_SweeperStopsWithContext(t *testing.T) {
	before := runtime.NumGoroutine()

	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 100; i++ {
		New(ctx, 1, 1, 10, time.Hour)
	}

	cancel()
	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before+5
	}, 2*time.Second, 10*time.Millisecond)
}
