package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Effex-D/twitch-bot/internal/domain"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire_ImmediateWhenTokenAvailable(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBucket(1, 1, time.Second, clock)
	defer b.Close()
	clock.BlockUntil(1) // refill loop is on its ticker

	require.NoError(t, b.Acquire(context.Background()))
	assert.Equal(t, 0, b.Available())
}

func TestAcquire_SecondCallWaitsForRefill(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBucket(1, 1, time.Second, clock)
	defer b.Close()
	clock.BlockUntil(1)

	require.NoError(t, b.Acquire(context.Background()))

	done := make(chan error, 1)
	go func() {
		done <- b.Acquire(context.Background())
	}()

	select {
	case err := <-done:
		t.Fatalf("second acquire completed before refill: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	clock.Advance(time.Second)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("second acquire did not complete after refill")
	}
}

func TestAcquire_DeadlineReturnsThrottled(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBucket(1, 1, time.Minute, clock)
	defer b.Close()
	clock.BlockUntil(1)

	require.NoError(t, b.Acquire(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Acquire(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrThrottled))
}

func TestRefill_NeverExceedsCapacity(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBucket(2, 5, time.Second, clock)
	defer b.Close()
	clock.BlockUntil(1)

	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		clock.BlockUntil(1)
	}

	assert.Equal(t, 2, b.Available())
}

func TestRefill_CadenceIndependentOfConsumption(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBucket(2, 2, time.Second, clock)
	defer b.Close()
	clock.BlockUntil(1)

	require.NoError(t, b.Acquire(context.Background()))
	require.NoError(t, b.Acquire(context.Background()))
	assert.Equal(t, 0, b.Available())

	// One tick restores the full refill amount regardless of when the
	// tokens were taken.
	clock.Advance(time.Second)
	clock.BlockUntil(1)
	assert.Equal(t, 2, b.Available())
}

func TestAcquire_AfterCloseReturnsThrottled(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := NewBucket(1, 1, time.Second, clock)
	clock.BlockUntil(1)

	require.NoError(t, b.Acquire(context.Background()))
	b.Close()

	err := b.Acquire(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrThrottled))
}

func TestNewBucket_PanicsOnInvalidSettings(t *testing.T) {
	assert.Panics(t, func() { NewBucket(0, 1, time.Second, clockwork.NewFakeClock()) })
	assert.Panics(t, func() { NewBucket(1, 0, time.Second, clockwork.NewFakeClock()) })
	assert.Panics(t, func() { NewBucket(1, 1, 0, clockwork.NewFakeClock()) })
}
