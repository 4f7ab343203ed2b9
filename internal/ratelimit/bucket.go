// Package ratelimit implements the outbound send pacing as a token bucket.
//
// Refill happens on a fixed cadence independent of consumption, so a burst
// that drains the bucket never delays the next scheduled refill. Waiters
// suspend on the token channel only; nothing here can block the session's
// read loop.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Effex-D/twitch-bot/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Bucket is a token bucket. The buffered token channel is the single piece
// of state shared between the refill loop and concurrent acquirers.
type Bucket struct {
	tokens   chan struct{}
	refill   int
	interval time.Duration
	clock    clockwork.Clock

	stop     chan struct{}
	stopOnce sync.Once
}

// NewBucket creates a bucket that starts full with capacity tokens and
// regains up to refill tokens every interval. Close must be called to stop
// the refill loop.
func NewBucket(capacity, refill int, interval time.Duration, clock clockwork.Clock) *Bucket {
	if capacity < 1 || refill < 1 || interval <= 0 {
		panic(fmt.Sprintf("ratelimit: invalid bucket settings capacity=%d refill=%d interval=%v", capacity, refill, interval))
	}

	tokens := make(chan struct{}, capacity)
	for i := 0; i < capacity; i++ {
		tokens <- struct{}{}
	}

	b := &Bucket{
		tokens:   tokens,
		refill:   refill,
		interval: interval,
		clock:    clock,
		stop:     make(chan struct{}),
	}
	go b.run()
	return b
}

func (b *Bucket) run() {
	ticker := b.clock.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			// Tokens beyond capacity are discarded.
			for i := 0; i < b.refill; i++ {
				select {
				case b.tokens <- struct{}{}:
				default:
				}
			}
		case <-b.stop:
			return
		}
	}
}

// Acquire consumes one token, blocking the caller until one is available
// or ctx expires. On expiry it returns domain.ErrThrottled so callers can
// drop the message instead of sending late.
func (b *Bucket) Acquire(ctx context.Context) error {
	select {
	case <-b.tokens:
		return nil
	default:
	}

	select {
	case <-b.tokens:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", domain.ErrThrottled, ctx.Err())
	case <-b.stop:
		return fmt.Errorf("%w: bucket closed", domain.ErrThrottled)
	}
}

// Available reports the current token count. Used for metrics only.
func (b *Bucket) Available() int {
	return len(b.tokens)
}

// Close stops the refill loop and releases all waiters.
func (b *Bucket) Close() {
	b.stopOnce.Do(func() { close(b.stop) })
}
