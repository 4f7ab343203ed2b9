package twitch

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/Effex-D/twitch-bot/internal/domain"
	"github.com/Effex-D/twitch-bot/internal/metrics"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
)

// chatSender is the part of Client that BreakerSender wraps.
type chatSender interface {
	SendChatMessage(broadcasterID, senderID, message, replyParentMessageID string) error
}

// BreakerSender adds circuit breaker protection to the chat send path.
// When Helix is down or consistently erroring, the breaker fails fast so
// queued replies drain instead of piling up behind a dead API.
type BreakerSender struct {
	inner chatSender
	cb    circuitbreaker.CircuitBreaker[any]
}

// NewBreakerSender wraps sender with a circuit breaker:
// - WithFailureRateThreshold: 60% failure rate, min 5 requests, 10s rolling window
// - WithDelay: 30s before transitioning from open to half-open
// - WithSuccessThreshold: 1 successful request in half-open to close
func NewBreakerSender(inner chatSender) *BreakerSender {
	cb := circuitbreaker.NewBuilder[any]().
		WithFailureRateThreshold(0.6, 5, 10*time.Second).
		WithDelay(30 * time.Second).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			slog.Warn("Circuit breaker state changed",
				"component", "helix_send",
				"from", e.OldState.String(),
				"to", e.NewState.String(),
			)
			metrics.CircuitBreakerState.Set(stateToFloat(e.NewState))
		}).
		Build()

	return &BreakerSender{inner: inner, cb: cb}
}

func stateToFloat(state circuitbreaker.State) float64 {
	switch state {
	case circuitbreaker.ClosedState:
		return 0
	case circuitbreaker.HalfOpenState:
		return 1
	case circuitbreaker.OpenState:
		return 2
	default:
		return -1
	}
}

func (bs *BreakerSender) SendChatMessage(broadcasterID, senderID, message, replyParentMessageID string) error {
	if !bs.cb.TryAcquirePermit() {
		return &domain.APIError{
			Class:      domain.ClassTransient,
			StatusCode: http.StatusServiceUnavailable,
			Err:        circuitbreaker.ErrOpen,
		}
	}

	err := bs.inner.SendChatMessage(broadcasterID, senderID, message, replyParentMessageID)
	if err == nil {
		bs.cb.RecordSuccess()
		return nil
	}

	// Auth and other permanent rejections say nothing about Helix health,
	// so they must not trip the breaker.
	switch domain.Classify(err) {
	case domain.ClassTransient, domain.ClassRateLimited:
		bs.cb.RecordError(err)
	default:
		bs.cb.RecordSuccess()
	}
	return err
}

// State exposes the breaker state for tests and readiness reporting.
func (bs *BreakerSender) State() circuitbreaker.State {
	return bs.cb.State()
}

// IsBreakerError reports whether err is a fast-fail from the open breaker.
func IsBreakerError(err error) bool {
	return errors.Is(err, circuitbreaker.ErrOpen)
}
