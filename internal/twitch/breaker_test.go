package twitch

import (
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/Effex-D/twitch-bot/internal/domain"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSender struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubSender) SendChatMessage(broadcasterID, senderID, message, replyParentMessageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.err
}

func (s *stubSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestBreakerSenderPassesThroughSuccess(t *testing.T) {
	inner := &stubSender{}
	bs := NewBreakerSender(inner)

	err := bs.SendChatMessage("123", "789", "hi", "")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.callCount())
	assert.Equal(t, circuitbreaker.ClosedState, bs.State())
}

func TestBreakerSenderOpensOnTransientFailures(t *testing.T) {
	inner := &stubSender{err: &domain.APIError{
		Class:      domain.ClassTransient,
		StatusCode: http.StatusBadGateway,
		Err:        errors.New("bad gateway"),
	}}
	bs := NewBreakerSender(inner)

	for i := 0; i < 5; i++ {
		err := bs.SendChatMessage("123", "789", "hi", "")
		require.Error(t, err)
	}
	assert.Equal(t, circuitbreaker.OpenState, bs.State())

	// Open breaker fails fast without touching Helix.
	before := inner.callCount()
	err := bs.SendChatMessage("123", "789", "hi", "")
	require.Error(t, err)
	assert.True(t, IsBreakerError(err))
	assert.Equal(t, domain.ClassTransient, domain.Classify(err))
	assert.Equal(t, before, inner.callCount())
}

func TestBreakerSenderIgnoresPermanentRejections(t *testing.T) {
	inner := &stubSender{err: &domain.APIError{
		Class:      domain.ClassPermanent,
		StatusCode: http.StatusBadRequest,
		Err:        errors.New("message too long"),
	}}
	bs := NewBreakerSender(inner)

	// Permanent rejections say nothing about Helix health and must not
	// trip the breaker no matter how many arrive.
	for i := 0; i < 10; i++ {
		err := bs.SendChatMessage("123", "789", "hi", "")
		require.Error(t, err)
		assert.False(t, IsBreakerError(err))
	}
	assert.Equal(t, circuitbreaker.ClosedState, bs.State())
	assert.Equal(t, 10, inner.callCount())
}
