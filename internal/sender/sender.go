// Package sender delivers command replies to Twitch chat, pacing them
// through the send token bucket and retrying transient Helix failures.
// A reply that cannot go out in time is dropped, never queued; chat
// messages are worthless late.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Effex-D/twitch-bot/internal/domain"
	"github.com/Effex-D/twitch-bot/internal/metrics"
	"github.com/Effex-D/twitch-bot/internal/platform/retry"
)

const (
	defaultAcquireTimeout   = 5 * time.Second
	defaultMaxAttempts      = 3
	defaultBackoff          = 500 * time.Millisecond
	defaultRateLimitBackoff = 2 * time.Second
)

// tokenBucket is the pacing dependency, satisfied by ratelimit.Bucket.
type tokenBucket interface {
	Acquire(ctx context.Context) error
	Available() int
}

// chatAPI is the Helix dependency, satisfied by twitch.BreakerSender.
type chatAPI interface {
	SendChatMessage(broadcasterID, senderID, message, replyParentMessageID string) error
}

type Config struct {
	BotUserID      string
	AcquireTimeout time.Duration
	Retry          retry.Policy
}

type Sender struct {
	cfg    Config
	bucket tokenBucket
	api    chatAPI
}

func New(cfg Config, bucket tokenBucket, api chatAPI) *Sender {
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = defaultAcquireTimeout
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Policy{
			MaxAttempts:      defaultMaxAttempts,
			Backoff:          defaultBackoff,
			RateLimitBackoff: defaultRateLimitBackoff,
		}
	}
	return &Sender{cfg: cfg, bucket: bucket, api: api}
}

// Send delivers one reply as a threaded chat response. It blocks only its
// caller: first on the rate bucket up to the acquire timeout, then on the
// Helix call with retries. Every outcome is logged and counted; Send never
// returns an error because there is nobody upstream who could act on one.
func (s *Sender) Send(ctx context.Context, event domain.ChatEvent, action domain.Action) {
	if action.Kind != domain.ActionReply {
		return
	}

	start := time.Now()
	defer func() {
		metrics.SendDuration.Observe(time.Since(start).Seconds())
	}()

	acquireCtx, cancel := context.WithTimeout(ctx, s.cfg.AcquireTimeout)
	defer cancel()
	err := s.bucket.Acquire(acquireCtx)
	metrics.RateTokensAvailable.Set(float64(s.bucket.Available()))
	if err != nil {
		metrics.SendsTotal.WithLabelValues("throttled").Inc()
		slog.WarnContext(ctx, "Dropping reply, no send token in time",
			"channel", event.BroadcasterLogin,
			"waited", time.Since(start),
			"error", err,
		)
		return
	}

	policy := s.cfg.Retry
	policy.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.WarnContext(ctx, "Retrying chat send",
			"channel", event.BroadcasterLogin,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)
	}

	err = retry.DoVoid(ctx, policy, classifySend, func() error {
		return s.api.SendChatMessage(event.BroadcasterID, s.cfg.BotUserID, action.Text, event.MessageID)
	})

	var permanent *retry.PermanentError
	switch {
	case err == nil:
		metrics.SendsTotal.WithLabelValues("sent").Inc()
		slog.InfoContext(ctx, "Reply sent",
			"channel", event.BroadcasterLogin,
			"chatter", event.ChatterLogin,
			"duration", time.Since(start),
		)
	case errors.As(err, &permanent):
		metrics.SendsTotal.WithLabelValues("dropped_permanent").Inc()
		slog.WarnContext(ctx, "Dropping reply, permanent rejection",
			"channel", event.BroadcasterLogin,
			"error", err,
		)
	default:
		metrics.SendsTotal.WithLabelValues("dropped_exhausted").Inc()
		slog.WarnContext(ctx, "Dropping reply, retries exhausted",
			"channel", event.BroadcasterLogin,
			"error", err,
		)
	}
}

func classifySend(err error) retry.Action {
	switch domain.Classify(err) {
	case domain.ClassRateLimited:
		return retry.After
	case domain.ClassPermanentAuth, domain.ClassPermanent:
		return retry.Stop
	default:
		return retry.Retry
	}
}
