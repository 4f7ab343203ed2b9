package eventsub

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Effex-D/twitch-bot/internal/domain"
	"github.com/Effex-D/twitch-bot/internal/metrics"
	"github.com/Effex-D/twitch-bot/internal/platform/correlation"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	defaultWelcomeTimeout   = 10 * time.Second
	defaultSubscribeTimeout = 10 * time.Second
	defaultInitialBackoff   = 1 * time.Second
	defaultMaxBackoff       = 60 * time.Second
	defaultKeepalive        = 30 * time.Second

	subTypeChatMessage = "channel.chat.message"
)

// State is the session lifecycle position. Values match the
// eventsub_session_state gauge.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAwaitingWelcome
	StateSubscribing
	StateActive
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAwaitingWelcome:
		return "awaiting_welcome"
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Handler processes one decoded chat event. Called on its own goroutine
// per event; ordering across events is not guaranteed.
type Handler func(ctx context.Context, event domain.ChatEvent)

// subscriptionAPI is the Helix subset the manager needs.
type subscriptionAPI interface {
	CreateChatSubscription(broadcasterID, botUserID, sessionID string) (string, error)
}

// Broadcaster is one configured channel to join.
type Broadcaster struct {
	ID    string
	Login string
}

type Config struct {
	URL          string
	BotUserID    string
	Broadcasters []Broadcaster

	WelcomeTimeout   time.Duration
	SubscribeTimeout time.Duration
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
}

func (cfg *Config) applyDefaults() {
	if cfg.WelcomeTimeout <= 0 {
		cfg.WelcomeTimeout = defaultWelcomeTimeout
	}
	if cfg.SubscribeTimeout <= 0 {
		cfg.SubscribeTimeout = defaultSubscribeTimeout
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = defaultInitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
}

// Manager owns the single live EventSub session. All session fields are
// mutated only by the Run goroutine; State and SessionID are safe to read
// from anywhere.
type Manager struct {
	cfg     Config
	api     subscriptionAPI
	handler Handler
	clock   clockwork.Clock
	dialer  *websocket.Dialer
	rng     *rand.Rand

	state atomic.Int32

	mu            sync.Mutex
	conn          *websocket.Conn
	sessionID     string
	subscriptions map[string]string // subscription id -> broadcaster id
}

func NewManager(cfg Config, api subscriptionAPI, handler Handler, clock clockwork.Clock) *Manager {
	cfg.applyDefaults()
	return &Manager{
		cfg:     cfg,
		api:     api,
		handler: handler,
		clock:   clock,
		dialer:  websocket.DefaultDialer,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// SessionID returns the platform-assigned ID of the current session, or ""
// when no session is established.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// SubscribedBroadcasters returns the broadcaster IDs with a confirmed
// subscription on the current session.
func (m *Manager) SubscribedBroadcasters() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.subscriptions))
	for _, broadcasterID := range m.subscriptions {
		ids = append(ids, broadcasterID)
	}
	return ids
}

// Run connects and keeps the session alive until ctx is cancelled.
// It returns nil on shutdown and an error only for permanent auth
// rejection, which the caller must treat as fatal.
func (m *Manager) Run(ctx context.Context) error {
	defer m.setState(StateDisconnected)

	backoff := m.cfg.InitialBackoff
	for {
		wasActive, err := m.runSession(ctx)
		if ctx.Err() != nil {
			slog.Info("Session manager shutting down")
			return nil
		}
		if domain.Classify(err) == domain.ClassPermanentAuth {
			return fmt.Errorf("eventsub session failed permanently: %w", err)
		}

		if wasActive {
			backoff = m.cfg.InitialBackoff
		}

		m.setState(StateReconnecting)
		delay := backoff + m.jitter(backoff)
		slog.Warn("Session lost, reconnecting", "error", err, "backoff", delay)

		select {
		case <-m.clock.After(delay):
		case <-ctx.Done():
			return nil
		}
		backoff = min(backoff*2, m.cfg.MaxBackoff)
	}
}

// jitter returns a random delay up to half of base, so a fleet of bots
// does not stampede the endpoint after an outage.
func (m *Manager) jitter(base time.Duration) time.Duration {
	if base <= 1 {
		return 0
	}
	return time.Duration(m.rng.Int63n(int64(base / 2)))
}

// runSession drives one connection through the full lifecycle. wasActive
// reports whether the session reached Active, which resets the backoff.
func (m *Manager) runSession(ctx context.Context) (wasActive bool, err error) {
	m.setState(StateConnecting)
	conn, err := m.dial(ctx, m.cfg.URL)
	if err != nil {
		metrics.ReconnectsTotal.WithLabelValues("dial_error").Inc()
		return false, fmt.Errorf("failed to dial eventsub: %w", err)
	}
	m.setConn(conn)
	defer m.teardown()

	// The watcher unblocks the read loop on shutdown by closing the
	// socket out from under it.
	sessionDone := make(chan struct{})
	defer close(sessionDone)
	go func() {
		select {
		case <-ctx.Done():
			m.closeConn()
		case <-sessionDone:
		}
	}()

	m.setState(StateAwaitingWelcome)
	welcome, err := awaitWelcome(conn, m.cfg.WelcomeTimeout)
	if err != nil {
		metrics.ReconnectsTotal.WithLabelValues("welcome_timeout").Inc()
		return false, err
	}

	keepalive := time.Duration(welcome.Session.KeepaliveTimeoutSeconds) * time.Second
	if keepalive <= 0 {
		keepalive = defaultKeepalive
	}

	m.setSession(welcome.Session.ID, nil)
	slog.Info("EventSub welcome received", "session_id", welcome.Session.ID, "keepalive", keepalive)

	m.setState(StateSubscribing)
	subs, err := m.subscribeAll(ctx, welcome.Session.ID)
	if err != nil {
		metrics.ReconnectsTotal.WithLabelValues("subscribe_failed").Inc()
		return false, err
	}
	m.setSession(welcome.Session.ID, subs)

	m.setState(StateActive)
	slog.Info("Session active", "session_id", welcome.Session.ID, "channels", len(subs))

	// Silence beyond twice the keepalive interval means the connection
	// is dead even if the TCP socket still looks healthy.
	return true, m.readLoop(ctx, 2*keepalive)
}

func (m *Manager) dial(ctx context.Context, url string) (*websocket.Conn, error) {
	conn, resp, err := m.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: status %d: %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

// awaitWelcome reads frames until the session welcome arrives. Anything
// else this early is dropped; the platform sends welcome first.
func awaitWelcome(conn *websocket.Conn, timeout time.Duration) (*sessionPayload, error) {
	deadline := time.Now().Add(timeout)
	for {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("failed to set welcome deadline: %w", err)
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("no welcome frame within %v: %w", timeout, err)
		}

		f, err := decodeFrame(data)
		if err != nil {
			return nil, fmt.Errorf("bad frame while awaiting welcome: %w", err)
		}
		metrics.FramesReceived.WithLabelValues(f.Metadata.MessageType).Inc()

		if f.Metadata.MessageType != msgWelcome {
			slog.Debug("Ignoring pre-welcome frame", "type", f.Metadata.MessageType)
			continue
		}

		welcome, err := f.sessionPayload()
		if err != nil {
			return nil, err
		}
		if welcome.Session.ID == "" {
			return nil, fmt.Errorf("welcome frame missing session id")
		}
		return welcome, nil
	}
}

// subscribeAll registers every configured channel on the session. All
// requests are fired concurrently; every one must confirm inside the
// subscribe window. Auth rejection here is fatal for the process.
func (m *Manager) subscribeAll(ctx context.Context, sessionID string) (map[string]string, error) {
	subCtx, cancel := context.WithTimeout(ctx, m.cfg.SubscribeTimeout)
	defer cancel()

	type result struct {
		broadcaster Broadcaster
		subID       string
		err         error
	}
	results := make(chan result, len(m.cfg.Broadcasters))
	for _, b := range m.cfg.Broadcasters {
		b := b
		go func() {
			subID, err := m.api.CreateChatSubscription(b.ID, m.cfg.BotUserID, sessionID)
			results <- result{broadcaster: b, subID: subID, err: err}
		}()
	}

	subs := make(map[string]string, len(m.cfg.Broadcasters))
	for range m.cfg.Broadcasters {
		select {
		case r := <-results:
			if r.err != nil {
				return nil, fmt.Errorf("failed to subscribe %s: %w", r.broadcaster.Login, r.err)
			}
			slog.Info("Subscribed to chat", "channel", r.broadcaster.Login, "subscription_id", r.subID)
			subs[r.subID] = r.broadcaster.ID
		case <-subCtx.Done():
			return nil, fmt.Errorf("subscription confirmation timed out: %w", subCtx.Err())
		}
	}
	return subs, nil
}

// readLoop routes frames until the connection dies or ctx is cancelled.
// Chat notifications are dispatched on their own goroutines so a slow
// command or a contended rate bucket never stalls keepalive handling;
// websocket pings are answered by the transport's default ping handler,
// which shares no path with outbound chat sends.
func (m *Manager) readLoop(ctx context.Context, watchdog time.Duration) error {
	for {
		conn := m.currentConn()
		if conn == nil {
			return fmt.Errorf("connection closed")
		}
		if err := conn.SetReadDeadline(time.Now().Add(watchdog)); err != nil {
			return fmt.Errorf("failed to arm watchdog: %w", err)
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				metrics.ReconnectsTotal.WithLabelValues("keepalive_timeout").Inc()
				return fmt.Errorf("no frames within %v, connection presumed dead: %w", watchdog, err)
			}
			metrics.ReconnectsTotal.WithLabelValues("read_error").Inc()
			return fmt.Errorf("read failed: %w", err)
		}

		f, err := decodeFrame(data)
		if err != nil {
			slog.Warn("Dropping malformed frame", "error", err)
			continue
		}
		metrics.FramesReceived.WithLabelValues(f.Metadata.MessageType).Inc()

		switch f.Metadata.MessageType {
		case msgKeepalive:
			// Receipt alone re-arms the watchdog.

		case msgNotification:
			m.handleNotification(ctx, f)

		case msgReconnect:
			if err := m.handleReconnectDirective(ctx, f, &watchdog); err != nil {
				return err
			}

		case msgRevocation:
			m.handleRevocation(f)

		default:
			slog.Debug("Ignoring unexpected frame", "type", f.Metadata.MessageType)
		}
	}
}

func (m *Manager) handleNotification(ctx context.Context, f *frame) {
	payload, err := f.notificationPayload()
	if err != nil {
		slog.Warn("Dropping malformed notification", "error", err)
		return
	}
	if payload.Subscription.Type != subTypeChatMessage {
		slog.Debug("Ignoring notification", "subscription_type", payload.Subscription.Type)
		return
	}

	event, err := payload.chatEvent()
	if err != nil {
		slog.Warn("Dropping malformed chat event", "error", err)
		return
	}

	// Each event is an independent unit of work. The read loop moves on
	// immediately; replies may leave out of arrival order.
	go m.dispatch(ctx, event)
}

func (m *Manager) dispatch(ctx context.Context, event domain.ChatEvent) {
	ctx = correlation.WithID(ctx, correlation.NewID())
	slog.InfoContext(ctx, "Chat message",
		"channel", event.BroadcasterLogin,
		"chatter", event.ChatterLogin,
		"text", event.Text,
	)
	m.handler(ctx, event)
}

// handleReconnectDirective dials the replacement URL the platform gave us,
// waits for its welcome, then swaps sockets. Subscriptions migrate with
// the session, so no re-subscribe happens here; if anything fails we fall
// back to a full reconnect.
func (m *Manager) handleReconnectDirective(ctx context.Context, f *frame, watchdog *time.Duration) error {
	payload, err := f.sessionPayload()
	if err != nil {
		return fmt.Errorf("bad reconnect directive: %w", err)
	}
	if payload.Session.ReconnectURL == "" {
		return fmt.Errorf("reconnect directive missing url")
	}

	metrics.ReconnectsTotal.WithLabelValues("reconnect_directive").Inc()
	slog.Info("Reconnect directive received", "url", payload.Session.ReconnectURL)

	newConn, err := m.dial(ctx, payload.Session.ReconnectURL)
	if err != nil {
		return fmt.Errorf("reconnect directive dial failed: %w", err)
	}

	welcome, err := awaitWelcome(newConn, m.cfg.WelcomeTimeout)
	if err != nil {
		newConn.Close()
		return fmt.Errorf("reconnect directive welcome failed: %w", err)
	}

	m.swapConn(newConn)
	m.mu.Lock()
	m.sessionID = welcome.Session.ID
	m.mu.Unlock()

	if ka := time.Duration(welcome.Session.KeepaliveTimeoutSeconds) * time.Second; ka > 0 {
		*watchdog = 2 * ka
	}

	slog.Info("Swapped to replacement session", "session_id", welcome.Session.ID)
	return nil
}

func (m *Manager) handleRevocation(f *frame) {
	payload, err := f.notificationPayload()
	if err != nil {
		slog.Warn("Dropping malformed revocation", "error", err)
		return
	}

	m.mu.Lock()
	broadcasterID := m.subscriptions[payload.Subscription.ID]
	delete(m.subscriptions, payload.Subscription.ID)
	remaining := len(m.subscriptions)
	m.mu.Unlock()

	metrics.SubscriptionsActive.Set(float64(remaining))
	slog.Warn("Subscription revoked",
		"subscription_id", payload.Subscription.ID,
		"broadcaster_id", broadcasterID,
		"status", payload.Subscription.Status,
	)
}

func (m *Manager) setState(s State) {
	m.state.Store(int32(s))
	metrics.SessionState.Set(float64(s))
}

func (m *Manager) setSession(sessionID string, subs map[string]string) {
	m.mu.Lock()
	m.sessionID = sessionID
	m.subscriptions = subs
	m.mu.Unlock()
	metrics.SubscriptionsActive.Set(float64(len(subs)))
}

func (m *Manager) setConn(conn *websocket.Conn) {
	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()
}

func (m *Manager) currentConn() *websocket.Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn
}

func (m *Manager) closeConn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		m.conn.Close()
	}
}

// swapConn installs the replacement socket and closes the old one.
func (m *Manager) swapConn(newConn *websocket.Conn) {
	m.mu.Lock()
	old := m.conn
	m.conn = newConn
	m.mu.Unlock()
	if old != nil {
		old.Close()
	}
}

// teardown closes the socket and clears per-session state after the
// session ends, whatever the reason.
func (m *Manager) teardown() {
	m.closeConn()
	m.mu.Lock()
	m.conn = nil
	m.sessionID = ""
	m.subscriptions = nil
	m.mu.Unlock()
	metrics.SubscriptionsActive.Set(0)
}
