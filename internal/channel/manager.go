package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"legal-review-client/internal/pkg/logger"

	"github.com/cenkalti/backoff/v5"
	"github.com/fasthttp/websocket"
	"github.com/google/uuid"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 8 << 20

	defaultMaxAttempts = 5
	defaultBaseDelay   = 2 * time.Second
)

var ErrNotConnected = errors.New("channel is not open")

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateClosed       State = "closed"
	StateFailed       State = "failed"
)

// Handler receives one inbound message. Handlers run on the connection's
// read loop, one at a time, in arrival order.
type Handler func(Message)

// afterFunc schedules f and returns a stop function.
type afterFunc func(d time.Duration, f func()) func() bool

func realAfter(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

// Manager owns the single persistent channel to the backend for one session.
type Manager struct {
	baseURL      string
	dialer       Dialer
	logger       logger.ILogger
	backoff      *linearBackOff
	pingInterval time.Duration
	after        afterFunc

	mu        sync.Mutex
	state     State
	sessionID string
	transport Transport
	gen       uint64
	stopTimer func() bool
	ctx       context.Context
	cancel    context.CancelFunc

	writeMu sync.Mutex

	subsMu   sync.RWMutex
	handlers map[string][]*Subscription
}

type Option func(*Manager)

func WithDialer(d Dialer) Option {
	return func(m *Manager) { m.dialer = d }
}

func WithReconnect(maxAttempts int, baseDelay time.Duration) Option {
	return func(m *Manager) { m.backoff = newLinearBackOff(baseDelay, maxAttempts) }
}

// WithPingInterval enables keepalive frames; zero disables them.
func WithPingInterval(d time.Duration) Option {
	return func(m *Manager) { m.pingInterval = d }
}

func withAfterFunc(f afterFunc) Option {
	return func(m *Manager) { m.after = f }
}

func NewManager(wsBaseURL string, log logger.ILogger, opts ...Option) *Manager {
	m := &Manager{
		baseURL:  wsBaseURL,
		dialer:   NewWebsocketDialer(writeWait),
		logger:   log,
		backoff:  newLinearBackOff(defaultBaseDelay, defaultMaxAttempts),
		after:    realAfter,
		state:    StateDisconnected,
		handlers: make(map[string][]*Subscription),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// Open starts connecting to the session endpoint. It is a no-op while the
// channel is already open or connecting. Opening a closed or failed manager
// starts a fresh retry budget.
func (m *Manager) Open(ctx context.Context, sessionID string) {
	m.mu.Lock()
	if m.state == StateOpen || m.state == StateConnecting {
		m.mu.Unlock()
		return
	}
	m.sessionID = sessionID
	m.backoff.Reset()
	m.ctx, m.cancel = context.WithCancel(context.WithoutCancel(ctx))
	m.gen++
	gen := m.gen
	m.state = StateConnecting
	m.mu.Unlock()

	m.emitState(StateConnecting)
	go m.connect(gen)
}

func (m *Manager) endpoint() string {
	return fmt.Sprintf("%s/ws/%s", m.baseURL, m.sessionID)
}

func (m *Manager) connect(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != StateConnecting {
		m.mu.Unlock()
		return
	}
	url := m.endpoint()
	ctx := m.ctx
	m.mu.Unlock()

	t, err := m.dialer.Dial(ctx, url)
	if err != nil {
		m.logger.Warn("Channel", "Dial failed", map[string]interface{}{"url": url, "error": err.Error()})
		m.handleDisconnect(gen, err)
		return
	}

	m.mu.Lock()
	if gen != m.gen || m.state != StateConnecting {
		// Closed while dialing.
		m.mu.Unlock()
		t.Close()
		return
	}
	m.transport = t
	m.state = StateOpen
	m.backoff.Reset()
	m.mu.Unlock()

	m.logger.Info("Channel", "Connected", map[string]interface{}{"url": url})
	m.emitState(StateOpen)

	done := make(chan struct{})
	if m.pingInterval > 0 {
		go m.pingLoop(done)
	}
	go m.readLoop(gen, t, done)
}

func (m *Manager) readLoop(gen uint64, t Transport, done chan struct{}) {
	defer close(done)
	for {
		_, data, err := t.ReadMessage()
		if err != nil {
			t.Close()
			m.handleDisconnect(gen, err)
			return
		}
		m.handleFrame(data)
	}
}

func (m *Manager) pingLoop(done <-chan struct{}) {
	ticker := time.NewTicker(m.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := m.Send(map[string]string{"type": TypePing}); err != nil {
				return
			}
		}
	}
}

// handleDisconnect runs after an unexpected close or a failed dial.
func (m *Manager) handleDisconnect(gen uint64, cause error) {
	m.mu.Lock()
	if gen != m.gen || m.state == StateClosed || m.state == StateFailed {
		m.mu.Unlock()
		return
	}
	m.transport = nil
	prev := m.state

	delay := m.backoff.NextBackOff()
	if delay == backoff.Stop {
		attempts := m.backoff.Attempts()
		m.state = StateFailed
		m.mu.Unlock()

		m.logger.Error("Channel", "Reconnect attempts exhausted", map[string]interface{}{"attempts": attempts, "error": cause.Error()})
		m.emitState(StateFailed)
		m.dispatch(localMessage(EventConnectionFailed, map[string]interface{}{
			"message":  "connection lost, reload to reconnect",
			"attempts": attempts,
		}))
		return
	}

	attempt := m.backoff.Attempts()
	m.gen++
	next := m.gen
	m.state = StateConnecting
	m.stopTimer = m.after(delay, func() { m.connect(next) })
	m.mu.Unlock()

	m.logger.Warn("Channel", "Connection lost, scheduling reconnect", map[string]interface{}{
		"attempt": attempt,
		"delay":   delay.String(),
		"error":   cause.Error(),
	})
	if prev != StateConnecting {
		m.emitState(StateConnecting)
	}
}

// Close releases the transport and suppresses any further reconnect.
func (m *Manager) Close() {
	m.mu.Lock()
	prev := m.state
	m.state = StateClosed
	m.gen++
	if m.stopTimer != nil {
		m.stopTimer()
		m.stopTimer = nil
	}
	if m.cancel != nil {
		m.cancel()
	}
	t := m.transport
	m.transport = nil
	m.mu.Unlock()

	if t != nil {
		m.writeMu.Lock()
		_ = t.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		m.writeMu.Unlock()
		t.Close()
	}
	if prev != StateClosed {
		m.emitState(StateClosed)
	}
}

// Send writes v as one JSON frame. When the channel is not open the frame is
// dropped, the drop is logged and ErrNotConnected is returned.
func (m *Manager) Send(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	m.mu.Lock()
	state := m.state
	t := m.transport
	m.mu.Unlock()

	if state != StateOpen || t == nil {
		m.logger.Warn("Channel", "Send skipped, channel not open", map[string]interface{}{"state": state})
		return ErrNotConnected
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := t.WriteMessage(websocket.TextMessage, data); err != nil {
		m.logger.Error("Channel", "Write failed", map[string]interface{}{"error": err.Error()})
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

func (m *Manager) handleFrame(data []byte) {
	msg, err := parseFrame(data)
	if err != nil {
		m.logger.Warn("Channel", "Dropping malformed frame", map[string]interface{}{"error": err.Error(), "size": len(data)})
		return
	}
	m.dispatch(msg)
}

func (m *Manager) emitState(s State) {
	m.dispatch(localMessage(EventConnectionState, map[string]interface{}{"state": s}))
}

// Subscription is returned by Subscribe; Unsubscribe may be called any
// number of times from any goroutine, including from inside a handler.
type Subscription struct {
	manager   *Manager
	eventType string
	id        uuid.UUID
	handler   Handler
	removed   atomic.Bool
	once      sync.Once
}

func (s *Subscription) ID() uuid.UUID {
	return s.id
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(func() {
		s.removed.Store(true)
		s.manager.remove(s)
	})
}

// Subscribe registers handler for eventType. Handlers for the same type run
// in registration order.
func (m *Manager) Subscribe(eventType string, handler Handler) *Subscription {
	sub := &Subscription{
		manager:   m,
		eventType: eventType,
		id:        uuid.New(),
		handler:   handler,
	}

	m.subsMu.Lock()
	m.handlers[eventType] = append(m.handlers[eventType], sub)
	m.subsMu.Unlock()

	return sub
}

func (m *Manager) remove(sub *Subscription) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()

	subs := m.handlers[sub.eventType]
	for i, s := range subs {
		if s.id == sub.id {
			next := make([]*Subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			m.handlers[sub.eventType] = next
			break
		}
	}
	if len(m.handlers[sub.eventType]) == 0 {
		delete(m.handlers, sub.eventType)
	}
}

func (m *Manager) dispatch(msg Message) {
	m.subsMu.RLock()
	subs := append([]*Subscription(nil), m.handlers[msg.Type]...)
	m.subsMu.RUnlock()

	for _, sub := range subs {
		if sub.removed.Load() {
			continue
		}
		m.invoke(sub, msg)
	}
}

func (m *Manager) invoke(sub *Subscription, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("Channel", "Handler panicked", map[string]interface{}{
				"event_type":   msg.Type,
				"subscription": sub.id.String(),
				"error":        fmt.Sprint(r),
				"stack":        string(debug.Stack()),
			})
		}
	}()
	sub.handler(msg)
}
