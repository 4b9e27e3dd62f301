package sse

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"assistantportal/internal/domain/notification"
)

// Config describes the upstream push channel of one session.
type Config struct {
	URL    string
	Client *http.Client
	// Token returns the bearer token sent with CredentialsInclude.
	Token func() string
	// Cookies are sent with CredentialsInclude.
	Cookies []*http.Cookie

	Backoff Backoff
	// FailAfter consecutive failed attempts turn Reconnecting into Failed.
	FailAfter int
	// IdleTimeout forces a reconnect when nothing (not even a heartbeat) arrives. 0 disables.
	IdleTimeout   time.Duration
	MaxFrameBytes int

	// Label identifies the session in logs.
	Label string
}

// Manager owns the single persistent push channel of a session.
type Manager struct {
	cfg Config
	sub Subscriber

	mu     sync.Mutex
	state  ConnectionState
	mode   CredentialsMode
	cancel context.CancelFunc
	done   chan struct{}

	// touched only by the run goroutine
	lastEventID string
	retryFloor  time.Duration
}

func NewManager(cfg Config, sub Subscriber) *Manager {
	if cfg.Client == nil {
		cfg.Client = &http.Client{}
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoff()
	}
	if cfg.Backoff.Max < cfg.Backoff.Initial {
		cfg.Backoff.Max = cfg.Backoff.Initial
	}
	if cfg.FailAfter <= 0 {
		cfg.FailAfter = 5
	}
	return &Manager{
		cfg:   cfg,
		sub:   sub,
		state: StateDisconnected,
	}
}

// Connect opens the channel while enabled is true. Calling it again while
// running is a no-op. enabled=false tears the channel down, stops retries
// and returns once the connection goroutine has exited.
func (m *Manager) Connect(enabled bool, mode CredentialsMode) {
	if !enabled {
		m.stop()
		return
	}

	m.mu.Lock()
	if m.cancel != nil {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.cancel = cancel
	m.done = done
	m.mode = mode
	m.mu.Unlock()

	m.setState(StateConnecting)
	go m.run(ctx, done)
}

// Close is Connect(false, …).
func (m *Manager) Close() {
	m.stop()
}

// State returns the current connection state.
func (m *Manager) State() ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	m.setState(StateDisconnected)
}

func (m *Manager) setState(s ConnectionState) {
	m.mu.Lock()
	if m.state == s {
		m.mu.Unlock()
		return
	}
	prev := m.state
	m.state = s
	m.mu.Unlock()

	log.Printf("event=sse_state session=%s from=%s to=%s", m.cfg.Label, prev, s)
	m.sub.OnConnectionStateChange(s)
}

func (m *Manager) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	failures := 0
	policy := m.cfg.Backoff.newPolicy()
	for {
		opened, err := m.stream(ctx)
		if ctx.Err() != nil {
			return
		}

		if opened {
			failures = 0
			policy.Reset()
			log.Printf("event=sse_closed session=%s error=%v", m.cfg.Label, err)
			m.setState(StateReconnecting)
		} else {
			failures++
			log.Printf("event=sse_connect_failed session=%s attempt=%d error=%v", m.cfg.Label, failures, err)
			if failures >= m.cfg.FailAfter {
				m.setState(StateFailed)
			} else {
				m.setState(StateReconnecting)
			}
		}

		delay := policy.Next()
		if m.retryFloor > delay {
			delay = m.retryFloor
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// stream performs one connection attempt and reads it until it ends.
// opened reports whether the upstream accepted the connection.
func (m *Manager) stream(ctx context.Context) (opened bool, err error) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(connCtx, http.MethodGet, m.cfg.URL, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if m.lastEventID != "" {
		req.Header.Set("Last-Event-ID", m.lastEventID)
	}

	m.mu.Lock()
	mode := m.mode
	m.mu.Unlock()
	if mode == CredentialsInclude {
		if m.cfg.Token != nil {
			if token := m.cfg.Token(); token != "" {
				req.Header.Set("Authorization", "Bearer "+token)
			}
		}
		for _, c := range m.cfg.Cookies {
			req.AddCookie(c)
		}
	}

	resp, err := m.cfg.Client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			log.Printf("event=sse_auth_rejected session=%s status=%d", m.cfg.Label, resp.StatusCode)
		}
		return false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	m.setState(StateConnected)

	var body io.Reader = resp.Body
	if m.cfg.IdleTimeout > 0 {
		idle := time.AfterFunc(m.cfg.IdleTimeout, cancel)
		defer idle.Stop()
		body = &activityReader{r: resp.Body, touch: func() { idle.Reset(m.cfg.IdleTimeout) }}
	}

	frames := NewFrameReader(body, m.cfg.MaxFrameBytes)
	for {
		frame, err := frames.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return true, errors.New("stream ended")
			}
			if ctx.Err() == nil && connCtx.Err() != nil {
				return true, errors.New("idle timeout")
			}
			return true, err
		}
		m.dispatch(frame)
	}
}

func (m *Manager) dispatch(frame Frame) {
	if frame.ID != "" {
		m.lastEventID = frame.ID
	}
	if frame.Retry > 0 {
		m.retryFloor = m.cfg.Backoff.clampFloor(frame.Retry)
	}
	if frame.Oversized {
		log.Printf("event=sse_frame_dropped session=%s reason=oversized event=%s", m.cfg.Label, frame.Event)
		return
	}
	if frame.Data == "" || frame.Event == "ping" || frame.Event == "heartbeat" {
		return
	}

	env, err := notification.ParseEnvelope([]byte(frame.Data), frame.Event)
	if err != nil {
		log.Printf("event=sse_frame_dropped session=%s reason=decode error=%v", m.cfg.Label, err)
		return
	}
	m.sub.OnNotification(env)
}

type activityReader struct {
	r     io.Reader
	touch func()
}

func (a *activityReader) Read(p []byte) (int, error) {
	n, err := a.r.Read(p)
	if n > 0 {
		a.touch()
	}
	return n, err
}
