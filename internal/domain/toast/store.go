package toast

import (
	"strings"
	"sync"
	"time"

	"assistantportal/internal/domain/notification"
	"assistantportal/internal/domain/realtime"
)

const DefaultDuration = 4 * time.Second

// Store holds the single visible toast of one user.
type Store struct {
	userID   string
	pub      realtime.Publisher
	duration time.Duration

	// pubMu orders state changes with their UI events.
	pubMu   sync.Mutex
	mu      sync.Mutex
	current *notification.ToastDescriptor
	timer   *time.Timer
	gen     uint64
	closed  bool
}

func NewStore(userID string, pub realtime.Publisher, duration time.Duration) *Store {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if pub == nil {
		pub = realtime.Discard
	}
	return &Store{userID: userID, pub: pub, duration: duration}
}

// Show replaces the visible toast and restarts the auto-dismiss timer.
// Empty messages are ignored.
func (s *Store) Show(t notification.ToastDescriptor) bool {
	t.Message = strings.TrimSpace(t.Message)
	if t.Message == "" {
		return false
	}

	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.gen++
	gen := s.gen
	s.current = &t
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.duration, func() { s.expire(gen) })
	s.mu.Unlock()

	s.pub.Publish(s.userID, realtime.NewEvent(realtime.EventToastShown, t))
	return true
}

// Dismiss clears the toast immediately.
func (s *Store) Dismiss() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Lock()
	had := s.clearLocked()
	s.mu.Unlock()
	if had {
		s.pub.Publish(s.userID, realtime.NewEvent(realtime.EventToastDismissed, nil))
	}
}

func (s *Store) Current() (notification.ToastDescriptor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return notification.ToastDescriptor{}, false
	}
	return *s.current, true
}

// Close stops the timer; the store ignores every later Show.
func (s *Store) Close() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.clearLocked()
}

func (s *Store) expire(gen uint64) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()
	s.mu.Lock()
	if gen != s.gen || s.current == nil {
		s.mu.Unlock()
		return
	}
	s.clearLocked()
	s.mu.Unlock()
	s.pub.Publish(s.userID, realtime.NewEvent(realtime.EventToastDismissed, nil))
}

func (s *Store) clearLocked() bool {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	had := s.current != nil
	s.current = nil
	return had
}
