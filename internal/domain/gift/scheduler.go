package gift

import (
	"log"
	"sync"
	"time"

	"assistantportal/internal/domain/notification"
)

// DefaultDelay leaves the toast on screen before the popup opens.
const DefaultDelay = 2 * time.Second

// Scheduler defers popup construction for gift envelopes.
type Scheduler struct {
	delay time.Duration
	open  func(PopupInput)

	mu      sync.Mutex
	pending map[uint64]*time.Timer
	next    uint64
	stopped bool
}

// NewScheduler calls open with the built popup after delay.
func NewScheduler(delay time.Duration, open func(PopupInput)) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler{
		delay:   delay,
		open:    open,
		pending: make(map[uint64]*time.Timer),
	}
}

// Schedule arms one popup for env when it is a gift and reports whether it did.
func (s *Scheduler) Schedule(env notification.Envelope) bool {
	if !IsGift(env) {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.next++
	id := s.next
	s.pending[id] = time.AfterFunc(s.delay, func() { s.fire(id, env) })
	return true
}

// CancelAll drops every pending popup. The scheduler stays usable.
func (s *Scheduler) CancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Stop cancels pending popups and refuses new ones.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.cancelLocked()
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Scheduler) cancelLocked() {
	for id, t := range s.pending {
		t.Stop()
		delete(s.pending, id)
	}
}

func (s *Scheduler) fire(id uint64, env notification.Envelope) {
	s.mu.Lock()
	// a timer that already fired may still race with CancelAll; the map is the source of truth
	if _, ok := s.pending[id]; !ok || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.pending, id)
	s.mu.Unlock()

	popup := BuildPopup(env)
	log.Printf("event=gift_popup event_id=%s queue=%s", env.EventID, popup.QueueName)
	s.open(popup)
}
