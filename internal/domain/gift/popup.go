package gift

import (
	"sync"

	"assistantportal/internal/domain/realtime"
)

// PopupStore holds the single open gift popup of a user.
type PopupStore struct {
	userID string
	pub    realtime.Publisher

	// pubMu orders state changes with their UI events.
	pubMu   sync.Mutex
	mu      sync.Mutex
	current *PopupInput
	stopped bool
}

func NewPopupStore(userID string, pub realtime.Publisher) *PopupStore {
	if pub == nil {
		pub = realtime.Discard
	}
	return &PopupStore{userID: userID, pub: pub}
}

// Open replaces whatever popup is showing. It reports false once the store
// was stopped.
func (s *PopupStore) Open(in PopupInput) bool {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.current = &in
	s.mu.Unlock()
	s.pub.Publish(s.userID, realtime.NewEvent(realtime.EventGiftPopupOpened, in))
	return true
}

// Stop closes the popup for good, at session teardown.
func (s *PopupStore) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
	s.Close()
}

func (s *PopupStore) Close() {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	had := s.current != nil
	s.current = nil
	s.mu.Unlock()
	if had {
		s.pub.Publish(s.userID, realtime.NewEvent(realtime.EventGiftPopupClosed, nil))
	}
}

func (s *PopupStore) Current() (PopupInput, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return PopupInput{}, false
	}
	return *s.current, true
}
