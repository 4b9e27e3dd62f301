package chat

import "sync"

// Guard allows one in-flight stream per archive.
type Guard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

func NewGuard() *Guard {
	return &Guard{active: make(map[string]struct{})}
}

// Acquire claims archiveID. The returned release is idempotent.
func (g *Guard) Acquire(archiveID string) (release func(), err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[archiveID]; busy {
		return nil, ErrStreamInFlight
	}
	g.active[archiveID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, archiveID)
			g.mu.Unlock()
		})
	}, nil
}

func (g *Guard) Busy(archiveID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, busy := g.active[archiveID]
	return busy
}
