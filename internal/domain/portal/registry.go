package portal

import (
	"log"
	"net/http"
	"net/url"
	"sync"
	"time"

	"assistantportal/internal/domain/chat"
	"assistantportal/internal/domain/draft"
	"assistantportal/internal/domain/gift"
	"assistantportal/internal/domain/notification"
	"assistantportal/internal/domain/realtime"
	"assistantportal/internal/domain/sse"
	"assistantportal/internal/domain/toast"
)

// Options configure every session a Registry creates.
type Options struct {
	StreamURL   string
	HTTPClient  *http.Client
	Backoff     sse.Backoff
	FailAfter   int
	IdleTimeout time.Duration

	ToastDuration  time.Duration
	GiftPopupDelay time.Duration

	Publisher  realtime.Publisher
	Deduper    notification.Deduper
	History    NotificationLog
	Normalizer *draft.Normalizer
	Submitter  draft.Submitter

	// OnStop runs after a session is torn down.
	OnStop func(userID string)
}

// Registry owns one Session per signed-in user.
type Registry struct {
	opts Options

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(opts Options) *Registry {
	if opts.Publisher == nil {
		opts.Publisher = realtime.Discard
	}
	if opts.Normalizer == nil {
		opts.Normalizer = draft.NewNormalizer("", time.Local)
	}
	return &Registry{opts: opts, sessions: make(map[string]*Session)}
}

// Start opens the push channel for userID, at login. Calling it again
// refreshes the token and keeps the running session.
func (r *Registry) Start(userID, token string) *Session {
	r.mu.Lock()
	if s, ok := r.sessions[userID]; ok {
		r.mu.Unlock()
		s.setToken(token)
		return s
	}
	s := r.newSession(userID, token)
	r.sessions[userID] = s
	r.mu.Unlock()

	log.Printf("event=session_started user_id=%s", userID)
	s.manager.Connect(true, sse.CredentialsInclude)
	return s
}

// Stop ends the session of userID, at logout. It reports whether one existed.
func (r *Registry) Stop(userID string) bool {
	r.mu.Lock()
	s, ok := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()
	if !ok {
		return false
	}

	s.close()
	if r.opts.OnStop != nil {
		r.opts.OnStop(userID)
	}
	log.Printf("event=session_stopped user_id=%s", userID)
	return true
}

func (r *Registry) Get(userID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// Targets resolves the draft panels for chat streams.
func (r *Registry) Targets(userID string) chat.DraftTargets {
	s, ok := r.Get(userID)
	if !ok {
		return nil
	}
	return s
}

// Shutdown stops every session.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Stop(id)
	}
}

func (r *Registry) newSession(userID, token string) *Session {
	pub := r.opts.Publisher
	popup := gift.NewPopupStore(userID, pub)

	s := &Session{
		userID:     userID,
		pub:        pub,
		toast:      toast.NewStore(userID, pub, r.opts.ToastDuration),
		gifts:      gift.NewScheduler(r.opts.GiftPopupDelay, func(in gift.PopupInput) { popup.Open(in) }),
		popup:      popup,
		leave:      draft.NewLeavePanel(userID, pub, r.opts.Submitter),
		approval:   draft.NewApprovalPanel(userID, pub),
		normalizer: r.opts.Normalizer,
		dedup:      r.opts.Deduper,
		history:    r.opts.History,
		token:      token,
	}
	s.manager = sse.NewManager(sse.Config{
		URL:         streamURL(r.opts.StreamURL, userID),
		Client:      r.opts.HTTPClient,
		Token:       s.currentToken,
		Backoff:     r.opts.Backoff,
		FailAfter:   r.opts.FailAfter,
		IdleTimeout: r.opts.IdleTimeout,
		Label:       userID,
	}, s)
	return s
}

// streamURL adds the user id query parameter the notification server routes on.
func streamURL(base, userID string) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	q.Set("user_id", userID)
	u.RawQuery = q.Encode()
	return u.String()
}
