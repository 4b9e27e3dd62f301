package portal

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"assistantportal/internal/domain/draft"
	"assistantportal/internal/domain/gift"
	"assistantportal/internal/domain/notification"
	"assistantportal/internal/domain/realtime"
	"assistantportal/internal/domain/sse"
	"assistantportal/internal/domain/toast"
)

const deliveryTimeout = 5 * time.Second

// NotificationLog persists delivered envelopes.
type NotificationLog interface {
	Save(ctx context.Context, n *notification.Received) error
}

// Session is the real-time state of one signed-in employee: the push
// channel and the small UI stores it feeds.
type Session struct {
	userID string
	pub    realtime.Publisher

	manager    *sse.Manager
	toast      *toast.Store
	gifts      *gift.Scheduler
	popup      *gift.PopupStore
	leave      *draft.LeavePanel
	approval   *draft.ApprovalPanel
	normalizer *draft.Normalizer
	dedup      notification.Deduper
	history    NotificationLog

	mu    sync.Mutex
	token string
}

// Snapshot is what GET /session returns.
type Snapshot struct {
	UserID        string                        `json:"user_id"`
	State         sse.ConnectionState           `json:"state"`
	Toast         *notification.ToastDescriptor `json:"toast,omitempty"`
	GiftPopup     *gift.PopupInput              `json:"gift_popup,omitempty"`
	PendingGifts  int                           `json:"pending_gifts"`
	LeaveDraft    *draft.DraftPanelInput        `json:"leave_draft,omitempty"`
	ApprovalDraft *draft.ApprovalDraft          `json:"approval_draft,omitempty"`
}

// OnConnectionStateChange implements sse.Subscriber.
func (s *Session) OnConnectionStateChange(state sse.ConnectionState) {
	s.pub.Publish(s.userID, realtime.NewEvent(realtime.EventConnectionState, map[string]any{"state": state}))
}

// OnNotification implements sse.Subscriber. Each envelope goes through
// dedup, the history log, the toast, gift detection and the leave draft panel.
func (s *Session) OnNotification(env notification.Envelope) {
	ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
	defer cancel()

	eventID := env.EventID.String()
	if s.dedup != nil && eventID != "" {
		first, err := s.dedup.FirstDelivery(ctx, s.userID, eventID)
		if err != nil {
			log.Printf("event=dedup_failed user_id=%s event_id=%s error=%v", s.userID, eventID, err)
		} else if !first {
			log.Printf("event=notification_redelivered user_id=%s event_id=%s", s.userID, eventID)
			return
		}
	}

	t := notification.Route(env)

	if s.history != nil {
		err := s.history.Save(ctx, notification.ReceivedFromEnvelope(s.userID, env, t))
		if errors.Is(err, notification.ErrDuplicateDelivery) {
			log.Printf("event=notification_redelivered user_id=%s event_id=%s source=log", s.userID, eventID)
			return
		}
		if err != nil {
			log.Printf("event=notification_log_failed user_id=%s event_id=%s error=%v", s.userID, eventID, err)
		}
	}

	log.Printf("event=notification user_id=%s tag=%s event_id=%s known=%t", s.userID, env.Event, eventID, notification.IsKnownEvent(env.Event))

	s.toast.Show(t)
	s.gifts.Schedule(env)
	if env.Event == notification.EventLeaveDraft {
		s.leave.Open(s.normalizer.FromEnvelope(env))
	}
}

// OpenLeave lets the chat stream open the same leave panel as the push path.
func (s *Session) OpenLeave(in draft.DraftPanelInput) { s.leave.Open(in) }

func (s *Session) OpenApproval(d draft.ApprovalDraft) { s.approval.Open(d) }

func (s *Session) UserID() string { return s.userID }
func (s *Session) Toast() *toast.Store { return s.toast }
func (s *Session) GiftPopup() *gift.PopupStore { return s.popup }
func (s *Session) LeavePanel() *draft.LeavePanel { return s.leave }
func (s *Session) ApprovalPanel() *draft.ApprovalPanel { return s.approval }
func (s *Session) State() sse.ConnectionState { return s.manager.State() }

func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		UserID:       s.userID,
		State:        s.manager.State(),
		PendingGifts: s.gifts.Pending(),
	}
	if t, ok := s.toast.Current(); ok {
		snap.Toast = &t
	}
	if p, ok := s.popup.Current(); ok {
		snap.GiftPopup = &p
	}
	if d, ok := s.leave.Current(); ok {
		snap.LeaveDraft = &d
	}
	if d, ok := s.approval.Current(); ok {
		snap.ApprovalDraft = &d
	}
	return snap
}

func (s *Session) setToken(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
}

func (s *Session) currentToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// close tears everything down; nothing fires for this session afterwards.
func (s *Session) close() {
	s.manager.Close()
	s.gifts.Stop()
	s.toast.Close()
	s.popup.Stop()
	s.leave.Close()
	s.approval.Close()
}
