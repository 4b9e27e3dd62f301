package realtime

import "time"

// UI event types pushed to the browser.
const (
	EventConnectionState     = "connection_state"
	EventToastShown          = "toast_shown"
	EventToastDismissed      = "toast_dismissed"
	EventGiftPopupOpened     = "gift_popup_opened"
	EventGiftPopupClosed     = "gift_popup_closed"
	EventLeaveDraftOpened    = "leave_draft_opened"
	EventLeaveDraftClosed    = "leave_draft_closed"
	EventApprovalDraftOpened = "approval_draft_opened"
	EventApprovalDraftClosed = "approval_draft_closed"
	EventArchiveRenamed      = "archive_renamed"
	EventPong                = "pong"
	EventError               = "error"
)

// Event is one message on the browser socket.
type Event struct {
	Type    string    `json:"type"`
	Payload any       `json:"payload,omitempty"`
	SentAt  time.Time `json:"sent_at"`
}

func NewEvent(eventType string, payload any) Event {
	return Event{Type: eventType, Payload: payload, SentAt: time.Now().UTC()}
}

// Publisher delivers UI events to every open socket of a user.
type Publisher interface {
	Publish(userID string, ev Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(userID string, ev Event)

func (f PublisherFunc) Publish(userID string, ev Event) { f(userID, ev) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(string, Event) {})

type clientMessage struct {
	Type string `json:"type"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
