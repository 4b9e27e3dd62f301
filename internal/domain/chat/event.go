package chat

import "encoding/json"

// EventKind tags one item of a consumed assistant stream.
type EventKind int

const (
	EventText EventKind = iota
	EventLeaveTrigger
	EventApprovalTrigger
	EventDone
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventLeaveTrigger:
		return "leave_trigger"
	case EventApprovalTrigger:
		return "approval_trigger"
	case EventDone:
		return "done"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one item of the ordered stream sequence.
//
//	Text            Text is the visible fragment
//	LeaveTrigger    Payload is the raw trigger body
//	ApprovalTrigger Payload is the raw trigger body
//	Done            Text is the full visible message
//	Error           Text is the visible text seen so far, Err the cause
type Event struct {
	Kind    EventKind
	Text    string
	Payload json.RawMessage
	Err     error
}

func (e Event) Terminal() bool {
	return e.Kind == EventDone || e.Kind == EventError
}
