package draft

import (
	"context"
	"log"
	"sync"

	"assistantportal/internal/domain/realtime"
)

// Submitter sends a finished leave draft to the leave system.
type Submitter interface {
	SubmitLeave(ctx context.Context, in DraftPanelInput) error
}

// LeavePanel is the single leave draft form of a user. Both the push path
// and the chat stream write to it; the last Open wins and nothing is merged.
type LeavePanel struct {
	userID    string
	pub       realtime.Publisher
	submitter Submitter

	// pubMu orders state changes with their UI events, so the last event
	// the browser sees always matches the stored draft.
	pubMu   sync.Mutex
	mu      sync.Mutex
	current *DraftPanelInput
	gen     uint64
}

func NewLeavePanel(userID string, pub realtime.Publisher, submitter Submitter) *LeavePanel {
	if pub == nil {
		pub = realtime.Discard
	}
	return &LeavePanel{userID: userID, pub: pub, submitter: submitter}
}

// Open replaces any unsubmitted draft with in.
func (p *LeavePanel) Open(in DraftPanelInput) {
	p.pubMu.Lock()
	defer p.pubMu.Unlock()

	p.mu.Lock()
	p.gen++
	p.current = &in
	p.mu.Unlock()

	log.Printf("event=leave_draft_opened user_id=%s source=%s start=%s end=%s", p.userID, in.Source, in.StartDate, in.EndDate)
	p.pub.Publish(p.userID, realtime.NewEvent(realtime.EventLeaveDraftOpened, in))
}

func (p *LeavePanel) Close() {
	p.pubMu.Lock()
	defer p.pubMu.Unlock()

	p.mu.Lock()
	had := p.current != nil
	p.gen++
	p.current = nil
	p.mu.Unlock()

	if had {
		p.pub.Publish(p.userID, realtime.NewEvent(realtime.EventLeaveDraftClosed, nil))
	}
}

func (p *LeavePanel) Current() (DraftPanelInput, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return DraftPanelInput{}, false
	}
	return *p.current, true
}

// Submit sends the open draft and closes the panel on success. A draft that
// was replaced while the request ran stays open.
func (p *LeavePanel) Submit(ctx context.Context) (DraftPanelInput, error) {
	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return DraftPanelInput{}, ErrNoDraft
	}
	in := *p.current
	gen := p.gen
	p.mu.Unlock()

	if err := p.submitter.SubmitLeave(ctx, in); err != nil {
		return in, err
	}

	p.pubMu.Lock()
	defer p.pubMu.Unlock()
	p.mu.Lock()
	closed := p.gen == gen
	if closed {
		p.gen++
		p.current = nil
	}
	p.mu.Unlock()

	if closed {
		p.pub.Publish(p.userID, realtime.NewEvent(realtime.EventLeaveDraftClosed, nil))
	}
	return in, nil
}

// ApprovalPanel is the single approval draft form of a user.
type ApprovalPanel struct {
	userID string
	pub    realtime.Publisher

	pubMu   sync.Mutex
	mu      sync.Mutex
	current *ApprovalDraft
}

func NewApprovalPanel(userID string, pub realtime.Publisher) *ApprovalPanel {
	if pub == nil {
		pub = realtime.Discard
	}
	return &ApprovalPanel{userID: userID, pub: pub}
}

func (p *ApprovalPanel) Open(d ApprovalDraft) {
	p.pubMu.Lock()
	defer p.pubMu.Unlock()

	p.mu.Lock()
	p.current = &d
	p.mu.Unlock()

	log.Printf("event=approval_draft_opened user_id=%s type=%s", p.userID, d.ApprovalType)
	p.pub.Publish(p.userID, realtime.NewEvent(realtime.EventApprovalDraftOpened, d))
}

func (p *ApprovalPanel) Close() {
	p.pubMu.Lock()
	defer p.pubMu.Unlock()

	p.mu.Lock()
	had := p.current != nil
	p.current = nil
	p.mu.Unlock()

	if had {
		p.pub.Publish(p.userID, realtime.NewEvent(realtime.EventApprovalDraftClosed, nil))
	}
}

func (p *ApprovalPanel) Current() (ApprovalDraft, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return ApprovalDraft{}, false
	}
	return *p.current, true
}
