package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"assistantportal/internal/domain/archive"
	"assistantportal/internal/domain/draft"
	"assistantportal/internal/pkg/jwt"
)

// PartialPolicy decides the fate of visible text when a stream fails midway.
type PartialPolicy string

const (
	PartialDiscard PartialPolicy = "discard"
	PartialPersist PartialPolicy = "persist"
)

func ParsePartialPolicy(s string) (PartialPolicy, error) {
	switch p := PartialPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "", PartialDiscard:
		return PartialDiscard, nil
	case PartialPersist:
		return PartialPersist, nil
	default:
		return "", fmt.Errorf("unknown partial policy %q", s)
	}
}

// Sender opens the assistant response stream.
type Sender interface {
	Send(ctx context.Context, req SendRequest) (io.ReadCloser, error)
}

// TitleStarter kicks off background archive titling.
type TitleStarter interface {
	Start(req archive.TitleRequest)
}

// DraftTargets are the draft panels of the sending user's session.
type DraftTargets interface {
	OpenLeave(in draft.DraftPanelInput)
	OpenApproval(d draft.ApprovalDraft)
}

// Sink receives what the caller should render, in stream order.
type Sink interface {
	OnText(delta string)
	OnLeaveDraft(in draft.DraftPanelInput)
	OnApprovalDraft(d draft.ApprovalDraft)
}

// MessageInput is what the user typed plus the send options.
type MessageInput struct {
	MessageText      string
	ModelSelector    string
	Attachments      []Attachment
	WebSearchEnabled *bool
	ModuleSelector   string
}

// TriggerRecord is one trigger seen by a stream session.
type TriggerRecord struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// StreamSession is the live state of one in-flight answer.
type StreamSession struct {
	ArchiveID   string          `json:"archive_id"`
	Buffer      string          `json:"buffer"`
	IsStreaming bool            `json:"is_streaming"`
	Triggers    []TriggerRecord `json:"triggers"`
}

// SendResult reports what SendMessage stored.
type SendResult struct {
	UserMessage      *archive.Message `json:"user_message"`
	AssistantMessage *archive.Message `json:"assistant_message,omitempty"`
	Text             string           `json:"text"`
	Triggers         int              `json:"triggers"`
}

type Service struct {
	store      *archive.Store
	sender     Sender
	titler     TitleStarter
	normalizer *draft.Normalizer
	guard      *Guard
	policy     PartialPolicy

	mu       sync.Mutex
	sessions map[string]*streamState
}

type streamState struct {
	buf      strings.Builder
	triggers []TriggerRecord
}

func NewService(store *archive.Store, sender Sender, titler TitleStarter, normalizer *draft.Normalizer, policy PartialPolicy) *Service {
	if policy == "" {
		policy = PartialDiscard
	}
	return &Service{
		store:      store,
		sender:     sender,
		titler:     titler,
		normalizer: normalizer,
		guard:      NewGuard(),
		policy:     policy,
		sessions:   make(map[string]*streamState),
	}
}

// SendMessage stores the user message, streams the answer and stores it.
// Triggers go to targets (when non-nil) and to sink. Errors returned before
// the first sink call mean nothing was streamed.
func (s *Service) SendMessage(ctx context.Context, userID, archiveID string, in MessageInput, targets DraftTargets, sink Sink) (*SendResult, error) {
	text := strings.TrimSpace(in.MessageText)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	a, err := s.store.Get(ctx, userID, archiveID)
	if err != nil {
		return nil, err
	}

	release, err := s.guard.Acquire(archiveID)
	if err != nil {
		return nil, err
	}
	defer release()

	prior, err := s.store.CountMessages(ctx, archiveID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	userMsg, err := s.store.AppendMessage(ctx, archiveID, archive.RoleUser, text, false)
	if err != nil {
		return nil, fmt.Errorf("store user message: %w", err)
	}
	result := &SendResult{UserMessage: userMsg}

	if s.titler != nil && archive.ShouldAutoTitle(a, prior) {
		s.titler.Start(archive.TitleRequest{
			ArchiveID:   archiveID,
			UserID:      userID,
			MessageText: text,
			Token:       jwt.TokenFromContext(ctx),
		})
	}

	body, err := s.sender.Send(ctx, SendRequest{
		ArchiveID:        archiveID,
		UserID:           userID,
		MessageText:      text,
		ModelSelector:    in.ModelSelector,
		Attachments:      in.Attachments,
		WebSearchEnabled: in.WebSearchEnabled,
		ModuleSelector:   in.ModuleSelector,
	})
	if err != nil {
		return result, err
	}
	defer body.Close()

	state := s.begin(archiveID)
	defer s.end(archiveID)

	visible, err := Drain(ctx, body, Handlers{
		OnText: func(delta string) {
			s.locked(func() { state.buf.WriteString(delta) })
			if sink != nil {
				sink.OnText(delta)
			}
		},
		OnLeaveTrigger: func(payload json.RawMessage) {
			result.Triggers++
			s.locked(func() {
				state.triggers = append(state.triggers, TriggerRecord{Kind: EventLeaveTrigger.String(), Payload: payload})
			})
			input, nerr := s.normalizer.FromTrigger(payload)
			if nerr != nil {
				log.Printf("event=leave_trigger_malformed archive_id=%s error=%v", archiveID, nerr)
			}
			if input.UserID == "" {
				input.UserID = userID
			}
			if targets != nil {
				targets.OpenLeave(input)
			}
			if sink != nil {
				sink.OnLeaveDraft(input)
			}
		},
		OnApprovalTrigger: func(payload json.RawMessage) {
			result.Triggers++
			s.locked(func() {
				state.triggers = append(state.triggers, TriggerRecord{Kind: EventApprovalTrigger.String(), Payload: payload})
			})
			d, aerr := s.normalizer.ApprovalFromTrigger(payload)
			if aerr != nil {
				log.Printf("event=approval_trigger_dropped archive_id=%s error=%v", archiveID, aerr)
				return
			}
			if targets != nil {
				targets.OpenApproval(d)
			}
			if sink != nil {
				sink.OnApprovalDraft(d)
			}
		},
	})
	result.Text = visible

	if err != nil {
		log.Printf("event=chat_stream_failed archive_id=%s user_id=%s partial_bytes=%d policy=%s error=%v", archiveID, userID, len(visible), s.policy, err)
		if s.policy == PartialPersist && strings.TrimSpace(visible) != "" {
			msg, perr := s.store.AppendMessage(context.WithoutCancel(ctx), archiveID, archive.RoleAssistant, visible, true)
			if perr != nil {
				log.Printf("event=chat_partial_store_failed archive_id=%s error=%v", archiveID, perr)
			}
			result.AssistantMessage = msg
		}
		return result, fmt.Errorf("%w: %v", ErrStreamFailed, err)
	}

	if strings.TrimSpace(visible) != "" {
		msg, err := s.store.AppendMessage(ctx, archiveID, archive.RoleAssistant, visible, false)
		if err != nil {
			return result, fmt.Errorf("store assistant message: %w", err)
		}
		result.AssistantMessage = msg
	}
	return result, nil
}

// Session returns a snapshot of the in-flight stream for archiveID.
func (s *Service) Session(archiveID string) (StreamSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[archiveID]
	if !ok {
		return StreamSession{}, false
	}
	return StreamSession{
		ArchiveID:   archiveID,
		Buffer:      st.buf.String(),
		IsStreaming: true,
		Triggers:    append([]TriggerRecord(nil), st.triggers...),
	}, true
}

// Busy reports whether archiveID has a stream in flight.
func (s *Service) Busy(archiveID string) bool {
	return s.guard.Busy(archiveID)
}

func (s *Service) begin(archiveID string) *streamState {
	st := &streamState{}
	s.mu.Lock()
	s.sessions[archiveID] = st
	s.mu.Unlock()
	return st
}

func (s *Service) end(archiveID string) {
	s.mu.Lock()
	delete(s.sessions, archiveID)
	s.mu.Unlock()
}

func (s *Service) locked(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}
