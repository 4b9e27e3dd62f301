package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"assistantportal/internal/database"
	"assistantportal/internal/domain/archive"
	"assistantportal/internal/domain/draft"
)

type fakeSender struct {
	chunks  []string
	err     error
	openErr error
	gate    chan struct{}
	got     []SendRequest
}

func (f *fakeSender) Send(_ context.Context, req SendRequest) (io.ReadCloser, error) {
	f.got = append(f.got, req)
	if f.openErr != nil {
		return nil, f.openErr
	}
	r := &chunkReader{chunks: append([]string(nil), f.chunks...), err: f.err}
	if f.gate != nil {
		return &gatedReader{r: r, gate: f.gate}, nil
	}
	return r, nil
}

// gatedReader blocks the first Read until gate is closed.
type gatedReader struct {
	r    *chunkReader
	gate chan struct{}
	once sync.Once
}

func (g *gatedReader) Read(p []byte) (int, error) {
	g.once.Do(func() { <-g.gate })
	return g.r.Read(p)
}

func (g *gatedReader) Close() error { return nil }

type fakeTitler struct {
	mu   sync.Mutex
	reqs []archive.TitleRequest
}

func (f *fakeTitler) Start(req archive.TitleRequest) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
}

type fakeTargets struct {
	leaves    []draft.DraftPanelInput
	approvals []draft.ApprovalDraft
}

func (f *fakeTargets) OpenLeave(in draft.DraftPanelInput) { f.leaves = append(f.leaves, in) }

func (f *fakeTargets) OpenApproval(d draft.ApprovalDraft) { f.approvals = append(f.approvals, d) }

type recordingSink struct {
	order []string
}

func (r *recordingSink) OnText(delta string) { r.order = append(r.order, "text:"+delta) }

func (r *recordingSink) OnLeaveDraft(in draft.DraftPanelInput) {
	r.order = append(r.order, "leave:"+in.StartDate)
}

func (r *recordingSink) OnApprovalDraft(d draft.ApprovalDraft) { r.order = append(r.order, "approval:"+d.ApprovalType) }

func setupTestService(t *testing.T, sender Sender, policy PartialPolicy) (*Service, *archive.Store, *fakeTitler) {
	t.Helper()
	dsn := fmt.Sprintf("file:chat_test_%s?mode=memory&cache=shared", t.Name())
	db, err := database.Connect(dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	if err := database.Migrate(db, archive.Models()...); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	store := archive.NewStore(archive.NewRepository(db), nil)
	titler := &fakeTitler{}
	normalizer := draft.NewNormalizer("company.co.kr", time.UTC)
	return NewService(store, sender, titler, normalizer, policy), store, titler
}

func TestSendMessageStoresAnswerAndRoutesTriggers(t *testing.T) {
	sender := &fakeSender{chunks: []string{
		"초안을 열었어요.<leave_trig",
		"ger>{\"startDate\":\"2025-05-05\",\"approvalLine\":[{\"approverId\":\"m1\",\"approverName\":\"팀장\"}]}</leave_trigger>",
		"<approval_trigger>{\"approvalType\":\"expense\"}</approval_trigger> 확인해 주세요.",
	}}
	svc, store, titler := setupTestService(t, sender, PartialDiscard)
	ctx := context.Background()
	a, _ := store.Create(ctx, "u1", "")

	targets := &fakeTargets{}
	sink := &recordingSink{}
	res, err := svc.SendMessage(ctx, "u1", a.ID, MessageInput{MessageText: " 휴가 신청할래 ", ModelSelector: "gpt"}, targets, sink)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if res.Text != "초안을 열었어요. 확인해 주세요." || res.Triggers != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.AssistantMessage == nil || res.AssistantMessage.Content != res.Text || res.AssistantMessage.Truncated {
		t.Fatalf("assistant message = %+v", res.AssistantMessage)
	}
	if sender.got[0].MessageText != "휴가 신청할래" || sender.got[0].UserID != "u1" || sender.got[0].ArchiveID != a.ID {
		t.Fatalf("send request = %+v", sender.got[0])
	}

	if len(targets.leaves) != 1 || targets.leaves[0].UserID != "u1" || len(targets.leaves[0].ApprovalLine) != 1 {
		t.Fatalf("leave targets = %+v", targets.leaves)
	}
	if len(targets.approvals) != 1 || targets.approvals[0].ApprovalType != "expense" {
		t.Fatalf("approval targets = %+v", targets.approvals)
	}

	want := []string{"text:초안을 열었어요.", "leave:2025-05-05", "approval:expense", "text: 확인해 주세요."}
	if fmt.Sprint(sink.order) != fmt.Sprint(want) {
		t.Fatalf("sink order = %q, want %q", sink.order, want)
	}

	msgs, _ := store.Messages(ctx, "u1", a.ID, 0, 0)
	if len(msgs) != 2 || msgs[0].Role != archive.RoleUser || msgs[1].Role != archive.RoleAssistant {
		t.Fatalf("stored messages = %+v", msgs)
	}
	if len(titler.reqs) != 1 || titler.reqs[0].MessageText != "휴가 신청할래" {
		t.Fatalf("auto title requests = %+v", titler.reqs)
	}
	if _, ok := svc.Session(a.ID); ok {
		t.Fatalf("session should be gone after completion")
	}
}

func TestSendMessageSkipsAutoTitleForDefaultOrUsedArchive(t *testing.T) {
	sender := &fakeSender{chunks: []string{"ok"}}
	svc, store, titler := setupTestService(t, sender, PartialDiscard)
	ctx := context.Background()

	list, _ := store.List(ctx, "u1")
	def := list[0]
	if _, err := svc.SendMessage(ctx, "u1", def.ID, MessageInput{MessageText: "hi"}, nil, nil); err != nil {
		t.Fatalf("send: %v", err)
	}

	a, _ := store.Create(ctx, "u1", "")
	if _, err := svc.SendMessage(ctx, "u1", a.ID, MessageInput{MessageText: "first"}, nil, nil); err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := svc.SendMessage(ctx, "u1", a.ID, MessageInput{MessageText: "second"}, nil, nil); err != nil {
		t.Fatalf("send: %v", err)
	}

	if len(titler.reqs) != 1 || titler.reqs[0].ArchiveID != a.ID {
		t.Fatalf("auto title requests = %+v", titler.reqs)
	}
}

func TestSendMessageDiscardsPartialByDefault(t *testing.T) {
	sender := &fakeSender{chunks: []string{"절반만"}, err: errors.New("reset")}
	svc, store, _ := setupTestService(t, sender, PartialDiscard)
	ctx := context.Background()
	a, _ := store.Create(ctx, "u1", "")

	res, err := svc.SendMessage(ctx, "u1", a.ID, MessageInput{MessageText: "hi"}, nil, nil)
	if !errors.Is(err, ErrStreamFailed) {
		t.Fatalf("expected ErrStreamFailed, got %v", err)
	}
	if res.Text != "절반만" || res.AssistantMessage != nil {
		t.Fatalf("result = %+v", res)
	}
	if n, _ := store.CountMessages(ctx, a.ID); n != 1 {
		t.Fatalf("only the user message should be stored, got %d", n)
	}
	if svc.Busy(a.ID) {
		t.Fatalf("guard should be released after failure")
	}
}

func TestSendMessagePersistsPartialWhenConfigured(t *testing.T) {
	sender := &fakeSender{chunks: []string{"절반만"}, err: errors.New("reset")}
	svc, store, _ := setupTestService(t, sender, PartialPersist)
	ctx := context.Background()
	a, _ := store.Create(ctx, "u1", "")

	res, err := svc.SendMessage(ctx, "u1", a.ID, MessageInput{MessageText: "hi"}, nil, nil)
	if !errors.Is(err, ErrStreamFailed) {
		t.Fatalf("expected ErrStreamFailed, got %v", err)
	}
	if res.AssistantMessage == nil || !res.AssistantMessage.Truncated || res.AssistantMessage.Content != "절반만" {
		t.Fatalf("assistant message = %+v", res.AssistantMessage)
	}
}

func TestSendMessageRejectsConcurrentStream(t *testing.T) {
	gate := make(chan struct{})
	sender := &fakeSender{chunks: []string{"slow ", "answer"}, gate: gate}
	svc, store, _ := setupTestService(t, sender, PartialDiscard)
	ctx := context.Background()
	a, _ := store.Create(ctx, "u1", "")

	done := make(chan error, 1)
	go func() {
		_, err := svc.SendMessage(ctx, "u1", a.ID, MessageInput{MessageText: "one"}, nil, nil)
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, ok := svc.Session(a.ID); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("first stream never started")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, err := svc.SendMessage(ctx, "u1", a.ID, MessageInput{MessageText: "two"}, nil, nil); !errors.Is(err, ErrStreamInFlight) {
		t.Fatalf("expected ErrStreamInFlight, got %v", err)
	}
	sess, _ := svc.Session(a.ID)
	if !sess.IsStreaming || sess.ArchiveID != a.ID {
		t.Fatalf("session = %+v", sess)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("first send: %v", err)
	}
}

func TestSendMessageValidation(t *testing.T) {
	svc, store, _ := setupTestService(t, &fakeSender{}, PartialDiscard)
	ctx := context.Background()
	a, _ := store.Create(ctx, "u1", "")

	if _, err := svc.SendMessage(ctx, "u1", a.ID, MessageInput{MessageText: "  "}, nil, nil); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := svc.SendMessage(ctx, "u2", a.ID, MessageInput{MessageText: "hi"}, nil, nil); !errors.Is(err, archive.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
}

func TestSendMessageUpstreamDown(t *testing.T) {
	sender := &fakeSender{openErr: fmt.Errorf("%w: 503", ErrUpstream)}
	svc, store, _ := setupTestService(t, sender, PartialDiscard)
	ctx := context.Background()
	a, _ := store.Create(ctx, "u1", "")

	res, err := svc.SendMessage(ctx, "u1", a.ID, MessageInput{MessageText: "hi"}, nil, nil)
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if res == nil || res.UserMessage == nil {
		t.Fatalf("user message should still be stored")
	}
	if svc.Busy(a.ID) {
		t.Fatalf("guard should be released")
	}
}

func TestParsePartialPolicy(t *testing.T) {
	if p, err := ParsePartialPolicy(""); err != nil || p != PartialDiscard {
		t.Fatalf("empty = %q, %v", p, err)
	}
	if p, err := ParsePartialPolicy(" Persist "); err != nil || p != PartialPersist {
		t.Fatalf("persist = %q, %v", p, err)
	}
	if _, err := ParsePartialPolicy("keep"); err == nil {
		t.Fatalf("expected error")
	}
}
