package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"assistantportal/internal/database"
	"assistantportal/internal/domain/realtime"
)

type recordedEvents struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (r *recordedEvents) Publish(_ string, ev realtime.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordedEvents) renames() []RenamedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []RenamedEvent
	for _, ev := range r.events {
		if ev.Type == realtime.EventArchiveRenamed {
			out = append(out, ev.Payload.(RenamedEvent))
		}
	}
	return out
}

func setupTestStore(t *testing.T) (*Store, *recordedEvents) {
	t.Helper()
	dsn := fmt.Sprintf("file:archive_test_%s?mode=memory&cache=shared", t.Name())
	db, err := database.Connect(dsn)
	if err != nil {
		t.Fatalf("failed to open sqlite db: %v", err)
	}
	if err := database.Migrate(db, Models()...); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	pub := &recordedEvents{}
	return NewStore(NewRepository(db), pub), pub
}

func TestListCreatesDefaultOnce(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	first, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(first) != 1 || !first[0].IsDefault || first[0].Name != DefaultArchiveName {
		t.Fatalf("expected a single default archive, got %+v", first)
	}

	if _, err := store.Create(ctx, "u1", "  여행   계획 "); err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(second) != 2 || !second[0].IsDefault || second[1].Name != "여행 계획" {
		t.Fatalf("unexpected list: %+v", second)
	}
}

func TestCreateSelectsAndRenameUpdatesCurrent(t *testing.T) {
	store, pub := setupTestStore(t)
	ctx := context.Background()

	a, err := store.Create(ctx, "u1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.Name != NewArchiveName {
		t.Fatalf("name = %q", a.Name)
	}
	cur, ok := store.Current("u1")
	if !ok || cur.ID != a.ID {
		t.Fatalf("created archive should be current, got %+v", cur)
	}

	if err := store.Rename(ctx, "u1", a.ID, "휴가 문의"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	cur, _ = store.Current("u1")
	if cur.Name != "휴가 문의" {
		t.Fatalf("current name = %q", cur.Name)
	}
	got, err := store.Get(ctx, "u1", a.ID)
	if err != nil || got.Name != "휴가 문의" {
		t.Fatalf("stored name = %+v err=%v", got, err)
	}
	renames := pub.renames()
	if len(renames) != 1 || !renames[0].IsCurrent {
		t.Fatalf("renames = %+v", renames)
	}
}

func TestGetRejectsOtherUsers(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	a, _ := store.Create(ctx, "u1", "mine")
	if _, err := store.Get(ctx, "u2", a.ID); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if _, err := store.Select(ctx, "u1", "missing"); !errors.Is(err, ErrArchiveNotFound) {
		t.Fatalf("expected ErrArchiveNotFound, got %v", err)
	}
}

func TestRenameRejectsEmpty(t *testing.T) {
	store, _ := setupTestStore(t)
	a, _ := store.Create(context.Background(), "u1", "x")

	if err := store.Rename(context.Background(), "u1", a.ID, " \n "); !errors.Is(err, ErrEmptyName) {
		t.Fatalf("expected ErrEmptyName, got %v", err)
	}
}

func TestMessagesInOrder(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	a, _ := store.Create(ctx, "u1", "x")

	for i, content := range []string{"one", "two", "three"} {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		if _, err := store.AppendMessage(ctx, a.ID, role, content, false); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	n, err := store.CountMessages(ctx, a.ID)
	if err != nil || n != 3 {
		t.Fatalf("count = %d err=%v", n, err)
	}
	msgs, err := store.Messages(ctx, "u1", a.ID, 2, 1)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 2 || msgs[0].Content != "two" || msgs[1].Content != "three" {
		t.Fatalf("unexpected page: %+v", msgs)
	}
}

func TestShouldAutoTitle(t *testing.T) {
	if ShouldAutoTitle(&Archive{IsDefault: true}, 0) {
		t.Fatalf("default archive must not be auto titled")
	}
	if ShouldAutoTitle(&Archive{}, 2) {
		t.Fatalf("archive with history must not be auto titled")
	}
	if !ShouldAutoTitle(&Archive{}, 0) {
		t.Fatalf("fresh archive should be auto titled")
	}
	if ShouldAutoTitle(nil, 0) {
		t.Fatalf("nil archive")
	}
}
