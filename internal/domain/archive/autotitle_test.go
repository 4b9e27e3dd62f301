package archive

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// chunkReader returns one chunk per Read, then err (io.EOF when nil).
type chunkReader struct {
	chunks []string
	err    error
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	r.chunks[0] = r.chunks[0][n:]
	if r.chunks[0] == "" {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func (r *chunkReader) Close() error { return nil }

type fakeTitleSource struct {
	chunks []string
	err    error
}

func (f *fakeTitleSource) Title(context.Context, TitleRequest) (io.ReadCloser, error) {
	return &chunkReader{chunks: append([]string(nil), f.chunks...)}, f.err
}

func TestAutoTitlerRenamesProgressively(t *testing.T) {
	store, pub := setupTestStore(t)
	ctx := context.Background()
	a, _ := store.Create(ctx, "u1", "")

	titler := NewAutoTitler(store, nil, time.Second)
	// "휴" is split across chunks to exercise partial runes.
	hyu := "휴"
	final, err := titler.Run(ctx, "u1", a.ID, &chunkReader{chunks: []string{"  ", hyu[:1], hyu[1:] + "가", " 신청", " 방법 \n"}})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if final != "휴가 신청 방법" {
		t.Fatalf("final = %q", final)
	}

	var names []string
	for _, r := range pub.renames() {
		names = append(names, r.Name)
	}
	want := []string{"휴가", "휴가 신청", "휴가 신청 방법", "휴가 신청 방법"}
	if strings.Join(names, "|") != strings.Join(want, "|") {
		t.Fatalf("renames = %q, want %q", names, want)
	}
	cur, _ := store.Current("u1")
	if cur.Name != "휴가 신청 방법" {
		t.Fatalf("current = %q", cur.Name)
	}
}

func TestAutoTitlerErrorKeepsTitle(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	a, _ := store.Create(ctx, "u1", "원래 제목")

	titler := NewAutoTitler(store, nil, time.Second)
	_, err := titler.Run(ctx, "u1", a.ID, &chunkReader{err: errors.New("reset")})
	if err == nil {
		t.Fatalf("expected stream error")
	}
	got, _ := store.Get(ctx, "u1", a.ID)
	if got.Name != "원래 제목" {
		t.Fatalf("title changed on error: %q", got.Name)
	}
}

func TestAutoTitlerStartRunsInBackground(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	a, _ := store.Create(ctx, "u1", "")

	titler := NewAutoTitler(store, &fakeTitleSource{chunks: []string{"연차", " 잔여일"}}, time.Second)
	titler.Start(TitleRequest{ArchiveID: a.ID, UserID: "u1", MessageText: "연차 며칠 남았어?"})

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, _ := store.Get(ctx, "u1", a.ID)
		if got.Name == "연차 잔여일" {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("title never applied, got %q", got.Name)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAutoTitlerStartSurvivesOpenFailure(t *testing.T) {
	store, _ := setupTestStore(t)
	titler := NewAutoTitler(store, &fakeTitleSource{err: errors.New("down")}, time.Second)

	// must return immediately and not panic
	titler.Start(TitleRequest{ArchiveID: "x", UserID: "u1"})
}
