package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
)

func TestLocalPutGet(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if err := l.Put(ctx, "voiceprints/alice.gmm", []byte("v1")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := l.Get(ctx, "voiceprints/alice.gmm")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("Get = %q, want v1", got)
	}

	if err := l.Put(ctx, "voiceprints/alice.gmm", []byte("v2")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, _ = l.Get(ctx, "voiceprints/alice.gmm")
	if string(got) != "v2" {
		t.Errorf("after overwrite Get = %q, want v2", got)
	}
}

func TestLocalGetMissing(t *testing.T) {
	l, _ := NewLocal(t.TempDir())
	_, err := l.Get(context.Background(), "nope")
	if !IsNotExist(err) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestLocalDelete(t *testing.T) {
	ctx := context.Background()
	l, _ := NewLocal(t.TempDir())
	l.Put(ctx, "a", []byte("x"))

	if err := l.Delete(ctx, "a"); err != nil {
		t.Fatal(err)
	}
	if err := l.Delete(ctx, "a"); err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if _, err := l.Get(ctx, "a"); !IsNotExist(err) {
		t.Fatalf("err = %v, want not-exist", err)
	}
}

func TestLocalList(t *testing.T) {
	ctx := context.Background()
	l, _ := NewLocal(t.TempDir())
	for _, p := range []string{"vp/bob", "vp/alice", "other/x"} {
		if err := l.Put(ctx, p, []byte(p)); err != nil {
			t.Fatal(err)
		}
	}
	// A leftover temp file must not show up.
	os.WriteFile(filepath.Join(l.Root(), "vp", ".carol.123.tmp"), nil, 0o644)

	got, err := l.List(ctx, "vp")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"vp/alice", "vp/bob"}
	if !slices.Equal(got, want) {
		t.Errorf("List = %v, want %v", got, want)
	}

	got, err = l.List(ctx, "missing")
	if err != nil {
		t.Fatalf("List missing dir: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("List missing dir = %v", got)
	}
}

func TestLocalInvalidPath(t *testing.T) {
	l, _ := NewLocal(t.TempDir())
	for _, p := range []string{"", "../escape", "a/../../b", "a//b"} {
		if err := l.Put(context.Background(), p, nil); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Put(%q) err = %v, want ErrInvalidPath", p, err)
		}
	}
}

func TestLocalConcurrentPut(t *testing.T) {
	ctx := context.Background()
	l, _ := NewLocal(t.TempDir())
	payloads := [][]byte{
		[]byte("aaaaaaaaaaaaaaaa"),
		[]byte("bbbbbbbbbbbbbbbb"),
	}

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Put(ctx, "k", payloads[i%2])
		}()
	}
	wg.Wait()

	got, err := l.Get(ctx, "k")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(payloads[0]) && string(got) != string(payloads[1]) {
		t.Errorf("torn write: %q", got)
	}
	entries, _ := os.ReadDir(l.Root())
	if len(entries) != 1 {
		t.Errorf("root has %d entries, want 1", len(entries))
	}
}
