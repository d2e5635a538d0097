package fs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stockcore/internal/archive/core"
)

func TestFilesystemStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Driver() != core.DriverFilesystem || s.Root() != root {
		t.Fatalf("unexpected store %s %s", s.Driver(), s.Root())
	}
	info, err := s.Put(ctx, "ledger/t1/2026.jsonl", strings.NewReader("line\n"), core.PutOptions{
		ContentType: "application/x-ndjson",
		Metadata:    map[string]string{"entries": "1"},
	})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.Size != 5 || info.ETag == "" {
		t.Fatalf("unexpected info %+v", info)
	}
	if _, err := os.Stat(filepath.Join(root, "ledger", "t1", "2026.jsonl.meta")); err != nil {
		t.Fatalf("expected sidecar: %v", err)
	}
	if _, err := s.Put(ctx, "ledger/t1/2026.jsonl", strings.NewReader("again"), core.PutOptions{}); !errors.Is(err, core.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	got, rc, err := s.Get(ctx, "ledger/t1/2026.jsonl")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(body) != "line\n" || got.ContentType != "application/x-ndjson" || got.Metadata["entries"] != "1" {
		t.Fatalf("unexpected get %q %+v", body, got)
	}
	head, err := s.Head(ctx, "ledger/t1/2026.jsonl")
	if err != nil || head.ETag != info.ETag {
		t.Fatalf("head mismatch %+v %v", head, err)
	}
	if _, err := s.Head(ctx, "ledger/none"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := s.Get(ctx, "ledger/none"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	list, err := s.List(ctx, "ledger/")
	if err != nil || len(list) != 1 || list[0].Key != "ledger/t1/2026.jsonl" {
		t.Fatalf("unexpected list %+v %v", list, err)
	}
}

func TestFilesystemStoreRejectsUnsafeKeys(t *testing.T) {
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "../escape", "/abs", "object.meta"} {
		if _, err := s.Put(context.Background(), key, strings.NewReader("x"), core.PutOptions{}); err == nil {
			t.Fatalf("expected key %q to be rejected", key)
		}
	}
}
