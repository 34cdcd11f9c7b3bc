package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Chinelonweke/Nigeria-PHC-AI-Assistant/internal/domain"
)

func TestKVStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := newMockKV()
	s := NewKV(kv, 0)

	if err := s.Write(ctx, "cache", []byte(`{"version":1}`)); err != nil {
		t.Fatal(err)
	}
	if _, ok := kv.data["snapshot:cache"]; !ok {
		t.Fatalf("expected key snapshot:cache, got %v", kv.data)
	}
	if _, ok := kv.ttls["snapshot:cache"]; ok {
		t.Error("ttl <= 0 must use plain SET")
	}

	data, err := s.Read(ctx, "cache")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"version":1}` {
		t.Fatalf("unexpected data %s", data)
	}
}

func TestKVStore_TTL(t *testing.T) {
	kv := newMockKV()
	s := NewKV(kv, 48*time.Hour)
	if err := s.Write(context.Background(), "cache", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if kv.ttls["snapshot:cache"] != 48*time.Hour {
		t.Fatalf("unexpected ttl %v", kv.ttls["snapshot:cache"])
	}
}

func TestKVStore_Errors(t *testing.T) {
	ctx := context.Background()
	kv := newMockKV()
	s := NewKV(kv, 0)

	if _, err := s.Read(ctx, "missing"); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}

	kv.getErr = errConn
	_, err := s.Read(ctx, "cache")
	if !errors.Is(err, errConn) || errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected connection error, got %v", err)
	}

	kv.setErr = errConn
	if err := s.Write(ctx, "cache", []byte("x")); !errors.Is(err, errConn) {
		t.Fatalf("expected connection error, got %v", err)
	}
}

func TestFileStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "nested")
	s := NewFile(dir)

	if err := s.Write(ctx, "snap.json", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, "snap.json", []byte("two")); err != nil {
		t.Fatal(err)
	}
	data, err := s.Read(ctx, "snap.json")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Fatalf("unexpected data %s", data)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files must not be left behind: %v", entries)
	}
}

func TestFileStore_Errors(t *testing.T) {
	ctx := context.Background()
	s := NewFile(t.TempDir())

	if _, err := s.Read(ctx, "absent.json"); !errors.Is(err, domain.ErrSnapshotNotFound) {
		t.Fatalf("expected ErrSnapshotNotFound, got %v", err)
	}
	for _, name := range []string{"", "..", "../escape", `a\b`} {
		if err := s.Write(ctx, name, nil); !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("%q: expected ErrInvalidInput, got %v", name, err)
		}
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := s.Read(cancelled, "x"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
