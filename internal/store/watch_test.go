package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/musubu/internal/hdc"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	target := New(256, hdc.L2, nil)
	w := NewWatcher(path, target, nil)
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	snap := newSeededStore(t)
	if err := snap.SaveFile(path); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if target.Len() == snap.Len() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("store not reloaded: %d entities, want %d", target.Len(), snap.Len())
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.json")

	target := New(256, hdc.L2, nil)
	w := NewWatcher(path, target, nil)
	w.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	other := newSeededStore(t)
	if err := other.SaveFile(filepath.Join(dir, "other.json")); err != nil {
		t.Fatalf("SaveFile failed: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if target.Len() != 0 {
		t.Errorf("unrelated file triggered a reload: %d entities", target.Len())
	}
}

func TestWatcherStopIdempotent(t *testing.T) {
	dir := t.TempDir()
	w := NewWatcher(filepath.Join(dir, "snapshot.json"), New(64, hdc.L2, nil), nil)
	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	w.Stop()
	w.Stop()
}
