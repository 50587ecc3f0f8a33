package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestRun_DebouncesBurstIntoOneRebuild(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.csv")
	if err := os.WriteFile(path, []byte("Company,Role\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w := New(path, Options{Debounce: 100 * time.Millisecond}, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	// A save burst: several writes within the debounce window.
	time.Sleep(50 * time.Millisecond)
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte("Company,Role\nAcme,SRE\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	// Wait past the quiet window.
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(25 * time.Millisecond)
	}
	cancel()
	<-done

	if got := calls.Load(); got != 1 {
		t.Errorf("rebuild fired %d times, want 1", got)
	}
}

func TestRun_IgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.csv")
	if err := os.WriteFile(path, []byte("Company,Role\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var calls atomic.Int32
	w := New(path, Options{Debounce: 50 * time.Millisecond}, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(300 * time.Millisecond)
	cancel()
	<-done

	if calls.Load() != 0 {
		t.Errorf("sibling file writes should not trigger rebuild, got %d", calls.Load())
	}
}

func TestRun_ReportsCallbackErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.csv")
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := New(path, Options{Debounce: 50 * time.Millisecond}, func(ctx context.Context) error {
		return context.DeadlineExceeded
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go w.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	if err := os.WriteFile(path, []byte("y\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-w.Errors():
		if err != context.DeadlineExceeded {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("callback error never surfaced")
	}
}
