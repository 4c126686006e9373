package inject

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/worldview"
)

// recordSequencer captures producer calls.
type recordSequencer struct {
	mu      sync.Mutex
	added   []string
	removed []string
}

func (s *recordSequencer) Add(path string) (worldview.Key, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.added = append(s.added, filepath.Base(path))
	key, ok := worldview.ParseKey(filepath.Base(path))
	return key, ok
}

func (s *recordSequencer) Remove(path string) (worldview.Key, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, filepath.Base(path))
	key, ok := worldview.ParseKey(filepath.Base(path))
	return key, ok
}

func (s *recordSequencer) snapshot() (added, removed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.added...), append([]string(nil), s.removed...)
}

func writeArtifact(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("ply\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached")
}

func TestWatchIngestsExistingAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "1.cloudA.ply")

	seq := &recordSequencer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Watch(ctx, dir, seq) }()

	waitFor(t, func() bool {
		added, _ := seq.snapshot()
		return len(added) >= 1
	})

	path := writeArtifact(t, dir, "2.cloudA.ply")
	waitFor(t, func() bool {
		added, _ := seq.snapshot()
		return contains(added, "2.cloudA.ply")
	})

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, removed := seq.snapshot()
		return contains(removed, "2.cloudA.ply")
	})

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Watch returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not exit after cancellation")
	}
}

func TestWatchCoalescesWriteBursts(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "0.marker.ply")

	seq := &recordSequencer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Watch(ctx, dir, seq) }()

	// The marker is ingested after the watch is established, so writes
	// below are guaranteed to be observed.
	waitFor(t, func() bool {
		added, _ := seq.snapshot()
		return contains(added, "0.marker.ply")
	})

	f, err := os.OpenFile(filepath.Join(dir, "1.cloudA.ply"),
		os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := f.Write([]byte("ply\n")); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		added, _ := seq.snapshot()
		return contains(added, "1.cloudA.ply")
	})
	time.Sleep(4 * writeSettle)

	added, _ := seq.snapshot()
	if n := countOf(added, "1.cloudA.ply"); n != 1 {
		t.Errorf("file ingested %d times across a write burst, want 1", n)
	}
}

func TestWatchMissingDir(t *testing.T) {
	seq := &recordSequencer{}
	err := Watch(context.Background(), "/nonexistent/worldview-test", seq)
	if err == nil {
		t.Fatal("Watch succeeded on missing dir")
	}
}

func TestPlaybackOrderAndRestart(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "2.cloudA.ply")
	writeArtifact(t, dir, "1.cloudA.ply")
	writeArtifact(t, dir, "1.pose.ply")
	writeArtifact(t, dir, "notes.txt")

	seq := &recordSequencer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Playback(ctx, dir, seq, time.Millisecond) }()

	// At least one full cycle plus the start of the next proves restart.
	waitFor(t, func() bool {
		added, _ := seq.snapshot()
		return len(added) >= 4
	})
	cancel()
	<-done

	added, _ := seq.snapshot()
	want := []string{"1.cloudA.ply", "1.pose.ply", "2.cloudA.ply"}
	for i, w := range want {
		if added[i] != w {
			t.Errorf("added[%d] = %q, want %q", i, added[i], w)
		}
	}
	if contains(added, "notes.txt") {
		t.Error("non-artifact file injected")
	}
	if added[3] != "1.cloudA.ply" {
		t.Errorf("cycle restarted with %q, want 1.cloudA.ply", added[3])
	}
}

func TestPlaybackCancelsPromptly(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "1.cloudA.ply")

	seq := &recordSequencer{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Playback(ctx, dir, seq, time.Hour) }()

	waitFor(t, func() bool {
		added, _ := seq.snapshot()
		return len(added) >= 1
	})
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Playback returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Playback did not exit within a tick of cancellation")
	}
}

func TestPlaybackSameInstanceBatch(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "1.cloudA.ply")
	writeArtifact(t, dir, "1.pose.ply")

	seq := &recordSequencer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Playback(ctx, dir, seq, time.Hour) }()

	// Both files share instance 1, so the one paced wait admits them both.
	waitFor(t, func() bool {
		added, _ := seq.snapshot()
		return len(added) >= 2
	})
	cancel()
	<-done

	added, _ := seq.snapshot()
	if added[0] != "1.cloudA.ply" || added[1] != "1.pose.ply" {
		t.Errorf("added = %v", added[:2])
	}
}

func TestPlaybackPicksUpDirectoryChanges(t *testing.T) {
	dir := t.TempDir()
	writeArtifact(t, dir, "1.cloudA.ply")

	seq := &recordSequencer{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- Playback(ctx, dir, seq, time.Millisecond) }()

	waitFor(t, func() bool {
		added, _ := seq.snapshot()
		return len(added) >= 1
	})

	// A file created mid-playback joins a later pass.
	path := writeArtifact(t, dir, "2.cloudA.ply")
	waitFor(t, func() bool {
		added, _ := seq.snapshot()
		return contains(added, "2.cloudA.ply")
	})

	// A deleted file drops out once the listing it is on drains. The pass
	// in flight and the listing taken before the delete may each inject it
	// one last time.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	added, _ := seq.snapshot()
	atDelete := countOf(added, "2.cloudA.ply")
	survivors := countOf(added, "1.cloudA.ply")
	waitFor(t, func() bool {
		a, _ := seq.snapshot()
		return countOf(a, "1.cloudA.ply") >= survivors+3
	})
	cancel()
	<-done

	final, _ := seq.snapshot()
	if n := countOf(final, "2.cloudA.ply"); n > atDelete+2 {
		t.Errorf("deleted file injected %d times after removal", n-atDelete)
	}
}

func TestPlaybackEmptyDir(t *testing.T) {
	seq := &recordSequencer{}
	if err := Playback(context.Background(), t.TempDir(), seq, time.Millisecond); err == nil {
		t.Fatal("Playback succeeded on empty dir")
	}
}

func contains(list []string, s string) bool {
	return countOf(list, s) > 0
}

func countOf(list []string, s string) int {
	n := 0
	for _, v := range list {
		if v == s {
			n++
		}
	}
	return n
}
