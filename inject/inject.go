// Package inject contains the artifact producers. Both feed a
// sequence.Sequencer: Watch follows live filesystem changes, Playback
// replays a recorded directory in a loop.
package inject

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/gogpu/worldview"
	"github.com/gogpu/worldview/sequence"
)

// writeSettle is how long a path must stay quiet after its last Create or
// Write event before it is ingested. fsnotify reports every write chunk,
// so a file being streamed to disk emits a burst of Write events; only the
// last one sees the complete file.
const writeSettle = 50 * time.Millisecond

// Watch ingests dir until ctx is cancelled. Files created or written under
// dir are added to the sequencer once their writes settle, removed or
// renamed-away files are removed. Files already present when Watch starts
// are ingested once before watching, so a restarted viewer picks up
// current state.
func Watch(ctx context.Context, dir string, seq sequence.Sequencer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inject: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("inject: watch %s: %w", dir, err)
	}

	paths, err := listArtifacts(dir)
	if err != nil {
		return err
	}
	for _, p := range paths {
		seq.Add(p)
	}

	settled := make(chan string)
	pending := make(map[string]*time.Timer)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	worldview.Logger().Info("inject: watching", "dir", dir)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case name := <-settled:
			delete(pending, name)
			seq.Add(name)

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			switch {
			case event.Op&fsnotify.Create == fsnotify.Create ||
				event.Op&fsnotify.Write == fsnotify.Write:
				if t, ok := pending[event.Name]; ok {
					t.Reset(writeSettle)
					break
				}
				name := event.Name
				pending[name] = time.AfterFunc(writeSettle, func() {
					select {
					case settled <- name:
					case <-ctx.Done():
					}
				})
			case event.Op&fsnotify.Remove == fsnotify.Remove ||
				event.Op&fsnotify.Rename == fsnotify.Rename:
				if t, ok := pending[event.Name]; ok {
					t.Stop()
					delete(pending, event.Name)
				}
				seq.Remove(event.Name)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			worldview.Logger().Warn("inject: watcher error", "error", err)
		}
	}
}

// Playback replays dir in an endless loop until ctx is cancelled. Files
// are injected in lexicographic order; delay paces transitions between
// instances, while files of the same instance land back to back so a
// multi-artifact frame appears atomically. The directory is re-enumerated
// after every pass, so files appearing mid-playback join the next pass and
// deleted files drop out of it.
func Playback(ctx context.Context, dir string, seq sequence.Sequencer, delay time.Duration) error {
	paths, err := listArtifacts(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("inject: no artifact files in %s", dir)
	}

	limiter := rate.NewLimiter(rate.Every(delay), 1)
	worldview.Logger().Info("inject: playback", "dir", dir, "files", len(paths), "delay", delay)

	for {
		instance := int64(-1)
		for _, p := range paths {
			if err := ctx.Err(); err != nil {
				return err
			}
			key, ok := worldview.ParseKey(filepath.Base(p))
			if !ok {
				continue
			}
			if key.Instance != instance {
				instance = key.Instance
				if err := limiter.Wait(ctx); err != nil {
					return err
				}
			}
			seq.Add(p)
		}

		// Transient read failures and momentarily empty listings keep the
		// previous pass's files.
		switch next, err := listArtifacts(dir); {
		case err != nil:
			worldview.Logger().Warn("inject: re-enumerate failed", "dir", dir, "error", err)
		case len(next) > 0:
			paths = next
		}
	}
}

// listArtifacts returns the matching files of dir in lexicographic order.
func listArtifacts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("inject: read %s: %w", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := worldview.ParseKey(e.Name()); !ok {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}
