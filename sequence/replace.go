// Package sequence maintains the keyed table of live artifacts.
//
// The table holds at most one artifact per logical stream name. Producers
// feed it file paths; each Add replaces whatever the table held for that
// name with the file's geometry, so consumers always see the newest
// complete state and never a backlog.
package sequence

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/gogpu/worldview"
	"github.com/gogpu/worldview/artifact"
	"github.com/gogpu/worldview/gpu"
	"github.com/gogpu/worldview/ply"
)

// Sequencer consumes file-level events from producers.
//
// Both operations return the parsed key and whether the table changed.
// Implementations must be safe for concurrent use.
type Sequencer interface {
	Add(path string) (worldview.Key, bool)
	Remove(path string) (worldview.Key, bool)
}

// Replace is the newest-wins Sequencer. Updates for a name land in place
// when the existing artifact has the same kind and enough capacity, and
// replace the artifact's buffers otherwise.
//
// File I/O and payload decoding happen before the table lock is taken, so
// a consumer iterating the table is never blocked behind disk reads.
type Replace struct {
	adapter gpu.Adapter
	filter  *regexp.Regexp
	events  chan<- worldview.Event

	mu    sync.Mutex
	table map[string]artifact.Variant
}

// NewReplace creates an empty table. filter, when non-nil, restricts
// ingestion to artifact names it matches. events, when non-nil, receives
// best-effort change notifications.
func NewReplace(adapter gpu.Adapter, filter *regexp.Regexp, events chan<- worldview.Event) *Replace {
	return &Replace{
		adapter: adapter,
		filter:  filter,
		events:  events,
		table:   make(map[string]artifact.Variant),
	}
}

// Add ingests the file at path. Files whose names do not parse or do not
// pass the filter are ignored; malformed or unrenderable files are logged
// and leave the table unchanged.
func (r *Replace) Add(path string) (worldview.Key, bool) {
	log := worldview.Logger()

	key, ok := worldview.ParseKey(filepath.Base(path))
	if !ok {
		log.Debug("sequence: ignoring file", "path", path)
		return key, false
	}
	if r.filter != nil && !r.filter.MatchString(key.Artifact) {
		log.Debug("sequence: filtered out", "key", key.String())
		return key, false
	}

	h, p, err := readFile(path)
	if err != nil {
		log.Warn("sequence: unreadable artifact", "key", key.String(), "error", err)
		return key, false
	}
	kind, ok := artifact.Classify(h)
	if !ok {
		log.Warn("sequence: no renderable geometry", "key", key.String())
		return key, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	variant := r.table[key.Artifact]
	if variant != nil && (variant.Kind() != kind || variant.NeedsResize(h)) {
		variant.Release()
		delete(r.table, key.Artifact)
		variant = nil
	}
	if variant == nil {
		v, err := artifact.New(r.adapter, key.Artifact, kind, h)
		if err != nil {
			log.Warn("sequence: allocation failed", "key", key.String(), "error", err)
			return key, false
		}
		variant = v
		r.table[key.Artifact] = variant
	}

	variant.UpdateCounts(h)
	if err := variant.Upload(p); err != nil {
		log.Warn("sequence: upload failed", "key", key.String(), "error", err)
		variant.Release()
		delete(r.table, key.Artifact)
		return key, false
	}
	if err := r.adapter.Flush(); err != nil {
		log.Warn("sequence: flush failed", "key", key.String(), "error", err)
	}

	log.Debug("sequence: artifact replaced",
		"key", key.String(), "kind", kind.String(), "vertices", variant.VertexCount())
	worldview.Notify(r.events, worldview.Event{Kind: worldview.Added, Key: key})
	return key, true
}

// Remove drops the artifact named by path and releases its buffers.
// Removing an absent artifact is a no-op reporting false.
func (r *Replace) Remove(path string) (worldview.Key, bool) {
	key, ok := worldview.ParseKey(filepath.Base(path))
	if !ok {
		return key, false
	}

	r.mu.Lock()
	variant, ok := r.table[key.Artifact]
	if ok {
		variant.Release()
		delete(r.table, key.Artifact)
	}
	r.mu.Unlock()

	if !ok {
		return key, false
	}
	worldview.Logger().Debug("sequence: artifact removed", "key", key.String())
	worldview.Notify(r.events, worldview.Event{Kind: worldview.Removed, Key: key})
	return key, true
}

// Range calls fn for each live artifact under the table lock, stopping
// early when fn returns false. The consumer records its draws inside fn,
// so an Add in flight cannot tear a frame.
func (r *Replace) Range(fn func(name string, v artifact.Variant) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, v := range r.table {
		if !fn(name, v) {
			return
		}
	}
}

// Len returns the number of live artifacts.
func (r *Replace) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.table)
}

// readFile parses one artifact file completely.
func readFile(path string) (*ply.Header, *ply.Payload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	h, err := ply.ReadHeader(br)
	if err != nil {
		return nil, nil, err
	}
	p, err := ply.ReadPayload(h, br)
	if err != nil {
		return nil, nil, err
	}
	return h, p, nil
}
