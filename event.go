package worldview

// EventKind distinguishes consumer notifications.
type EventKind int

const (
	// Added reports that the artifact for a key was created or updated.
	Added EventKind = iota + 1

	// Removed reports that the artifact for a key was deleted.
	Removed
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Event is a fire-and-forget notification to the render consumer that the
// artifact table changed and a redraw is due.
type Event struct {
	Kind EventKind
	Key  Key
}

// Notify performs a best-effort, non-blocking send. A full or nil channel
// drops the event: the consumer redraws from table state, not from event
// payloads, so a lost notification only delays the next frame.
func Notify(ch chan<- Event, ev Event) {
	if ch == nil {
		return
	}
	select {
	case ch <- ev:
	default:
	}
}
