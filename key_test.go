package worldview

import "testing"

func TestParseKey(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		wantOK   bool
		instance int64
		artifact string
	}{
		{"simple", "1.cloudA.ply", true, 1, "cloudA"},
		{"multi digit instance", "0042.pose.ply", true, 42, "pose"},
		{"dotted artifact", "7.left.camera.depth.ply", true, 7, "left.camera.depth"},
		{"no instance", "cloudA.ply", false, 0, ""},
		{"wrong extension", "1.cloudA.obj", false, 0, ""},
		{"no artifact", "1..ply", false, 0, ""},
		{"unrelated file", "README.md", false, 0, ""},
		{"sentinel-ish name", "exit_sentinel", false, 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, ok := ParseKey(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ParseKey(%q) ok = %v, want %v", tt.filename, ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if key.Instance != tt.instance {
				t.Errorf("Instance = %d, want %d", key.Instance, tt.instance)
			}
			if key.Artifact != tt.artifact {
				t.Errorf("Artifact = %q, want %q", key.Artifact, tt.artifact)
			}
		})
	}
}

func TestKeyString(t *testing.T) {
	k := Key{Instance: 3, Artifact: "cloudA"}
	if got := k.String(); got != "[3] cloudA" {
		t.Errorf("String = %q, want %q", got, "[3] cloudA")
	}

	k = Key{Instance: -1, Artifact: "cloudA"}
	if got := k.String(); got != "cloudA" {
		t.Errorf("String = %q, want %q", got, "cloudA")
	}
}

func TestElementFromName(t *testing.T) {
	tests := []struct {
		in     string
		want   Element
		wantOK bool
	}{
		{"vertex", Vertex, true},
		{"vertices", Vertex, true},
		{"face", Facet, true},
		{"facet", Facet, true},
		{"faces", Facet, true},
		{"camera", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ElementFromName(tt.in)
		if ok != tt.wantOK || (ok && got != tt.want) {
			t.Errorf("ElementFromName(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNotifyNonBlocking(t *testing.T) {
	// Full channel must not block the producer.
	ch := make(chan Event, 1)
	ch <- Event{Kind: Added}

	done := make(chan struct{})
	go func() {
		Notify(ch, Event{Kind: Removed, Key: Key{Artifact: "x"}})
		close(done)
	}()

	select {
	case <-done:
	default:
		// Give the goroutine a chance; Notify must return immediately.
		<-done
	}

	// Nil channel is a no-op.
	Notify(nil, Event{Kind: Added})
}
