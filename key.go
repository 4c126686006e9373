package worldview

import (
	"fmt"
	"regexp"
	"strconv"
)

// FilePattern matches the filenames produced by the upstream pipeline:
// an instance (frame) number, the artifact stream name, and the fixed
// geometry extension. Anything else in a watched directory is ignored.
const FilePattern = `^(?P<instance>[0-9]+)\.(?P<artifact>.+)\.ply$`

var fileRE = regexp.MustCompile(FilePattern)

// Key identifies an artifact stream. Artifact is the stable logical
// identity; Instance is the sequence number from the filename and is used
// for display and playback pacing only, never for table identity.
type Key struct {
	// Instance is the numeric frame identifier, or -1 when unknown
	// (e.g. for delete events, where only the stream name matters).
	Instance int64

	// Artifact is the logical stream name extracted from the filename.
	Artifact string
}

// ParseKey extracts a Key from a bare filename (no directory part).
// It reports false for filenames that do not follow the naming convention.
func ParseKey(filename string) (Key, bool) {
	m := fileRE.FindStringSubmatch(filename)
	if m == nil {
		return Key{}, false
	}
	instance, err := strconv.ParseInt(m[fileRE.SubexpIndex("instance")], 10, 64)
	if err != nil {
		// The capture is all digits; overflow is the only way here.
		instance = -1
	}
	return Key{
		Instance: instance,
		Artifact: m[fileRE.SubexpIndex("artifact")],
	}, true
}

// String renders "[instance] artifact", or just the artifact name when the
// instance is unknown.
func (k Key) String() string {
	if k.Instance < 0 {
		return k.Artifact
	}
	return fmt.Sprintf("[%d] %s", k.Instance, k.Artifact)
}
