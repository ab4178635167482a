package fusion

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Frame is one extracted still. Index is Counter-1.
type Frame struct {
	Index   int
	Counter int
	Path    string
	Name    string
}

// FramePattern returns the regular expression frame names must match.
func FramePattern(prefix, ext string) (*regexp.Regexp, error) {
	prefix = norm.NFC.String(prefix)
	ext = strings.TrimPrefix(norm.NFC.String(ext), ".")
	if prefix == "" || ext == "" {
		return nil, fmt.Errorf("frame pattern needs a prefix and an extension")
	}
	return regexp.Compile(`^` + regexp.QuoteMeta(prefix) + `_(\d{6})\.(?i:` + regexp.QuoteMeta(ext) + `)$`)
}

// ListFrames returns the frames in dir named <prefix>_NNNNNN.<ext>, ordered by
// index. Other files are skipped. Names are compared in NFC so a prefix typed
// on one platform matches files written on another.
func ListFrames(dir, prefix, ext string) ([]Frame, error) {
	pattern, err := FramePattern(prefix, ext)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list frames: %w", err)
	}

	seen := make(map[int]bool)
	frames := make([]Frame, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		m := pattern.FindStringSubmatch(norm.NFC.String(name))
		if m == nil {
			continue
		}
		counter, err := strconv.Atoi(m[1])
		if err != nil || counter < 1 || seen[counter] {
			continue
		}
		seen[counter] = true
		frames = append(frames, Frame{
			Index:   counter - 1,
			Counter: counter,
			Path:    filepath.Join(dir, name),
			Name:    name,
		})
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Index < frames[j].Index })
	return frames, nil
}
