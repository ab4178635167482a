package testsupport

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

var (
	jpegStart = []byte{0xFF, 0xD8}
	jpegEnd   = []byte{0xFF, 0xD9}
)

// WriteFile creates path and its parents with size filler bytes. JPEG paths
// are framed by start and end of image markers so they pass for extracted
// stills. A size <= 0 writes a single byte.
func WriteFile(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	data := bytes.Repeat([]byte{0x42}, int(size))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		if len(data) >= len(jpegStart)+len(jpegEnd) {
			copy(data, jpegStart)
			copy(data[len(data)-len(jpegEnd):], jpegEnd)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// WriteFrames creates count placeholder frame files named the way the frame
// extractor names them (prefix_000001.ext onwards) and returns their paths.
func WriteFrames(t testing.TB, dir, prefix, ext string, count int) []string {
	t.Helper()

	paths := make([]string, 0, count)
	for i := 1; i <= count; i++ {
		path := filepath.Join(dir, fmt.Sprintf("%s_%06d.%s", prefix, i, ext))
		WriteFile(t, path, 64)
		paths = append(paths, path)
	}
	return paths
}
