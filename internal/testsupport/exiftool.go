package testsupport

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeExiftool speaks the stay-open protocol. Every executed command is
// appended to "<script>.log" as one line of "|"-terminated arguments.
//
// Behaviour by argument content:
//   - a path containing "fail-base" errors on plain writes
//   - a path containing "fail-shift" errors on += writes
//   - -json prints a CreateDate unless the path contains "nodate"
const fakeExiftool = `#!/bin/sh
log="$0.log"
marker=""
args=""
want_marker=0
want_stay=0
while IFS= read -r line; do
  if [ "$want_marker" = 1 ]; then marker="$line"; want_marker=0; continue; fi
  if [ "$want_stay" = 1 ]; then
    want_stay=0
    if [ "$line" = "False" ]; then exit 0; fi
    continue
  fi
  case "$line" in
    -echo4) want_marker=1 ;;
    -stay_open) want_stay=1 ;;
    -execute*)
      n="${line#-execute}"
      printf '%s\n' "$args" >> "$log"
      case "$args" in
        *-json*)
          case "$args" in
            *nodate*) echo '[{"SourceFile":"x"}]' ;;
            *) echo '[{"SourceFile":"x","CreateDate":"2024:05:01 10:00:00"}]' ;;
          esac ;;
        *fail-shift*+=*|*+=*fail-shift*)
          echo "    0 image files updated"
          echo "    1 files weren't updated due to errors"
          echo "Error: Can't shift CreateDate - fail-shift" >&2 ;;
        *fail-base*+=*|*+=*fail-base*)
          echo "    1 image files updated" ;;
        *fail-base*)
          echo "    0 image files updated"
          echo "    1 files weren't updated due to errors"
          echo "Error: Not a valid JPG - fail-base" >&2 ;;
        *) echo "    1 image files updated" ;;
      esac
      echo "{ready$n}"
      echo "$marker" >&2
      args="" ;;
    *) args="${args}${line}|" ;;
  esac
done
`

// WriteFakeExiftool writes a protocol-speaking exiftool stand-in into dir and
// returns its path.
func WriteFakeExiftool(t testing.TB, dir string) string {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	path := filepath.Join(dir, "exiftool")
	if err := os.WriteFile(path, []byte(fakeExiftool), 0o755); err != nil {
		t.Fatalf("write fake exiftool: %v", err)
	}
	return path
}

// FakeExiftoolCommands returns the commands the fake executed, each split into
// its arguments.
func FakeExiftoolCommands(t testing.TB, binary string) [][]string {
	t.Helper()
	data, err := os.ReadFile(binary + ".log")
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read fake exiftool log: %v", err)
	}
	var commands [][]string
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		commands = append(commands, strings.Split(strings.TrimSuffix(line, "|"), "|"))
	}
	return commands
}
