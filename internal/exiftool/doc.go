// Package exiftool keeps one exiftool process open for the whole run and
// feeds it numbered commands over stdin (-stay_open True -@ -).
//
// A Session serializes every call, so writes for different frames never
// interleave. Close shuts the process down and is safe to call more than once.
package exiftool
