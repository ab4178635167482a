// Package journal records extract runs and per-frame tagging states in SQLite.
//
// Every state a frame enters during the two-phase write is stored, so a later
// run over the same video, destination and prefix can skip frames whose
// CreateDate was already shifted. Shifting twice would move the timestamp by
// twice the offset.
package journal
