// Package pipeline runs the extract workflow end to end for one video.
//
// The chain is strict: the destination is locked, the container is probed,
// the caption track is extracted and parsed, frames are extracted, and only
// then is a single exiftool session opened for the fusion engine. The
// GeoJSON track export is the one background task; it never fails a run.
//
// Every external collaborator sits behind Deps so tests can swap in fakes.
package pipeline
