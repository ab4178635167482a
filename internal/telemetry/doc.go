// Package telemetry parses the caption-style telemetry track embedded in drone
// videos into an ordered sequence of trackpoints.
//
// Each caption block carries a "start --> end" header and a payload of
// KEY=value fields (GPS, H, H_S, SS, ISO, DZOOM, F, EV, TIMECODE). Parsing is
// all-or-nothing: a single incomplete block fails the whole parse with a
// MalformedTelemetryError, because frames are later correlated with
// trackpoints purely by position.
package telemetry
