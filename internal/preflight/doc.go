// Package preflight provides readiness checks for the files, directories and
// tools an extract run depends on.
//
// These checks run in two contexts:
//   - The extract pipeline calls RunAll and CheckSystemDeps before touching
//     the video. If any check fails the run stops before any frame is written.
//   - The CLI "skytag status" command uses the same checks, plus ProbeVideo,
//     to display readiness.
package preflight
