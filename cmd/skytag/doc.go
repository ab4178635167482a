// Package main hosts the skytag CLI entrypoint and command graph.
//
// The Cobra command tree wraps the extract pipeline and the inspection
// helpers around it: parsing a caption track on its own, listing candidate
// frames, browsing the run journal, and checking the local toolchain.
// Configuration is resolved once per invocation and shared by every
// subcommand; the heavy lifting lives in the internal packages.
package main
