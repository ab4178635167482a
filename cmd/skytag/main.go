package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// exitInterrupted follows the shell convention for SIGINT.
const exitInterrupted = 130

func main() {
	err := newRootCommand().Execute()
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "skytag: interrupted; rerun with --resume to continue")
		os.Exit(exitInterrupted)
	}
	fmt.Fprintln(os.Stderr, "skytag:", err)
	os.Exit(1)
}
