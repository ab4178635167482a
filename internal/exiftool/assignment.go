package exiftool

import (
	"fmt"
	"strings"
)

// Op is the exiftool assignment operator.
type Op string

const (
	// OpSet replaces the tag value.
	OpSet Op = "="
	// OpShift adds to a date/time tag (CreateDate+=H:M:S).
	OpShift Op = "+="
)

// OptOverwriteOriginal rewrites files in place without a _original backup.
const OptOverwriteOriginal = "-overwrite_original"

// Assignment is one tag write.
type Assignment struct {
	Tag   string
	Value string
	Op    Op
}

// Arg renders the assignment as an exiftool argument.
func (a Assignment) Arg() string {
	op := a.Op
	if op == "" {
		op = OpSet
	}
	return "-" + a.Tag + string(op) + a.Value
}

func (a Assignment) validate() error {
	if strings.TrimSpace(a.Tag) == "" {
		return fmt.Errorf("empty tag name")
	}
	if strings.ContainsAny(a.Tag, "=+<> \t\n\r") {
		return fmt.Errorf("invalid tag name %q", a.Tag)
	}
	if strings.ContainsAny(a.Value, "\n\r") {
		return fmt.Errorf("tag %s: line breaks are not allowed", a.Tag)
	}
	switch a.Op {
	case "", OpSet, OpShift:
	default:
		return fmt.Errorf("tag %s: unsupported operator %q", a.Tag, a.Op)
	}
	return nil
}
