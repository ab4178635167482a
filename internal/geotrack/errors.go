package geotrack

import (
	"errors"
	"fmt"
)

// ErrAuxiliaryWrite marks failures writing the track file.
var ErrAuxiliaryWrite = errors.New("auxiliary write failed")

// AuxiliaryWriteError reports a track export that could not be written.
type AuxiliaryWriteError struct {
	Path string
	Err  error
}

func (e *AuxiliaryWriteError) Error() string {
	return fmt.Sprintf("%v: %s: %v", ErrAuxiliaryWrite, e.Path, e.Err)
}

func (e *AuxiliaryWriteError) Unwrap() error { return e.Err }

func (e *AuxiliaryWriteError) Is(target error) bool {
	return target == ErrAuxiliaryWrite
}
