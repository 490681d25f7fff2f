package state

import (
	"errors"
	"fmt"
)

// ErrStateSealed is returned by mutation methods after Seal().
var ErrStateSealed = errors.New("analysis state is sealed")

// MissingFieldError marks a field path that has not been computed yet.
// It is distinct from a present-but-empty value: Get never returns a nil
// value silently standing in for "not computed".
type MissingFieldError struct {
	Path string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing field: %s", e.Path)
}

// IsMissingField reports whether err marks an absent field path.
func IsMissingField(err error) bool {
	var mf *MissingFieldError
	return errors.As(err, &mf)
}

// ShapeViolationError marks a container-kind mismatch: a sequence arriving
// where the schema documents a mapping, or the reverse. The offending merge
// is rejected and prior state preserved.
type ShapeViolationError struct {
	Path     string
	Expected string // "mapping" or "sequence"
	Actual   string
}

func (e *ShapeViolationError) Error() string {
	return fmt.Sprintf("shape violation at %s: expected %s, got %s", e.Path, e.Expected, e.Actual)
}

// IsShapeViolation reports whether err is a container-kind mismatch.
func IsShapeViolation(err error) bool {
	var sv *ShapeViolationError
	return errors.As(err, &sv)
}

// DuplicateMergeError marks a second merge attempt for the same agent name.
// The output log keeps at most one entry per agent.
type DuplicateMergeError struct {
	Agent string
}

func (e *DuplicateMergeError) Error() string {
	return fmt.Sprintf("agent %q already merged an output", e.Agent)
}
