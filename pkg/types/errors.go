package types

import (
	"errors"
	"fmt"
)

// Common pipeline errors
var (
	// ErrEmptyInput indicates a string was empty after trimming
	ErrEmptyInput = errors.New("empty input")

	// ErrNotFound indicates an unknown identifier or a missing claim
	ErrNotFound = errors.New("not found")

	// ErrMissingRealName indicates a pseudonym maps to a name that was never resolved
	ErrMissingRealName = errors.New("missing real name")

	// ErrIO indicates an unreadable or malformed file
	ErrIO = errors.New("i/o error")
)

// EmptyInputError is returned by normalization when nothing is left after trimming.
type EmptyInputError struct {
	Input string
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("empty input after trimming: %q", e.Input)
}

// Is implements errors.Is support for EmptyInputError.
func (e *EmptyInputError) Is(target error) bool {
	if target == ErrEmptyInput {
		return true
	}
	_, ok := target.(*EmptyInputError)
	return ok
}

// NewEmptyInputError creates a new empty input error
func NewEmptyInputError(input string) *EmptyInputError {
	return &EmptyInputError{Input: input}
}

// NotFoundError is returned by knowledge lookups for unknown identifiers or
// records without the requested claim.
type NotFoundError struct {
	ID       string
	Property string
}

func (e *NotFoundError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("%s: no %s claim", e.ID, e.Property)
	}
	return fmt.Sprintf("%s: not found", e.ID)
}

// Is implements errors.Is support for NotFoundError.
func (e *NotFoundError) Is(target error) bool {
	if target == ErrNotFound {
		return true
	}
	_, ok := target.(*NotFoundError)
	return ok
}

// NewNotFoundError creates a new not found error. The optional property names the
// missing claim.
func NewNotFoundError(id string, property ...string) *NotFoundError {
	err := &NotFoundError{ID: id}
	if len(property) > 0 {
		err.Property = property[0]
	}
	return err
}

// MissingRealNameError is returned when a pseudonym points to a real name that has
// no candidate entry.
type MissingRealNameError struct {
	Pseudonym string
	RealName  string
}

func (e *MissingRealNameError) Error() string {
	return fmt.Sprintf("pseudonym %q maps to %q which was never resolved", e.Pseudonym, e.RealName)
}

// Is implements errors.Is support for MissingRealNameError.
func (e *MissingRealNameError) Is(target error) bool {
	if target == ErrMissingRealName {
		return true
	}
	_, ok := target.(*MissingRealNameError)
	return ok
}

// NewMissingRealNameError creates a new missing real name error
func NewMissingRealNameError(pseudonym, realName string) *MissingRealNameError {
	return &MissingRealNameError{Pseudonym: pseudonym, RealName: realName}
}

// IOError wraps a failure to read, parse or write a file.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for IOError.
func (e *IOError) Is(target error) bool {
	if target == ErrIO {
		return true
	}
	_, ok := target.(*IOError)
	return ok
}

// NewIOError creates a new I/O error for the given operation and path
func NewIOError(op, path string, err error) *IOError {
	return &IOError{Op: op, Path: path, Err: err}
}
