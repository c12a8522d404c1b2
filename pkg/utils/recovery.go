package utils

import (
	"fmt"
	"runtime/debug"
)

// PanicError is a panic raised while processing one corpus file or one pool
// item, turned into an error so the rest of the batch can go on.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

func newPanicError(value any) *PanicError {
	return &PanicError{Value: value, Stack: debug.Stack()}
}

// CapturePanic stores a recovered panic in *errPtr. Defer it first thing in a
// function with a named error result:
//
//	func (a *Aggregator) processFile(f corpus.File) (table *Table, err error) {
//	    defer utils.CapturePanic(&err)
//	    ...
//	}
func CapturePanic(errPtr *error) {
	if r := recover(); r != nil {
		*errPtr = newPanicError(r)
	}
}
