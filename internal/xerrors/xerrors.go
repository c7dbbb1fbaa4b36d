// Package xerrors wraps errors with the call site or full stack so the
// logger can report where a failure started, not just where it was logged.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

// StackTracer is implemented by errors that carry captured program counters.
type StackTracer interface {
	StackPCs() []uintptr
}

type withStack struct {
	err error
	pcs []uintptr
}

func (w *withStack) Error() string       { return w.err.Error() }
func (w *withStack) Unwrap() error       { return w.err }
func (w *withStack) StackPCs() []uintptr { return w.pcs }
func (w *withStack) IsXerrorsWrapper()   {}

func captureStack(skip int) []uintptr {
	const maxDepth = 64
	pcs := make([]uintptr, maxDepth)
	// 2 skips runtime.Callers + captureStack
	n := runtime.Callers(2+skip, pcs)
	return pcs[:n]
}

func withStackSkip(err error, skip int) error {
	if err == nil {
		return nil
	}
	return &withStack{err: err, pcs: captureStack(skip)}
}

func WithStack(err error) error { return withStackSkip(err, 2) }

// EnsureTrace adds a stack unless something in the chain already has one.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	if pcs := Stack(err); len(pcs) > 0 {
		return err
	}
	return withStackSkip(err, 2)
}

// Stack returns the first captured stack found in the chain, or nil.
func Stack(err error) []uintptr {
	var st StackTracer
	if errors.As(err, &st) && st != nil {
		return st.StackPCs()
	}
	return nil
}

type wrap struct {
	err error
	msg string
	pc  uintptr
}

func (w *wrap) Error() string     { return w.msg + ": " + w.err.Error() }
func (w *wrap) Unwrap() error     { return w.err }
func (w *wrap) PC() uintptr       { return w.pc }
func (w *wrap) IsXerrorsWrapper() {}

func callerPC(skip int) uintptr {
	var pcs [1]uintptr
	// 2 skips runtime.Callers + callerPC
	if n := runtime.Callers(2+skip, pcs[:]); n == 0 {
		return 0
	}
	return pcs[0]
}

func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrap{err: err, msg: msg, pc: callerPC(1)}
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrap{err: err, msg: fmt.Sprintf(format, args...), pc: callerPC(1)}
}

func New(msg string) error             { return withStackSkip(errors.New(msg), 2) }
func Newf(f string, args ...any) error { return withStackSkip(fmt.Errorf(f, args...), 2) }

// PanicError is a recovered panic value. The stack points at the panic site
// because it is captured inside the deferred recover.
type PanicError struct {
	Value any
	pcs   []uintptr
}

func (p *PanicError) Error() string {
	if err, ok := p.Value.(error); ok {
		return "panic: " + err.Error()
	}
	return fmt.Sprintf("panic: %v", p.Value)
}

func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

func (p *PanicError) StackPCs() []uintptr { return p.pcs }

// FromPanic converts a recover() value into an error. Call it directly from
// the deferred function so the captured stack still includes the panicking frames.
func FromPanic(v any) error {
	if v == nil {
		return nil
	}
	return &PanicError{Value: v, pcs: captureStack(1)}
}
