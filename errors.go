// Package linmo implements the task execution engine of a small
// preemptive, priority-based real-time kernel: task control blocks, the
// ready-queue scheduler, blocking synchronization primitives, IPC
// primitives, and a software timer wheel.
package linmo

import (
	"errors"
	"fmt"
)

// ErrCode is the kernel's high-level error taxonomy (spec §7). OK and
// Fail are reserved values; the rest start in the negative range the
// reference kernel used for its numeric sentinels, kept here only as an
// ordering convention — callers should compare by ErrCode, never by the
// underlying int.
type ErrCode int

const (
	OK   ErrCode = 0
	Fail ErrCode = -1

	ErrNoTasks ErrCode = -16384 - iota
	ErrKCBAlloc
	ErrTCBAlloc
	ErrStackAlloc
	ErrTaskCantRemove
	ErrTaskNotFound
	ErrTaskCantSuspend
	ErrTaskCantResume
	ErrTaskInvalidPrio
	ErrTaskInvalidEntry
	ErrTaskBusy
	ErrNotOwner
	ErrStackCheck
	ErrPipeAlloc
	ErrPipeDealloc
	ErrSemAlloc
	ErrSemDealloc
	ErrSemOperation
	ErrMQNotEmpty
	ErrTimeout
	ErrUnknown
)

var codeStrings = map[ErrCode]string{
	OK:                  "ok",
	Fail:                "fail",
	ErrNoTasks:          "no runnable tasks",
	ErrKCBAlloc:         "kernel control block allocation failed",
	ErrTCBAlloc:         "task control block allocation failed",
	ErrStackAlloc:       "stack allocation failed",
	ErrTaskCantRemove:   "task cannot be removed",
	ErrTaskNotFound:     "task not found",
	ErrTaskCantSuspend:  "task cannot be suspended",
	ErrTaskCantResume:   "task cannot be resumed",
	ErrTaskInvalidPrio:  "invalid priority",
	ErrTaskInvalidEntry: "invalid entry function",
	ErrTaskBusy:         "task busy",
	ErrNotOwner:         "not owner",
	ErrStackCheck:       "stack check failed",
	ErrPipeAlloc:        "pipe allocation failed",
	ErrPipeDealloc:      "pipe still in use",
	ErrSemAlloc:         "semaphore allocation failed",
	ErrSemDealloc:       "semaphore still in use",
	ErrSemOperation:     "semaphore operation invalid",
	ErrMQNotEmpty:       "message queue not empty",
	ErrTimeout:          "timed out",
	ErrUnknown:          "unknown error",
}

// String implements fmt.Stringer.
func (c ErrCode) String() string {
	if s, ok := codeStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("errcode(%d)", int(c))
}

// Error is a structured kernel error carrying the failing operation name,
// the task/object id involved (0 if not applicable), the high-level
// ErrCode, and an optional wrapped cause.
type Error struct {
	Op    string  // operation that failed, e.g. "mutex.lock", "task.spawn"
	ID    uint16  // task id or object id, 0 if not applicable
	Code  ErrCode // high-level error category
	Msg   string  // human-readable message
	Inner error   // wrapped error, if any
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Op != "" && e.ID != 0 {
		return fmt.Sprintf("linmo: %s (op=%s id=%d)", msg, e.Op, e.ID)
	}
	if e.Op != "" {
		return fmt.Sprintf("linmo: %s (op=%s)", msg, e.Op)
	}
	return fmt.Sprintf("linmo: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is comparison against a bare ErrCode-carrying error
// or another *Error with the same Code.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// NewError builds a structured error for operation op with category code.
func NewError(op string, code ErrCode, msg string) *Error {
	return &Error{Op: op, Code: code, Msg: msg}
}

// NewTaskError builds a structured error naming the task id involved.
func NewTaskError(op string, id uint16, code ErrCode, msg string) *Error {
	return &Error{Op: op, ID: id, Code: code, Msg: msg}
}

// WrapError wraps inner with kernel operation context, preserving Code if
// inner is already a *Error.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ie, ok := inner.(*Error); ok {
		return &Error{Op: op, ID: ie.ID, Code: ie.Code, Msg: ie.Msg, Inner: ie.Inner}
	}
	return &Error{Op: op, Code: ErrUnknown, Msg: inner.Error(), Inner: inner}
}

// IsCode reports whether err is a *Error (possibly wrapped) with the
// given code.
func IsCode(err error, code ErrCode) bool {
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Code == code
	}
	return false
}

// KernelPanic is the payload carried by panics raised for invariant
// violations per spec §7 ("panic is reserved for invariant violations
// detected internally"). It is never returned as an error value — callers
// that can legitimately hit it in a test harness should recover() and
// assert on Code/Msg; the demo binary lets it propagate and crash, which
// is this runtime's rendition of hal_panic() halting the core.
type KernelPanic struct {
	Code ErrCode
	Msg  string
}

func (p KernelPanic) String() string {
	return fmt.Sprintf("kernel panic: %s: %s", p.Code, p.Msg)
}

// Panic raises a KernelPanic for code with context msg. Reserved for
// conditions the spec documents as programmer errors, never for ordinary
// user-facing failures (those return an *Error instead).
func Panic(code ErrCode, msg string) {
	panic(KernelPanic{Code: code, Msg: msg})
}

// Recover, deferred by name (defer linmo.Recover(&err)), turns a
// KernelPanic raised by Panic back into an *Error so tests and
// non-fatal call sites can inspect it instead of crashing the process.
// Any other panic value is re-raised unchanged.
func Recover(err *error) {
	r := recover()
	if r == nil {
		return
	}
	kp, ok := r.(KernelPanic)
	if !ok {
		panic(r)
	}
	*err = &Error{Code: kp.Code, Msg: kp.Msg}
}
