// Package ksync implements the kernel's blocking synchronization
// primitives (spec §4.3): counting semaphore, non-recursive mutex, and
// condition variable. All three share the spec's wait/wake pattern —
// FIFO waiter list, token-passing wakeups rather than counter bumps — and
// none of them carries a private mutex: every field access runs inside a
// closure passed to the owning *sched.Scheduler's Guard/TryBlockCurrent,
// which is this runtime's rendition of the single scheduler lock the
// spec assumes guards every primitive (§5's "NOSCHED" critical section).
package ksync

import (
	"errors"

	"github.com/linmogo/linmo/internal/list"
	"github.com/linmogo/linmo/internal/sched"
	"github.com/linmogo/linmo/internal/task"
)

var (
	ErrInvalidArg = errors.New("invalid argument")
	ErrWouldBlock = errors.New("would block")
	ErrBusy       = errors.New("object busy")
	ErrNotOwner   = errors.New("not owner")
	ErrTimeout    = errors.New("timed out")
	ErrDestroyed  = errors.New("object destroyed")
	ErrCancelled  = errors.New("operation cancelled")
)

// SemOperationPanic mirrors spec §4.3.1: waiting on a
// semaphore whose wait queue is already at max_waiters is a programmer
// error, not a user-facing failure.
type SemOperationPanic struct{ Reason string }

func (p SemOperationPanic) String() string { return "semaphore operation invalid: " + p.Reason }

// Semaphore is a counting semaphore bounded by SemMaxCount (spec §3/§4.3.1).
type Semaphore struct {
	sched    *sched.Scheduler
	observer Observer

	maxWaiters int
	capMax     int
	valid      bool

	count   int
	waiters *list.List[*task.TCB]
}

// NewSemaphore constructs a semaphore with the given waiter capacity and
// initial count, bounded by capMax (SemMaxCount).
func NewSemaphore(s *sched.Scheduler, maxWaiters, initialCount, capMax int) (*Semaphore, error) {
	if maxWaiters <= 0 {
		return nil, ErrInvalidArg
	}
	if initialCount < 0 || initialCount > capMax {
		return nil, ErrInvalidArg
	}
	return &Semaphore{
		sched:      s,
		observer:   defaultObserver,
		maxWaiters: maxWaiters,
		capMax:     capMax,
		valid:      true,
		count:      initialCount,
		waiters:    list.New[*task.TCB](),
	}, nil
}

// SetObserver installs o to receive this semaphore's activity events.
// Passing nil restores the no-op default.
func (sem *Semaphore) SetObserver(o Observer) {
	if o == nil {
		o = defaultObserver
	}
	sem.observer = o
}

func (sem *Semaphore) checkValid() error {
	if !sem.valid {
		return ErrDestroyed
	}
	return nil
}

// Wait blocks until the semaphore can be acquired (spec §4.3.1 wait()).
// Fast path: count > 0 and no waiters — decrement and return immediately.
// Otherwise the caller is enqueued FIFO and blocked.
func (sem *Semaphore) Wait() error {
	if err := sem.checkValid(); err != nil {
		return err
	}
	sem.observer.ObserveSemWait()

	fastPath := func() bool {
		if sem.count > 0 && sem.waiters.Empty() {
			sem.count--
			return true
		}
		return false
	}

	var self *task.TCB
	blocked, aborted := sem.sched.TryBlockCurrent(fastPath, func(cur *task.TCB) bool {
		if sem.waiters.Len() >= sem.maxWaiters {
			return false
		}
		self = cur
		sem.waiters.PushBack(cur.QueueLink)
		cur.SetCancelHook(func() {
			sem.sched.Guard(func() { sem.waiters.Remove(cur.QueueLink) })
		})
		return true
	})
	if aborted {
		panic(SemOperationPanic{Reason: "wait queue full"})
	}
	// A cancelled task's blocking Wait must unwind immediately instead of
	// proceeding as if legitimately signalled (sched.Cancel's contract).
	if blocked && self.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// TryWait is the non-blocking form of Wait (spec's trywait()).
func (sem *Semaphore) TryWait() error {
	if err := sem.checkValid(); err != nil {
		return err
	}
	ok := false
	sem.sched.Guard(func() {
		if sem.count > 0 && sem.waiters.Empty() {
			sem.count--
			ok = true
		}
	})
	if !ok {
		return ErrWouldBlock
	}
	return nil
}

// Signal wakes the head waiter if any, otherwise increments count,
// saturating at capMax (spec §4.3.1 signal()).
func (sem *Semaphore) Signal() error {
	if err := sem.checkValid(); err != nil {
		return err
	}
	sem.observer.ObserveSemSignal()
	sem.sched.WakeGuarded(func() (*task.TCB, bool) {
		n := sem.waiters.PopFront()
		if n == nil {
			if sem.count < sem.capMax {
				sem.count++
			}
			return nil, false
		}
		return n.Value, true
	})
	return nil
}

// Value returns a best-effort snapshot of the current count.
func (sem *Semaphore) Value() int {
	var v int
	sem.sched.Guard(func() { v = sem.count })
	return v
}

// WaitingCount returns a best-effort snapshot of the waiter count.
func (sem *Semaphore) WaitingCount() int {
	var n int
	sem.sched.Guard(func() { n = sem.waiters.Len() })
	return n
}

// Destroy refuses with ErrBusy if there are waiters (spec destroy()).
func (sem *Semaphore) Destroy() error {
	var err error
	sem.sched.Guard(func() {
		if !sem.waiters.Empty() {
			err = ErrBusy
			return
		}
		sem.valid = false
	})
	return err
}
