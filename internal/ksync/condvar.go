package ksync

import (
	"github.com/linmogo/linmo/internal/list"
	"github.com/linmogo/linmo/internal/sched"
	"github.com/linmogo/linmo/internal/task"
)

// CondVar is a condition variable always used with a caller-supplied
// Mutex (spec §4.3.3). Mesa-style: spurious wakes are not specified, and
// Wait/TimedWait re-acquire the mutex before returning, so callers must
// re-test their predicate in a loop, grounded on the reference pack's
// nsync CV contract.
type CondVar struct {
	sched    *sched.Scheduler
	observer Observer

	valid   bool
	waiters *list.List[*task.TCB]
}

// NewCondVar constructs an empty condition variable.
func NewCondVar(s *sched.Scheduler) *CondVar {
	return &CondVar{sched: s, observer: defaultObserver, valid: true, waiters: list.New[*task.TCB]()}
}

// SetObserver installs o to receive this condition variable's activity
// events. Passing nil restores the no-op default.
func (c *CondVar) SetObserver(o Observer) {
	if o == nil {
		o = defaultObserver
	}
	c.observer = o
}

func (c *CondVar) checkValid() error {
	if !c.valid {
		return ErrDestroyed
	}
	return nil
}

// Wait atomically releases m and blocks the caller on c, then re-acquires
// m before returning (spec §4.3.3 wait()). The caller must own m.
func (c *CondVar) Wait(m *Mutex) error {
	if err := c.checkValid(); err != nil {
		return err
	}
	selfID, _ := c.sched.Current()
	if m.Owner() != selfID {
		return ErrNotOwner
	}
	c.observer.ObserveCondWait()

	var unlockErr error
	var self *task.TCB
	c.sched.TryBlockCurrent(nil, func(cur *task.TCB) bool {
		self = cur
		cur.SetWokenBySignal(false)
		c.waiters.PushBack(cur.QueueLink)
		cur.SetCancelHook(func() {
			c.sched.Guard(func() { c.waiters.Remove(cur.QueueLink) })
		})
		unlockErr = m.unlockLockedBy(selfID)
		return true
	})
	if unlockErr != nil {
		return unlockErr
	}
	// A cancelled waiter must unwind immediately: it no longer holds m
	// (the setup closure above already dropped it via unlockLockedBy),
	// and re-entering m.Lock() here would park the already-cancelled
	// task a second time with no further wakeup ever coming, since
	// sched.Cancel only calls Context().Restore() once.
	if self.Cancelled() {
		return ErrCancelled
	}
	return m.Lock()
}

// TimedWait is Wait plus an expiry in ticks (spec §4.3.3 timedwait()). If
// the deadline elapses before a signal/broadcast, the caller is removed
// from the waiter list and ErrTimeout is returned; m is re-acquired
// either way, per spec.
func (c *CondVar) TimedWait(m *Mutex, ticks uint32) error {
	if err := c.checkValid(); err != nil {
		return err
	}
	selfID, _ := c.sched.Current()
	if m.Owner() != selfID {
		return ErrNotOwner
	}
	c.observer.ObserveCondWait()

	var unlockErr error
	var self *task.TCB
	c.sched.TryBlockCurrentTimed(ticks, nil, func(cur *task.TCB) bool {
		self = cur
		cur.SetWokenBySignal(false)
		c.waiters.PushBack(cur.QueueLink)
		cur.SetCancelHook(func() {
			c.sched.Guard(func() { c.waiters.Remove(cur.QueueLink) })
		})
		unlockErr = m.unlockLockedBy(selfID)
		return true
	})
	if unlockErr != nil {
		return unlockErr
	}
	// Cancellation takes priority over the timeout check: a cancelled
	// waiter never had WokenBySignal set, so without this check it would
	// fall into the timeout branch below and re-park itself in m.Lock()
	// a second time with no further wakeup ever coming (same hazard as
	// the non-timed Wait above).
	if self.Cancelled() {
		return ErrCancelled
	}

	if !self.WokenBySignal() {
		c.sched.Guard(func() { c.waiters.Remove(self.QueueLink) })
		if err := m.Lock(); err != nil {
			return err
		}
		return ErrTimeout
	}
	return m.Lock()
}

// Signal wakes the head waiter, if any (spec §4.3.3 signal()). It does
// not hand off the mutex — the awakened waiter contends for it on return
// from Wait/TimedWait.
func (c *CondVar) Signal() error {
	if err := c.checkValid(); err != nil {
		return err
	}
	woke := false
	c.sched.WakeGuarded(func() (*task.TCB, bool) {
		n := c.waiters.PopFront()
		if n == nil {
			return nil, false
		}
		n.Value.SetWokenBySignal(true)
		woke = true
		return n.Value, true
	})
	if woke {
		c.observer.ObserveCondWake()
	}
	return nil
}

// Broadcast wakes every waiter (spec's broadcast()).
func (c *CondVar) Broadcast() error {
	if err := c.checkValid(); err != nil {
		return err
	}
	for {
		woke := false
		c.sched.WakeGuarded(func() (*task.TCB, bool) {
			n := c.waiters.PopFront()
			if n == nil {
				return nil, false
			}
			n.Value.SetWokenBySignal(true)
			woke = true
			return n.Value, true
		})
		if !woke {
			return nil
		}
		c.observer.ObserveCondWake()
	}
}

// Destroy refuses with ErrBusy if waiters exist (spec destroy()).
func (c *CondVar) Destroy() error {
	var err error
	c.sched.Guard(func() {
		if !c.waiters.Empty() {
			err = ErrBusy
			return
		}
		c.valid = false
	})
	return err
}
