package ksync

import (
	"github.com/linmogo/linmo/internal/list"
	"github.com/linmogo/linmo/internal/sched"
	"github.com/linmogo/linmo/internal/task"
)

// Mutex is a non-recursive mutex with FIFO waiters and ownership transfer
// on unlock (spec §4.3.2). owner 0 means unlocked.
type Mutex struct {
	sched    *sched.Scheduler
	observer Observer

	valid   bool
	owner   uint16
	waiters *list.List[*task.TCB]
}

// NewMutex constructs an unlocked mutex.
func NewMutex(s *sched.Scheduler) *Mutex {
	return &Mutex{sched: s, observer: defaultObserver, valid: true, waiters: list.New[*task.TCB]()}
}

// SetObserver installs o to receive this mutex's activity events. Passing
// nil restores the no-op default.
func (m *Mutex) SetObserver(o Observer) {
	if o == nil {
		o = defaultObserver
	}
	m.observer = o
}

func (m *Mutex) checkValid() error {
	if !m.valid {
		return ErrDestroyed
	}
	return nil
}

// Owner returns the id of the current owner, 0 if unlocked.
func (m *Mutex) Owner() uint16 {
	var o uint16
	m.sched.Guard(func() { o = m.owner })
	return o
}

// Lock blocks until the mutex can be acquired (spec §4.3.2 lock()).
// Self-recursion returns ErrBusy rather than blocking.
func (m *Mutex) Lock() error {
	if err := m.checkValid(); err != nil {
		return err
	}
	selfID, _ := m.sched.Current()

	var selfLock bool
	m.sched.Guard(func() {
		if m.owner == selfID {
			selfLock = true
		}
	})
	if selfLock {
		return ErrBusy
	}

	var self *task.TCB
	blocked, _ := m.sched.TryBlockCurrent(
		func() bool {
			if m.owner == 0 {
				m.owner = selfID
				return true
			}
			return false
		},
		func(cur *task.TCB) bool {
			self = cur
			m.waiters.PushBack(cur.QueueLink)
			cur.SetCancelHook(func() {
				m.sched.Guard(func() { m.waiters.Remove(cur.QueueLink) })
			})
			return true
		},
	)
	m.observer.ObserveMutexLock(blocked)
	// A cancelled waiter never had ownership handed to it (unlock's
	// transfer only ever targets a live waiter still on m.waiters), so
	// m.owner is not self here — returning nil would let the caller
	// believe it holds the mutex it does not (invariant I6).
	if blocked && self.Cancelled() {
		return ErrCancelled
	}
	return nil
}

// TryLock is the non-blocking form of Lock (spec's trylock()).
func (m *Mutex) TryLock() error {
	if err := m.checkValid(); err != nil {
		return err
	}
	selfID, _ := m.sched.Current()
	acquired := false
	busy := false
	m.sched.Guard(func() {
		switch {
		case m.owner == selfID:
			busy = true
		case m.owner == 0:
			m.owner = selfID
			acquired = true
		}
	})
	if busy {
		return ErrBusy
	}
	if !acquired {
		return ErrWouldBlock
	}
	return nil
}

// TimedLock blocks up to ticks ticks for the mutex to become available
// (spec §4.3.2 timedlock()). ticks == 0 behaves like TryLock. On wake,
// ownership of the mutex (owner == self) distinguishes a legitimate
// unlock handoff from a tick-driven timeout, per the spec's note that
// races between the two are resolved by checking the current owner.
func (m *Mutex) TimedLock(ticks uint32) error {
	if ticks == 0 {
		return m.TryLock()
	}
	if err := m.checkValid(); err != nil {
		return err
	}
	selfID, _ := m.sched.Current()

	var selfLock bool
	m.sched.Guard(func() {
		if m.owner == selfID {
			selfLock = true
		}
	})
	if selfLock {
		return ErrBusy
	}

	var self *task.TCB
	blocked, _ := m.sched.TryBlockCurrentTimed(ticks,
		func() bool {
			if m.owner == 0 {
				m.owner = selfID
				return true
			}
			return false
		},
		func(cur *task.TCB) bool {
			self = cur
			m.waiters.PushBack(cur.QueueLink)
			cur.SetCancelHook(func() {
				m.sched.Guard(func() { m.waiters.Remove(cur.QueueLink) })
			})
			return true
		},
	)
	if !blocked {
		return nil // fast path acquired it
	}

	var timedOut bool
	m.sched.Guard(func() {
		if m.owner != selfID {
			timedOut = true
		}
	})
	if timedOut {
		// unlock's handoff never reached us; we are still linked on the
		// wait list (the tick handler's generic ready-wake does not know
		// about primitive-specific wait lists), so remove ourselves.
		m.sched.Guard(func() { m.waiters.Remove(self.QueueLink) })
		return ErrTimeout
	}
	return nil
}

// Unlock releases the mutex. Requires the caller to be the owner (spec
// §4.3.2 unlock()). If there are waiters, ownership transfers directly to
// the head waiter rather than clearing the owner and letting waiters
// race to re-acquire.
func (m *Mutex) Unlock() error {
	if err := m.checkValid(); err != nil {
		return err
	}
	selfID, _ := m.sched.Current()

	var notOwner bool
	m.sched.WakeGuarded(func() (*task.TCB, bool) {
		if m.owner != selfID {
			notOwner = true
			return nil, false
		}
		n := m.waiters.PopFront()
		if n == nil {
			m.owner = 0
			return nil, false
		}
		m.owner = n.Value.ID()
		return n.Value, true
	})
	if notOwner {
		return ErrNotOwner
	}
	return nil
}

// unlockLockedBy performs Unlock's transfer-or-clear logic assuming the
// scheduler lock is already held by the caller — used by CondVar.Wait,
// which must drop the associated mutex as part of its own atomic block
// setup and so cannot re-enter m.sched.Guard/WakeGuarded itself.
func (m *Mutex) unlockLockedBy(selfID uint16) error {
	if m.owner != selfID {
		return ErrNotOwner
	}
	n := m.waiters.PopFront()
	if n == nil {
		m.owner = 0
		return nil
	}
	m.owner = n.Value.ID()
	m.sched.ReadyLocked(n.Value)
	return nil
}

// Destroy refuses with ErrBusy if owned or has waiters (spec destroy()).
func (m *Mutex) Destroy() error {
	var err error
	m.sched.Guard(func() {
		if m.owner != 0 || !m.waiters.Empty() {
			err = ErrBusy
			return
		}
		m.valid = false
	})
	return err
}
