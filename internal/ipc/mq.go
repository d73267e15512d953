package ipc

import (
	"github.com/linmogo/linmo/internal/constants"
	"github.com/linmogo/linmo/internal/list"
	"github.com/linmogo/linmo/internal/sched"
)

// MessageQueue is a bounded pointer FIFO (spec §4.4.2): callers
// instantiate it over whatever pointer type they're passing between
// tasks (typically *T). The queue never dereferences or frees a
// message — ownership stays with the caller throughout.
type MessageQueue[T any] struct {
	sched *sched.Scheduler
	ring  *list.PtrRing[T]
	valid bool
}

// NewMessageQueue rounds capacity up to the next power of two, clamped
// to [constants.MinMQCapacity, constants.MaxMQCapacity].
func NewMessageQueue[T any](s *sched.Scheduler, capacity uint32) *MessageQueue[T] {
	return &MessageQueue[T]{
		sched: s,
		ring:  list.NewPtrRing[T](capacity, constants.MinMQCapacity, constants.MaxMQCapacity),
		valid: true,
	}
}

func (q *MessageQueue[T]) checkValid() error {
	if !q.valid {
		return ErrDestroyed
	}
	return nil
}

// Enqueue appends msg at the tail. It returns (false, nil) (spec's
// enqueue() FAIL) if the ring is full — the queue never blocks,
// unlike the pipe.
func (q *MessageQueue[T]) Enqueue(msg T) (bool, error) {
	if err := q.checkValid(); err != nil {
		return false, err
	}
	var ok bool
	q.sched.Guard(func() {
		ok = q.ring.Enqueue(msg)
	})
	return ok, nil
}

// Dequeue removes and returns the head message. ok is false if the
// queue was empty (spec's dequeue() returning NULL).
func (q *MessageQueue[T]) Dequeue() (msg T, ok bool, err error) {
	if err = q.checkValid(); err != nil {
		return msg, false, err
	}
	q.sched.Guard(func() {
		msg, ok = q.ring.Dequeue()
	})
	return msg, ok, nil
}

func (q *MessageQueue[T]) Size() uint32 {
	var n uint32
	q.sched.Guard(func() { n = q.ring.Len() })
	return n
}

func (q *MessageQueue[T]) Capacity() uint32 { return q.ring.Cap() }

func (q *MessageQueue[T]) FreeSpace() uint32 {
	var n uint32
	q.sched.Guard(func() { n = q.ring.Free() })
	return n
}

// Destroy refuses with ErrNotEmpty if messages remain queued (spec's
// MQ_NOTEMPTY).
func (q *MessageQueue[T]) Destroy() error {
	var err error
	q.sched.Guard(func() {
		if q.ring.Len() != 0 {
			err = ErrNotEmpty
			return
		}
		q.valid = false
	})
	return err
}
