package sched

import "github.com/linmogo/linmo/internal/task"

// NewEDFExampleHook returns a demonstration RTHook implementing
// earliest-deadline-first selection among Realtime-priority ready tasks,
// treating the opaque value installed via Scheduler.RTPriority as each
// task's absolute deadline in ticks. Spec.md §9 explicitly declines to
// endorse any one RT hook policy ("the specification treats any hook as
// user-supplied and does not endorse a specific policy") — this hook
// exists only to exercise the contract end to end; the default scheduler
// never installs it on its own.
//
// Install it with SetRTHook(NewEDFExampleHook(s)).
func NewEDFExampleHook(s *Scheduler) RTHook {
	return func() (uint16, bool) {
		return s.earliestDeadlineReadyLocked()
	}
}

// earliestDeadlineReadyLocked scans the Realtime level's ready queue and
// returns the id of the ready task whose deadline is soonest. The scan is
// O(n) in the number of ready Realtime tasks and never blocks, matching
// spec.md §4.2's RT hook contract. It assumes s.mu is already held, since
// pickNextLocked calls the installed hook from inside the scheduler lock.
func (s *Scheduler) earliestDeadlineReadyLocked() (uint16, bool) {
	q := s.readyQueues[task.Realtime.Level()]
	if q.Empty() {
		return 0, false
	}

	var best *task.TCB
	var bestDeadline uint32
	n := q.Front()
	for i := 0; i < q.Len(); i++ {
		t := n.Value
		if deadline, ok := t.RTPriority().(uint32); ok {
			if best == nil || tickBefore(deadline, bestDeadline) {
				best = t
				bestDeadline = deadline
			}
		}
		n = n.NextCircular()
	}
	if best == nil {
		return 0, false
	}
	return best.ID(), true
}

// tickBefore reports whether a precedes b on the wrap-safe 32-bit tick
// timeline (spec.md §9's "wrap-safe tick comparisons" note).
func tickBefore(a, b uint32) bool {
	return int32(a-b) < 0
}
