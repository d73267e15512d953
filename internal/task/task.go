// Package task defines the Task Control Block (TCB) data model (spec §3,
// component C1): lifecycle states, the eight-level priority enum, and the
// per-task saved context. Package sched owns every state transition under
// its single scheduler lock (spec §5's "NOSCHED" critical section); TCB
// exposes its own small mutex purely so a snapshot (Info) can be read
// safely from a goroutine that isn't holding the scheduler lock, mirroring
// the per-unit-mutex pattern used elsewhere in this codebase for
// lock-striped state machines.
package task

import (
	"sync"
	"time"

	"github.com/linmogo/linmo/internal/hal"
	"github.com/linmogo/linmo/internal/list"
)

// State is a TCB's lifecycle state (spec §3 Lifecycles).
type State int

const (
	Stopped State = iota
	Ready
	Running
	Blocked
	Suspended
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Blocked:
		return "BLOCKED"
	case Suspended:
		return "SUSPENDED"
	default:
		return "UNKNOWN"
	}
}

// Priority is one of the eight static priority levels; lower is more
// urgent. The zero value, Crit, is intentionally the highest priority so
// a zero-valued Priority is never silently the default (Normal is the
// spawn default, set explicitly).
type Priority int

const (
	Crit Priority = iota
	Realtime
	High
	Above
	Normal
	Below
	Low
	Idle
)

const NumLevels = 8

var levelNames = [NumLevels]string{"CRIT", "REALTIME", "HIGH", "ABOVE", "NORMAL", "BELOW", "LOW", "IDLE"}

// sliceForLevel is the per-level time slice in ticks (spec §3).
var sliceForLevel = [NumLevels]int{1, 2, 3, 4, 5, 7, 10, 15}

func (p Priority) String() string {
	if p < 0 || int(p) >= NumLevels {
		return "INVALID"
	}
	return levelNames[p]
}

// Level returns the priority's ready-queue index (0..7).
func (p Priority) Level() int { return int(p) }

// TimeSlice returns the number of ticks a task at this priority may run
// before being forced to yield in preemptive mode.
func (p Priority) TimeSlice() int { return sliceForLevel[p] }

// Valid reports whether p is one of the eight defined priority levels.
func (p Priority) Valid() bool { return p >= Crit && p <= Idle }

// EntryFunc is a task's body. It receives nothing beyond what its closure
// captured at spawn time — suspension points (yield, delay, blocking
// waits) are reached by calling back into whatever kernel handle the
// closure captured, keeping this package free of any dependency on the
// scheduler.
type EntryFunc func()

// TCB is one task's control block (spec §3). Exported fields are safe to
// read while holding mu; sched mutates them only with mu held, in addition
// to its own coarser scheduler lock.
type TCB struct {
	mu sync.Mutex

	id        uint16
	state     State
	prevState State // state to resume to after SUSPENDED
	basePrio  Priority
	slice     int    // time-slice counter, decremented each tick while RUNNING
	delay     uint32 // ticks remaining, meaningful only while BLOCKED
	rtPrio    any    // opaque, consumed only by an installed RT hook

	entry     EntryFunc
	stackSize uint32
	ctx       *hal.Context

	readyAt        time.Time // when this task last entered Ready, for scheduling-latency metrics
	preemptPending bool      // slice expired while Running; honored at the next suspension point

	cancelHook func() // set by whatever sync/IPC primitive is currently blocking this task
	cancelled  bool   // set by Cancel when destroying a task parked in a blocking primitive

	// wokenBySignal distinguishes, for a condition-variable timedwait,
	// a legitimate signal/broadcast wake from a tick-driven timeout —
	// both transitions reach READY through the same scheduler path, so
	// the wake reason must be recorded explicitly rather than inferred
	// from state. Set false when the wait begins, true only by the
	// condition variable's own Signal/Broadcast.
	wokenBySignal bool

	// GlobalLink threads this TCB onto the KCB's global task list.
	GlobalLink *list.Node[*TCB]
	// QueueLink threads this TCB onto exactly one ready or wait list at a
	// time (invariant I1).
	QueueLink *list.Node[*TCB]
}

// New allocates a TCB for entry with the given stack size, starting in
// Stopped state at Normal priority. spawn (in package sched) transitions
// it to Ready and links it into the scheduler's data structures.
func New(id uint16, entry EntryFunc, stackSize uint32) *TCB {
	t := &TCB{
		id:        id,
		state:     Stopped,
		basePrio:  Normal,
		stackSize: stackSize,
		entry:     entry,
		ctx:       hal.NewContext(),
	}
	t.slice = t.basePrio.TimeSlice()
	t.GlobalLink = list.NewNode(t)
	t.QueueLink = list.NewNode(t)
	return t
}

func (t *TCB) ID() uint16 { return t.id }

func (t *TCB) Entry() EntryFunc { return t.entry }

func (t *TCB) Context() *hal.Context { return t.ctx }

// State returns the current lifecycle state.
func (t *TCB) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState sets the lifecycle state. Callers (package sched) must hold the
// scheduler lock.
func (t *TCB) SetState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
}

func (t *TCB) PrevState() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.prevState
}

func (t *TCB) SetPrevState(s State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prevState = s
}

func (t *TCB) Priority() Priority {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.basePrio
}

func (t *TCB) SetPriority(p Priority) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.basePrio = p
}

// Slice returns the remaining time-slice counter.
func (t *TCB) Slice() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.slice
}

func (t *TCB) SetSlice(n int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slice = n
}

// DecSlice decrements the slice counter and returns the new value.
func (t *TCB) DecSlice() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.slice--
	return t.slice
}

func (t *TCB) Delay() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delay
}

func (t *TCB) SetDelay(d uint32) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delay = d
}

// DecDelay decrements delay (floor 0) and returns the new value.
func (t *TCB) DecDelay() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.delay > 0 {
		t.delay--
	}
	return t.delay
}

func (t *TCB) RTPriority() any {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rtPrio
}

func (t *TCB) SetRTPriority(v any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.rtPrio = v
}

// SetReadyNow records the moment this task entered Ready, for later
// scheduling-latency measurement by the scheduler's context switch path.
func (t *TCB) SetReadyNow() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.readyAt = time.Now()
}

// LatencySinceReady returns the time elapsed since SetReadyNow was last
// called, zero if it was never called.
func (t *TCB) LatencySinceReady() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.readyAt.IsZero() {
		return 0
	}
	return time.Since(t.readyAt)
}

// PreemptPending reports whether the tick handler marked this task for a
// forced yield the next time it reaches a suspension point. Real hardware
// would preempt mid-instruction; a hosted goroutine cannot be safely
// stopped from another goroutine, so time-slice expiry here is applied
// cooperatively at the task's own next yield/delay/block call.
func (t *TCB) PreemptPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.preemptPending
}

func (t *TCB) SetPreemptPending(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.preemptPending = v
}

// SetCancelHook installs the cleanup closure a blocking primitive (sem,
// mutex, cond, pipe, message queue) must run if this task is cancelled
// while blocked on it — typically removing the TCB's QueueLink from that
// primitive's own wait list. ClearCancelHook should be called as soon as
// the task wakes normally.
func (t *TCB) SetCancelHook(f func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelHook = f
}

func (t *TCB) ClearCancelHook() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelHook = nil
}

// InvokeCancelHook runs and clears the cancel hook, if any. Package sched
// calls this when cancelling a Blocked task.
func (t *TCB) InvokeCancelHook() {
	t.mu.Lock()
	hook := t.cancelHook
	t.cancelHook = nil
	t.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// Cancelled reports whether this task has been destroyed while parked in
// a blocking primitive. A blocking primitive's Wait loop must check this
// immediately after waking and unwind rather than proceeding, since the
// TCB is already unlinked from every kernel list by the time it wakes.
func (t *TCB) Cancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

func (t *TCB) SetCancelled(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = v
}

// WokenBySignal reports whether this task's most recent wake was
// explicitly attributed to a signal/broadcast, for the condition
// variable timedwait timeout-vs-signal distinction.
func (t *TCB) WokenBySignal() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.wokenBySignal
}

func (t *TCB) SetWokenBySignal(v bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.wokenBySignal = v
}

// Info is a point-in-time, plain-value snapshot of a TCB, safe to print or
// compare in tests without holding any kernel lock.
type Info struct {
	ID       uint16
	State    State
	Priority Priority
	Slice    int
	Delay    uint32
}

// Info returns a consistent snapshot of the task's externally visible
// state.
func (t *TCB) Info() Info {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Info{ID: t.id, State: t.state, Priority: t.basePrio, Slice: t.slice, Delay: t.delay}
}
