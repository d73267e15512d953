// Package sched implements the ready-bitmap, per-priority-level ready
// queues, and round-robin cursors of the kernel's scheduler (spec §4.2,
// component C2), together with the task-lifecycle operations of component
// C1 that must manipulate those same queues under one lock: spawn, cancel,
// yield, delay, suspend, resume, priority, rt_priority.
//
// The single mutex on Scheduler realizes the spec's "NOSCHED" scheduler
// lock (§5): every ready-queue mutation and every state transition happens
// while it is held. There is no real single-core CPU to preempt here, so
// a "context switch" is a goroutine park/resume handoff over each task's
// hal.Context (see internal/hal) — the currently running task's own
// goroutine releases the lock and parks itself only once it has handed the
// baton to the next task, which is the hosted equivalent of "block the
// current task inside the scheduler lock; release the lock implicitly via
// the context switch" (spec §9).
package sched

import (
	"errors"
	"reflect"
	"sync"

	"github.com/linmogo/linmo/internal/list"
	"github.com/linmogo/linmo/internal/logging"
	"github.com/linmogo/linmo/internal/task"
)

// NoRunnableTaskPanic is raised when pick_next finds no runnable task and
// no idle task exists (spec §4.2 failure semantics: panic(NO_TASKS)). It
// is a typed panic value, not an error return, matching the spec's
// distinction between user errors and programmer/invariant errors; the
// root package recovers it and turns it into a structured error.
type NoRunnableTaskPanic struct{ Reason string }

func (p NoRunnableTaskPanic) String() string { return "no runnable task: " + p.Reason }

// RTHook is the optional user-installed real-time scheduler override
// (spec §4.2 "RT hook contract"). It must be O(n) in the number of RT
// tasks and must not block.
type RTHook func() (id uint16, ok bool)

// Observer receives scheduler-internal timing events that only the
// scheduler itself can measure precisely.
type Observer interface {
	ObserveContextSwitch(latencyNs uint64)
	ObservePreemption()
	ObserveRTHookSelection()
}

type noopObserver struct{}

func (noopObserver) ObserveContextSwitch(uint64) {}
func (noopObserver) ObservePreemption()          {}
func (noopObserver) ObserveRTHookSelection()     {}

// TimerDriver lets the timer wheel (package timer) hook into tick
// processing without sched importing it back (spec §4.2 tick handler
// step 3, "run the timer wheel").
type TimerDriver interface {
	Tick(now uint32)
}

type noopTimerDriver struct{}

func (noopTimerDriver) Tick(uint32) {}

// TickWaiter lets wfi() block on the HAL's real tick source (package hal)
// without sched importing it back.
type TickWaiter interface {
	WaitNextTick()
}

// Scheduler is the KCB (spec §3): the process-wide singleton holding the
// global task list, ready bitmap, per-level queues and RR cursors, the
// currently running task, and the tick counter.
type Scheduler struct {
	mu sync.Mutex

	tasks      map[uint16]*task.TCB
	globalList *list.List[*task.TCB]

	readyQueues [task.NumLevels]*list.List[*task.TCB]
	cursors     [task.NumLevels]*list.Node[*task.TCB]
	bitmap      uint8

	current    *task.TCB
	nextID     uint16
	preemptive bool
	rtHook     RTHook
	tickCount  uint32

	observer    Observer
	timerDriver TimerDriver
	tickWaiter  TickWaiter

	log *logging.Logger
}

// New builds an empty Scheduler. preemptive selects whether Tick performs
// time-slice accounting (spec §4.2's "cooperative mode omits step 4").
func New(preemptive bool) *Scheduler {
	s := &Scheduler{
		tasks:       make(map[uint16]*task.TCB),
		globalList:  list.New[*task.TCB](),
		nextID:      1,
		preemptive:  preemptive,
		observer:    noopObserver{},
		timerDriver: noopTimerDriver{},
		log:         logging.Default().WithOp("sched"),
	}
	for i := range s.readyQueues {
		s.readyQueues[i] = list.New[*task.TCB]()
	}
	return s
}

func (s *Scheduler) SetRTHook(h RTHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rtHook = h
}

func (s *Scheduler) SetObserver(o Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o == nil {
		o = noopObserver{}
	}
	s.observer = o
}

func (s *Scheduler) SetTimerDriver(td TimerDriver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if td == nil {
		td = noopTimerDriver{}
	}
	s.timerDriver = td
}

func (s *Scheduler) SetTickWaiter(w TickWaiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tickWaiter = w
}

func (s *Scheduler) Preemptive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.preemptive
}

// Ticks returns the current tick count.
func (s *Scheduler) Ticks() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickCount
}

// Count returns the number of live tasks (spec's count()).
func (s *Scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.globalList.Len()
}

// Snapshot returns a point-in-time Info for every live task, unordered.
// Grounded on the teacher's Device.Info() introspection pattern — this is
// the scheduler's "ps" equivalent, not part of the dispatch path.
func (s *Scheduler) Snapshot() []task.Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]task.Info, 0, len(s.tasks))
	for _, t := range s.tasks {
		infos = append(infos, t.Info())
	}
	return infos
}

// Current returns the id of the currently running task, and false if the
// scheduler has not dispatched yet.
func (s *Scheduler) Current() (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0, false
	}
	return s.current.ID(), true
}

// Lookup returns the TCB for id, if it exists.
func (s *Scheduler) Lookup(id uint16) (*task.TCB, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// ---- ready-queue bookkeeping (I2/I3) ----

func (s *Scheduler) enqueueReadyLocked(t *task.TCB) {
	level := t.Priority().Level()
	q := s.readyQueues[level]
	t.SetReadyNow()
	q.PushBack(t.QueueLink)
	s.bitmap |= 1 << uint(level)
	if s.cursors[level] == nil {
		s.cursors[level] = t.QueueLink
	}
}

func (s *Scheduler) removeReadyLocked(t *task.TCB) {
	level := t.Priority().Level()
	q := s.readyQueues[level]
	wasCursor := s.cursors[level] == t.QueueLink
	var next *list.Node[*task.TCB]
	if wasCursor && q.Len() > 1 {
		next = t.QueueLink.NextCircular()
	}
	q.Remove(t.QueueLink)
	switch {
	case q.Empty():
		s.bitmap &^= 1 << uint(level)
		s.cursors[level] = nil
	case wasCursor:
		s.cursors[level] = next
	}
}

// pickNextLocked implements pick_next (spec §4.2). It does not remove the
// chosen task from its ready queue — a RUNNING task remains a member of
// its level's queue per I3 until it blocks, is suspended, or is cancelled.
func (s *Scheduler) pickNextLocked() (*task.TCB, bool) {
	if s.rtHook != nil {
		if id, ok := s.rtHook(); ok {
			if t, exists := s.tasks[id]; exists {
				s.observer.ObserveRTHookSelection()
				return t, true
			}
		}
	}
	if s.bitmap == 0 {
		return nil, false
	}
	level := lowestSetBit(s.bitmap)
	cur := s.cursors[level]
	if cur == nil {
		return nil, false
	}
	s.cursors[level] = cur.NextCircular()
	return cur.Value, true
}

func lowestSetBit(b uint8) int {
	for i := 0; i < task.NumLevels; i++ {
		if b&(1<<uint(i)) != 0 {
			return i
		}
	}
	return -1
}

// mustPickNextLocked panics with NoRunnableTaskPanic if there is truly no
// runnable task (spec: "panic(NO_TASKS)").
func (s *Scheduler) mustPickNextLocked() *task.TCB {
	t, ok := s.pickNextLocked()
	if !ok {
		panic(NoRunnableTaskPanic{Reason: "ready bitmap empty and no idle task installed"})
	}
	return t
}

// contextSwitchLocked must be called by the currently running task's own
// goroutine (Yield/Delay/blocking-wait paths) with s.mu held. It releases
// s.mu before performing the goroutine handoff, matching spec §9's
// requirement that the lock be dropped only once the switch has committed
// to another task.
func (s *Scheduler) contextSwitchLocked() {
	prev := s.current
	next := s.mustPickNextLocked()
	latency := next.LatencySinceReady()
	next.SetState(task.Running)
	s.current = next
	if next != prev {
		s.observer.ObserveContextSwitch(uint64(latency))
	}
	s.mu.Unlock()

	if next != prev {
		next.Context().Restore()
	}
	if prev != nil && prev != next {
		prev.Context().Save()
	}
}

// Dispatch performs the initial hand-off to the first runnable task. It is
// the hosted analog of hal_dispatch_init: the caller (not itself a task)
// is never parked, only the chosen task's goroutine is woken.
func (s *Scheduler) Dispatch() {
	s.mu.Lock()
	next := s.mustPickNextLocked()
	next.SetState(task.Running)
	s.current = next
	s.mu.Unlock()
	next.Context().Restore()
}

// ---- C1: task lifecycle ----

// Spawn creates a task running entry in its own goroutine, starting at
// Normal priority, Ready state, linked into the global list and the
// Normal-level ready queue (spec §4.1 spawn()).
func (s *Scheduler) Spawn(entry task.EntryFunc, stackSize uint32) uint16 {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	t := task.New(id, entry, stackSize)
	s.tasks[id] = t
	s.globalList.PushBack(t.GlobalLink)
	t.SetState(task.Ready)
	s.enqueueReadyLocked(t)
	s.mu.Unlock()

	go func() {
		t.Context().Save() // park until Dispatch/contextSwitch first Restores us
		if t.Cancelled() {
			return
		}
		t.Entry()()
		s.taskReturned(t)
	}()

	return id
}

// taskReturned handles a task whose entry function returned normally,
// treating it like a self-cancel that is actually legal (unlike the
// public Cancel, which forbids self-cancellation because a running task
// cannot safely free its own stack out from under itself — here the
// function has already returned, so there is nothing left to unwind).
// If t held the CPU, it is handed to the next runnable task; with none,
// the CPU stays idle until a tick readies one.
func (s *Scheduler) taskReturned(t *task.TCB) {
	s.mu.Lock()
	s.removeReadyLocked(t)
	s.globalList.Remove(t.GlobalLink)
	delete(s.tasks, t.ID())
	if s.current == t {
		s.current = nil
		if next, ok := s.pickNextLocked(); ok {
			next.SetState(task.Running)
			s.current = next
			s.observer.ObserveContextSwitch(uint64(next.LatencySinceReady()))
			s.mu.Unlock()
			next.Context().Restore()
			return
		}
	}
	s.mu.Unlock()
}

var (
	ErrTaskCantRemove = errors.New("task cannot be removed")
	ErrTaskNotFound   = errors.New("task not found")
	ErrTaskBusy       = errors.New("task busy")
	ErrInvalidPrio    = errors.New("invalid priority")
)

// Cancel destroys the task identified by id. A task can never cancel
// itself (spec §4.1).
func (s *Scheduler) Cancel(id uint16) error {
	s.mu.Lock()
	if s.current != nil && s.current.ID() == id {
		s.mu.Unlock()
		return ErrTaskCantRemove
	}
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return ErrTaskNotFound
	}

	wasBlocked := t.State() == task.Blocked
	switch t.State() {
	case task.Ready, task.Running:
		s.removeReadyLocked(t)
	case task.Blocked:
		// Cooperating primitive's cancel hook owns wait-queue removal,
		// invoked below once the global lock is released.
	case task.Suspended:
		// Not on any queue.
	}
	s.globalList.Remove(t.GlobalLink)
	delete(s.tasks, id)
	s.mu.Unlock()

	if wasBlocked {
		t.SetCancelled(true)
		t.InvokeCancelHook()
		// Wake the parked goroutine; its blocking-primitive Wait loop
		// must observe Cancelled() immediately and unwind instead of
		// proceeding as if it had been legitimately signalled.
		t.Context().Restore()
	}
	return nil
}

// honorPreemptionLocked clears a slice-expiry preemption Tick marked
// pending on cur and reports it to the observer. Called with s.mu held,
// from every point a task voluntarily gives up the CPU — the only points
// this hosted scheduler can act on a pending preemption, since a spinning
// goroutine cannot be interrupted mid-instruction (spec §9's HAL contract
// assumes real interrupt hardware this runtime does not have). A task
// that never reaches one of these points keeps the CPU regardless of
// preemptive mode, same as Open Question decision 3's cooperative case.
func (s *Scheduler) honorPreemptionLocked(cur *task.TCB) {
	if cur != nil && cur.PreemptPending() {
		cur.SetPreemptPending(false)
		s.observer.ObservePreemption()
	}
}

// Yield marks the caller Ready, re-enqueues it at the tail of its level's
// ready queue, and invokes the scheduler (spec §4.1 yield()). Must be
// called by the running task's own goroutine.
func (s *Scheduler) Yield() {
	s.mu.Lock()
	cur := s.current
	if cur != nil {
		s.honorPreemptionLocked(cur)
		cur.SetSlice(cur.Priority().TimeSlice())
		s.removeReadyLocked(cur)
		cur.SetState(task.Ready)
		s.enqueueReadyLocked(cur)
	}
	s.contextSwitchLocked()
}

// Delay blocks the caller for ticks ticks (spec §4.1 delay()). The tick
// handler decrements the delay counter and returns the task to Ready when
// it reaches zero.
func (s *Scheduler) Delay(ticks uint32) {
	s.mu.Lock()
	cur := s.current
	if cur != nil {
		s.honorPreemptionLocked(cur)
		s.removeReadyLocked(cur)
		cur.SetState(task.Blocked)
		cur.SetDelay(ticks)
	}
	s.contextSwitchLocked()
}

// BlockCurrent transitions the calling task to Blocked without touching
// any wait list and invokes the scheduler.
func (s *Scheduler) BlockCurrent() {
	s.TryBlockCurrent(nil, nil)
}

// BlockCurrentTimed is BlockCurrent plus an expiry delay, for timedlock /
// timedwait.
func (s *Scheduler) BlockCurrentTimed(ticks uint32) {
	s.TryBlockCurrentTimed(ticks, nil, nil)
}

// Guard runs fn with the scheduler lock held. Sync (ksync) and IPC
// primitives use this instead of a private mutex for their own fields
// (counts, owners, wait lists), realizing the spec's single coarse
// "scheduler lock" that serializes ready-queue mutation together with
// every sync-primitive mutation (§5's "NOSCHED" critical section) rather
// than layering a second, independently-ordered lock per object.
func (s *Scheduler) Guard(fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
}

// TryBlockCurrent atomically attempts fastPath (e.g. "count > 0 and no
// waiters: decrement and succeed") and, only if fastPath declines (or is
// nil), atomically attempts setup (e.g. "push onto my wait list and
// install a cancel hook", returning false to abort — e.g. wait list
// full). Running both under one continuous hold of the scheduler lock is
// what prevents the classic lost-wakeup race of checking availability and
// deciding to block as two separate critical sections: a concurrent
// signal can never land in the gap, because there is no gap.
//
// blocked reports whether the caller was actually parked (setup returned
// true and the context switch ran); aborted reports whether setup
// explicitly declined (distinct from fastPath succeeding).
func (s *Scheduler) TryBlockCurrent(fastPath func() bool, setup func(cur *task.TCB) bool) (blocked, aborted bool) {
	s.mu.Lock()
	if fastPath != nil && fastPath() {
		s.mu.Unlock()
		return false, false
	}
	cur := s.current
	if cur == nil {
		s.mu.Unlock()
		return false, false
	}
	if setup != nil && !setup(cur) {
		s.mu.Unlock()
		return false, true
	}
	s.honorPreemptionLocked(cur)
	s.removeReadyLocked(cur)
	cur.SetState(task.Blocked)
	s.contextSwitchLocked()
	return true, false
}

// TryBlockCurrentTimed is TryBlockCurrent plus an expiry delay, for
// timedlock/timedwait and timed IPC waits.
func (s *Scheduler) TryBlockCurrentTimed(ticks uint32, fastPath func() bool, setup func(cur *task.TCB) bool) (blocked, aborted bool) {
	s.mu.Lock()
	if fastPath != nil && fastPath() {
		s.mu.Unlock()
		return false, false
	}
	cur := s.current
	if cur == nil {
		s.mu.Unlock()
		return false, false
	}
	if setup != nil && !setup(cur) {
		s.mu.Unlock()
		return false, true
	}
	s.honorPreemptionLocked(cur)
	s.removeReadyLocked(cur)
	cur.SetState(task.Blocked)
	cur.SetDelay(ticks)
	s.contextSwitchLocked()
	return true, false
}

// readyLocked transitions t from Blocked to Ready and enqueues it. Caller
// must hold s.mu.
func (s *Scheduler) readyLocked(t *task.TCB) {
	t.ClearCancelHook()
	t.SetDelay(0)
	t.SetState(task.Ready)
	s.enqueueReadyLocked(t)
}

// ReadyLocked is readyLocked exposed for callers that are already
// executing inside a Guard/TryBlockCurrent/WakeGuarded closure (and so
// already hold the scheduler lock) and need to ready a second task as
// part of that same atomic step — e.g. a condition variable's Wait
// handing off its associated mutex directly to the next waiter while
// still inside its own block setup. Calling this without already holding
// the scheduler lock races every ready-queue field it touches.
func (s *Scheduler) ReadyLocked(t *task.TCB) {
	s.readyLocked(t)
}

// Ready transitions t from Blocked to Ready and enqueues it — used by the
// tick handler to wake delay/timeout expiries. ksync/ipc wake paths use
// WakeGuarded instead, so the wait-list pop and the ready-queue insertion
// happen under one continuous hold of the scheduler lock.
func (s *Scheduler) Ready(t *task.TCB) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readyLocked(t)
}

// WakeGuarded runs pop (normally: remove and return the head of a
// primitive's own FIFO wait list) with the scheduler lock held, and if it
// returns a task, transitions that task to Ready and enqueues it in the
// same critical section — so a concurrent block/signal/cancel on the same
// primitive can never observe a half-woken waiter.
func (s *Scheduler) WakeGuarded(pop func() (*task.TCB, bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := pop()
	if !ok {
		return
	}
	s.readyLocked(t)
}

// Suspend moves id from its current state to Suspended. Suspending the
// caller itself invokes the scheduler on return.
func (s *Scheduler) Suspend(id uint16) error {
	s.mu.Lock()
	t, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return ErrTaskNotFound
	}
	prev := t.State()
	if prev == task.Suspended || prev == task.Stopped {
		s.mu.Unlock()
		return ErrTaskBusy
	}

	selfSuspend := s.current == t
	if prev == task.Ready || prev == task.Running {
		s.removeReadyLocked(t)
	}
	t.SetPrevState(prev)
	t.SetState(task.Suspended)

	if selfSuspend {
		s.contextSwitchLocked()
		return nil
	}
	s.mu.Unlock()
	return nil
}

// Resume moves id from Suspended back to its pre-suspend state's ready
// queue (always Ready, since only a Ready/Running/Blocked task could have
// been suspended and Blocked tasks resume as Ready per spec's lifecycle
// table — the resumed task re-competes for the CPU rather than resuming
// mid-wait).
func (s *Scheduler) Resume(id uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	if t.State() != task.Suspended {
		return ErrTaskBusy
	}
	t.SetState(task.Ready)
	s.enqueueReadyLocked(t)
	return nil
}

// Priority changes id's base priority, migrating it between level queues
// with full bitmap/cursor fix-up if it is currently Ready (spec §4.1
// priority()).
func (s *Scheduler) Priority(id uint16, prio task.Priority) error {
	if !prio.Valid() {
		return ErrInvalidPrio
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}

	switch t.State() {
	case task.Ready, task.Running:
		s.removeReadyLocked(t)
		t.SetPriority(prio)
		t.SetSlice(prio.TimeSlice())
		s.enqueueReadyLocked(t)
	default:
		t.SetPriority(prio)
		t.SetSlice(prio.TimeSlice())
	}
	return nil
}

// RTPriority stores an opaque value on id's TCB for an installed RT hook
// to interpret; the default scheduler ignores it (spec §4.1).
func (s *Scheduler) RTPriority(id uint16, opaque any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	t.SetRTPriority(opaque)
	return nil
}

// IDRef returns the id of the task whose entry function is entry, the
// Go-hosted realization of looking a task up by its entry-function
// pointer (spec §4.1 idref()). Go funcs aren't comparable with ==, so
// identity is established via reflect on the underlying code pointer.
func (s *Scheduler) IDRef(entry task.EntryFunc) (uint16, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	target := reflect.ValueOf(entry).Pointer()
	for id, t := range s.tasks {
		if reflect.ValueOf(t.Entry()).Pointer() == target {
			return id, true
		}
	}
	return 0, false
}

// WFI waits for the next tick in a low-power idle (spec §4.1 wfi()). If
// another task is already ready, it behaves like Yield instead of really
// idling, since real work is waiting for the CPU.
func (s *Scheduler) WFI() {
	s.mu.Lock()
	others := s.bitmap != 0
	if cur := s.current; cur != nil {
		// The running task is itself a member of its level's ready queue.
		level := cur.Priority().Level()
		others = s.bitmap&^(1<<uint(level)) != 0 || s.readyQueues[level].Len() > 1
	}
	if others {
		cur := s.current
		if cur != nil {
			s.honorPreemptionLocked(cur)
			s.removeReadyLocked(cur)
			cur.SetState(task.Ready)
			s.enqueueReadyLocked(cur)
		}
		s.contextSwitchLocked()
		return
	}
	s.mu.Unlock()
	if s.tickWaiter != nil {
		s.tickWaiter.WaitNextTick()
	}
}

// ---- tick handler (spec §4.2) ----

// Tick runs the per-tick scheduler work: advance the tick counter, wake
// expired delays, drive the timer wheel, and (in preemptive mode) account
// for time-slice expiry. It must be called from the HAL's tick source,
// never from a task's own goroutine.
func (s *Scheduler) Tick() {
	s.mu.Lock()

	s.tickCount++
	now := s.tickCount

	// Step 2: walk BLOCKED tasks with delay > 0.
	s.globalList.Do(func(n *list.Node[*task.TCB]) {
		t := n.Value
		if t.State() != task.Blocked {
			return
		}
		if t.Delay() == 0 {
			return
		}
		if t.DecDelay() == 0 {
			t.ClearCancelHook()
			t.SetState(task.Ready)
			s.enqueueReadyLocked(t)
		}
	})

	// Step 4 (preemptive mode only): decrement the running task's slice.
	// The expiry is only recorded here — it is honored, and reported to
	// the observer, at the task's own next suspension point (see
	// honorPreemptionLocked), since nothing in this goroutine can force a
	// running task's goroutine off the CPU mid-instruction.
	if s.preemptive && s.current != nil {
		cur := s.current
		if cur.DecSlice() <= 0 {
			cur.SetSlice(cur.Priority().TimeSlice())
			cur.SetPreemptPending(true)
		}
	}

	// Step 5: with no task holding the CPU (every task blocked or exited,
	// or none dispatched yet), hand it to the best task now ready.
	if s.current == nil {
		if next, ok := s.pickNextLocked(); ok {
			next.SetState(task.Running)
			s.current = next
			s.observer.ObserveContextSwitch(uint64(next.LatencySinceReady()))
			next.Context().Restore()
		}
	}

	s.mu.Unlock()

	// Step 3: run the timer wheel after releasing the scheduler lock.
	// Timer callbacks are free to call sem/mutex/cond/pipe/mq operations,
	// all of which route through this same scheduler lock via Guard —
	// calling them while still holding s.mu would deadlock against Go's
	// non-reentrant sync.Mutex.
	s.timerDriver.Tick(now)
}
