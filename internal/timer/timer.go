// Package timer implements the kernel's software timer wheel (spec
// §4.6): an all-timers list sorted by id with a small LRU lookup cache,
// a running-timers list sorted by absolute deadline, and a fixed pool of
// records to keep timer management allocation-free after start-up.
//
// Unlike internal/ksync and internal/ipc, the wheel does not route its
// mutations through the scheduler's single lock. Scheduler.Tick invokes
// Wheel.Tick after releasing its own lock specifically so that timer
// callbacks remain free to call into sem/mutex/cond/pipe/mq operations
// (which do take the scheduler lock) without recursing on Go's
// non-reentrant sync.Mutex. The wheel therefore keeps its own private
// mutex guarding its lists and pool — the hosted rendition of the full
// interrupt-mask ("CRITICAL") critical section spec §5 reserves for
// state shared with something other than the scheduler tick.
package timer

import (
	"errors"
	"sync"

	"github.com/linmogo/linmo/internal/constants"
	"github.com/linmogo/linmo/internal/list"
)

var (
	ErrInvalidArg    = errors.New("invalid argument")
	ErrNotFound      = errors.New("timer not found")
	ErrPoolExhausted = errors.New("timer pool exhausted")
)

// Mode selects reload behavior on expiry (spec §4.6 start()).
type Mode uint8

const (
	OneShot Mode = iota
	AutoReload
)

// State reflects whether a timer is currently armed.
type State uint8

const (
	Disabled State = iota
	Running
)

// Callback runs in tick/kernel context at expiry and must not block
// (spec §4.6). It receives the firing timer's id and its creation-time
// arg.
type Callback func(id uint32, arg any)

type record struct {
	id       uint32
	callback Callback
	arg      any
	periodMs uint32
	// periodTicks is computed from periodMs once, at Start, and reused by
	// every auto-reload, so the timer's cadence never drifts relative to
	// lastExpectedFireTick.
	periodTicks uint32

	mode  Mode
	state State

	deadline             uint32
	lastExpectedFireTick uint32

	allNode *list.Node[*record]
	runNode *list.Node[*record]
}

// Observer reports timer-wheel events that only the wheel itself can
// detect, to the degree the root package cares to collect them.
type Observer interface {
	ObserveTimerOverrun()
}

type noopObserver struct{}

func (noopObserver) ObserveTimerOverrun() {}

// Wheel is the kernel's timer manager. The zero value is not usable;
// construct with New.
type Wheel struct {
	mu sync.Mutex

	pool    [constants.TimerPoolSize]record
	freeIdx []int

	allTimers     *list.List[*record]
	runningTimers *list.List[*record]

	// lru caches the most recently looked-up records, most-recent first,
	// so repeated operations on the same timer (start/cancel churn) skip
	// the sorted list's O(n) walk (spec's "small LRU cache of four
	// entries").
	lru [constants.TimerLRUCacheSize]*record

	nextID   uint32
	observer Observer
}

// New constructs an empty timer wheel with its fixed-size record pool.
func New() *Wheel {
	w := &Wheel{
		allTimers:     list.New[*record](),
		runningTimers: list.New[*record](),
		observer:      noopObserver{},
	}
	w.freeIdx = make([]int, constants.TimerPoolSize)
	for i := range w.freeIdx {
		w.freeIdx[i] = constants.TimerPoolSize - 1 - i
	}
	return w
}

// SetObserver installs o to receive timer-wheel events. Passing nil
// restores the no-op default.
func (w *Wheel) SetObserver(o Observer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if o == nil {
		o = noopObserver{}
	}
	w.observer = o
}

func msToTicks(ms uint32) uint32 {
	return ms * uint32(constants.FTimer) / 1000
}

// tickLE reports deadline <= now under 32-bit wraparound (spec's
// signed(deadline - now) <= 0 rule).
func tickLE(deadline, now uint32) bool {
	return int32(deadline-now) <= 0
}

func (w *Wheel) cacheLookup(id uint32) *record {
	for i, r := range w.lru {
		if r != nil && r.id == id {
			w.promote(i)
			return r
		}
	}
	return nil
}

func (w *Wheel) promote(i int) {
	r := w.lru[i]
	copy(w.lru[1:i+1], w.lru[0:i])
	w.lru[0] = r
}

func (w *Wheel) cacheInsert(r *record) {
	copy(w.lru[1:], w.lru[:len(w.lru)-1])
	w.lru[0] = r
}

func (w *Wheel) cacheEvict(r *record) {
	for i, c := range w.lru {
		if c == r {
			w.lru[i] = nil
		}
	}
}

// find locates a record by id, sorted-list order with LRU cache
// assist, O(n) worst case (spec §4.6).
func (w *Wheel) find(id uint32) *record {
	if r := w.cacheLookup(id); r != nil {
		return r
	}
	var found *record
	w.allTimers.Do(func(n *list.Node[*record]) {
		if found == nil && n.Value.id == id {
			found = n.Value
		}
	})
	if found != nil {
		w.cacheInsert(found)
	}
	return found
}

// Create allocates a timer record from the fixed pool, inserts it into
// the id-sorted all-timers list, and leaves it DISABLED (spec's
// create()).
func (w *Wheel) Create(cb Callback, periodMs uint32, arg any) (uint32, error) {
	if cb == nil || periodMs == 0 {
		return 0, ErrInvalidArg
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.freeIdx) == 0 {
		return 0, ErrPoolExhausted
	}
	slot := w.freeIdx[len(w.freeIdx)-1]
	w.freeIdx = w.freeIdx[:len(w.freeIdx)-1]

	w.nextID++
	id := w.nextID

	r := &w.pool[slot]
	*r = record{
		id:       id,
		callback: cb,
		arg:      arg,
		periodMs: periodMs,
		mode:     OneShot,
		state:    Disabled,
	}
	r.allNode = list.NewNode(r)
	w.insertAllSorted(r)
	return id, nil
}

// insertAllSorted keeps the all-timers list ordered by id. Ids are
// assigned monotonically increasing and never reused, so in practice
// this always appends at the tail; the general-case walk is kept so the
// list stays correctly sorted if that assumption ever changes.
func (w *Wheel) insertAllSorted(r *record) {
	var before *list.Node[*record]
	w.allTimers.Do(func(n *list.Node[*record]) {
		if before == nil && n.Value.id > r.id {
			before = n
		}
	})
	if before == nil {
		w.allTimers.PushBack(r.allNode)
		return
	}
	w.allTimers.InsertBefore(before, r.allNode)
}

// Start arms the timer: computes deadline = now + MS_TO_TICKS(period_ms),
// sets last_expected_fire_tick = deadline, and inserts it into the
// running list in deadline order (spec's start()).
func (w *Wheel) Start(id uint32, mode Mode, now uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	r := w.find(id)
	if r == nil {
		return ErrNotFound
	}
	if r.state == Running {
		w.runningTimers.Remove(r.runNode)
	}
	r.mode = mode
	r.periodTicks = msToTicks(r.periodMs)
	r.deadline = now + r.periodTicks
	r.lastExpectedFireTick = r.deadline
	r.state = Running
	r.runNode = list.NewNode(r)
	w.insertRunningSorted(r)
	return nil
}

// insertRunningSorted keeps the running-timers list ordered by deadline,
// wrap-safe, with equal deadlines breaking ties in insertion order (spec's
// "timers with equal absolute deadlines fire in insertion order").
func (w *Wheel) insertRunningSorted(r *record) {
	var before *list.Node[*record]
	w.runningTimers.Do(func(n *list.Node[*record]) {
		if before == nil && tickLE(r.deadline, n.Value.deadline) && r.deadline != n.Value.deadline {
			before = n
		}
	})
	if before == nil {
		w.runningTimers.PushBack(r.runNode)
		return
	}
	w.runningTimers.InsertBefore(before, r.runNode)
}

// Cancel disarms a timer, removing it from the running list while
// leaving it allocated in the all-timers list (spec's cancel()).
func (w *Wheel) Cancel(id uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	r := w.find(id)
	if r == nil {
		return ErrNotFound
	}
	if r.state == Running {
		w.runningTimers.Remove(r.runNode)
		r.state = Disabled
	}
	return nil
}

// Destroy removes a timer from both lists and returns its record to the
// fixed pool (spec's destroy()).
func (w *Wheel) Destroy(id uint32) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	r := w.find(id)
	if r == nil {
		return ErrNotFound
	}
	if r.state == Running {
		w.runningTimers.Remove(r.runNode)
	}
	w.allTimers.Remove(r.allNode)
	w.cacheEvict(r)

	for i := range w.pool {
		if &w.pool[i] == r {
			w.freeIdx = append(w.freeIdx, i)
			break
		}
	}
	*r = record{}
	return nil
}

// Tick implements sched.TimerDriver. It expires at most
// constants.TimerBatchSize timers per call to bound tick latency,
// reinserting AUTO_RELOAD timers with a drift-free next deadline (spec
// §4.6 tick processing).
func (w *Wheel) Tick(now uint32) {
	type fire struct {
		cb  Callback
		id  uint32
		arg any
	}
	var fires []fire

	w.mu.Lock()
	i := 0
	for ; i < constants.TimerBatchSize; i++ {
		head := w.runningTimers.Front()
		if head == nil || !tickLE(head.Value.deadline, now) {
			break
		}
		r := head.Value
		w.runningTimers.Remove(r.runNode)
		fires = append(fires, fire{cb: r.callback, id: r.id, arg: r.arg})

		if r.mode == AutoReload {
			r.lastExpectedFireTick += r.periodTicks
			r.deadline = r.lastExpectedFireTick
			r.runNode = list.NewNode(r)
			w.insertRunningSorted(r)
		} else {
			r.state = Disabled
		}
	}
	// An overrun is the batch cap being hit while a timer past its
	// deadline is still waiting at the head of the running list — more
	// timers expired this tick than TimerBatchSize could process.
	overran := i == constants.TimerBatchSize
	if overran {
		if head := w.runningTimers.Front(); head == nil || !tickLE(head.Value.deadline, now) {
			overran = false
		}
	}
	observer := w.observer
	w.mu.Unlock()

	if overran {
		observer.ObserveTimerOverrun()
	}

	for _, f := range fires {
		f.cb(f.id, f.arg)
	}
}

// State reports a timer's current arm state.
func (w *Wheel) State(id uint32) (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.find(id)
	if r == nil {
		return Disabled, ErrNotFound
	}
	return r.state, nil
}

// Count returns the number of live (allocated) timer records.
func (w *Wheel) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.allTimers.Len()
}
