package linmo

import (
	"io"
	"os"
	"time"

	"github.com/linmogo/linmo/internal/console"
	"github.com/linmogo/linmo/internal/constants"
	"github.com/linmogo/linmo/internal/hal"
	"github.com/linmogo/linmo/internal/ipc"
	"github.com/linmogo/linmo/internal/ksync"
	"github.com/linmogo/linmo/internal/sched"
	"github.com/linmogo/linmo/internal/syscalltab"
	"github.com/linmogo/linmo/internal/task"
	"github.com/linmogo/linmo/internal/timer"
)

// Priority re-exports internal/task's priority levels so callers never
// import the internal package directly.
type Priority = task.Priority

const (
	Crit     = task.Crit
	Realtime = task.Realtime
	High     = task.High
	Above    = task.Above
	Normal   = task.Normal
	Below    = task.Below
	Low      = task.Low
	Idle     = task.Idle
)

// EntryFunc is a task's body (spec §3 TCB.entry).
type EntryFunc = task.EntryFunc

// RTHook is the optional real-time scheduler override installed via
// SetRTHook (spec §4.2's "RT hook contract").
type RTHook = sched.RTHook

// TaskInfo is a point-in-time snapshot of one task's externally visible
// state, safe to print or compare without holding any kernel lock.
type TaskInfo = task.Info

// Config configures a Kernel at construction time. The zero value is not
// directly usable; build one with DefaultConfig and adjust fields.
type Config struct {
	// Preemptive selects whether Tick performs time-slice accounting
	// (spec §4.2's "cooperative mode omits step 4"). Cooperative mode
	// relies on tasks calling Yield/Delay/WFI themselves.
	Preemptive bool

	// TickPeriod is the simulated HAL tick ISR's period. Defaults to
	// 1/FTimer (constants.TickPeriod) if zero.
	TickPeriod time.Duration

	// ConsoleOut is where the logger/console bridge (spec §4.5) writes
	// drained output. Defaults to os.Stdout if nil.
	ConsoleOut io.Writer

	// Observer receives scheduler timing events (context switches,
	// preemptions). Defaults to a Metrics-backed observer fed by the
	// Kernel's own Metrics instance.
	Observer Observer
}

// DefaultConfig returns a cooperative-by-default configuration writing
// console output to os.Stdout.
func DefaultConfig() Config {
	return Config{
		Preemptive: false,
		TickPeriod: constants.TickPeriod,
		ConsoleOut: os.Stdout,
	}
}

// Kernel is the public facade over the task engine: the KCB (scheduler),
// the simulated HAL tick source, the logger/console bridge, metrics, and
// the syscall dispatch table (spec §3's process-wide kernel singleton).
type Kernel struct {
	sched   *sched.Scheduler
	core    *hal.Core
	console *console.Bridge
	timers  *timer.Wheel

	metrics  *Metrics
	observer Observer
	syscall  *syscalltab.Table

	started bool
}

// New builds a Kernel from cfg but does not start its tick source; call
// Start to begin ticking (spec §4's dispatch_init / the HAL's tick ISR
// enable).
func New(cfg Config) *Kernel {
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = constants.TickPeriod
	}
	out := cfg.ConsoleOut
	if out == nil {
		out = os.Stdout
	}

	s := sched.New(cfg.Preemptive)
	wheel := timer.New()
	s.SetTimerDriver(wheel)

	metrics := NewMetrics()
	var obs Observer = cfg.Observer
	if obs == nil {
		obs = NewMetricsObserver(metrics)
	}
	// obs satisfies sched.Observer structurally: ObserveContextSwitch,
	// ObservePreemption and ObserveRTHookSelection are all present on
	// Observer's wider 12-method set.
	s.SetObserver(obs)
	// Same structural trick for timer.Observer's single ObserveTimerOverrun method.
	wheel.SetObserver(obs)

	core := hal.NewCore(cfg.TickPeriod)
	s.SetTickWaiter(core)

	k := &Kernel{
		sched:    s,
		core:     core,
		timers:   wheel,
		metrics:  metrics,
		observer: obs,
		syscall:  syscalltab.New(),
	}
	k.console = console.NewBridge(s, out)
	syscalltab.Wire(k.syscall, k)
	return k
}

// Start begins the simulated tick ISR, driving Scheduler.Tick once per
// TickPeriod (spec §4.2's tick handler entry point).
func (k *Kernel) Start() {
	if k.started {
		return
	}
	k.started = true
	k.core.Start(func(tick uint32) {
		k.sched.Tick()
		k.metrics.RecordTick()
	})
}

// Stop halts the tick ISR, flushes buffered console output, and freezes
// the uptime reported by Metrics.Snapshot.
func (k *Kernel) Stop() {
	k.core.Stop()
	k.console.Close()
	k.metrics.Stop()
	k.started = false
}

// Metrics returns the kernel's metrics counters.
func (k *Kernel) Metrics() *Metrics { return k.metrics }

// Console returns the logger/console bridge (spec §4.5).
func (k *Kernel) Console() *console.Bridge { return k.console }

// ---- C1/C2: task lifecycle, delegated straight to the scheduler ----

// Spawn creates a task running entry at Normal priority (spec §4.1
// spawn()).
func (k *Kernel) Spawn(entry EntryFunc, stackSize uint32) uint16 {
	id := k.sched.Spawn(entry, stackSize)
	k.observer.ObserveSpawn()
	return id
}

// Cancel destroys the task identified by id. A task can never cancel
// itself (spec §4.1 cancel()).
func (k *Kernel) Cancel(id uint16) error {
	if err := k.sched.Cancel(id); err != nil {
		return WrapError("task.cancel", err)
	}
	k.observer.ObserveCancel()
	return nil
}

// Yield voluntarily gives up the CPU (spec §4.1 yield()).
func (k *Kernel) Yield() {
	k.metrics.RecordYield()
	k.sched.Yield()
}

// Delay blocks the calling task for ticks ticks (spec §4.1 delay()).
func (k *Kernel) Delay(ticks uint32) { k.sched.Delay(ticks) }

// Suspend moves a Ready task to Suspended, off every ready queue (spec
// §4.1 suspend()).
func (k *Kernel) Suspend(id uint16) error {
	if err := k.sched.Suspend(id); err != nil {
		return WrapError("task.suspend", err)
	}
	return nil
}

// Resume moves a Suspended task back to Ready (spec §4.1 resume()).
func (k *Kernel) Resume(id uint16) error {
	if err := k.sched.Resume(id); err != nil {
		return WrapError("task.resume", err)
	}
	return nil
}

// Priority changes id's base priority (spec §4.1 priority()).
func (k *Kernel) Priority(id uint16, prio Priority) error {
	if err := k.sched.Priority(id, prio); err != nil {
		return WrapError("task.priority", err)
	}
	return nil
}

// RTPriority stores an opaque value on id's TCB for the installed RT
// hook to interpret (spec §4.1 rt_priority()).
func (k *Kernel) RTPriority(id uint16, opaque any) error {
	if err := k.sched.RTPriority(id, opaque); err != nil {
		return WrapError("task.rt_priority", err)
	}
	return nil
}

// SetRTHook installs the optional real-time scheduler override (spec
// §4.2's RT hook contract).
func (k *Kernel) SetRTHook(h RTHook) { k.sched.SetRTHook(h) }

// ID returns the currently running task's id, or ok=false if called
// outside any task's goroutine (spec §4.1 id()).
func (k *Kernel) ID() (id uint16, ok bool) { return k.sched.Current() }

// Count returns the number of live tasks (spec §4.1 task_count()).
func (k *Kernel) Count() int { return k.sched.Count() }

// Ticks returns the scheduler's tick counter.
func (k *Kernel) Ticks() uint32 { return k.sched.Ticks() }

// Snapshot returns a point-in-time TaskInfo for every live task,
// unordered — the kernel's "ps" equivalent, for demo dashboards and
// tests rather than the dispatch path.
func (k *Kernel) Snapshot() []TaskInfo { return k.sched.Snapshot() }

// Uptime returns the kernel's tick counter, standing in for spec's
// uptime() syscall: one simulated hardware tick is the engine's only
// notion of elapsed time.
func (k *Kernel) Uptime() uint32 { return k.sched.Ticks() }

// WFI waits for the next tick in a low-power idle (spec §4.1 wfi()).
func (k *Kernel) WFI() { k.sched.WFI() }

// Dispatch starts the scheduler's first task. Only needed by hosts that
// never call Start (e.g. a test driving ticks manually).
func (k *Kernel) Dispatch() { k.sched.Dispatch() }

// ---- C3: sync primitive constructors ----

// NewSemaphore creates a counting semaphore (spec §4.3 sem_init()).
func (k *Kernel) NewSemaphore(maxWaiters, initialCount, capMax int) (*ksync.Semaphore, error) {
	sem, err := ksync.NewSemaphore(k.sched, maxWaiters, initialCount, capMax)
	if err != nil {
		return nil, WrapError("sem.init", err)
	}
	// k.observer's wider method set structurally satisfies ksync.Observer,
	// the same trick used to hand it to sched.SetObserver.
	sem.SetObserver(k.observer)
	return sem, nil
}

// NewMutex creates a priority-agnostic mutual-exclusion lock (spec §4.3
// mutex_init()).
func (k *Kernel) NewMutex() *ksync.Mutex {
	m := ksync.NewMutex(k.sched)
	m.SetObserver(k.observer)
	return m
}

// NewCondVar creates a condition variable (spec §4.3 cond_init()).
func (k *Kernel) NewCondVar() *ksync.CondVar {
	c := ksync.NewCondVar(k.sched)
	c.SetObserver(k.observer)
	return c
}

// ---- C4: IPC primitive constructors ----

// NewPipe creates a byte-oriented FIFO (spec §4.4 pipe_init()).
func (k *Kernel) NewPipe(capacity uint32) *ipc.Pipe { return ipc.NewPipe(k.sched, capacity) }

// NewMessageQueue creates a pointer-message FIFO (spec §4.4 mq_init()).
func NewMessageQueue[T any](k *Kernel, capacity uint32) *ipc.MessageQueue[T] {
	return ipc.NewMessageQueue[T](k.sched, capacity)
}

// ---- C5: timer wheel ----

// NewTimer creates a software timer firing cb every periodMs milliseconds
// once started (spec §4.6 timer_create()). It starts Disabled.
func (k *Kernel) NewTimer(cb timer.Callback, periodMs uint32, arg any) (uint32, error) {
	wrapped := func(id uint32, arg any) {
		k.observer.ObserveTimerFire()
		cb(id, arg)
	}
	id, err := k.timers.Create(wrapped, periodMs, arg)
	if err != nil {
		return 0, WrapError("timer.create", err)
	}
	return id, nil
}

// StartTimer arms a timer in OneShot or AutoReload mode (spec §4.6
// timer_start()).
func (k *Kernel) StartTimer(id uint32, mode timer.Mode) error {
	if err := k.timers.Start(id, mode, k.sched.Ticks()); err != nil {
		return WrapError("timer.start", err)
	}
	return nil
}

// CancelTimer disarms a timer without destroying it (spec §4.6
// timer_cancel()).
func (k *Kernel) CancelTimer(id uint32) error {
	if err := k.timers.Cancel(id); err != nil {
		return WrapError("timer.cancel", err)
	}
	return nil
}

// DestroyTimer releases a timer's pool slot (spec §4.6 timer_destroy()).
func (k *Kernel) DestroyTimer(id uint32) error {
	if err := k.timers.Destroy(id); err != nil {
		return WrapError("timer.destroy", err)
	}
	return nil
}

// ---- syscalltab.KernelOps: wiring this Kernel into the dispatch table ----

var _ syscalltab.KernelOps = (*Kernel)(nil)

// entryTable holds the task entry points registered via RegisterEntry,
// indexed by the entryIndex a syscalltab.SysSpawn caller supplies.
// Go function values aren't register-representable, so a caller driving
// the kernel purely through the syscall table must pre-register entries
// and spawn by index (see syscalltab.KernelOps.SpawnEntry's doc).
var entryTable []EntryFunc

// RegisterEntry records entry and returns the index later passed to
// SysSpawn through the syscall table.
func RegisterEntry(entry EntryFunc) uint32 {
	entryTable = append(entryTable, entry)
	return uint32(len(entryTable) - 1)
}

// SpawnEntry implements syscalltab.KernelOps by looking entryIndex up in
// the process-wide entry table and spawning it at the default stack size.
func (k *Kernel) SpawnEntry(entryIndex, stackSize uint32) (uint16, error) {
	if int(entryIndex) >= len(entryTable) {
		return 0, WrapError("syscall.spawn", NewError("syscall.spawn", ErrTaskInvalidEntry, "entry index out of range"))
	}
	if stackSize == 0 {
		stackSize = constants.DefaultTaskStackSize
	}
	return k.Spawn(entryTable[entryIndex], stackSize), nil
}

// CurrentID implements syscalltab.KernelOps.
func (k *Kernel) CurrentID() (uint16, bool) { return k.ID() }

// SetPriority implements syscalltab.KernelOps by adapting the syscall
// table's register-sized int down to the Priority enum Kernel.Priority
// takes.
func (k *Kernel) SetPriority(id uint16, prio int) error {
	return k.Priority(id, Priority(prio))
}

// SetRTPriority implements syscalltab.KernelOps by forwarding the
// syscall table's uint32 payload as Kernel.RTPriority's opaque any.
func (k *Kernel) SetRTPriority(id uint16, opaque uint32) error {
	return k.RTPriority(id, opaque)
}
