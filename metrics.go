package linmo

import (
	"sync/atomic"
	"time"
)

// SchedLatencyBuckets defines the scheduling-latency histogram buckets in
// nanoseconds: the time between a task becoming READY and being selected
// RUNNING by pick_next. Buckets cover from 1us to 100ms with logarithmic
// spacing — a real-time scheduler's dispatch latency should live well
// under 1ms, so the top bucket is mostly a sanity net.
var SchedLatencyBuckets = []uint64{
	1_000,       // 1us
	10_000,      // 10us
	100_000,     // 100us
	1_000_000,   // 1ms
	10_000_000,  // 10ms
	100_000_000, // 100ms
}

const numLatencyBuckets = 6

// Metrics tracks scheduler and kernel activity counters for one kernel
// instance. All fields are safe for concurrent use; the scheduler and tick
// handler update them without holding the scheduler lock longer than the
// atomic add itself requires.
type Metrics struct {
	// Task lifecycle counters
	TasksSpawned   atomic.Uint64
	TasksCancelled atomic.Uint64

	// Scheduling activity
	Ticks             atomic.Uint64 // Total ticks processed
	ContextSwitches   atomic.Uint64 // Total pick_next selections that changed the running task
	Preemptions       atomic.Uint64 // Time-slice expiries that forced a reschedule
	Yields            atomic.Uint64 // Explicit yield() calls
	RTHookSelections  atomic.Uint64 // Selections made by the installed RT hook rather than the bitmap scan

	// Synchronization activity
	SemWaits    atomic.Uint64
	SemSignals  atomic.Uint64
	MutexLocks  atomic.Uint64
	MutexWaits  atomic.Uint64 // lock() calls that had to block
	CondWaits   atomic.Uint64
	CondWakes   atomic.Uint64

	// Timer wheel activity
	TimerFires    atomic.Uint64
	TimerOverruns atomic.Uint64 // batch-size cap hit during one tick's expiry sweep

	// Scheduling-latency tracking
	TotalSchedLatencyNs atomic.Uint64
	SchedLatencySamples atomic.Uint64
	SchedLatencyBuckets [numLatencyBuckets]atomic.Uint64

	// Kernel lifecycle
	StartTime atomic.Int64 // kernel start timestamp (UnixNano)
	StopTime  atomic.Int64 // kernel stop timestamp (UnixNano, 0 while running)
}

// NewMetrics creates a new metrics instance with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordSpawn / RecordCancel track task lifecycle events.
func (m *Metrics) RecordSpawn()   { m.TasksSpawned.Add(1) }
func (m *Metrics) RecordCancel()  { m.TasksCancelled.Add(1) }

// RecordTick records one scheduler tick having been processed.
func (m *Metrics) RecordTick() { m.Ticks.Add(1) }

// RecordContextSwitch records a context switch with its scheduling
// latency (time from the task becoming READY to being picked RUNNING).
func (m *Metrics) RecordContextSwitch(latencyNs uint64) {
	m.ContextSwitches.Add(1)
	m.recordSchedLatency(latencyNs)
}

func (m *Metrics) RecordPreemption()      { m.Preemptions.Add(1) }
func (m *Metrics) RecordYield()           { m.Yields.Add(1) }
func (m *Metrics) RecordRTHookSelection() { m.RTHookSelections.Add(1) }

func (m *Metrics) RecordSemWait()   { m.SemWaits.Add(1) }
func (m *Metrics) RecordSemSignal() { m.SemSignals.Add(1) }

func (m *Metrics) RecordMutexLock(blocked bool) {
	m.MutexLocks.Add(1)
	if blocked {
		m.MutexWaits.Add(1)
	}
}

func (m *Metrics) RecordCondWait() { m.CondWaits.Add(1) }
func (m *Metrics) RecordCondWake() { m.CondWakes.Add(1) }

func (m *Metrics) RecordTimerFire()    { m.TimerFires.Add(1) }
func (m *Metrics) RecordTimerOverrun() { m.TimerOverruns.Add(1) }

func (m *Metrics) recordSchedLatency(latencyNs uint64) {
	m.TotalSchedLatencyNs.Add(latencyNs)
	m.SchedLatencySamples.Add(1)
	for i, bucket := range SchedLatencyBuckets {
		if latencyNs <= bucket {
			m.SchedLatencyBuckets[i].Add(1)
		}
	}
}

// Stop marks the kernel as stopped, freezing Uptime in future snapshots.
func (m *Metrics) Stop() {
	m.StopTime.Store(time.Now().UnixNano())
}

// MetricsSnapshot is a point-in-time, plain-value copy of Metrics safe to
// print, serialize, or diff across time.
type MetricsSnapshot struct {
	TasksSpawned   uint64
	TasksCancelled uint64

	Ticks            uint64
	ContextSwitches  uint64
	Preemptions      uint64
	Yields           uint64
	RTHookSelections uint64

	SemWaits   uint64
	SemSignals uint64
	MutexLocks uint64
	MutexWaits uint64
	CondWaits  uint64
	CondWakes  uint64

	TimerFires    uint64
	TimerOverruns uint64

	AvgSchedLatencyNs uint64
	SchedLatencyP50Ns uint64
	SchedLatencyP99Ns uint64

	SchedLatencyHistogram [numLatencyBuckets]uint64

	UptimeNs uint64
}

// Snapshot returns a consistent point-in-time copy of the metrics,
// including derived statistics (averages, percentiles, uptime).
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		TasksSpawned:     m.TasksSpawned.Load(),
		TasksCancelled:   m.TasksCancelled.Load(),
		Ticks:            m.Ticks.Load(),
		ContextSwitches:  m.ContextSwitches.Load(),
		Preemptions:      m.Preemptions.Load(),
		Yields:           m.Yields.Load(),
		RTHookSelections: m.RTHookSelections.Load(),
		SemWaits:         m.SemWaits.Load(),
		SemSignals:       m.SemSignals.Load(),
		MutexLocks:       m.MutexLocks.Load(),
		MutexWaits:       m.MutexWaits.Load(),
		CondWaits:        m.CondWaits.Load(),
		CondWakes:        m.CondWakes.Load(),
		TimerFires:       m.TimerFires.Load(),
		TimerOverruns:    m.TimerOverruns.Load(),
	}

	samples := m.SchedLatencySamples.Load()
	if samples > 0 {
		snap.AvgSchedLatencyNs = m.TotalSchedLatencyNs.Load() / samples
		snap.SchedLatencyP50Ns = m.percentile(0.50)
		snap.SchedLatencyP99Ns = m.percentile(0.99)
	}

	startTime := m.StartTime.Load()
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - startTime)
	} else {
		snap.UptimeNs = uint64(time.Now().UnixNano() - startTime)
	}

	for i := 0; i < numLatencyBuckets; i++ {
		snap.SchedLatencyHistogram[i] = m.SchedLatencyBuckets[i].Load()
	}

	return snap
}

// percentile estimates the scheduling latency at the given percentile
// (0.0-1.0) via linear interpolation between histogram buckets.
func (m *Metrics) percentile(p float64) uint64 {
	total := m.SchedLatencySamples.Load()
	if total == 0 {
		return 0
	}
	target := uint64(float64(total) * p)

	prevBucket := uint64(0)
	prevCount := uint64(0)
	for i, bucket := range SchedLatencyBuckets {
		count := m.SchedLatencyBuckets[i].Load()
		if count >= target {
			if count == prevCount {
				return bucket
			}
			fraction := float64(target-prevCount) / float64(count-prevCount)
			return prevBucket + uint64(fraction*float64(bucket-prevBucket))
		}
		prevBucket = bucket
		prevCount = count
	}
	return SchedLatencyBuckets[numLatencyBuckets-1]
}

// Reset zeroes all counters and restarts the uptime clock. Primarily
// useful in tests that want a clean baseline between scenarios.
func (m *Metrics) Reset() {
	m.TasksSpawned.Store(0)
	m.TasksCancelled.Store(0)
	m.Ticks.Store(0)
	m.ContextSwitches.Store(0)
	m.Preemptions.Store(0)
	m.Yields.Store(0)
	m.RTHookSelections.Store(0)
	m.SemWaits.Store(0)
	m.SemSignals.Store(0)
	m.MutexLocks.Store(0)
	m.MutexWaits.Store(0)
	m.CondWaits.Store(0)
	m.CondWakes.Store(0)
	m.TimerFires.Store(0)
	m.TimerOverruns.Store(0)
	m.TotalSchedLatencyNs.Store(0)
	m.SchedLatencySamples.Store(0)
	for i := 0; i < numLatencyBuckets; i++ {
		m.SchedLatencyBuckets[i].Store(0)
	}
	m.StartTime.Store(time.Now().UnixNano())
	m.StopTime.Store(0)
}

// Observer allows pluggable collection of kernel events, e.g. to bridge
// into an external metrics system. Implementations must be safe to call
// from the scheduler's tick path.
type Observer interface {
	ObserveSpawn()
	ObserveCancel()
	ObserveContextSwitch(latencyNs uint64)
	ObservePreemption()
	ObserveRTHookSelection()
	ObserveTimerFire()
	ObserveTimerOverrun()
	ObserveSemWait()
	ObserveSemSignal()
	ObserveMutexLock(blocked bool)
	ObserveCondWait()
	ObserveCondWake()
}

// NoOpObserver discards every event. It is the default when no Observer
// is configured.
type NoOpObserver struct{}

func (NoOpObserver) ObserveSpawn()                {}
func (NoOpObserver) ObserveCancel()                {}
func (NoOpObserver) ObserveContextSwitch(uint64)   {}
func (NoOpObserver) ObservePreemption()            {}
func (NoOpObserver) ObserveRTHookSelection()       {}
func (NoOpObserver) ObserveTimerFire()             {}
func (NoOpObserver) ObserveTimerOverrun()          {}
func (NoOpObserver) ObserveSemWait()               {}
func (NoOpObserver) ObserveSemSignal()             {}
func (NoOpObserver) ObserveMutexLock(bool)         {}
func (NoOpObserver) ObserveCondWait()              {}
func (NoOpObserver) ObserveCondWake()              {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver returns an Observer that records into m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveSpawn()  { o.metrics.RecordSpawn() }
func (o *MetricsObserver) ObserveCancel() { o.metrics.RecordCancel() }

func (o *MetricsObserver) ObserveContextSwitch(latencyNs uint64) {
	o.metrics.RecordContextSwitch(latencyNs)
}

func (o *MetricsObserver) ObservePreemption()      { o.metrics.RecordPreemption() }
func (o *MetricsObserver) ObserveRTHookSelection() { o.metrics.RecordRTHookSelection() }
func (o *MetricsObserver) ObserveTimerFire()       { o.metrics.RecordTimerFire() }
func (o *MetricsObserver) ObserveTimerOverrun()    { o.metrics.RecordTimerOverrun() }

func (o *MetricsObserver) ObserveSemWait()   { o.metrics.RecordSemWait() }
func (o *MetricsObserver) ObserveSemSignal() { o.metrics.RecordSemSignal() }

func (o *MetricsObserver) ObserveMutexLock(blocked bool) { o.metrics.RecordMutexLock(blocked) }

func (o *MetricsObserver) ObserveCondWait() { o.metrics.RecordCondWait() }
func (o *MetricsObserver) ObserveCondWake() { o.metrics.RecordCondWake() }

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
