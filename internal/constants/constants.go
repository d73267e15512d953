// Package constants holds the kernel's build-time tunables.
package constants

import "time"

// Scheduling constants
const (
	// FTimer is the tick frequency in Hz. The HAL's simulated tick source
	// fires at this rate.
	FTimer = 1000

	// TickPeriod is the wall-clock period of one tick at FTimer Hz.
	TickPeriod = time.Second / FTimer

	// NumPriorityLevels is the number of ready-queue priority levels (0..7).
	NumPriorityLevels = 8

	// SchedIMax is the reference kernel's safety limit on scheduler scan
	// iterations, kept here as a named tunable. The scheduler does not read
	// it: its lowest-set-bit scan is a fixed loop over the 8 levels, and its
	// RR cursor step is a single move, so neither has an iteration guard.
	SchedIMax = 500
)

// Task stack sizing. Go manages real goroutine stacks; spawn stores the
// requested size on the TCB as given. It is not checked against these
// values and is not part of task.Info.
const (
	// DefaultTaskStackSize is the size Kernel.SpawnEntry uses when the
	// syscall passes 0, and the size the console drain task is spawned with.
	DefaultTaskStackSize = 4096

	// MinTaskStackSize is the reference kernel's smallest stack budget.
	// Spawn does not enforce it.
	MinTaskStackSize = 256
)

// IPC sizing
const (
	// MinPipeCapacity is the smallest allowed pipe ring capacity (rounded up
	// to this power of two if a caller asks for less).
	MinPipeCapacity = 2

	// MaxPipeCapacity bounds how large a pipe ring may grow.
	MaxPipeCapacity = 32768

	// MinMQCapacity / MaxMQCapacity bound a message queue's pointer ring.
	MinMQCapacity = 2
	MaxMQCapacity = 32768
)

// Software timer wheel sizing
const (
	// TimerPoolSize is the number of timer records kept in the fixed pool.
	TimerPoolSize = 16

	// TimerLRUCacheSize is the size of the small id -> timer lookup cache
	// kept alongside the sorted all-timers list.
	TimerLRUCacheSize = 4

	// TimerBatchSize caps how many expired timers are processed per tick,
	// bounding interrupt/tick latency.
	TimerBatchSize = 4
)

// Console / logger bridge sizing
const (
	// ConsoleRingCapacity is the number of buffered log entries.
	ConsoleRingCapacity = 8

	// ConsoleEntrySize is the maximum formatted length of one log entry.
	ConsoleEntrySize = 128
)

// Semaphore bound
const (
	// SemMaxCount is the default maximum count a counting semaphore saturates
	// at; signal() above this value is a silent no-op increment.
	SemMaxCount = 0xFFFF
)
