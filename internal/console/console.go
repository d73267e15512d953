// Package console implements the kernel's thread-safe logger/console
// bridge (spec §4.5): a fixed-size ring of formatted log entries,
// drained by a dedicated task pinned to task.Idle priority that emits
// bytes to the underlying console byte-by-byte outside the ring's lock.
// On queue-full, or whenever direct mode is active (entered via Flush,
// cleared by AsyncResume), formatted output falls through to a
// synchronous write so diagnostic reports never arrive out of order.
// This is a cooperating service built on top of C3/C4, not part of the
// mandatory scheduler contract.
//
// The ring is guarded by a plain private sync.Mutex rather than
// internal/ksync's scheduler-lock-routed Mutex. Spec §5 draws a line
// between two critical sections: the scheduler lock ("NOSCHED"), used by
// every sync primitive, and the full interrupt mask ("CRITICAL"),
// reserved for "a data structure shared with an interrupt handler other
// than the scheduler tick (e.g. console input ring)" — the console ring
// is the spec's own named example of the latter. Routing it through
// ksync.Mutex would also be unsound here: Printf/Flush are meant to be
// callable from outside any task (diagnostic output before the first
// task spawns, or from the hosting program's own goroutine), where
// sched.Current() reports no current task and ksync.Mutex's owner-id
// scheme would alias that case to the same sentinel (0) it uses for
// "unlocked".
package console

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/linmogo/linmo/internal/constants"
	"github.com/linmogo/linmo/internal/queue"
	"github.com/linmogo/linmo/internal/sched"
	"github.com/linmogo/linmo/internal/task"
)

// entry is one formatted log line, capped at constants.ConsoleEntrySize
// bytes (a longer formatted message is truncated, matching the fixed
// buffer the spec describes).
type entry struct {
	data []byte
}

// Bridge owns the ring, its guard mutex, and the drain task.
type Bridge struct {
	sched *sched.Scheduler
	out   io.Writer

	mu   sync.Mutex
	ring []entry
	head int
	tail int
	used int

	// directMode, once set, routes every subsequent Printf/Puts straight
	// to out instead of through the ring, until AsyncResume clears it.
	directMode atomic.Bool

	drainTaskID uint16
	stop        atomic.Bool
}

// NewBridge constructs a console bridge over out (typically os.Stdout)
// with the spec-default 8-entry ring and spawns its drain task pinned to
// task.Idle priority.
func NewBridge(s *sched.Scheduler, out io.Writer) *Bridge {
	b := &Bridge{
		sched: s,
		out:   out,
		ring:  make([]entry, constants.ConsoleRingCapacity),
	}
	b.drainTaskID = s.Spawn(b.drainLoop, constants.DefaultTaskStackSize)
	_ = s.Priority(b.drainTaskID, task.Idle)
	return b
}

// Printf formats and enqueues a log line, or writes it synchronously if
// the ring is full or direct mode is active (spec §4.5). Safe to call
// from a spawned task or from the hosting program's own goroutine.
func (b *Bridge) Printf(format string, args ...any) {
	b.write(fmt.Sprintf(format, args...))
}

// Puts enqueues (or synchronously writes) a pre-formatted line.
func (b *Bridge) Puts(line string) {
	b.write(line)
}

func (b *Bridge) write(line string) {
	buf := []byte(line)
	if len(buf) > constants.ConsoleEntrySize {
		buf = buf[:constants.ConsoleEntrySize]
	}

	if b.directMode.Load() {
		b.writeDirect(buf)
		return
	}

	queued := false
	b.mu.Lock()
	if b.used < len(b.ring) {
		b.ring[b.tail] = entry{data: buf}
		b.tail = (b.tail + 1) % len(b.ring)
		b.used++
		queued = true
	}
	b.mu.Unlock()

	if !queued {
		b.writeDirect(buf)
	}
}

// writeDirect emits buf synchronously, one byte at a time, matching the
// spec's console-write granularity outside the ring's mutex.
func (b *Bridge) writeDirect(buf []byte) {
	tmp := queue.GetBuffer(1)
	defer queue.PutBuffer(tmp)
	for _, c := range buf {
		tmp[0] = c
		_, _ = b.out.Write(tmp)
	}
	_, _ = b.out.Write([]byte{'\n'})
}

// Flush enters direct mode: every subsequent write bypasses the ring
// until AsyncResume is called, guaranteeing in-order synchronous output
// for diagnostic reports (spec §4.5).
func (b *Bridge) Flush() {
	b.directMode.Store(true)
	b.drainRing()
}

// AsyncResume leaves direct mode, resuming buffered ring draining.
func (b *Bridge) AsyncResume() {
	b.directMode.Store(false)
}

func (b *Bridge) drainRing() {
	for {
		e, ok := b.popOne()
		if !ok {
			return
		}
		b.writeDirect(e.data)
	}
}

func (b *Bridge) popOne() (entry, bool) {
	var e entry
	var ok bool
	b.mu.Lock()
	if b.used > 0 {
		e = b.ring[b.head]
		b.head = (b.head + 1) % len(b.ring)
		b.used--
		ok = true
	}
	b.mu.Unlock()
	return e, ok
}

// drainLoop is the dedicated IDLE-priority task body: repeatedly drains
// whatever has queued, yielding between passes so it never starves other
// IDLE-level tasks.
func (b *Bridge) drainLoop() {
	for !b.stop.Load() {
		drained := false
		for {
			e, ok := b.popOne()
			if !ok {
				break
			}
			b.writeDirect(e.data)
			drained = true
		}
		if !drained {
			b.sched.Yield()
		}
	}
}

// Close stops the drain task after flushing whatever remains queued.
// The drain task observes stop on its own next pass and returns, letting
// the scheduler reap it normally.
func (b *Bridge) Close() {
	b.drainRing()
	b.stop.Store(true)
}
