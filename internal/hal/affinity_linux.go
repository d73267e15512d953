//go:build linux

package hal

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// PinToCPU0 locks the calling goroutine to its OS thread and pins that
// thread to CPU 0, the nearest hosted analog to the spec's single-core
// target. Core.Start calls it from the tick ISR goroutine only; task
// goroutines are not pinned, and "exactly one task, or the tick handler,
// has the CPU at any moment" (§5) rests on the scheduler's context token
// rather than on CPU affinity.
func PinToCPU0() error {
	runtime.LockOSThread()
	var set unix.CPUSet
	set.Zero()
	set.Set(0)
	return unix.SchedSetaffinity(0, &set)
}
