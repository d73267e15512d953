//go:build !linux

package hal

import "runtime"

// PinToCPU0 is a no-op outside Linux: there is no portable CPU-affinity
// syscall, so the single-core illusion relies solely on the tick ISR and
// token-passing context switch serializing execution, not on OS placement.
func PinToCPU0() error {
	runtime.LockOSThread()
	return nil
}
