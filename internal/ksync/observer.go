package ksync

// Observer reports synchronization activity that only each primitive can
// observe at its own call sites, without this package depending on any
// particular metrics implementation.
type Observer interface {
	ObserveSemWait()
	ObserveSemSignal()
	ObserveMutexLock(blocked bool)
	ObserveCondWait()
	ObserveCondWake()
}

type noopObserver struct{}

func (noopObserver) ObserveSemWait()           {}
func (noopObserver) ObserveSemSignal()         {}
func (noopObserver) ObserveMutexLock(bool)     {}
func (noopObserver) ObserveCondWait()          {}
func (noopObserver) ObserveCondWake()          {}

var defaultObserver Observer = noopObserver{}
