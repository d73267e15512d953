package sched

import (
	"sync"
	"testing"
	"time"

	"github.com/linmogo/linmo/internal/task"
)

func waitCond(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.After(timeout)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not met before timeout")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestSpawnAndDispatchRuns(t *testing.T) {
	s := New(false)
	var ran sync.WaitGroup
	ran.Add(1)
	id := s.Spawn(func() {
		ran.Done()
	}, 4096)

	s.Dispatch()
	ran.Wait()

	waitCond(t, time.Second, func() bool { return s.Count() == 0 })
	if cur, ok := s.Current(); ok && cur == id {
		t.Error("expected task to have exited")
	}
}

func TestYieldRoundRobinsWithinLevel(t *testing.T) {
	s := New(false)
	var order []int
	var mu sync.Mutex
	done := make(chan struct{})

	record := func(n int) {
		mu.Lock()
		order = append(order, n)
		mu.Unlock()
	}

	s.Spawn(func() {
		record(1)
		s.Yield()
		record(3)
	}, 4096)
	s.Spawn(func() {
		record(2)
		s.Yield()
		record(4)
		close(done)
	}, 4096)

	s.Dispatch()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("tasks did not complete")
	}

	waitCond(t, time.Second, func() bool { return s.Count() == 0 })

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 4 {
		t.Fatalf("expected 4 recorded steps, got %v", order)
	}
}

func TestDelayBlocksUntilTickExpiry(t *testing.T) {
	s := New(false)
	woke := make(chan struct{})

	sleeperID := s.Spawn(func() {
		s.Delay(3)
		close(woke)
	}, 4096)
	s.Spawn(func() {
		for i := 0; i < 5; i++ {
			s.Yield()
		}
	}, 4096)

	s.Dispatch()
	// Dispatch returns once the CPU is handed over; tick only after the
	// sleeper has actually entered its delay.
	waitCond(t, time.Second, func() bool {
		tc, ok := s.Lookup(sleeperID)
		return ok && tc.State() == task.Blocked
	})

	for i := 0; i < 2; i++ {
		s.Tick()
		select {
		case <-woke:
			t.Fatalf("task woke too early after %d ticks", i+1)
		default:
		}
	}
	s.Tick()

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("delayed task never woke")
	}
}

func TestPriorityMigratesReadyQueue(t *testing.T) {
	s := New(false)
	id := s.Spawn(func() {
		for {
			s.Yield()
		}
	}, 4096)
	s.Dispatch()

	waitCond(t, time.Second, func() bool {
		tc, ok := s.Lookup(id)
		return ok && tc.State() == task.Ready || (ok && tc.State() == task.Running)
	})

	if err := s.Priority(id, task.High); err != nil {
		t.Fatalf("Priority failed: %v", err)
	}
	tc, ok := s.Lookup(id)
	if !ok {
		t.Fatal("task missing")
	}
	if tc.Priority() != task.High {
		t.Errorf("expected High priority, got %s", tc.Priority())
	}
}

func TestSuspendResumeTakesTaskOffReadyQueue(t *testing.T) {
	s := New(false)
	stop := make(chan struct{})

	id := s.Spawn(func() {
		for {
			select {
			case <-stop:
				return
			default:
				s.Yield()
			}
		}
	}, 4096)
	s.Spawn(func() {
		for {
			select {
			case <-stop:
				return
			default:
				s.Yield()
			}
		}
	}, 4096)

	s.Dispatch()

	// Suspend must be issued while id is not the currently running task,
	// since contextSwitchLocked's Save half can only be performed safely
	// by a task's own goroutine.
	waitCond(t, time.Second, func() bool {
		tc, ok := s.Lookup(id)
		cur, _ := s.Current()
		return ok && tc.State() == task.Ready && cur != id
	})

	if err := s.Suspend(id); err != nil {
		t.Fatalf("Suspend failed: %v", err)
	}
	tc, _ := s.Lookup(id)
	if tc.State() != task.Suspended {
		t.Errorf("expected Suspended, got %s", tc.State())
	}

	if err := s.Resume(id); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	tc, _ = s.Lookup(id)
	if tc.State() != task.Ready && tc.State() != task.Running {
		t.Errorf("expected Ready/Running after resume, got %s", tc.State())
	}
	close(stop)
}

func TestCancelForbidsSelf(t *testing.T) {
	s := New(false)
	result := make(chan error, 1)
	s.Spawn(func() {
		id, _ := s.Current()
		result <- s.Cancel(id)
	}, 4096)
	s.Dispatch()

	select {
	case err := <-result:
		if err != ErrTaskCantRemove {
			t.Errorf("expected ErrTaskCantRemove, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("self-cancel never returned")
	}
}

func TestCancelBlockedTaskWakesWithCancelled(t *testing.T) {
	s := New(false)
	saw := make(chan bool, 1)

	id := s.Spawn(func() {
		id, _ := s.Current()
		tc, _ := s.Lookup(id)
		tc.SetCancelHook(func() {})
		s.BlockCurrent()
		saw <- tc.Cancelled()
	}, 4096)

	s.Spawn(func() {
		for i := 0; i < 5; i++ {
			s.Yield()
		}
	}, 4096)

	s.Dispatch()
	waitCond(t, time.Second, func() bool {
		tc, ok := s.Lookup(id)
		return ok && tc.State() == task.Blocked
	})

	if err := s.Cancel(id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	select {
	case cancelled := <-saw:
		if !cancelled {
			t.Error("expected task to observe Cancelled() == true")
		}
	case <-time.After(time.Second):
		t.Fatal("blocked task never woke after cancel")
	}
}

func TestIDRefFindsTaskByEntry(t *testing.T) {
	s := New(false)
	block := make(chan struct{})
	entry := func() { <-block }
	id := s.Spawn(entry, 4096)
	s.Dispatch()

	got, ok := s.IDRef(entry)
	if !ok || got != id {
		t.Errorf("expected IDRef to find %d, got %d (ok=%v)", id, got, ok)
	}
	close(block)
}

func TestNoRunnableTaskPanicsWhenEmpty(t *testing.T) {
	s := New(false)
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic with no tasks")
		}
		if _, ok := r.(NoRunnableTaskPanic); !ok {
			t.Errorf("expected NoRunnableTaskPanic, got %T", r)
		}
	}()
	s.Dispatch()
}

func TestTickAdvancesCounterAndDrivesTimerDriver(t *testing.T) {
	s := New(true)
	var fired []uint32
	var mu sync.Mutex
	s.SetTimerDriver(timerDriverFunc(func(now uint32) {
		mu.Lock()
		fired = append(fired, now)
		mu.Unlock()
	}))

	s.Tick()
	s.Tick()

	if s.Ticks() != 2 {
		t.Errorf("expected tick count 2, got %d", s.Ticks())
	}
	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 2 || fired[0] != 1 || fired[1] != 2 {
		t.Errorf("expected timer driver called with [1 2], got %v", fired)
	}
}

type timerDriverFunc func(now uint32)

func (f timerDriverFunc) Tick(now uint32) { f(now) }
