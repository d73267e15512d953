package sched

import (
	"testing"
	"time"

	"github.com/linmogo/linmo/internal/task"
)

func spawnBlocked(s *Scheduler, release chan struct{}) uint16 {
	return s.Spawn(func() {
		<-release
	}, 4096)
}

func TestEDFExampleHookPicksEarliestDeadline(t *testing.T) {
	s := New(false)
	s.SetRTHook(NewEDFExampleHook(s))

	release := make(chan struct{})
	defer close(release)

	idLate := spawnBlocked(s, release)
	idEarly := spawnBlocked(s, release)
	idMid := spawnBlocked(s, release)

	for _, id := range []uint16{idLate, idEarly, idMid} {
		if err := s.Priority(id, task.Realtime); err != nil {
			t.Fatalf("Priority: %v", err)
		}
	}
	if err := s.RTPriority(idLate, uint32(300)); err != nil {
		t.Fatalf("RTPriority: %v", err)
	}
	if err := s.RTPriority(idEarly, uint32(100)); err != nil {
		t.Fatalf("RTPriority: %v", err)
	}
	if err := s.RTPriority(idMid, uint32(200)); err != nil {
		t.Fatalf("RTPriority: %v", err)
	}

	s.mu.Lock()
	picked, ok := s.pickNextLocked()
	s.mu.Unlock()

	if !ok {
		t.Fatal("expected the hook to pick a task")
	}
	if picked.ID() != idEarly {
		t.Fatalf("expected earliest-deadline task %d, got %d", idEarly, picked.ID())
	}
}

func TestEDFExampleHookFallsBackWithoutDeadlines(t *testing.T) {
	s := New(false)
	s.SetRTHook(NewEDFExampleHook(s))

	release := make(chan struct{})
	defer close(release)

	id := s.Spawn(func() { <-release }, 4096)

	waitCond(t, time.Second, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		t, ok := s.tasks[id]
		return ok && t.State() == task.Ready
	})

	s.mu.Lock()
	picked, ok := s.pickNextLocked()
	s.mu.Unlock()

	if !ok || picked.ID() != id {
		t.Fatalf("expected fallback bitmap scan to pick the Normal task %d, got %v ok=%v", id, picked, ok)
	}
}
