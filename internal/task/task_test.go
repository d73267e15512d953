package task

import "testing"

func TestNewDefaultsToNormalStopped(t *testing.T) {
	tc := New(1, func() {}, 4096)
	if tc.State() != Stopped {
		t.Errorf("expected Stopped, got %s", tc.State())
	}
	if tc.Priority() != Normal {
		t.Errorf("expected Normal priority, got %s", tc.Priority())
	}
	if tc.Slice() != Normal.TimeSlice() {
		t.Errorf("expected initial slice %d, got %d", Normal.TimeSlice(), tc.Slice())
	}
}

func TestPriorityLevelsAndSlices(t *testing.T) {
	want := map[Priority]int{
		Crit: 1, Realtime: 2, High: 3, Above: 4, Normal: 5, Below: 7, Low: 10, Idle: 15,
	}
	for p, slice := range want {
		if p.TimeSlice() != slice {
			t.Errorf("%s: expected time slice %d, got %d", p, slice, p.TimeSlice())
		}
		if p.Level() != int(p) {
			t.Errorf("%s: expected level %d, got %d", p, int(p), p.Level())
		}
	}
}

func TestPriorityValid(t *testing.T) {
	if !Normal.Valid() {
		t.Error("expected Normal to be valid")
	}
	if Priority(8).Valid() {
		t.Error("expected level 8 to be invalid")
	}
	if Priority(-1).Valid() {
		t.Error("expected negative level to be invalid")
	}
}

func TestDecSliceAndDelay(t *testing.T) {
	tc := New(2, func() {}, 4096)
	tc.SetSlice(1)
	if got := tc.DecSlice(); got != 0 {
		t.Errorf("expected slice to reach 0, got %d", got)
	}

	tc.SetDelay(2)
	if got := tc.DecDelay(); got != 1 {
		t.Errorf("expected delay 1, got %d", got)
	}
	if got := tc.DecDelay(); got != 0 {
		t.Errorf("expected delay 0, got %d", got)
	}
	if got := tc.DecDelay(); got != 0 {
		t.Errorf("expected delay to floor at 0, got %d", got)
	}
}

func TestInfoSnapshot(t *testing.T) {
	tc := New(3, func() {}, 4096)
	tc.SetState(Ready)
	info := tc.Info()
	if info.ID != 3 || info.State != Ready || info.Priority != Normal {
		t.Errorf("unexpected info snapshot: %+v", info)
	}
}

func TestSuspendResumeRoundTrip(t *testing.T) {
	tc := New(4, func() {}, 4096)
	tc.SetState(Ready)
	tc.SetPrevState(tc.State())
	tc.SetState(Suspended)

	if tc.State() != Suspended {
		t.Fatalf("expected Suspended, got %s", tc.State())
	}
	resumed := tc.PrevState()
	tc.SetState(resumed)
	if tc.State() != Ready {
		t.Errorf("expected to resume to Ready, got %s", tc.State())
	}
}
