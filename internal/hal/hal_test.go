package hal

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestCoreTicksAndStops(t *testing.T) {
	c := NewCore(5 * time.Millisecond)
	var count atomic.Int32
	c.Start(func(tick uint32) { count.Add(1) })
	time.Sleep(40 * time.Millisecond)
	c.Stop()

	if count.Load() < 3 {
		t.Errorf("expected several ticks to fire, got %d", count.Load())
	}
	if c.Ticks() == 0 {
		t.Error("expected Ticks() to be nonzero after running")
	}
}

func TestWaitNextTickUnblocksOnTick(t *testing.T) {
	c := NewCore(5 * time.Millisecond)
	c.Start(func(uint32) {})
	defer c.Stop()

	done := make(chan struct{})
	go func() {
		c.WaitNextTick()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("WaitNextTick did not unblock within 200ms")
	}
}

func TestContextSaveRestoreHandoff(t *testing.T) {
	ctx := NewContext()
	woke := make(chan struct{})
	go func() {
		ctx.Save()
		close(woke)
	}()

	time.Sleep(10 * time.Millisecond)
	select {
	case <-woke:
		t.Fatal("expected Save to still be blocked before Restore")
	default:
	}

	ctx.Restore()
	select {
	case <-woke:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected Restore to unblock Save")
	}
}

func TestContextRestoreBeforeSave(t *testing.T) {
	ctx := NewContext()
	ctx.Restore() // arrives before any goroutine calls Save

	done := make(chan struct{})
	go func() {
		ctx.Save() // should return immediately
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected Save to return immediately when Restore preceded it")
	}
}
