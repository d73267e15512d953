// Package hal simulates the hardware abstraction layer the kernel spec
// assumes (tick ISR, context save/restore, CPU idle, panic halt). There is
// no real single-core RV32I target under this Go runtime, so the tick
// source is a time.Ticker and "context switch" is goroutine park/resume
// over a pair of channels rather than a register-save trampoline — the
// same baton-passing idea used by toy G/P/M schedulers to hand exactly one
// runnable unit of work the CPU at a time.
package hal

import (
	"sync"
	"time"

	"github.com/linmogo/linmo/internal/logging"
)

// Context is the simulated saved CPU context of hal_context_init /
// hal_context_save / hal_context_restore. Save blocks the calling
// goroutine until Restore is called for the same Context, exactly mirroring
// a save/longjmp pair: the task "disappears" from the CPU at Save and
// reappears at the matching Restore.
type Context struct {
	resume chan struct{}
}

// NewContext builds a Context parked (not yet runnable) until the first
// Restore — the initial state after hal_context_init.
func NewContext() *Context {
	return &Context{resume: make(chan struct{}, 1)}
}

// Save parks the calling goroutine until the next Restore.
func (c *Context) Save() { <-c.resume }

// Restore resumes the goroutine blocked in Save (or makes the next Save an
// immediate no-op, if Restore arrives first — the buffered channel makes
// the hand-off race-free in either order).
func (c *Context) Restore() {
	select {
	case c.resume <- struct{}{}:
	default:
	}
}

// Core drives the periodic tick ISR and exposes the low-power idle /
// panic-halt HAL primitives. One Core exists per kernel instance.
type Core struct {
	period time.Duration
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup

	mu   sync.Mutex
	tick uint32
	gen  chan struct{} // closed and replaced every tick, used by WaitNextTick

	log *logging.Logger
}

// NewCore builds a Core ticking at period (typically 1/F_TIMER).
func NewCore(period time.Duration) *Core {
	return &Core{
		period: period,
		stop:   make(chan struct{}),
		gen:    make(chan struct{}),
		log:    logging.Default(),
	}
}

// Start begins the tick ISR, invoking onTick once per period until Stop is
// called. onTick must not block — it plays the role of the scheduler's
// tick handler, which the spec requires to run to completion before the
// next tick.
func (c *Core) Start(onTick func(tick uint32)) {
	c.ticker = time.NewTicker(c.period)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := PinToCPU0(); err != nil {
			c.log.Warn("failed to pin tick ISR to CPU0", "error", err)
		}
		for {
			select {
			case <-c.stop:
				return
			case <-c.ticker.C:
				c.mu.Lock()
				c.tick++
				tick := c.tick
				oldGen := c.gen
				c.gen = make(chan struct{})
				c.mu.Unlock()
				close(oldGen)
				onTick(tick)
			}
		}
	}()
}

// Stop halts the tick ISR and waits for the driver goroutine to exit.
func (c *Core) Stop() {
	close(c.stop)
	if c.ticker != nil {
		c.ticker.Stop()
	}
	c.wg.Wait()
}

// Ticks returns the current tick count.
func (c *Core) Ticks() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tick
}

// WaitNextTick blocks until at least one more tick has elapsed. This is the
// simulated hal_cpu_idle() used by wfi().
func (c *Core) WaitNextTick() {
	c.mu.Lock()
	gen := c.gen
	c.mu.Unlock()
	<-gen
}

// Panic performs the HAL's halt-on-panic contract: log the fatal condition
// and re-panic so the process crashes, standing in for hal_panic()'s
// permanent halt of the core.
func (c *Core) Panic(v any) {
	c.log.Error("kernel panic", "detail", v)
	panic(v)
}
