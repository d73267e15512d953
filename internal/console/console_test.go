package console

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linmogo/linmo/internal/sched"
)

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met before timeout")
}

func TestBridgeDrainsQueuedLinesInOrder(t *testing.T) {
	s := sched.New(false)
	var out bytes.Buffer
	b := NewBridge(s, &out)

	done := make(chan struct{})
	s.Spawn(func() {
		b.Puts("first")
		b.Puts("second")
		close(done)
	}, 4096)

	s.Dispatch()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer task never finished")
	}

	waitUntil(t, time.Second, func() bool {
		return strings.Contains(out.String(), "second")
	})
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "first", lines[0])
	assert.Equal(t, "second", lines[1])
}

func TestBridgeFlushEntersDirectModeAndDrainsPending(t *testing.T) {
	s := sched.New(false)
	var out bytes.Buffer
	b := NewBridge(s, &out)

	done := make(chan struct{})
	s.Spawn(func() {
		b.Puts("buffered")
		close(done)
	}, 4096)
	s.Dispatch()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer task never finished")
	}

	b.Flush()
	assert.Contains(t, out.String(), "buffered")

	b.Puts("direct")
	assert.Contains(t, out.String(), "direct")

	b.AsyncResume()
}

func TestBridgeFallsThroughWhenRingIsFull(t *testing.T) {
	s := sched.New(false)
	var out bytes.Buffer
	b := NewBridge(s, &out)

	done := make(chan struct{})
	s.Spawn(func() {
		// The ring holds constants.ConsoleRingCapacity (8) entries with no
		// drain in between, so later writes must fall straight through to
		// the synchronous path rather than blocking or dropping.
		for i := 0; i < 20; i++ {
			b.Puts("line")
		}
		close(done)
	}, 4096)
	s.Dispatch()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer task never finished")
	}

	waitUntil(t, time.Second, func() bool {
		return strings.Count(out.String(), "line") == 20
	})
}

func TestBridgeTruncatesOverlongLines(t *testing.T) {
	s := sched.New(false)
	var out bytes.Buffer
	b := NewBridge(s, &out)

	long := strings.Repeat("x", 500)
	done := make(chan struct{})
	s.Spawn(func() {
		b.Puts(long)
		close(done)
	}, 4096)
	s.Dispatch()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer task never finished")
	}

	waitUntil(t, time.Second, func() bool { return out.Len() > 0 })
	got := strings.TrimRight(out.String(), "\n")
	assert.LessOrEqual(t, len(got), 128)
}
