package timer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateStartsDisabled(t *testing.T) {
	w := New()
	id, err := w.Create(func(uint32, any) {}, 10, nil)
	require.NoError(t, err)

	st, err := w.State(id)
	require.NoError(t, err)
	assert.Equal(t, Disabled, st)
}

func TestOneShotFiresOnceAtDeadline(t *testing.T) {
	w := New()
	fired := 0
	id, err := w.Create(func(uint32, any) { fired++ }, 10, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(id, OneShot, 0))

	w.Tick(5)
	assert.Equal(t, 0, fired)

	w.Tick(10)
	assert.Equal(t, 1, fired)

	st, _ := w.State(id)
	assert.Equal(t, Disabled, st)

	w.Tick(20)
	assert.Equal(t, 1, fired, "one-shot must not refire")
}

func TestAutoReloadFiresRepeatedlyAndStaysRunning(t *testing.T) {
	w := New()
	fired := 0
	id, err := w.Create(func(uint32, any) { fired++ }, 10, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(id, AutoReload, 0))

	for now := uint32(1); now <= 35; now++ {
		w.Tick(now)
	}
	assert.Equal(t, 3, fired, "expected fires at ticks 10, 20, 30")

	st, err := w.State(id)
	require.NoError(t, err)
	assert.Equal(t, Running, st, "auto-reload timers stay armed after firing")
}

func TestAutoReloadDeadlinesStayOnGrid(t *testing.T) {
	w := New()
	fired := 0
	id, err := w.Create(func(uint32, any) { fired++ }, 10, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(id, AutoReload, 0))

	for now := uint32(1); now <= 41; now++ {
		w.Tick(now)
	}
	assert.Equal(t, 4, fired, "expected fires at 10, 20, 30, 40")
}

func TestCancelDisarmsWithoutDestroying(t *testing.T) {
	w := New()
	fired := 0
	id, err := w.Create(func(uint32, any) { fired++ }, 10, nil)
	require.NoError(t, err)
	require.NoError(t, w.Start(id, OneShot, 0))
	require.NoError(t, w.Cancel(id))

	w.Tick(50)
	assert.Equal(t, 0, fired)

	st, err := w.State(id)
	require.NoError(t, err)
	assert.Equal(t, Disabled, st)
	assert.Equal(t, 1, w.Count(), "cancel must not remove the record from the all-timers list")
}

func TestDestroyReturnsRecordToPoolAndRemovesFromAllTimers(t *testing.T) {
	w := New()
	id, err := w.Create(func(uint32, any) {}, 10, nil)
	require.NoError(t, err)
	require.NoError(t, w.Destroy(id))

	_, err = w.State(id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, w.Count())
}

func TestCreateFailsWhenPoolExhausted(t *testing.T) {
	w := New()
	for i := 0; i < 16; i++ {
		_, err := w.Create(func(uint32, any) {}, 10, nil)
		require.NoError(t, err)
	}
	_, err := w.Create(func(uint32, any) {}, 10, nil)
	assert.ErrorIs(t, err, ErrPoolExhausted)
}

func TestEqualDeadlinesFireInInsertionOrder(t *testing.T) {
	w := New()
	var order []int

	idA, err := w.Create(func(uint32, any) { order = append(order, 1) }, 10, nil)
	require.NoError(t, err)
	idB, err := w.Create(func(uint32, any) { order = append(order, 2) }, 10, nil)
	require.NoError(t, err)

	require.NoError(t, w.Start(idA, OneShot, 0))
	require.NoError(t, w.Start(idB, OneShot, 0))

	w.Tick(10)
	assert.Equal(t, []int{1, 2}, order)
}

func TestTickBatchSizeCapsExpiryPerCall(t *testing.T) {
	w := New()
	fired := 0
	for i := 0; i < 6; i++ {
		id, err := w.Create(func(uint32, any) { fired++ }, 10, nil)
		require.NoError(t, err)
		require.NoError(t, w.Start(id, OneShot, 0))
	}

	w.Tick(10)
	assert.Equal(t, 4, fired, "batch size should cap expiry to 4 per tick call")

	w.Tick(10)
	assert.Equal(t, 6, fired)
}
