package scheduler_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietbell/reminderd/internal/clock"
	"github.com/quietbell/reminderd/internal/models"
	"github.com/quietbell/reminderd/internal/scheduler"
)

func TestExactBackend_FiresOnceAtTarget(t *testing.T) {
	var fires atomic.Int32
	var gotFireAt atomic.Value

	b := scheduler.NewExactBackend(func(r *models.Reminder, fireAt time.Time) {
		fires.Add(1)
		gotFireAt.Store(fireAt)
	}, clock.RealClock{})

	fireAt := time.Now().Add(20 * time.Millisecond)
	r := testReminder("r1", fireAt)
	require.NoError(t, b.Arm(context.Background(), "r1", fireAt, r))
	assert.True(t, b.Armed("r1"))

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, int32(1), fires.Load())
	assert.Equal(t, fireAt, gotFireAt.Load(), "the armed target time travels with the fire")
	assert.False(t, b.Armed("r1"), "a fired timer is no longer outstanding")
}

func TestExactBackend_DisarmPreventsFire(t *testing.T) {
	var fires atomic.Int32
	b := scheduler.NewExactBackend(func(r *models.Reminder, fireAt time.Time) {
		fires.Add(1)
	}, clock.RealClock{})

	fireAt := time.Now().Add(30 * time.Millisecond)
	require.NoError(t, b.Arm(context.Background(), "r1", fireAt, testReminder("r1", fireAt)))
	require.NoError(t, b.Disarm(context.Background(), "r1"))

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, fires.Load())
}

func TestExactBackend_ReArmReplacesTimer(t *testing.T) {
	var fires atomic.Int32
	b := scheduler.NewExactBackend(func(r *models.Reminder, fireAt time.Time) {
		fires.Add(1)
	}, clock.RealClock{})

	far := time.Now().Add(time.Hour)
	near := time.Now().Add(20 * time.Millisecond)
	require.NoError(t, b.Arm(context.Background(), "r1", far, testReminder("r1", far)))
	require.NoError(t, b.Arm(context.Background(), "r1", near, testReminder("r1", near)))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), fires.Load(), "the replaced timer must not also fire")
}

func TestExactBackend_StopDeniesArming(t *testing.T) {
	var fires atomic.Int32
	b := scheduler.NewExactBackend(func(r *models.Reminder, fireAt time.Time) {
		fires.Add(1)
	}, clock.RealClock{})

	fireAt := time.Now().Add(20 * time.Millisecond)
	require.NoError(t, b.Arm(context.Background(), "r1", fireAt, testReminder("r1", fireAt)))

	b.Stop()
	assert.ErrorIs(t, b.Arm(context.Background(), "r2", fireAt, testReminder("r2", fireAt)),
		scheduler.ErrBackendUnavailable)

	time.Sleep(80 * time.Millisecond)
	assert.Zero(t, fires.Load(), "stop drops already-armed timers too")
}
