package scheduler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quietbell/reminderd/internal/models"
	"github.com/quietbell/reminderd/internal/scheduler"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

// fakeBackend records arm/disarm calls and can be told to refuse
// arming, globally or per reminder id.
type fakeBackend struct {
	mu      sync.Mutex
	armed   map[string]time.Time
	arms    int
	disarms int
	failAll error
	failIDs map[string]error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{armed: make(map[string]time.Time), failIDs: make(map[string]error)}
}

func (f *fakeBackend) Arm(ctx context.Context, id string, fireAt time.Time, r *models.Reminder) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	if err, ok := f.failIDs[id]; ok {
		return err
	}
	f.armed[id] = fireAt
	f.arms++
	return nil
}

func (f *fakeBackend) Disarm(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.armed, id)
	f.disarms++
	return nil
}

func (f *fakeBackend) armedAt(id string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	at, ok := f.armed[id]
	return at, ok
}

func (f *fakeBackend) armedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.armed)
}

// MockClock controls time for deterministic testing.
type MockClock struct {
	CurrentTime time.Time
}

func (m MockClock) Now() time.Time {
	return m.CurrentTime
}

func testReminder(id string, at time.Time) *models.Reminder {
	return &models.Reminder{
		ID:          id,
		OwnerID:     "1001",
		Title:       "stand-up",
		TriggerTime: at,
		RepeatMode:  models.RepeatNone,
		Active:      true,
		AlarmStyle:  true,
	}
}

// -----------------------------------------------------------------------------
// Test Cases
// -----------------------------------------------------------------------------

func TestSchedule_ArmsBothPaths(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	primary, backup := newFakeBackend(), newFakeBackend()
	s := scheduler.New(primary, backup, MockClock{CurrentTime: now})

	fireAt := now.Add(time.Hour)
	degraded, err := s.Schedule(context.Background(), testReminder("r1", fireAt))

	require.NoError(t, err)
	assert.False(t, degraded)

	pAt, ok := primary.armedAt("r1")
	require.True(t, ok)
	bAt, ok := backup.armedAt("r1")
	require.True(t, ok)
	assert.Equal(t, fireAt, pAt)
	assert.Equal(t, fireAt, bAt, "both paths target the same fire time")
	assert.True(t, s.Armed("r1"))
}

func TestSchedule_RejectsInactiveAndPastDue(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	primary, backup := newFakeBackend(), newFakeBackend()
	s := scheduler.New(primary, backup, MockClock{CurrentTime: now})

	inactive := testReminder("r1", now.Add(time.Hour))
	inactive.Active = false
	_, err := s.Schedule(context.Background(), inactive)
	assert.ErrorIs(t, err, scheduler.ErrInactive)

	_, err = s.Schedule(context.Background(), testReminder("r2", now.Add(-time.Minute)))
	assert.ErrorIs(t, err, scheduler.ErrPastDue)

	_, err = s.Schedule(context.Background(), testReminder("r3", now))
	assert.ErrorIs(t, err, scheduler.ErrPastDue, "exactly-now is not strictly in the future")

	assert.Zero(t, primary.armedCount())
	assert.Zero(t, backup.armedCount())
}

func TestCancel_IsIdempotent(t *testing.T) {
	now := time.Now()
	primary, backup := newFakeBackend(), newFakeBackend()
	s := scheduler.New(primary, backup, MockClock{CurrentTime: now})

	for i := 0; i < 3; i++ {
		assert.NoError(t, s.Cancel(context.Background(), "ghost"))
	}

	_, err := s.Schedule(context.Background(), testReminder("r1", now.Add(time.Hour)))
	require.NoError(t, err)
	require.NoError(t, s.Cancel(context.Background(), "r1"))
	require.NoError(t, s.Cancel(context.Background(), "r1"))

	assert.False(t, s.Armed("r1"))
	assert.Zero(t, primary.armedCount())
	assert.Zero(t, backup.armedCount())
}

func TestSchedule_LastWriteWins(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	primary, backup := newFakeBackend(), newFakeBackend()
	s := scheduler.New(primary, backup, MockClock{CurrentTime: now})

	first := now.Add(time.Hour)
	second := now.Add(2 * time.Hour)
	_, err := s.Schedule(context.Background(), testReminder("r1", first))
	require.NoError(t, err)
	_, err = s.Schedule(context.Background(), testReminder("r1", second))
	require.NoError(t, err)

	assert.Equal(t, 1, primary.armedCount(), "at most one outstanding pair per id")
	assert.Equal(t, 1, backup.armedCount())
	assert.Equal(t, 1, s.ArmedCount())

	pAt, _ := primary.armedAt("r1")
	assert.Equal(t, second, pAt, "re-schedule replaced the earlier pair")
}

func TestSchedule_DegradedWhenExactPathDenied(t *testing.T) {
	now := time.Now()
	primary, backup := newFakeBackend(), newFakeBackend()
	primary.failAll = scheduler.ErrBackendUnavailable
	s := scheduler.New(primary, backup, MockClock{CurrentTime: now})

	degraded, err := s.Schedule(context.Background(), testReminder("r1", now.Add(time.Hour)))

	require.NoError(t, err, "a denied exact path is a warning, not an error")
	assert.True(t, degraded)
	assert.True(t, s.Armed("r1"))
	_, ok := backup.armedAt("r1")
	assert.True(t, ok, "the durable path alone still satisfies the invariant")
}

func TestSchedule_ErrorWhenBothPathsRefuse(t *testing.T) {
	now := time.Now()
	primary, backup := newFakeBackend(), newFakeBackend()
	primary.failAll = scheduler.ErrBackendUnavailable
	backup.failAll = scheduler.ErrBackendUnavailable
	s := scheduler.New(primary, backup, MockClock{CurrentTime: now})

	_, err := s.Schedule(context.Background(), testReminder("r1", now.Add(time.Hour)))

	assert.Error(t, err, "total inability to arm either path is escalated")
	assert.False(t, s.Armed("r1"))
}

func TestScheduleAllActive_PartitionsAndTolerates(t *testing.T) {
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	primary, backup := newFakeBackend(), newFakeBackend()
	primary.failIDs["broken"] = scheduler.ErrBackendUnavailable
	backup.failIDs["broken"] = scheduler.ErrBackendUnavailable
	s := scheduler.New(primary, backup, MockClock{CurrentTime: now})

	inactive := testReminder("off", now.Add(time.Hour))
	inactive.Active = false

	batch := []*models.Reminder{
		testReminder("ok1", now.Add(time.Hour)),
		testReminder("late", now.Add(-time.Hour)),
		inactive,
		testReminder("broken", now.Add(time.Hour)),
		testReminder("ok2", now.Add(2 * time.Hour)),
	}

	res := s.ScheduleAllActive(context.Background(), batch)

	assert.Equal(t, 2, res.Scheduled)
	assert.Equal(t, []string{"broken"}, res.Failed, "one failure does not abort the batch")
	require.Len(t, res.Missed, 1)
	assert.Equal(t, "late", res.Missed[0].ID, "past-due reminders are surfaced, not armed silently")
	assert.False(t, s.Armed("off"), "inactive reminders get no timers")
	assert.True(t, s.Armed("ok1"))
	assert.True(t, s.Armed("ok2"))
}
