package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMachine_FirstCheckpointAfterOneInterval(t *testing.T) {
	m := NewMachine(2, 3, newTestPolicy(PolicyParams{}))
	assert.Equal(t, 2, m.ID)
	assert.Equal(t, 3.0, m.CheckpointTime())
	assert.Equal(t, 3.0, m.CheckpointInterval())
	assert.True(t, m.IsFree())
	assert.Nil(t, m.Job())
}

func TestMachine_LockAccounting(t *testing.T) {
	m := NewMachine(0, 1, newTestPolicy(PolicyParams{}))

	// WHEN lock time is added THEN the machine is locked and not free
	m.AddLockTime(0.5)
	m.AddLockTime(-1)
	assert.True(t, m.IsLocked())
	assert.False(t, m.IsFree())
	assert.Equal(t, 0.5, m.LockTime())

	// WHEN part of it is consumed THEN only that part is returned
	assert.InDelta(t, 0.2, m.ConsumeLock(0.2), 1e-12)
	assert.InDelta(t, 0.3, m.LockTime(), 1e-12)

	// WHEN more than remains is consumed THEN only the remainder is returned
	assert.InDelta(t, 0.3, m.ConsumeLock(1), 1e-12)
	assert.Equal(t, 0.0, m.LockTime())
	assert.True(t, m.IsFree())
}

func TestMachine_LockWithinEpsilon_IsReleased(t *testing.T) {
	m := NewMachine(0, 1, newTestPolicy(PolicyParams{}))
	m.AddLockTime(0.3)

	// WHEN consumption leaves drift below Epsilon
	m.ConsumeLock(0.3 - 1e-9)

	// THEN the lock is fully released
	assert.Equal(t, 0.0, m.LockTime())
	assert.False(t, m.IsLocked())

	// THEN ClampLock zeroes tiny leftovers
	m.AddLockTime(1e-8)
	assert.False(t, m.IsLocked())
	m.ClampLock()
	assert.Equal(t, 0.0, m.LockTime())
}

func TestMachine_MigrateCheckpoint_MovesEntry(t *testing.T) {
	p := newTestPolicy(PolicyParams{})
	src := NewMachine(0, 1, p)
	dst := NewMachine(1, 1, p)
	src.StoreCheckpoint(7, 2.5)

	// WHEN migrated
	ok := src.MigrateCheckpoint(dst, 7)

	// THEN the entry exists only on the target
	require.True(t, ok)
	_, onSrc := src.Checkpoint(7)
	assert.False(t, onSrc)
	v, onDst := dst.Checkpoint(7)
	assert.True(t, onDst)
	assert.Equal(t, 2.5, v)
	assert.Equal(t, 0, src.CheckpointCount())
	assert.Equal(t, 1, dst.CheckpointCount())

	// THEN a missing entry reports false
	assert.False(t, src.MigrateCheckpoint(dst, 7))

	// THEN migrating to self keeps the entry
	assert.True(t, dst.MigrateCheckpoint(dst, 7))
	_, still := dst.Checkpoint(7)
	assert.True(t, still)
}

func TestMachine_Assign_AdvancesScheduleAndRejectsOccupied(t *testing.T) {
	m := NewMachine(0, 2, newTestPolicy(PolicyParams{}))
	j := NewJob(JobSpec{ID: 1, Runtime: 5})

	// WHEN a job is placed at tick 5 on an idle machine
	m.assign(j, 5)

	// THEN the schedule skips every boundary the idle machine missed
	assert.Equal(t, 6.0, m.CheckpointTime())
	assert.Equal(t, JobRunning, j.State)
	assert.Same(t, j, m.Job())

	// THEN a second placement panics
	assert.Panics(t, func() { m.assign(NewJob(JobSpec{ID: 2, Runtime: 1}), 5) })

	// WHEN released THEN the machine is empty again
	assert.Same(t, j, m.release())
	assert.Nil(t, m.Job())
}

func TestMachine_Progress_IdleIsWaiting(t *testing.T) {
	m := NewMachine(0, 2, newTestPolicy(PolicyParams{}))
	consumed := m.Progress(0, 1)
	assert.Equal(t, 1.0, consumed)
	assert.Equal(t, 1.0, m.WaitingTime)
	assert.Equal(t, 0.0, m.ActiveTime)
}

func TestMachine_TriggerCheckpoint_CountsAndCaptures(t *testing.T) {
	m := NewMachine(0, 2, newTestPolicy(PolicyParams{}))
	j := NewJob(JobSpec{ID: 4, Runtime: 5})
	m.assign(j, 0)
	j.Progress(0, 1.5, NoFailures{})

	m.TriggerCheckpoint()

	assert.Equal(t, 1, m.CheckpointsTaken)
	v, ok := m.Checkpoint(4)
	require.True(t, ok)
	assert.Equal(t, 3.5, v)

	m.DropCheckpoint(4)
	_, ok = m.Checkpoint(4)
	assert.False(t, ok)
}
