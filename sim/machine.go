package sim

import (
	"fmt"
	"math"
)

// Epsilon absorbs floating-point accumulation error in lock-time and
// per-tick budget accounting. Every "is the lock released" decision goes
// through lockReleased.
const Epsilon = 1e-6

func lockReleased(lock float64) bool {
	return lock < Epsilon
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// Machine is a single execution slot. It holds at most one job, a local
// checkpoint store keyed by job ID, and a lock timer for overhead
// (checkpointing, migration, recovery) during which its job cannot progress.
type Machine struct {
	ID int

	job         *Job
	checkpoints map[int]float64 // job ID -> captured remaining runtime
	lockTime    float64

	checkpointTime     float64 // next scheduled checkpoint
	checkpointInterval float64

	ActiveTime       float64 // time spent running a job or its overhead
	WaitingTime      float64 // time spent idle
	CheckpointsTaken int

	policy SchedulingPolicy
}

// NewMachine creates an idle machine whose first checkpoint is due after one
// interval.
func NewMachine(id int, checkpointInterval float64, policy SchedulingPolicy) *Machine {
	return &Machine{
		ID:                 id,
		checkpoints:        make(map[int]float64),
		checkpointTime:     checkpointInterval,
		checkpointInterval: checkpointInterval,
		policy:             policy,
	}
}

func (m *Machine) reset() {
	m.job = nil
	m.checkpoints = make(map[int]float64)
	m.lockTime = 0
	m.checkpointTime = m.checkpointInterval
	m.ActiveTime = 0
	m.WaitingTime = 0
	m.CheckpointsTaken = 0
}

// Job returns the machine's current job, or nil.
func (m *Machine) Job() *Job {
	return m.job
}

// Progress applies up to amount units of time through the configured
// progression rule and updates the active/waiting accumulators.
func (m *Machine) Progress(now, amount float64) float64 {
	active, consumed := m.policy.ProgressMachine(m, now, amount)
	if active {
		m.ActiveTime += consumed
	} else {
		m.WaitingTime += consumed
	}
	return consumed
}

// AddLockTime extends the overhead timer.
func (m *Machine) AddLockTime(t float64) {
	if t <= 0 {
		return
	}
	m.lockTime += t
}

// LockTime returns the remaining overhead.
func (m *Machine) LockTime() float64 {
	return m.lockTime
}

// ConsumeLock removes up to amount from the lock timer and returns the
// portion consumed. A remainder within Epsilon of amount releases the lock.
func (m *Machine) ConsumeLock(amount float64) float64 {
	if amount >= m.lockTime || nearlyEqual(m.lockTime, amount) {
		used := m.lockTime
		m.lockTime = 0
		return used
	}
	m.lockTime -= amount
	return amount
}

// ClampLock zeroes a lock that has drifted below Epsilon.
func (m *Machine) ClampLock() {
	if lockReleased(m.lockTime) {
		m.lockTime = 0
	}
}

// IsLocked reports whether overhead is still pending.
func (m *Machine) IsLocked() bool {
	return !lockReleased(m.lockTime)
}

// IsFree is true iff the machine holds no job and its lock is released.
func (m *Machine) IsFree() bool {
	return m.job == nil && lockReleased(m.lockTime)
}

// TriggerCheckpoint runs the checkpoint-capture rule. Only captures that
// stored something are counted.
func (m *Machine) TriggerCheckpoint() {
	if m.policy.CaptureCheckpoint(m) {
		m.CheckpointsTaken++
	}
}

// StoreCheckpoint records a recovery point for a job.
func (m *Machine) StoreCheckpoint(jobID int, remaining float64) {
	m.checkpoints[jobID] = remaining
}

// Checkpoint returns the stored recovery point for a job.
func (m *Machine) Checkpoint(jobID int) (float64, bool) {
	v, ok := m.checkpoints[jobID]
	return v, ok
}

// DropCheckpoint discards any stored recovery point for a job.
func (m *Machine) DropCheckpoint(jobID int) {
	delete(m.checkpoints, jobID)
}

// CheckpointCount returns the number of stored recovery points.
func (m *Machine) CheckpointCount() int {
	return len(m.checkpoints)
}

// MigrateCheckpoint moves the stored entry for jobID to target. The entry is
// moved, never copied. Returns whether an entry existed.
func (m *Machine) MigrateCheckpoint(target *Machine, jobID int) bool {
	v, ok := m.checkpoints[jobID]
	if !ok {
		return false
	}
	if target == m {
		return true
	}
	delete(m.checkpoints, jobID)
	target.checkpoints[jobID] = v
	return true
}

// CheckpointTime returns the next scheduled checkpoint.
func (m *Machine) CheckpointTime() float64 {
	return m.checkpointTime
}

// CheckpointInterval returns the fixed checkpoint period.
func (m *Machine) CheckpointInterval() float64 {
	return m.checkpointInterval
}

// ProgressCheckpointTime advances the schedule by one interval.
func (m *Machine) ProgressCheckpointTime() {
	m.checkpointTime += m.checkpointInterval
}

func (m *Machine) assign(job *Job, now float64) {
	if m.job != nil {
		panic(fmt.Sprintf("machine %d: assign job %d while holding job %d", m.ID, job.ID, m.job.ID))
	}
	m.job = job
	job.State = JobRunning
	for m.checkpointTime <= now {
		m.ProgressCheckpointTime()
	}
}

func (m *Machine) release() *Job {
	job := m.job
	m.job = nil
	return job
}

func (m *Machine) String() string {
	jobID := -1
	if m.job != nil {
		jobID = m.job.ID
	}
	return fmt.Sprintf("Machine: (ID: %d, Job: %d, Lock: %.3f, NextCheckpoint: %.3f)", m.ID, jobID, m.lockTime, m.checkpointTime)
}
