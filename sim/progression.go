package sim

import "github.com/sirupsen/logrus"

// LockingProgression is the reference per-machine physics. Overhead is lock
// time: while a machine is locked its job accrues waiting time, and only the
// part of a slice left after the lock is handed to the job.
//
// Every checkpoint boundary the clock has passed is honored before progress,
// so a machine that was locked through several boundaries captures each one.
type LockingProgression struct {
	CheckpointOverhead float64
}

func (p *LockingProgression) ProgressMachine(m *Machine, now, amount float64) (bool, float64) {
	m.ClampLock()
	if m.IsFree() {
		return false, amount
	}
	job := m.Job()
	if job == nil {
		// overhead outlived its job; burn it down
		return true, m.ConsumeLock(amount)
	}

	for now >= m.CheckpointTime() {
		job.LastCheckpointTime = m.CheckpointTime()
		m.AddLockTime(p.CheckpointOverhead)
		m.TriggerCheckpoint()
		m.ProgressCheckpointTime()
	}

	lock := m.LockTime()
	if amount > lock && !nearlyEqual(amount, lock) {
		job.AddWaitingTime(lock)
		ran := job.Progress(now, amount-lock, m.policy)
		m.ConsumeLock(lock)
		return true, lock + ran
	}

	used := m.ConsumeLock(amount)
	job.AddWaitingTime(used)
	return true, used
}

// RuntimeCheckpointer stores the current job's remaining runtime under its ID.
type RuntimeCheckpointer struct{}

func (RuntimeCheckpointer) CaptureCheckpoint(m *Machine) bool {
	job := m.Job()
	if job == nil {
		return false
	}
	m.StoreCheckpoint(job.ID, job.Runtime())
	logrus.Debugf("[machine %d] checkpoint job %d at remaining=%.4f", m.ID, job.ID, job.Runtime())
	return true
}

// NoopCheckpointer captures nothing; failed jobs restart from scratch.
type NoopCheckpointer struct{}

func (NoopCheckpointer) CaptureCheckpoint(_ *Machine) bool { return false }
