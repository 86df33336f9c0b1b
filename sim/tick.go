package sim

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/ckpt-sim/sim/trace"
)

// FairTickAdvance moves every machine forward by exactly one tick.
//
// Inside a tick a machine's job may complete, fail, or hit a checkpoint
// boundary at a fractional offset, and that event must be resolved before the
// rest of the machine's tick is spent. Each machine therefore holds a budget
// of 1 that is drained call by call: progress is requested for the whole
// remaining budget, only the consumed part is subtracted, and the machines are
// re-sorted by remaining budget (descending, stable) between passes until
// every budget is exhausted.
type FairTickAdvance struct {
	RecoveryOverhead float64
}

type tickBudget struct {
	machine   *Machine
	remaining float64
}

func (a *FairTickAdvance) AdvanceTick(s *GlobalScheduler) {
	now := s.Now()
	budgets := make([]tickBudget, 0, len(s.Machines()))
	for _, m := range s.Machines() {
		budgets = append(budgets, tickBudget{machine: m, remaining: 1})
	}

	stalled := 0
	for hasBudget(budgets) {
		passConsumed := 0.0
		for i := range budgets {
			b := &budgets[i]
			if b.remaining <= 0 {
				continue
			}
			m := b.machine
			at := now + (1 - b.remaining)
			consumed := m.Progress(now, b.remaining)
			at += consumed

			if job := m.Job(); job != nil {
				if job.IsComplete() {
					s.Finish(m, at)
				} else if job.InError() {
					a.recover(s, m, job, at)
				}
			}

			b.remaining -= consumed
			if b.remaining < Epsilon {
				b.remaining = 0
			}
			passConsumed += consumed
		}

		if passConsumed <= 0 {
			stalled++
			if stalled > len(budgets)+1 {
				logrus.Warnf("[tick %07d] no machine made progress for %d passes; ending tick", s.Clock(), stalled)
				return
			}
		} else {
			stalled = 0
		}

		sort.SliceStable(budgets, func(i, j int) bool {
			return budgets[i].remaining > budgets[j].remaining
		})
	}
}

// recover charges the recovery overhead, then reverts the job to the
// machine's stored checkpoint or, without one, restarts it.
func (a *FairTickAdvance) recover(s *GlobalScheduler, m *Machine, job *Job, at float64) {
	counters := s.Counters()
	counters.Errors++
	m.AddLockTime(a.RecoveryOverhead)

	rec := trace.RecoveryRecord{Clock: s.Clock(), At: at, MachineID: m.ID, JobID: job.ID}
	if point, ok := m.Checkpoint(job.ID); ok {
		job.RevertToCheckpoint(point)
		counters.CheckpointRecoveries++
		rec.FromCheckpoint = true
	} else {
		job.Restart()
		counters.Restarts++
	}
	job.LastCheckpointTime = at
	rec.RestoredRuntime = job.Runtime()
	s.RecordRecovery(rec)

	logrus.Debugf("[tick %07d] job %d failed on machine %d at %.4f; restored remaining=%.4f (checkpoint=%v)",
		s.Clock(), job.ID, m.ID, at, job.Runtime(), rec.FromCheckpoint)
}

func hasBudget(budgets []tickBudget) bool {
	for _, b := range budgets {
		if b.remaining > 0 {
			return true
		}
	}
	return false
}
