package sim

import (
	"github.com/sirupsen/logrus"

	"github.com/inference-sim/ckpt-sim/sim/trace"
)

// ShouldKill is the kill-versus-resume tie policy: kill iff the progress that
// would be lost does not exceed the expected cost of relying on the checkpoint.
// Equal costs kill.
func ShouldKill(killCost, checkpointCost float64) bool {
	return killCost <= checkpointCost
}

// CheckpointCost is the expected cost of resuming job on a pool of n
// machines instead of restarting it: the work since its last checkpoint plus
// the migration overhead weighted by the chance the target differs from the
// source.
func CheckpointCost(job *Job, now, migrationOverhead float64, n int) float64 {
	return (now - job.LastCheckpointTime) + migrationOverhead*float64(n-1)/float64(n)
}

// KillCost is the progress a restart would discard.
func KillCost(job *Job) float64 {
	return job.OrigRuntime - job.Runtime()
}

// PreemptiveReschedule is the reference placement rule. While jobs are
// pending it fills free unlocked machines with the front of the queue; when
// none is free it preempts the unlocked machine running the lowest-ranked job
// if the front of the queue outranks it. The incoming job is then either
// restarted or resumed from its checkpoint, whichever is cheaper. A restart
// discards every stored checkpoint of the job; a resume without a checkpoint
// keeps the job's in-memory progress and its last checkpoint time.
type PreemptiveReschedule struct {
	MigrationOverhead float64
}

func (r *PreemptiveReschedule) Reschedule(s *GlobalScheduler) {
	q := s.Queue()
	cmp := s.Policy()
	now := s.Now()

	for q.Len() > 0 {
		var target *Machine
		var victim *Job
		foundUnlocked := false
		for _, m := range s.Machines() {
			if m.IsLocked() {
				continue
			}
			foundUnlocked = true
			if m.Job() == nil {
				target, victim = m, nil
				break
			}
			if victim == nil || Less(cmp, m.Job(), victim) {
				target, victim = m, m.Job()
			}
		}
		if !foundUnlocked {
			return
		}

		if victim == nil {
			job := q.PopFront()
			s.Place(target, job)
			job.LastCheckpointTime = now
			job.LastRunMachine = target.ID
			continue
		}

		if !Outranks(cmp, q.Peek(), victim) {
			return
		}

		evicted := s.Evict(target)
		incoming := q.PopFront()
		s.Requeue(evicted)
		s.Place(target, incoming)
		r.killOrResume(s, target, incoming, evicted)
	}
}

func (r *PreemptiveReschedule) killOrResume(s *GlobalScheduler, target *Machine, job, evicted *Job) {
	now := s.Now()
	counters := s.Counters()
	rec := trace.PreemptionRecord{
		Clock:           s.Clock(),
		MachineID:       target.ID,
		IncomingJobID:   job.ID,
		EvictedJobID:    evicted.ID,
		SourceMachineID: job.LastRunMachine,
		KillCost:        KillCost(job),
		CheckpointCost:  CheckpointCost(job, now, r.MigrationOverhead, len(s.Machines())),
	}

	if ShouldKill(rec.KillCost, rec.CheckpointCost) {
		job.Restart()
		job.LastCheckpointTime = now
		s.DropCheckpoints(job.ID)
		counters.Kills++
		rec.Decision = trace.DecisionKill
	} else {
		if src := s.Machine(job.LastRunMachine); src != nil && src != target {
			if src.MigrateCheckpoint(target, job.ID) {
				target.AddLockTime(r.MigrationOverhead)
				counters.Migrations++
				rec.Migrated = true
			}
		}
		if point, ok := target.Checkpoint(job.ID); ok {
			job.RevertToCheckpoint(point)
			job.LastCheckpointTime = now
		}
		counters.Resumes++
		rec.Decision = trace.DecisionResume
	}
	rec.RestoredRuntime = job.Runtime()

	job.LastRunMachine = target.ID
	s.RecordPreemption(rec)

	logrus.Debugf("[tick %07d] job %d preempts job %d on machine %d: %s (kill=%.3f, checkpoint=%.3f)",
		s.Clock(), job.ID, evicted.ID, target.ID, rec.Decision, rec.KillCost, rec.CheckpointCost)
}

// FreeSlotReschedule places jobs from the front of the queue onto free
// machines and never preempts.
type FreeSlotReschedule struct{}

func (FreeSlotReschedule) Reschedule(s *GlobalScheduler) {
	q := s.Queue()
	now := s.Now()
	for _, m := range s.Machines() {
		if q.Len() == 0 {
			return
		}
		if !m.IsFree() {
			continue
		}
		m.ClampLock()
		job := q.PopFront()
		s.Place(m, job)
		job.LastCheckpointTime = now
		job.LastRunMachine = m.ID
	}
}
