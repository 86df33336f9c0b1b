package sim

import (
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/ckpt-sim/sim/trace"
)

// Counters accumulates decision statistics over a run. They are returned in
// the Result and reset by every RunSchedule.
type Counters struct {
	Admissions           int `json:"admissions"`
	Completions          int `json:"completions"`
	Preemptions          int `json:"preemptions"`
	Kills                int `json:"kills"`
	Resumes              int `json:"resumes"`
	Migrations           int `json:"migrations"`
	Checkpoints          int `json:"checkpoints"`
	Errors               int `json:"errors"`
	CheckpointRecoveries int `json:"checkpoint_recoveries"`
	Restarts             int `json:"restarts"`
}

// KillRatio is the fraction of preemptions resolved by killing the incoming
// job; zero when nothing was preempted.
func (c Counters) KillRatio() float64 {
	if c.Preemptions == 0 {
		return 0
	}
	return float64(c.Kills) / float64(c.Preemptions)
}

// GlobalScheduler owns the machine pool and the pending queue and drives the
// tick loop by invoking its SchedulingPolicy.
//
// Every admitted job is reachable from exactly one of: the pending queue,
// a machine's current slot, or the finished set.
type GlobalScheduler struct {
	config   EngineConfig
	policy   SchedulingPolicy
	machines []*Machine

	clock    int64
	queue    *PendingQueue
	finished []*Job
	jobs     map[int]*Job // every admitted job by ID
	counters Counters

	trace    *trace.SimulationTrace
	tickHook func(*GlobalScheduler)
}

// NewGlobalScheduler validates the configuration and builds the machine pool.
func NewGlobalScheduler(config EngineConfig, policy SchedulingPolicy) (*GlobalScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if policy == nil {
		return nil, fmt.Errorf("%w: scheduling policy must not be nil", ErrInvalidConfig)
	}
	if cp, ok := policy.(*ComposedPolicy); ok {
		if err := cp.Validate(); err != nil {
			return nil, err
		}
	}
	s := &GlobalScheduler{
		config: config,
		policy: policy,
		queue:  &PendingQueue{},
		jobs:   make(map[int]*Job),
	}
	s.machines = make([]*Machine, config.NumMachines)
	for i := range s.machines {
		s.machines[i] = NewMachine(i, config.CheckpointInterval, policy)
	}
	return s, nil
}

// SetTrace enables decision recording. A nil trace disables it.
func (s *GlobalScheduler) SetTrace(t *trace.SimulationTrace) {
	s.trace = t
}

// Trace returns the decision trace, or nil when tracing is off.
func (s *GlobalScheduler) Trace() *trace.SimulationTrace {
	return s.trace
}

// SetTickHook registers fn to observe the scheduler after every tick.
func (s *GlobalScheduler) SetTickHook(fn func(*GlobalScheduler)) {
	s.tickHook = fn
}

func (s *GlobalScheduler) Config() EngineConfig     { return s.config }
func (s *GlobalScheduler) Policy() SchedulingPolicy { return s.policy }
func (s *GlobalScheduler) Machines() []*Machine     { return s.machines }
func (s *GlobalScheduler) Queue() *PendingQueue     { return s.queue }
func (s *GlobalScheduler) Finished() []*Job         { return s.finished }
func (s *GlobalScheduler) Counters() *Counters      { return &s.counters }

// Clock returns the current tick.
func (s *GlobalScheduler) Clock() int64 { return s.clock }

// Now returns the current tick as simulated time.
func (s *GlobalScheduler) Now() float64 { return float64(s.clock) }

// Machine resolves a machine ID. Jobs refer to machines by ID only; this is
// the lookup table for those references. Returns nil for unknown IDs.
func (s *GlobalScheduler) Machine(id int) *Machine {
	if id < 0 || id >= len(s.machines) {
		return nil
	}
	return s.machines[id]
}

// Job resolves an admitted job by ID.
func (s *GlobalScheduler) Job(id int) *Job {
	return s.jobs[id]
}

// Place assigns job to m and stamps its first-schedule time on first placement.
func (s *GlobalScheduler) Place(m *Machine, job *Job) {
	now := s.Now()
	m.assign(job, now)
	if job.FirstScheduleTime < 0 {
		job.FirstScheduleTime = now
		job.LastCheckpointTime = now
	}
	logrus.Debugf("[tick %07d] place job %d on machine %d", s.clock, job.ID, m.ID)
}

// Evict removes m's job and records m as its last machine. The job's stored
// checkpoint stays on m.
func (s *GlobalScheduler) Evict(m *Machine) *Job {
	job := m.release()
	if job == nil {
		return nil
	}
	job.LastRunMachine = m.ID
	s.counters.Preemptions++
	return job
}

// Requeue returns a preempted job to the pending queue in comparator order.
func (s *GlobalScheduler) Requeue(job *Job) {
	s.queue.InsertSorted(job, s.policy)
}

// Finish moves m's completed job to the finished set. at is the simulated
// time the job completed. Final waiting time is everything in the job's
// sojourn that was not active running.
func (s *GlobalScheduler) Finish(m *Machine, at float64) {
	job := m.release()
	if job == nil {
		return
	}
	job.State = JobCompleted
	job.CompletionTime = at
	job.WaitingTime = math.Max(0, at-float64(job.ReleaseTime)-job.ActiveTime)
	s.DropCheckpoints(job.ID)
	s.finished = append(s.finished, job)
	s.counters.Completions++
	logrus.Debugf("[tick %07d] job %d completed on machine %d at %.4f", s.clock, job.ID, m.ID, at)
}

// DropCheckpoints discards the job's stored checkpoint on every machine.
func (s *GlobalScheduler) DropCheckpoints(jobID int) {
	for _, m := range s.machines {
		m.DropCheckpoint(jobID)
	}
}

// RecordPreemption appends a preemption decision to the trace, if enabled.
func (s *GlobalScheduler) RecordPreemption(rec trace.PreemptionRecord) {
	if s.trace != nil {
		s.trace.RecordPreemption(rec)
	}
}

// RecordRecovery appends a recovery decision to the trace, if enabled.
func (s *GlobalScheduler) RecordRecovery(rec trace.RecoveryRecord) {
	if s.trace != nil {
		s.trace.RecordRecovery(rec)
	}
}

func (s *GlobalScheduler) reset() {
	s.clock = 0
	s.queue.reset()
	s.finished = nil
	s.jobs = make(map[int]*Job)
	s.counters = Counters{}
	for _, m := range s.machines {
		m.reset()
	}
}

func (s *GlobalScheduler) allFree() bool {
	for _, m := range s.machines {
		if !m.IsFree() {
			return false
		}
	}
	return true
}

// RunSchedule simulates the job stream to completion. Each tick admits the
// jobs released at that tick, reschedules, then advances every machine. The
// run ends once the clock has passed the last release, every machine is
// free and the queue is empty, or when the configured horizon is reached.
// jobsByRelease is never modified.
func (s *GlobalScheduler) RunSchedule(jobsByRelease map[int64][]JobSpec) (*Result, error) {
	if err := ValidateJobs(jobsByRelease); err != nil {
		return nil, err
	}
	s.reset()

	lastRelease := int64(-1)
	total := 0
	for release, specs := range jobsByRelease {
		lastRelease = max(lastRelease, release)
		total += len(specs)
	}
	logrus.Infof("Starting schedule: %d jobs, %d machines, last release at tick %d", total, len(s.machines), lastRelease)

	drained := true
	for {
		for _, spec := range jobsByRelease[s.clock] {
			job := NewJob(spec)
			s.jobs[job.ID] = job
			s.counters.Admissions++
			s.policy.Admit(s, job)
		}

		s.policy.Reschedule(s)
		s.policy.AdvanceTick(s)

		if s.config.CheckInvariants {
			if err := s.CheckConservation(); err != nil {
				return nil, err
			}
		}
		if s.tickHook != nil {
			s.tickHook(s)
		}

		if s.clock > lastRelease && s.allFree() && s.queue.Len() == 0 {
			break
		}
		if s.config.Horizon > 0 && s.clock >= s.config.Horizon {
			drained = false
			logrus.Warnf("[tick %07d] horizon reached with %d pending and %d finished of %d jobs",
				s.clock, s.queue.Len(), len(s.finished), len(s.jobs))
			break
		}
		s.clock++
	}

	logrus.Infof("[tick %07d] Schedule ended: %d/%d jobs completed", s.clock, len(s.finished), len(s.jobs))
	return s.Result(drained), nil
}

// CheckConservation verifies that every admitted job is owned by exactly one
// of the pending queue, a machine, or the finished set.
func (s *GlobalScheduler) CheckConservation() error {
	owners := make(map[int]int, len(s.jobs))
	for _, j := range s.queue.Items() {
		owners[j.ID]++
	}
	for _, m := range s.machines {
		if j := m.Job(); j != nil {
			owners[j.ID]++
		}
	}
	for _, j := range s.finished {
		owners[j.ID]++
	}

	ids := make([]int, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if n := owners[id]; n != 1 {
			return fmt.Errorf("%w: tick %d: job %d has %d owners", ErrInvariantViolated, s.clock, id, n)
		}
	}
	if len(owners) != len(s.jobs) {
		return fmt.Errorf("%w: tick %d: %d owned jobs but %d admitted", ErrInvariantViolated, s.clock, len(owners), len(s.jobs))
	}
	return nil
}
