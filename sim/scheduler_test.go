package sim

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Scenario: one job on one machine with no overheads and no failures.
func TestRunSchedule_SingleJob(t *testing.T) {
	// GIVEN one machine and a runtime-5 job released at tick 0
	s := newTestScheduler(t, testConfig(), newTestPolicy(PolicyParams{}))

	// WHEN run
	res, err := s.RunSchedule(stream(JobSpec{ID: 0, Priority: 1, Runtime: 5, ReleaseTime: 0}))
	require.NoError(t, err)

	// THEN the job completes at 5 with no waiting
	js := jobStats(t, res, 0)
	assert.True(t, js.Completed)
	assert.Equal(t, 5.0, js.CompletionTime)
	assert.Equal(t, 0.0, js.WaitingTime)
	assert.Equal(t, 5.0, js.ActiveTime)
	assert.Equal(t, 0.0, js.FirstScheduleTime)
	assert.Equal(t, int64(4), res.Clock)
	assert.Equal(t, 5.0, res.Makespan)
	assert.True(t, res.Drained)
}

// Scenario: a high-priority arrival preempts a long job and the incoming job
// is killed because it has no progress to lose.
func TestRunSchedule_PriorityPreemption(t *testing.T) {
	// GIVEN one machine, migration overhead 0.3
	cfg := testConfig()
	cfg.Overheads.Migration = 0.3
	s := newTestScheduler(t, cfg, newTestPolicy(PolicyParams{Overheads: cfg.Overheads}))

	// WHEN a priority-5 job arrives at tick 1 while a priority-1 job runs
	res, err := s.RunSchedule(stream(
		JobSpec{ID: 0, Priority: 1, Runtime: 10, ReleaseTime: 0},
		JobSpec{ID: 1, Priority: 5, Runtime: 2, ReleaseTime: 1},
	))
	require.NoError(t, err)

	// THEN the arrival takes the machine once and finishes first
	assert.Equal(t, 1, res.Counters.Preemptions)
	assert.Equal(t, 1, res.Counters.Kills)
	assert.Equal(t, 0, res.Counters.Resumes)

	hi := jobStats(t, res, 1)
	assert.Equal(t, 3.0, hi.CompletionTime)
	assert.Equal(t, 0.0, hi.WaitingTime)

	// THEN the evicted job resumes where it left off and waited two ticks
	lo := jobStats(t, res, 0)
	assert.Equal(t, 12.0, lo.CompletionTime)
	assert.Equal(t, 10.0, lo.ActiveTime)
	assert.Equal(t, 2.0, lo.WaitingTime)
	assert.Equal(t, 12.0, res.Makespan)
}

// Scenario: with no failures, every checkpoint captures the remaining runtime
// the job had at the end of the previous tick.
func TestRunSchedule_CheckpointCapturesPreviousTickRuntime(t *testing.T) {
	// GIVEN interval 2 and checkpoint overhead 0.1
	cfg := EngineConfig{NumMachines: 1, CheckpointInterval: 2, Overheads: OverheadConfig{Checkpoint: 0.1}, CheckInvariants: true}
	s := newTestScheduler(t, cfg, newTestPolicy(PolicyParams{Overheads: cfg.Overheads}))

	runtimes := map[int64]float64{}
	checkpoints := map[int64]float64{}
	s.SetTickHook(func(s *GlobalScheduler) {
		j := s.Job(0)
		runtimes[s.Clock()] = j.Runtime()
		if cp, ok := s.Machine(0).Checkpoint(0); ok {
			checkpoints[s.Clock()] = cp
		}
	})

	// WHEN a runtime-9 job runs
	res, err := s.RunSchedule(stream(JobSpec{ID: 0, Priority: 1, Runtime: 9, ReleaseTime: 0}))
	require.NoError(t, err)

	// THEN each checkpoint boundary stored the previous tick's remaining runtime
	for _, tick := range []int64{2, 4, 6} {
		require.Contains(t, checkpoints, tick)
		assert.InDelta(t, runtimes[tick-1], checkpoints[tick], 1e-9, "tick %d", tick)
	}
	// THEN the finished job's checkpoint entry was dropped
	assert.Equal(t, 0, s.Machine(0).CheckpointCount())
	assert.Equal(t, 4, res.Machines[0].CheckpointsTaken)
	assert.Equal(t, 4, res.Counters.Checkpoints)
	// nine units of work plus four 0.1 checkpoint locks
	assert.InDelta(t, 9.4, jobStats(t, res, 0).CompletionTime, 1e-9)
}

func TestNewGlobalScheduler_InvalidConfig_ReportsAllErrors(t *testing.T) {
	// GIVEN a config with three bad fields
	cfg := EngineConfig{NumMachines: 0, CheckpointInterval: -1, Overheads: OverheadConfig{Checkpoint: -0.5}}

	// WHEN building a scheduler
	_, err := NewGlobalScheduler(cfg, newTestPolicy(PolicyParams{}))

	// THEN every problem is reported and wraps ErrInvalidConfig
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
	assert.Contains(t, err.Error(), "machine count")
	assert.Contains(t, err.Error(), "checkpoint interval")
	assert.Contains(t, err.Error(), "checkpoint overhead")
}

func TestRunSchedule_InvalidJobs(t *testing.T) {
	tests := []struct {
		name string
		jobs map[int64][]JobSpec
	}{
		{"zero runtime", stream(JobSpec{ID: 0, Priority: 1, Runtime: 0})},
		{"negative runtime", stream(JobSpec{ID: 0, Priority: 1, Runtime: -2})},
		{"duplicate id", stream(JobSpec{ID: 3, Priority: 1, Runtime: 1}, JobSpec{ID: 3, Priority: 2, Runtime: 1, ReleaseTime: 2})},
		{"release key mismatch", map[int64][]JobSpec{1: {{ID: 0, Priority: 1, Runtime: 1, ReleaseTime: 4}}}},
		{"negative release", stream(JobSpec{ID: 0, Priority: 1, Runtime: 1, ReleaseTime: -1})},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestScheduler(t, testConfig(), newTestPolicy(PolicyParams{}))
			_, err := s.RunSchedule(tc.jobs)
			assert.ErrorIs(t, err, ErrInvalidJob)
		})
	}
}

func TestRunSchedule_EmptyStream(t *testing.T) {
	s := newTestScheduler(t, testConfig(), newTestPolicy(PolicyParams{}))

	res, err := s.RunSchedule(nil)

	require.NoError(t, err)
	assert.True(t, res.Drained)
	assert.Equal(t, 1.0, res.Makespan)
	assert.Empty(t, res.Jobs)
}

func TestRunSchedule_LateRelease_MachineIdlesUntilRelease(t *testing.T) {
	// GIVEN a single job released at tick 5
	s := newTestScheduler(t, testConfig(), newTestPolicy(PolicyParams{}))

	// WHEN run
	res, err := s.RunSchedule(stream(JobSpec{ID: 0, Priority: 1, Runtime: 2, ReleaseTime: 5}))
	require.NoError(t, err)

	// THEN it starts at its release tick and the machine idled before that
	js := jobStats(t, res, 0)
	assert.Equal(t, 5.0, js.FirstScheduleTime)
	assert.Equal(t, 7.0, js.CompletionTime)
	assert.Equal(t, 0.0, js.WaitingTime)
	assert.InDelta(t, 5.0, res.Machines[0].WaitingTime, 1e-9)
	assert.InDelta(t, 2.0, res.Machines[0].ActiveTime, 1e-9)
}

func TestRunSchedule_Horizon_StopsUndrained(t *testing.T) {
	cfg := testConfig()
	cfg.Horizon = 3
	s := newTestScheduler(t, cfg, newTestPolicy(PolicyParams{}))

	res, err := s.RunSchedule(stream(JobSpec{ID: 0, Priority: 1, Runtime: 10, ReleaseTime: 0}))

	require.NoError(t, err)
	assert.False(t, res.Drained)
	assert.Equal(t, int64(3), res.Clock)
	assert.False(t, jobStats(t, res, 0).Completed)
	assert.Equal(t, 0, res.Summarize().CompletedJobs)
}

func TestRunSchedule_DoesNotModifyInput(t *testing.T) {
	jobs := stream(
		JobSpec{ID: 0, Priority: 1, Runtime: 4, ReleaseTime: 0},
		JobSpec{ID: 1, Priority: 3, Runtime: 2, ReleaseTime: 1},
	)
	snapshot := make(map[int64][]JobSpec, len(jobs))
	for k, v := range jobs {
		snapshot[k] = append([]JobSpec(nil), v...)
	}

	s := newTestScheduler(t, testConfig(), newTestPolicy(PolicyParams{}))
	_, err := s.RunSchedule(jobs)

	require.NoError(t, err)
	assert.Equal(t, snapshot, jobs)
}

func TestRunSchedule_RerunWithoutFailures_IsIdentical(t *testing.T) {
	cfg := testConfig()
	cfg.NumMachines = 2
	s := newTestScheduler(t, cfg, newTestPolicy(PolicyParams{}))
	jobs := randomStream(rand.New(rand.NewSource(5)), 15, 6)

	first, err := s.RunSchedule(jobs)
	require.NoError(t, err)
	second, err := s.RunSchedule(jobs)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestRunSchedule_SameSeed_SameResult(t *testing.T) {
	run := func() *Result {
		params := PolicyParams{MTBF: 3, Overheads: OverheadConfig{Checkpoint: 0.1, Migration: 0.3, Recovery: 0.3}}
		cfg := EngineConfig{NumMachines: 3, CheckpointInterval: OptimalCheckpointInterval(3, 0.1), Overheads: params.Overheads, CheckInvariants: true}
		p := NewPolicy(PolicyPriorityCheckpoint, params, NewPartitionedRNG(NewSimulationKey(42)))
		s := newTestScheduler(t, cfg, p)
		res, err := s.RunSchedule(randomStream(rand.New(rand.NewSource(1)), 30, 10))
		require.NoError(t, err)
		return res
	}

	assert.Equal(t, run(), run())
}

// Conservation and non-negativity hold after every tick of a run with
// failures, preemptions, and migrations.
func TestRunSchedule_ConservationAndNonNegativity(t *testing.T) {
	for _, name := range ValidPolicyNames() {
		t.Run(name, func(t *testing.T) {
			// GIVEN three machines, failures, and every overhead enabled
			params := PolicyParams{MTBF: 5, Overheads: OverheadConfig{Checkpoint: 0.1, Migration: 0.3, Recovery: 0.3}}
			cfg := EngineConfig{
				NumMachines:        3,
				CheckpointInterval: OptimalCheckpointInterval(params.MTBF, params.Overheads.Checkpoint),
				Overheads:          params.Overheads,
				Horizon:            100000,
				CheckInvariants:    true,
			}
			s := newTestScheduler(t, cfg, NewPolicy(name, params, NewPartitionedRNG(NewSimulationKey(9))))
			const n = 40
			jobs := randomStream(rand.New(rand.NewSource(9)), n, 15)

			s.SetTickHook(func(s *GlobalScheduler) {
				require.NoError(t, s.CheckConservation())
				for id := range n {
					j := s.Job(id)
					if j == nil {
						continue
					}
					require.GreaterOrEqual(t, j.Runtime(), 0.0, "job %d at tick %d", id, s.Clock())
					require.LessOrEqual(t, j.Runtime(), j.OrigRuntime, "job %d at tick %d", id, s.Clock())
					require.GreaterOrEqual(t, j.WaitingTime, 0.0)
					require.GreaterOrEqual(t, j.ActiveTime, 0.0)
				}
				for _, m := range s.Machines() {
					require.GreaterOrEqual(t, m.LockTime(), 0.0, "machine %d at tick %d", m.ID, s.Clock())
				}
			})

			// WHEN run to completion
			res, err := s.RunSchedule(jobs)
			require.NoError(t, err)

			// THEN every job finished no earlier than release plus its runtime
			assert.True(t, res.Drained)
			require.Len(t, res.Jobs, n)
			assert.Equal(t, n, res.Counters.Completions)
			for _, j := range res.Jobs {
				assert.True(t, j.Completed, "job %d", j.ID)
				assert.GreaterOrEqual(t, j.WaitingTime, 0.0)
				assert.GreaterOrEqual(t, j.ActiveTime, j.OrigRuntime-1e-9)
				assert.GreaterOrEqual(t, j.CompletionTime, float64(j.ReleaseTime)+j.OrigRuntime-1e-9)
			}
			assert.Equal(t, res.Counters.Preemptions, res.Counters.Kills+res.Counters.Resumes)
			assert.Equal(t, res.Counters.Errors, res.Counters.CheckpointRecoveries+res.Counters.Restarts)

			// THEN every machine accounted for every simulated tick
			for _, m := range res.Machines {
				assert.InDelta(t, res.Makespan, m.ActiveTime+m.WaitingTime, 1e-3, "machine %d", m.ID)
			}
		})
	}
}

func TestRunSchedule_RandomPolicy_NeverPreempts(t *testing.T) {
	params := PolicyParams{Overheads: OverheadConfig{Migration: 0.3}}
	cfg := EngineConfig{NumMachines: 2, CheckpointInterval: 1, Overheads: params.Overheads, CheckInvariants: true}
	s := newTestScheduler(t, cfg, NewPolicy(PolicyRandom, params, NewPartitionedRNG(NewSimulationKey(4))))

	res, err := s.RunSchedule(randomStream(rand.New(rand.NewSource(4)), 20, 5))

	require.NoError(t, err)
	assert.True(t, res.Drained)
	assert.Equal(t, 0, res.Counters.Preemptions)
	assert.Equal(t, 0, res.Counters.Migrations)
	assert.Equal(t, 0, res.Counters.Checkpoints)
	for _, m := range s.Machines() {
		assert.Equal(t, 0, m.CheckpointCount())
	}
}

func TestCheckConservation_DetectsDoubleOwnership(t *testing.T) {
	// GIVEN a job that is both pending and finished
	s := newTestScheduler(t, testConfig(), newTestPolicy(PolicyParams{}))
	j := NewJob(JobSpec{ID: 7, Priority: 1, Runtime: 1})
	s.jobs[j.ID] = j
	s.queue.Enqueue(j)
	s.finished = append(s.finished, j)

	// WHEN checked
	err := s.CheckConservation()

	// THEN the violation is reported
	assert.ErrorIs(t, err, ErrInvariantViolated)
	assert.Contains(t, err.Error(), "job 7 has 2 owners")
}

func TestCheckConservation_DetectsLostJob(t *testing.T) {
	s := newTestScheduler(t, testConfig(), newTestPolicy(PolicyParams{}))
	s.jobs[1] = NewJob(JobSpec{ID: 1, Priority: 1, Runtime: 1})

	assert.ErrorIs(t, s.CheckConservation(), ErrInvariantViolated)
}

func TestCounters_KillRatio(t *testing.T) {
	assert.Equal(t, 0.0, Counters{}.KillRatio())
	assert.Equal(t, 0.25, Counters{Preemptions: 4, Kills: 1}.KillRatio())
}

// randomStream draws n jobs with priorities in [1, 5], runtimes in [1, 5]
// and releases in [0, maxRelease].
func randomStream(r *rand.Rand, n int, maxRelease int64) map[int64][]JobSpec {
	specs := make([]JobSpec, n)
	for i := range specs {
		specs[i] = JobSpec{
			ID:          i,
			Priority:    1 + r.Intn(5),
			Runtime:     math.Round(1 + 4*r.Float64()),
			ReleaseTime: r.Int63n(maxRelease + 1),
		}
	}
	return stream(specs...)
}
