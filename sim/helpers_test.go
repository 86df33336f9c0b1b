package sim

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// testConfig returns a single-machine engine with no overheads and a
// checkpoint interval long enough to never fire in short tests.
func testConfig() EngineConfig {
	return EngineConfig{NumMachines: 1, CheckpointInterval: 1000, CheckInvariants: true}
}

func newTestPolicy(params PolicyParams) *ComposedPolicy {
	return NewPriorityCheckpointPolicy(params, NewPartitionedRNG(NewSimulationKey(1)))
}

func newTestScheduler(t *testing.T, cfg EngineConfig, p SchedulingPolicy) *GlobalScheduler {
	t.Helper()
	s, err := NewGlobalScheduler(cfg, p)
	require.NoError(t, err)
	return s
}

// stream groups specs by release tick.
func stream(specs ...JobSpec) map[int64][]JobSpec {
	jobs := make(map[int64][]JobSpec)
	for _, s := range specs {
		jobs[s.ReleaseTime] = append(jobs[s.ReleaseTime], s)
	}
	return jobs
}

func jobStats(t *testing.T, r *Result, id int) JobStats {
	t.Helper()
	for _, j := range r.Jobs {
		if j.ID == id {
			return j
		}
	}
	t.Fatalf("job %d not in result", id)
	return JobStats{}
}

// scriptedFailure fails exactly once per listed tick and charges the whole
// attempted slice as lost work.
type scriptedFailure struct {
	failAt map[float64]bool
}

func (f *scriptedFailure) Fails(_ *Job, now float64) bool {
	if f.failAt[now] {
		delete(f.failAt, now)
		return true
	}
	return false
}

func (f *scriptedFailure) ErrorLocation(_ *Job, _ float64, amount float64) float64 {
	return amount
}

// alwaysFail fails every slice, losing all of it.
type alwaysFail struct{}

func (alwaysFail) Fails(_ *Job, _ float64) bool { return true }

func (alwaysFail) ErrorLocation(_ *Job, _ float64, amount float64) float64 { return amount }
