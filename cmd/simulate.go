package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inference-sim/ckpt-sim/sim"
	"github.com/inference-sim/ckpt-sim/sim/trace"
)

// simulate builds the named policy and scheduler for opts and runs jobs
// through it. The returned trace is nil unless level enables tracing.
func simulate(opts engineOptions, jobs map[int64][]sim.JobSpec, level trace.TraceLevel) (*sim.Result, *trace.SimulationTrace, error) {
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(opts.Seed))
	policy := sim.NewPolicy(opts.Policy, opts.Params, rng)

	s, err := sim.NewGlobalScheduler(opts.Engine, policy)
	if err != nil {
		return nil, nil, err
	}

	var tr *trace.SimulationTrace
	if cfg := (trace.TraceConfig{Level: level}); cfg.Enabled() {
		tr = trace.NewSimulationTrace(cfg)
		s.SetTrace(tr)
	}
	if logrus.IsLevelEnabled(logrus.TraceLevel) {
		s.SetTickHook(logTick)
	}

	res, err := s.RunSchedule(jobs)
	if err != nil {
		return nil, nil, err
	}
	return res, tr, nil
}

func logTick(s *sim.GlobalScheduler) {
	running := 0
	for _, m := range s.Machines() {
		if m.Job() != nil {
			running++
		}
	}
	logrus.Tracef("[tick %07d] pending=%d running=%d finished=%d", s.Clock(), s.Queue().Len(), running, len(s.Finished()))
}

func printTraceSummary(ts *trace.TraceSummary) {
	fmt.Println("=== Decision Trace Summary ===")
	fmt.Printf("Preemptions            : %d (kills=%d, resumes=%d, migrations=%d)\n",
		ts.TotalPreemptions, ts.Kills, ts.Resumes, ts.Migrations)
	fmt.Printf("Kill Ratio             : %.3f\n", ts.KillRatio)
	fmt.Printf("Mean Kill Cost         : %.3f\n", ts.MeanKillCost)
	fmt.Printf("Mean Checkpoint Cost   : %.3f\n", ts.MeanCheckpointCost)
	fmt.Printf("Recoveries             : %d (from checkpoint=%d, restarted=%d)\n",
		ts.TotalRecoveries, ts.CheckpointRecovered, ts.Restarted)
}
