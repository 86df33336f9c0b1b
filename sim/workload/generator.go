package workload

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/inference-sim/ckpt-sim/sim"
)

// Generate draws a job stream from spec, keyed by release tick. Job IDs are
// assigned 0..NumJobs-1 in generation order. The same seed always yields the
// same stream.
func Generate(spec Spec) (map[int64][]sim.JobSpec, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload spec: %w", err)
	}

	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(spec.Seed))
	seed := uint64(rng.DeriveSeed(sim.SubsystemWorkload))
	src := rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
	r := rand.New(src)

	runtimes := newRuntimeSampler(spec, src)
	releases := newReleaseSampler(spec, r, src)

	jobs := make(map[int64][]sim.JobSpec)
	for id := 0; id < spec.NumJobs; id++ {
		release := releases(id)
		jobs[release] = append(jobs[release], sim.JobSpec{
			ID:          id,
			Priority:    1 + r.IntN(spec.MaxPriority),
			Runtime:     runtimes(r),
			ReleaseTime: release,
		})
	}
	logrus.Debugf("generated %d jobs over %d release ticks (arrival=%s, runtime=%s)",
		spec.NumJobs, len(jobs), orDefault(spec.Arrival, ArrivalUniform), orDefault(spec.RuntimeDist, RuntimeUniform))
	return jobs, nil
}

func newRuntimeSampler(spec Spec, src rand.Source) func(*rand.Rand) float64 {
	if spec.RuntimeDist == RuntimeExponential {
		exp := distuv.Exponential{Rate: 1 / spec.MeanRuntime, Src: src}
		return func(*rand.Rand) float64 {
			return math.Max(1, math.Round(exp.Rand()))
		}
	}
	return func(r *rand.Rand) float64 {
		return float64(1 + r.IntN(spec.MaxRuntime))
	}
}

// newReleaseSampler returns the release tick of the id-th generated job.
// Calls must be made with increasing id.
func newReleaseSampler(spec Spec, r *rand.Rand, src rand.Source) func(id int) int64 {
	if spec.Arrival == ArrivalPoisson {
		poisson := distuv.Poisson{Lambda: spec.Rate, Src: src}
		tick, left := int64(0), int(poisson.Rand())
		return func(int) int64 {
			for left == 0 {
				tick++
				left = int(poisson.Rand())
			}
			left--
			return tick
		}
	}
	initial := int(math.Floor(float64(spec.NumJobs) * spec.InitialFraction))
	return func(id int) int64 {
		if id < initial {
			return 0
		}
		return 1 + r.Int64N(spec.MaxRelease)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
