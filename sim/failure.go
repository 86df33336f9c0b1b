package sim

import (
	"math"
	"math/rand"
)

// ExponentialFailureModel draws failures from an exponential reliability
// curve over the time elapsed since the job's last checkpoint:
//
//	P(error) = 1 - exp(-Lambda * (now - lastCheckpoint))
//
// compared against a uniform draw. Lambda == 0 never fails.
// A failing slice of length amount ran for a uniform portion of it before the
// failure manifested; slices shorter than Epsilon are charged in full.
type ExponentialFailureModel struct {
	Lambda float64

	failureRNG  *rand.Rand
	locationRNG *rand.Rand
}

// NewExponentialFailureModel derives Lambda = 1/mtbf. mtbf <= 0 disables failures.
func NewExponentialFailureModel(mtbf float64, rng *PartitionedRNG) *ExponentialFailureModel {
	lambda := 0.0
	if mtbf > 0 {
		lambda = 1 / mtbf
	}
	return &ExponentialFailureModel{
		Lambda:      lambda,
		failureRNG:  rng.ForSubsystem(SubsystemFailure),
		locationRNG: rng.ForSubsystem(SubsystemErrorLocation),
	}
}

// FailureProbability returns the probability that the job has failed by now.
func (f *ExponentialFailureModel) FailureProbability(job *Job, now float64) float64 {
	elapsed := now - job.LastCheckpointTime
	if f.Lambda == 0 || elapsed <= 0 {
		return 0
	}
	return 1 - math.Exp(-f.Lambda*elapsed)
}

func (f *ExponentialFailureModel) Fails(job *Job, now float64) bool {
	if f.Lambda == 0 {
		return false
	}
	return f.FailureProbability(job, now) > f.failureRNG.Float64()
}

func (f *ExponentialFailureModel) ErrorLocation(_ *Job, _ float64, amount float64) float64 {
	if amount < Epsilon {
		return amount
	}
	return f.locationRNG.Float64() * amount
}

// NoFailures is a FailureModel under which jobs never fail.
type NoFailures struct{}

func (NoFailures) Fails(_ *Job, _ float64) bool { return false }

func (NoFailures) ErrorLocation(_ *Job, _ float64, amount float64) float64 { return amount }
