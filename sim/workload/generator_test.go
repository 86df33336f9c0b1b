package workload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inference-sim/ckpt-sim/sim"
)

func TestGenerate_Uniform_RespectsRanges(t *testing.T) {
	// GIVEN the default spec with a wider release range
	spec := DefaultSpec()
	spec.NumJobs = 200
	spec.MaxRelease = 10

	// WHEN generated
	jobs, err := Generate(spec)
	require.NoError(t, err)

	// THEN every job is in range, keyed by its release, and IDs are 0..n-1
	flat := Flatten(jobs)
	require.Len(t, flat, 200)
	seen := make(map[int]bool)
	for release, specs := range jobs {
		for _, j := range specs {
			assert.Equal(t, release, j.ReleaseTime)
			assert.GreaterOrEqual(t, j.Priority, 1)
			assert.LessOrEqual(t, j.Priority, spec.MaxPriority)
			assert.GreaterOrEqual(t, j.Runtime, 1.0)
			assert.LessOrEqual(t, j.Runtime, float64(spec.MaxRuntime))
			assert.GreaterOrEqual(t, j.ReleaseTime, int64(0))
			assert.LessOrEqual(t, j.ReleaseTime, spec.MaxRelease)
			seen[j.ID] = true
		}
	}
	for id := 0; id < 200; id++ {
		assert.True(t, seen[id], "missing job %d", id)
	}
	assert.NoError(t, sim.ValidateJobs(jobs))
}

func TestGenerate_Uniform_InitialFractionAtTickZero(t *testing.T) {
	// GIVEN half of 50 jobs released at tick 0
	spec := DefaultSpec()
	spec.MaxRelease = 5

	// WHEN generated
	jobs, err := Generate(spec)
	require.NoError(t, err)

	// THEN exactly the first 25 IDs release at tick 0 and the rest later
	for _, j := range jobs[0] {
		assert.Less(t, j.ID, 25)
	}
	assert.Len(t, jobs[0], 25)
}

func TestGenerate_SameSeed_SameStream(t *testing.T) {
	// GIVEN two generations with the same seed
	spec := DefaultSpec()
	spec.RuntimeDist = RuntimeExponential
	spec.MeanRuntime = 4
	a, err := Generate(spec)
	require.NoError(t, err)
	b, err := Generate(spec)
	require.NoError(t, err)

	// THEN the streams are identical
	assert.Equal(t, Flatten(a), Flatten(b))

	// WHEN the seed changes THEN the stream differs
	spec.Seed++
	c, err := Generate(spec)
	require.NoError(t, err)
	assert.NotEqual(t, Flatten(a), Flatten(c))
}

func TestGenerate_Poisson_ReleasesAreContiguousFromZero(t *testing.T) {
	// GIVEN Poisson arrivals at 3 jobs per tick
	spec := DefaultSpec()
	spec.NumJobs = 100
	spec.Arrival = ArrivalPoisson
	spec.Rate = 3

	// WHEN generated
	jobs, err := Generate(spec)
	require.NoError(t, err)

	// THEN releases are non-decreasing in ID order and all jobs are present
	flat := Flatten(jobs)
	require.Len(t, flat, 100)
	byID := make([]int64, 100)
	for _, j := range flat {
		byID[j.ID] = j.ReleaseTime
	}
	for id := 1; id < 100; id++ {
		assert.GreaterOrEqual(t, byID[id], byID[id-1])
	}
}

func TestGenerate_ZeroJobs_EmptyStream(t *testing.T) {
	spec := DefaultSpec()
	spec.NumJobs = 0
	jobs, err := Generate(spec)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}

func TestGenerate_InvalidSpec_ReturnsError(t *testing.T) {
	spec := DefaultSpec()
	spec.MaxPriority = 0
	_, err := Generate(spec)
	assert.Error(t, err)
}
