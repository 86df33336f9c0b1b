package sim

import (
	"errors"
	"fmt"
	"math"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrInvalidConfig marks a configuration rejected at setup.
	ErrInvalidConfig = errors.New("invalid configuration")
	// ErrInvalidJob marks a malformed job stream.
	ErrInvalidJob = errors.New("invalid job")
	// ErrInvariantViolated marks a conservation failure detected mid-run.
	ErrInvariantViolated = errors.New("invariant violated")
)

// OverheadConfig groups the fixed overhead constants, in ticks. Overhead is
// modeled purely as machine lock time.
type OverheadConfig struct {
	Checkpoint float64 // charged each time a machine captures a checkpoint
	Migration  float64 // charged when a checkpoint moves to another machine
	Recovery   float64 // charged when a failed job is recovered
}

// Validate rejects negative overheads.
func (o OverheadConfig) Validate() error {
	var result *multierror.Error
	if o.Checkpoint < 0 || math.IsNaN(o.Checkpoint) {
		result = multierror.Append(result, fmt.Errorf("%w: checkpoint overhead must be non-negative, got %v", ErrInvalidConfig, o.Checkpoint))
	}
	if o.Migration < 0 || math.IsNaN(o.Migration) {
		result = multierror.Append(result, fmt.Errorf("%w: migration overhead must be non-negative, got %v", ErrInvalidConfig, o.Migration))
	}
	if o.Recovery < 0 || math.IsNaN(o.Recovery) {
		result = multierror.Append(result, fmt.Errorf("%w: recovery overhead must be non-negative, got %v", ErrInvalidConfig, o.Recovery))
	}
	return result.ErrorOrNil()
}

// EngineConfig groups the parameters of a GlobalScheduler.
type EngineConfig struct {
	NumMachines        int            // fixed machine pool size (must be > 0)
	CheckpointInterval float64        // ticks between checkpoints (must be > 0)
	Overheads          OverheadConfig // lock-time overhead constants
	Horizon            int64          // last tick to simulate; 0 = run until drained
	CheckInvariants    bool           // verify conservation after every tick
}

// Validate checks every field and reports all problems at once.
func (c EngineConfig) Validate() error {
	var result *multierror.Error
	if c.NumMachines <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: machine count must be positive, got %d", ErrInvalidConfig, c.NumMachines))
	}
	if !(c.CheckpointInterval > 0) || math.IsInf(c.CheckpointInterval, 0) {
		result = multierror.Append(result, fmt.Errorf("%w: checkpoint interval must be positive and finite, got %v", ErrInvalidConfig, c.CheckpointInterval))
	}
	if c.Horizon < 0 {
		result = multierror.Append(result, fmt.Errorf("%w: horizon must be non-negative, got %d", ErrInvalidConfig, c.Horizon))
	}
	if err := c.Overheads.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

// OptimalCheckpointInterval is the classical first-order optimum
// sqrt(2 * mtbf * checkpointOverhead). Returns 0 when either input is
// non-positive, which callers must replace with an explicit interval.
func OptimalCheckpointInterval(mtbf, checkpointOverhead float64) float64 {
	if mtbf <= 0 || checkpointOverhead <= 0 {
		return 0
	}
	return math.Sqrt(2 * mtbf * checkpointOverhead)
}

// ValidateJobs checks a job stream before a run: positive runtimes,
// non-negative release times matching their map key, and unique IDs.
func ValidateJobs(jobsByRelease map[int64][]JobSpec) error {
	var result *multierror.Error
	seen := make(map[int]int64)
	for release, specs := range jobsByRelease {
		if release < 0 {
			result = multierror.Append(result, fmt.Errorf("%w: release tick %d is negative", ErrInvalidJob, release))
		}
		for _, spec := range specs {
			if !(spec.Runtime > 0) || math.IsInf(spec.Runtime, 0) {
				result = multierror.Append(result, fmt.Errorf("%w: job %d runtime must be positive and finite, got %v", ErrInvalidJob, spec.ID, spec.Runtime))
			}
			if spec.ReleaseTime != release {
				result = multierror.Append(result, fmt.Errorf("%w: job %d listed under tick %d but releases at %d", ErrInvalidJob, spec.ID, release, spec.ReleaseTime))
			}
			if prev, dup := seen[spec.ID]; dup {
				result = multierror.Append(result, fmt.Errorf("%w: job id %d appears at ticks %d and %d", ErrInvalidJob, spec.ID, prev, release))
			}
			seen[spec.ID] = release
		}
	}
	return result.ErrorOrNil()
}
