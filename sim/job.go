// Defines the Job struct that models an abstract unit of preemptible work.
// Tracks remaining runtime, checkpoint bookkeeping, and wait/active statistics.

package sim

import (
	"fmt"
	"math"
)

// JobState represents the lifecycle state of a job as seen by the scheduler.
type JobState string

const (
	JobPending   JobState = "pending"
	JobRunning   JobState = "running"
	JobCompleted JobState = "completed"
)

// JobSpec is the immutable description of a job handed to the engine by a
// job-stream collaborator. The engine never mutates a JobSpec.
type JobSpec struct {
	ID          int     `yaml:"id" json:"id"`
	Priority    int     `yaml:"priority" json:"priority"`
	Runtime     float64 `yaml:"runtime" json:"runtime"`
	ReleaseTime int64   `yaml:"release" json:"release"`
}

// Job models a single job's lifecycle in the simulation.
// A job is owned by exactly one of: the pending queue, a machine's current
// slot, or the finished set.
type Job struct {
	ID          int     // Unique identifier for the job
	Priority    int     // Ordinal priority, higher = more important
	OrigRuntime float64 // Runtime the job needs from scratch
	ReleaseTime int64   // Tick at which the job becomes schedulable

	runtime float64 // Remaining runtime, in [0, OrigRuntime]
	inError bool    // Set by the failure model on the last Progress call

	LastCheckpointTime float64 // Last time the job's progress was captured or reset
	LastRunMachine     int     // ID of the machine the job last ran on (-1 if never)
	FirstScheduleTime  float64 // Time the job was first placed (-1 until placed)
	CompletionTime     float64 // Time the job's remaining runtime reached zero
	WaitingTime        float64 // Accumulated time spent not actively running
	ActiveTime         float64 // Accumulated time spent running (including lost work)
	State              JobState
}

// NewJob creates a pending job from its spec.
func NewJob(spec JobSpec) *Job {
	return &Job{
		ID:                 spec.ID,
		Priority:           spec.Priority,
		OrigRuntime:        spec.Runtime,
		ReleaseTime:        spec.ReleaseTime,
		runtime:            spec.Runtime,
		LastCheckpointTime: -1,
		LastRunMachine:     -1,
		FirstScheduleTime:  -1,
		State:              JobPending,
	}
}

// Runtime returns the job's remaining runtime.
func (j *Job) Runtime() float64 {
	return j.runtime
}

// InError reports whether the last Progress call failed.
func (j *Job) InError() bool {
	return j.inError
}

// IsComplete is true iff the remaining runtime is exactly zero.
func (j *Job) IsComplete() bool {
	return j.runtime == 0
}

// Progress advances the job by up to amount units at time now.
// The failure model is consulted first. A healthy job consumes
// min(remaining, amount) and returns it. A failing job keeps its remaining
// runtime, accrues the portion of amount that ran before the failure
// manifested as active time, and returns that portion.
func (j *Job) Progress(now, amount float64, failures FailureModel) float64 {
	j.inError = failures.Fails(j, now)
	if !j.inError {
		inc := math.Min(j.runtime, amount)
		j.runtime -= inc
		j.ActiveTime += inc
		return inc
	}
	loc := failures.ErrorLocation(j, now, amount)
	loc = math.Max(0, math.Min(loc, amount))
	j.ActiveTime += loc
	return loc
}

// Restart discards all progress.
func (j *Job) Restart() {
	j.runtime = j.OrigRuntime
	j.inError = false
}

// RevertToCheckpoint resets the remaining runtime to a captured value.
// Negative points produced by floating-point drift are clamped to zero.
func (j *Job) RevertToCheckpoint(point float64) {
	j.runtime = math.Min(math.Max(point, 0), j.OrigRuntime)
	j.inError = false
}

// AddWaitingTime accrues time the job spent held but not progressing.
func (j *Job) AddWaitingTime(t float64) {
	if t <= 0 {
		return
	}
	j.WaitingTime += t
}

// ResponseTime is completion minus release; zero for unfinished jobs.
func (j *Job) ResponseTime() float64 {
	if j.State != JobCompleted {
		return 0
	}
	return j.CompletionTime - float64(j.ReleaseTime)
}

func (j *Job) String() string {
	return fmt.Sprintf("Job: (ID: %d, Priority: %d, Runtime: %.3f/%.3f, Release: %d, State: %s)",
		j.ID, j.Priority, j.runtime, j.OrigRuntime, j.ReleaseTime, j.State)
}

// Less reports a < b under the comparator. Every relational helper below
// derives from the single three-way Compare so orderings never disagree.
func Less(c JobComparator, a, b *Job) bool {
	return c.Compare(a, b) < 0
}

// Outranks reports a > b under the comparator.
func Outranks(c JobComparator, a, b *Job) bool {
	return c.Compare(a, b) > 0
}

// Equivalent reports Compare(a, b) == 0.
func Equivalent(c JobComparator, a, b *Job) bool {
	return c.Compare(a, b) == 0
}
