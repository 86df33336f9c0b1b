// Package trace provides decision-trace recording for preemption and failure analysis.
// This package has no dependencies on sim/; it stores pure data types.
package trace

// Decision is the outcome of a kill-versus-resume choice.
type Decision string

const (
	// DecisionKill restarts the incoming job from scratch.
	DecisionKill Decision = "kill"
	// DecisionResume continues the incoming job from its stored checkpoint.
	DecisionResume Decision = "resume"
)

// PreemptionRecord captures a single preemption: which job displaced which,
// and how the incoming job was resumed.
type PreemptionRecord struct {
	Clock           int64
	MachineID       int
	IncomingJobID   int
	EvictedJobID    int
	SourceMachineID int // machine the incoming job last ran on; -1 if never
	KillCost        float64
	CheckpointCost  float64
	Decision        Decision
	Migrated        bool    // checkpoint moved from SourceMachineID to MachineID
	RestoredRuntime float64 // remaining runtime after the decision
}

// RecoveryRecord captures a single stochastic failure and its recovery.
type RecoveryRecord struct {
	Clock           int64
	At              float64 // simulated time the failure was detected
	MachineID       int
	JobID           int
	FromCheckpoint  bool
	RestoredRuntime float64
}
