package sim

import (
	"fmt"
	"sort"
)

// FailureModel decides whether a progressing job fails and, if so, how much
// of the attempted slice ran before the failure manifested.
type FailureModel interface {
	Fails(job *Job, now float64) bool
	ErrorLocation(job *Job, now, amount float64) float64
}

// JobComparator is a three-way total order over jobs: negative when a ranks
// below b, zero when equivalent, positive when a outranks b.
type JobComparator interface {
	Compare(a, b *Job) int
}

// MachineProgression applies amount units of time to a machine and reports
// whether that time was active and how much of it was consumed. Consumed may
// be less than amount when a sub-tick event (completion, failure) occurred.
type MachineProgression interface {
	ProgressMachine(m *Machine, now, amount float64) (active bool, consumed float64)
}

// CheckpointCapture persists whatever is needed to resume the machine's job
// and reports whether anything was stored.
type CheckpointCapture interface {
	CaptureCheckpoint(m *Machine) bool
}

// AdmissionPolicy inserts a newly released job into the pending queue.
type AdmissionPolicy interface {
	Admit(s *GlobalScheduler, job *Job)
}

// ReschedulePolicy places and preempts jobs once per tick after admission.
type ReschedulePolicy interface {
	Reschedule(s *GlobalScheduler)
}

// TickAdvancer advances every machine by exactly one tick of simulated time
// and resolves completions and failures.
type TickAdvancer interface {
	AdvanceTick(s *GlobalScheduler)
}

// SchedulingPolicy bundles the seven rules that define a scheduling variant.
// The engine is agnostic to which implementation it is handed.
type SchedulingPolicy interface {
	FailureModel
	JobComparator
	MachineProgression
	CheckpointCapture
	AdmissionPolicy
	ReschedulePolicy
	TickAdvancer
}

// ComposedPolicy assembles a SchedulingPolicy from independent rules, so a
// variant can swap a single rule without touching the others.
type ComposedPolicy struct {
	Name string

	FailureModel
	JobComparator
	MachineProgression
	CheckpointCapture
	AdmissionPolicy
	ReschedulePolicy
	TickAdvancer
}

// Validate reports any missing rule.
func (p *ComposedPolicy) Validate() error {
	missing := []string{}
	if p.FailureModel == nil {
		missing = append(missing, "failure model")
	}
	if p.JobComparator == nil {
		missing = append(missing, "comparator")
	}
	if p.MachineProgression == nil {
		missing = append(missing, "machine progression")
	}
	if p.CheckpointCapture == nil {
		missing = append(missing, "checkpoint capture")
	}
	if p.AdmissionPolicy == nil {
		missing = append(missing, "admission")
	}
	if p.ReschedulePolicy == nil {
		missing = append(missing, "reschedule")
	}
	if p.TickAdvancer == nil {
		missing = append(missing, "tick advancement")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: policy %q is missing rules %v", ErrInvalidConfig, p.Name, missing)
	}
	return nil
}

// PolicyParams carries the numeric constants a named policy is built from.
type PolicyParams struct {
	MTBF      float64 // mean time between failures; 0 disables failures
	Overheads OverheadConfig
}

const (
	PolicyPriorityCheckpoint = "priority-checkpoint"
	PolicyRandom             = "random"
	PolicyFIFO               = "fifo"
)

// validPolicies is the set of recognized policy names.
// Shared by IsValidPolicy(), ValidPolicyNames() and NewPolicy().
var validPolicies = map[string]bool{"": true, PolicyPriorityCheckpoint: true, PolicyRandom: true, PolicyFIFO: true}

// IsValidPolicy returns true if name is a recognized policy.
// Empty string is valid and selects priority-checkpoint.
func IsValidPolicy(name string) bool {
	return validPolicies[name]
}

// ValidPolicyNames returns the recognized non-empty policy names, sorted.
func ValidPolicyNames() []string {
	names := make([]string, 0, len(validPolicies))
	for n := range validPolicies {
		if n != "" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// NewPolicy creates a SchedulingPolicy by name.
// Panics on unrecognized names; callers validate with IsValidPolicy first.
func NewPolicy(name string, params PolicyParams, rng *PartitionedRNG) *ComposedPolicy {
	if !IsValidPolicy(name) {
		panic(fmt.Sprintf("unknown policy %q", name))
	}
	switch name {
	case "", PolicyPriorityCheckpoint:
		return NewPriorityCheckpointPolicy(params, rng)
	case PolicyRandom:
		return NewRandomPolicy(params, rng)
	case PolicyFIFO:
		return NewFIFOPolicy(params, rng)
	default:
		panic(fmt.Sprintf("unhandled policy %q", name))
	}
}

// NewPriorityCheckpointPolicy builds the priority-preemptive policy with
// periodic checkpoints, checkpoint aging, and kill-versus-resume preemption.
func NewPriorityCheckpointPolicy(params PolicyParams, rng *PartitionedRNG) *ComposedPolicy {
	return &ComposedPolicy{
		Name:               PolicyPriorityCheckpoint,
		FailureModel:       NewExponentialFailureModel(params.MTBF, rng),
		JobComparator:      &PriorityComparator{},
		MachineProgression: &LockingProgression{CheckpointOverhead: params.Overheads.Checkpoint},
		CheckpointCapture:  &RuntimeCheckpointer{},
		AdmissionPolicy:    &SortedAdmission{},
		ReschedulePolicy:   &PreemptiveReschedule{MigrationOverhead: params.Overheads.Migration},
		TickAdvancer:       &FairTickAdvance{RecoveryOverhead: params.Overheads.Recovery},
	}
}

// NewRandomPolicy builds the baseline: random queue order, no preemption,
// no checkpoint capture, restart from scratch on failure.
func NewRandomPolicy(params PolicyParams, rng *PartitionedRNG) *ComposedPolicy {
	return &ComposedPolicy{
		Name:               PolicyRandom,
		FailureModel:       NewExponentialFailureModel(params.MTBF, rng),
		JobComparator:      &IndifferentComparator{},
		MachineProgression: &LockingProgression{},
		CheckpointCapture:  &NoopCheckpointer{},
		AdmissionPolicy:    &ShuffleAdmission{rng: rng.ForSubsystem(SubsystemAdmission)},
		ReschedulePolicy:   &FreeSlotReschedule{},
		TickAdvancer:       &FairTickAdvance{RecoveryOverhead: params.Overheads.Recovery},
	}
}

// NewFIFOPolicy builds the arrival-order baseline: first come first served,
// no preemption, no checkpoint capture, restart from scratch on failure.
func NewFIFOPolicy(params PolicyParams, rng *PartitionedRNG) *ComposedPolicy {
	return &ComposedPolicy{
		Name:               PolicyFIFO,
		FailureModel:       NewExponentialFailureModel(params.MTBF, rng),
		JobComparator:      &IndifferentComparator{},
		MachineProgression: &LockingProgression{},
		CheckpointCapture:  &NoopCheckpointer{},
		AdmissionPolicy:    &FIFOAdmission{},
		ReschedulePolicy:   &FreeSlotReschedule{},
		TickAdvancer:       &FairTickAdvance{RecoveryOverhead: params.Overheads.Recovery},
	}
}
