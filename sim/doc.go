// Package sim provides the discrete-time engine for preemptive job scheduling
// on a fixed machine pool with checkpoint, migration, and failure overheads.
//
// # Reading Guide
//
// Start with these three files to understand the simulation kernel:
//   - job.go: Job lifecycle (pending → running → completed) and progress accounting
//   - machine.go: per-machine lock time, checkpoint schedule, and checkpoint store
//   - scheduler.go: the tick loop (admit, reschedule, advance) and job ownership
//
// # Architecture
//
// The engine is agnostic to scheduling semantics. Every decision is delegated
// to a SchedulingPolicy, which bundles seven small rules:
//   - FailureModel: does a job fail this slice, and where inside it (failure.go)
//   - JobComparator: three-way job ranking (comparator.go)
//   - MachineProgression: lock time, checkpoint boundaries, job progress (progression.go)
//   - CheckpointCapture: what a checkpoint stores (progression.go)
//   - AdmissionPolicy: where a released job enters the queue (admission.go)
//   - ReschedulePolicy: placement and preemption (reschedule.go)
//   - TickAdvancer: sub-tick resolution of completions and failures (tick.go)
//
// ComposedPolicy assembles the rules; NewPolicy builds the reference variants
// by name. Sub-packages:
//   - sim/workload/: job-stream generation and fixed job files
//   - sim/trace/: preemption and recovery decision records
//
// All randomness flows through PartitionedRNG so a seed reproduces a run.
package sim
