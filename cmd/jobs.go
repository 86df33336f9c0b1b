package cmd

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/ckpt-sim/sim"
	"github.com/inference-sim/ckpt-sim/sim/workload"
)

// workloadFlags holds the job-stream CLI flag values.
type workloadFlags struct {
	JobsPath        string
	WorkloadPath    string
	NumJobs         int
	MaxPriority     int
	MaxRuntime      int
	MaxRelease      int64
	InitialFraction float64
}

// spec builds the generator spec: the --workload file if given, else the
// defaults, with explicitly set flags taking precedence. The seed comes from
// --seed unless only the file sets it.
func (w workloadFlags) spec(seed int64, changed func(name string) bool) (workload.Spec, error) {
	spec := workload.DefaultSpec()
	spec.Seed = seed
	fromFile := w.WorkloadPath != ""
	if fromFile {
		loaded, err := workload.LoadSpec(w.WorkloadPath)
		if err != nil {
			return spec, err
		}
		spec = *loaded
		if changed("seed") {
			spec.Seed = seed
		}
		logrus.Infof("Loaded workload spec from %s", w.WorkloadPath)
	}

	override := func(flag string) bool { return !fromFile || changed(flag) }
	if override("num-jobs") {
		spec.NumJobs = w.NumJobs
	}
	if override("max-priority") {
		spec.MaxPriority = w.MaxPriority
	}
	if override("max-runtime") {
		spec.MaxRuntime = w.MaxRuntime
	}
	if override("max-release") {
		spec.MaxRelease = w.MaxRelease
	}
	if override("initial-fraction") {
		spec.InitialFraction = w.InitialFraction
	}
	return spec, spec.Validate()
}

// jobStream reads the fixed job file if given, else generates a stream.
func (w workloadFlags) jobStream(seed int64, changed func(name string) bool) (map[int64][]sim.JobSpec, error) {
	if w.JobsPath != "" {
		jobs, err := workload.LoadJobFile(w.JobsPath)
		if err != nil {
			return nil, err
		}
		logrus.Infof("Loaded %d jobs from %s", len(workload.Flatten(jobs)), w.JobsPath)
		return jobs, nil
	}
	spec, err := w.spec(seed, changed)
	if err != nil {
		return nil, err
	}
	return workload.Generate(spec)
}

func loadJobs(cmd *cobra.Command, seed int64) (map[int64][]sim.JobSpec, error) {
	return jobFlags.jobStream(seed, cmd.Flags().Changed)
}
