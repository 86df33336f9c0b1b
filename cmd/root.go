package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/ckpt-sim/sim"
	"github.com/inference-sim/ckpt-sim/sim/trace"
)

var (
	// CLI flags shared by run and compare
	logLevel   string        // Log verbosity level
	configPath string        // Engine bundle YAML
	engine     engineFlags   // Machine pool, overheads, failure model and policy
	jobFlags   workloadFlags // Job-stream source and generator parameters

	// CLI flags for run
	traceLevel  string // Decision trace verbosity
	resultsPath string // File to write the results JSON to
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "ckpt-sim",
	Short: "Discrete-time simulator for preemptive scheduling with checkpoints and failures",
}

// runCmd executes a single simulation using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one job stream through one scheduling policy",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level %q; valid options: none, decisions", traceLevel)
		}
		opts, err := resolveOptions(cmd)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}
		jobs, err := loadJobs(cmd, opts.Seed)
		if err != nil {
			logrus.Fatalf("Unable to build job stream: %v", err)
		}

		logrus.Infof("Starting simulation: policy=%s, machines=%d, interval=%.3f, mtbf=%.3f, seed=%d",
			orDefaultPolicy(opts.Policy), opts.Engine.NumMachines, opts.Engine.CheckpointInterval, opts.Params.MTBF, opts.Seed)

		res, tr, err := simulate(opts, jobs, trace.TraceLevel(traceLevel))
		if err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		res.Summarize().Print()
		if err := res.SaveResults(orDefaultPolicy(opts.Policy), resultsPath); err != nil {
			logrus.Fatalf("Unable to save results: %v", err)
		}
		if tr != nil {
			printTraceSummary(trace.Summarize(tr))
		}
		if !res.Drained {
			logrus.Warnf("Horizon reached before every job completed")
		}

		logrus.Info("Simulation complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

func orDefaultPolicy(name string) string {
	if name == "" {
		return sim.PolicyPriorityCheckpoint
	}
	return name
}

// registerSharedFlags binds the engine and job-stream flags on cmd.
func registerSharedFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	cmd.Flags().StringVar(&configPath, "config", "", "Engine configuration YAML; explicitly set flags take precedence")

	// Engine
	cmd.Flags().Int64Var(&engine.Seed, "seed", 42, "Seed for failures, randomized policies and job generation")
	cmd.Flags().StringVar(&engine.Policy, "policy", sim.PolicyPriorityCheckpoint, "Scheduling policy")
	cmd.Flags().IntVar(&engine.Machines, "machines", 3, "Number of machines in the pool")
	cmd.Flags().Float64Var(&engine.MTBF, "mtbf", 3, "Mean time between failures in ticks (0 disables failures)")
	cmd.Flags().Float64Var(&engine.CheckpointOverhead, "checkpoint-overhead", 0.1, "Lock time charged per checkpoint")
	cmd.Flags().Float64Var(&engine.MigrationOverhead, "migration-overhead", 0.3, "Lock time charged per checkpoint migration")
	cmd.Flags().Float64Var(&engine.RecoveryOverhead, "recovery-overhead", 0.3, "Lock time charged per failure recovery")
	cmd.Flags().Float64Var(&engine.CheckpointInterval, "checkpoint-interval", 0, "Ticks between checkpoints (0 = sqrt(2 * mtbf * checkpoint-overhead))")
	cmd.Flags().Int64Var(&engine.Horizon, "horizon", 0, "Last tick to simulate (0 = until every job completes)")
	cmd.Flags().BoolVar(&engine.CheckInvariants, "check-invariants", false, "Verify job conservation after every tick")

	// Job stream
	cmd.Flags().StringVar(&jobFlags.JobsPath, "jobs", "", "Fixed job stream YAML (overrides generation)")
	cmd.Flags().StringVar(&jobFlags.WorkloadPath, "workload", "", "Job generator spec YAML")
	cmd.Flags().IntVar(&jobFlags.NumJobs, "num-jobs", 50, "Number of generated jobs")
	cmd.Flags().IntVar(&jobFlags.MaxPriority, "max-priority", 5, "Generated priorities are uniform in [1, max-priority]")
	cmd.Flags().IntVar(&jobFlags.MaxRuntime, "max-runtime", 5, "Generated runtimes are uniform in [1, max-runtime]")
	cmd.Flags().Int64Var(&jobFlags.MaxRelease, "max-release", 1, "Later releases are uniform in [1, max-release]")
	cmd.Flags().Float64Var(&jobFlags.InitialFraction, "initial-fraction", 0.5, "Fraction of generated jobs released at tick 0")
}

// init sets up CLI flags and subcommands
func init() {
	registerSharedFlags(runCmd)
	runCmd.Flags().StringVar(&traceLevel, "trace-level", "none", "Decision trace level (none, decisions)")
	runCmd.Flags().StringVar(&resultsPath, "results-path", "", "File to write the results JSON to")

	// Attach `run` as a subcommand to `root`
	rootCmd.AddCommand(runCmd)
}
