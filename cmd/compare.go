package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/inference-sim/ckpt-sim/sim"
	"github.com/inference-sim/ckpt-sim/sim/trace"
)

var (
	comparePolicies []string // Policies to compare
	compareTrials   int      // Independent job streams per policy
)

// compareCmd runs several policies over the same job streams
var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare scheduling policies over repeated job streams",
	Long: "Each trial draws one job stream and one failure seed, then runs every policy on it. " +
		"Metrics are reported as mean and standard deviation across trials.",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()

		if compareTrials <= 0 {
			logrus.Fatalf("--trials must be positive, got %d", compareTrials)
		}
		for _, p := range comparePolicies {
			if !sim.IsValidPolicy(p) {
				logrus.Fatalf("Unknown policy %q; valid options: %v", p, sim.ValidPolicyNames())
			}
		}
		opts, err := resolveOptions(cmd)
		if err != nil {
			logrus.Fatalf("Invalid configuration: %v", err)
		}

		// Trial seeds always replace the workload file's seed.
		trialChanged := func(name string) bool { return name == "seed" || cmd.Flags().Changed(name) }
		summaries, err := runComparison(opts, comparePolicies, compareTrials, func(seed int64) (map[int64][]sim.JobSpec, error) {
			return jobFlags.jobStream(seed, trialChanged)
		})
		if err != nil {
			logrus.Fatalf("Comparison failed: %v", err)
		}
		printComparison(os.Stdout, aggregate(comparePolicies, summaries))
	},
}

// runComparison runs every policy on trials job streams. Trial n uses the
// seed derived for SubsystemTrial(n) for both the job stream and the failures.
func runComparison(opts engineOptions, policies []string, trials int, jobsFor func(seed int64) (map[int64][]sim.JobSpec, error)) (map[string][]sim.Summary, error) {
	master := sim.NewPartitionedRNG(sim.NewSimulationKey(opts.Seed))
	summaries := make(map[string][]sim.Summary, len(policies))
	for n := 0; n < trials; n++ {
		seed := master.DeriveSeed(sim.SubsystemTrial(n))
		jobs, err := jobsFor(seed)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", n, err)
		}
		for _, p := range policies {
			trialOpts := opts
			trialOpts.Policy = p
			trialOpts.Seed = seed
			res, _, err := simulate(trialOpts, jobs, trace.TraceLevelNone)
			if err != nil {
				return nil, fmt.Errorf("trial %d, policy %s: %w", n, p, err)
			}
			summaries[p] = append(summaries[p], res.Summarize())
		}
		logrus.Infof("Trial %d/%d complete", n+1, trials)
	}
	return summaries, nil
}

// metricStat is a mean and standard deviation across trials.
type metricStat struct {
	Mean, StdDev float64
}

func (m metricStat) String() string {
	return fmt.Sprintf("%.3f ± %.3f", m.Mean, m.StdDev)
}

// comparisonRow is one policy's metrics across trials.
type comparisonRow struct {
	Policy          string
	Trials          int
	Makespan        metricStat
	MeanWait        metricStat
	MeanStretch     metricStat
	WeightedStretch metricStat
	Utilization     metricStat
	KillRatio       metricStat
}

func aggregate(policies []string, summaries map[string][]sim.Summary) []comparisonRow {
	rows := make([]comparisonRow, 0, len(policies))
	for _, p := range policies {
		ss := summaries[p]
		pick := func(f func(sim.Summary) float64) metricStat {
			xs := make([]float64, len(ss))
			for i, s := range ss {
				xs[i] = f(s)
			}
			if len(xs) < 2 {
				return metricStat{Mean: stat.Mean(xs, nil)}
			}
			mean, std := stat.MeanStdDev(xs, nil)
			return metricStat{Mean: mean, StdDev: std}
		}
		rows = append(rows, comparisonRow{
			Policy:          p,
			Trials:          len(ss),
			Makespan:        pick(func(s sim.Summary) float64 { return s.Makespan }),
			MeanWait:        pick(func(s sim.Summary) float64 { return s.MeanWait }),
			MeanStretch:     pick(func(s sim.Summary) float64 { return s.MeanStretch }),
			WeightedStretch: pick(func(s sim.Summary) float64 { return s.MeanWeightedStretch }),
			Utilization:     pick(func(s sim.Summary) float64 { return s.Utilization }),
			KillRatio:       pick(func(s sim.Summary) float64 { return s.KillRatio }),
		})
	}
	return rows
}

func printComparison(out io.Writer, rows []comparisonRow) {
	fmt.Fprintln(out, "=== Policy Comparison ===")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "POLICY\tTRIALS\tMAKESPAN\tMEAN WAIT\tMEAN STRETCH\tWEIGHTED STRETCH\tUTILIZATION\tKILL RATIO")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Policy, r.Trials, r.Makespan, r.MeanWait, r.MeanStretch, r.WeightedStretch, r.Utilization, r.KillRatio)
	}
	_ = w.Flush()
}

func init() {
	registerSharedFlags(compareCmd)
	compareCmd.Flags().StringSliceVar(&comparePolicies, "policies", sim.ValidPolicyNames(), "Comma-separated policies to compare")
	compareCmd.Flags().IntVar(&compareTrials, "trials", 10, "Number of independent job streams")

	rootCmd.AddCommand(compareCmd)
}
