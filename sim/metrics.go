// Tracks run-wide and per-job performance statistics such as:
// wait time, active time, stretch, weighted stretch, and machine utilization.

package sim

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/stat"
)

// JobStats is the externally visible record of one job after a run.
type JobStats struct {
	ID                int     `json:"id"`
	Priority          int     `json:"priority"`
	OrigRuntime       float64 `json:"original_runtime"`
	ReleaseTime       int64   `json:"release_time"`
	WaitingTime       float64 `json:"waiting_time"`
	ActiveTime        float64 `json:"active_time"`
	CompletionTime    float64 `json:"completion_time"`
	FirstScheduleTime float64 `json:"first_schedule_time"`
	Completed         bool    `json:"completed"`
}

// ResponseTime is completion minus release.
func (j JobStats) ResponseTime() float64 {
	return j.CompletionTime - float64(j.ReleaseTime)
}

// Stretch is the job's sojourn time normalized by its original runtime.
func (j JobStats) Stretch() float64 {
	return j.ResponseTime() / j.OrigRuntime
}

// WeightedStretch is Stretch scaled by priority.
func (j JobStats) WeightedStretch() float64 {
	return float64(j.Priority) * j.Stretch()
}

// MachineStats is the externally visible record of one machine after a run.
type MachineStats struct {
	ID               int     `json:"id"`
	ActiveTime       float64 `json:"active_time"`
	WaitingTime      float64 `json:"waiting_time"`
	CheckpointsTaken int     `json:"checkpoints_taken"`
}

// Result is the snapshot handed back by RunSchedule.
type Result struct {
	Clock    int64          `json:"clock"`    // final tick
	Makespan float64        `json:"makespan"` // ticks simulated (Clock + 1)
	Drained  bool           `json:"drained"`  // false if the horizon cut the run
	Jobs     []JobStats     `json:"jobs"`     // sorted by ID
	Machines []MachineStats `json:"machines"` // sorted by ID
	Counters Counters       `json:"counters"`
}

// Result snapshots the scheduler's current state.
func (s *GlobalScheduler) Result(drained bool) *Result {
	r := &Result{
		Clock:    s.clock,
		Makespan: float64(s.clock + 1),
		Drained:  drained,
		Counters: s.counters,
	}
	for _, j := range s.jobs {
		r.Jobs = append(r.Jobs, JobStats{
			ID:                j.ID,
			Priority:          j.Priority,
			OrigRuntime:       j.OrigRuntime,
			ReleaseTime:       j.ReleaseTime,
			WaitingTime:       j.WaitingTime,
			ActiveTime:        j.ActiveTime,
			CompletionTime:    j.CompletionTime,
			FirstScheduleTime: j.FirstScheduleTime,
			Completed:         j.State == JobCompleted,
		})
	}
	sort.Slice(r.Jobs, func(a, b int) bool { return r.Jobs[a].ID < r.Jobs[b].ID })
	for _, m := range s.machines {
		r.Machines = append(r.Machines, MachineStats{
			ID:               m.ID,
			ActiveTime:       m.ActiveTime,
			WaitingTime:      m.WaitingTime,
			CheckpointsTaken: m.CheckpointsTaken,
		})
		r.Counters.Checkpoints += m.CheckpointsTaken
	}
	return r
}

// Summary aggregates a Result into the headline metrics.
type Summary struct {
	CompletedJobs       int     `json:"completed_jobs"`
	TotalJobs           int     `json:"total_jobs"`
	Makespan            float64 `json:"makespan"`
	MeanWait            float64 `json:"mean_wait"`
	P50Wait             float64 `json:"p50_wait"`
	P90Wait             float64 `json:"p90_wait"`
	P99Wait             float64 `json:"p99_wait"`
	MeanResponse        float64 `json:"mean_response"`
	MeanStretch         float64 `json:"mean_stretch"`
	MeanWeightedStretch float64 `json:"mean_weighted_stretch"`
	MaxStretch          float64 `json:"max_stretch"`
	Utilization         float64 `json:"utilization"`
	KillRatio           float64 `json:"kill_ratio"`
}

// Summarize computes the headline metrics over completed jobs.
func (r *Result) Summarize() Summary {
	sum := Summary{
		TotalJobs: len(r.Jobs),
		Makespan:  r.Makespan,
		KillRatio: r.Counters.KillRatio(),
	}

	var waits, responses, stretches, weighted []float64
	for _, j := range r.Jobs {
		if !j.Completed {
			continue
		}
		waits = append(waits, j.WaitingTime)
		responses = append(responses, j.ResponseTime())
		stretches = append(stretches, j.Stretch())
		weighted = append(weighted, j.WeightedStretch())
	}
	sum.CompletedJobs = len(waits)

	if len(waits) > 0 {
		sum.MeanWait = stat.Mean(waits, nil)
		sum.MeanResponse = stat.Mean(responses, nil)
		sum.MeanStretch = stat.Mean(stretches, nil)
		sum.MeanWeightedStretch = stat.Mean(weighted, nil)

		sort.Float64s(waits)
		sum.P50Wait = stat.Quantile(0.50, stat.Empirical, waits, nil)
		sum.P90Wait = stat.Quantile(0.90, stat.Empirical, waits, nil)
		sum.P99Wait = stat.Quantile(0.99, stat.Empirical, waits, nil)

		for _, s := range stretches {
			sum.MaxStretch = max(sum.MaxStretch, s)
		}
	}

	if len(r.Machines) > 0 && r.Makespan > 0 {
		active := 0.0
		for _, m := range r.Machines {
			active += m.ActiveTime
		}
		sum.Utilization = active / (float64(len(r.Machines)) * r.Makespan)
	}
	return sum
}

// Print displays the summary at the end of the simulation.
func (s Summary) Print() {
	fmt.Println("=== Simulation Metrics ===")
	fmt.Printf("Completed Jobs         : %d/%d\n", s.CompletedJobs, s.TotalJobs)
	fmt.Printf("Makespan               : %.2f ticks\n", s.Makespan)
	if s.CompletedJobs > 0 {
		fmt.Printf("Mean Wait              : %.3f ticks\n", s.MeanWait)
		fmt.Printf("Wait p50/p90/p99       : %.3f / %.3f / %.3f\n", s.P50Wait, s.P90Wait, s.P99Wait)
		fmt.Printf("Mean Response          : %.3f ticks\n", s.MeanResponse)
		fmt.Printf("Mean Stretch           : %.3f\n", s.MeanStretch)
		fmt.Printf("Mean Weighted Stretch  : %.3f\n", s.MeanWeightedStretch)
		fmt.Printf("Max Stretch            : %.3f\n", s.MaxStretch)
	}
	fmt.Printf("Utilization            : %.2f%%\n", 100*s.Utilization)
	fmt.Printf("Kill Ratio             : %.3f\n", s.KillRatio)
}

// SaveResults writes the summary and the full result as JSON to stdout and,
// if path is non-empty, the full result to path.
func (r *Result) SaveResults(policy string, path string) error {
	out := struct {
		Policy  string  `json:"policy"`
		Summary Summary `json:"summary"`
		*Result
	}{Policy: policy, Summary: r.Summarize(), Result: r}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling results: %w", err)
	}
	fmt.Println("=== Simulation Results ===")
	fmt.Println(string(data))

	if path == "" {
		return nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing results to %s: %w", path, err)
	}
	logrus.Infof("Results written to %s", path)
	return nil
}
