package trace

// TraceSummary aggregates statistics from a SimulationTrace.
type TraceSummary struct {
	TotalPreemptions    int
	Kills               int
	Resumes             int
	Migrations          int
	KillRatio           float64
	MeanKillCost        float64
	MeanCheckpointCost  float64
	TotalRecoveries     int
	CheckpointRecovered int
	Restarted           int
	RecoveriesByMachine map[int]int // machine ID → count of failures recovered there
}

// Summarize computes aggregate statistics from a SimulationTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SimulationTrace) *TraceSummary {
	summary := &TraceSummary{
		RecoveriesByMachine: make(map[int]int),
	}
	if st == nil {
		return summary
	}

	summary.TotalPreemptions = len(st.Preemptions)
	if len(st.Preemptions) > 0 {
		totalKill, totalCheckpoint := 0.0, 0.0
		for _, p := range st.Preemptions {
			switch p.Decision {
			case DecisionKill:
				summary.Kills++
			case DecisionResume:
				summary.Resumes++
			}
			if p.Migrated {
				summary.Migrations++
			}
			totalKill += p.KillCost
			totalCheckpoint += p.CheckpointCost
		}
		n := float64(len(st.Preemptions))
		summary.KillRatio = float64(summary.Kills) / n
		summary.MeanKillCost = totalKill / n
		summary.MeanCheckpointCost = totalCheckpoint / n
	}

	summary.TotalRecoveries = len(st.Recoveries)
	for _, r := range st.Recoveries {
		summary.RecoveriesByMachine[r.MachineID]++
		if r.FromCheckpoint {
			summary.CheckpointRecovered++
		} else {
			summary.Restarted++
		}
	}

	return summary
}
