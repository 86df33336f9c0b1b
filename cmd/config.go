package cmd

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/inference-sim/ckpt-sim/sim"
)

// defaultCheckpointInterval is used when the interval cannot be derived
// because failures or checkpoint overhead are disabled.
const defaultCheckpointInterval = 10.0

// engineFlags holds the engine-related CLI flag values.
type engineFlags struct {
	Policy             string
	Seed               int64
	Machines           int
	MTBF               float64
	CheckpointOverhead float64
	MigrationOverhead  float64
	RecoveryOverhead   float64
	CheckpointInterval float64
	Horizon            int64
	CheckInvariants    bool
}

// engineOptions is the resolved configuration of a single simulation.
type engineOptions struct {
	Policy string
	Seed   int64
	Engine sim.EngineConfig
	Params sim.PolicyParams
}

// applyBundle copies every field set in the bundle whose flag the user did
// not set explicitly. Explicit flags always win.
func (f *engineFlags) applyBundle(b *sim.EngineBundle, changed func(name string) bool) {
	if b.Policy != "" && !changed("policy") {
		f.Policy = b.Policy
	}
	setInt := func(flag string, dst *int, v *int) {
		if v != nil && !changed(flag) {
			*dst = *v
		}
	}
	setInt64 := func(flag string, dst *int64, v *int64) {
		if v != nil && !changed(flag) {
			*dst = *v
		}
	}
	setFloat := func(flag string, dst *float64, v *float64) {
		if v != nil && !changed(flag) {
			*dst = *v
		}
	}
	setInt("machines", &f.Machines, b.Machines)
	setInt64("seed", &f.Seed, b.Seed)
	setInt64("horizon", &f.Horizon, b.Horizon)
	setFloat("mtbf", &f.MTBF, b.MTBF)
	setFloat("checkpoint-interval", &f.CheckpointInterval, b.CheckpointInterval)
	setFloat("checkpoint-overhead", &f.CheckpointOverhead, b.Overheads.Checkpoint)
	setFloat("migration-overhead", &f.MigrationOverhead, b.Overheads.Migration)
	setFloat("recovery-overhead", &f.RecoveryOverhead, b.Overheads.Recovery)
	if b.CheckInvariants != nil && !changed("check-invariants") {
		f.CheckInvariants = *b.CheckInvariants
	}
}

// options validates the flag values and derives the checkpoint interval.
func (f engineFlags) options() (engineOptions, error) {
	if !sim.IsValidPolicy(f.Policy) {
		return engineOptions{}, fmt.Errorf("%w: unknown policy %q; valid options: %v", sim.ErrInvalidConfig, f.Policy, sim.ValidPolicyNames())
	}
	overheads := sim.OverheadConfig{
		Checkpoint: f.CheckpointOverhead,
		Migration:  f.MigrationOverhead,
		Recovery:   f.RecoveryOverhead,
	}
	opts := engineOptions{
		Policy: f.Policy,
		Seed:   f.Seed,
		Engine: sim.EngineConfig{
			NumMachines:        f.Machines,
			CheckpointInterval: resolveCheckpointInterval(f.CheckpointInterval, f.MTBF, f.CheckpointOverhead),
			Overheads:          overheads,
			Horizon:            f.Horizon,
			CheckInvariants:    f.CheckInvariants,
		},
		Params: sim.PolicyParams{MTBF: f.MTBF, Overheads: overheads},
	}
	if f.MTBF < 0 {
		return opts, fmt.Errorf("%w: mtbf must be non-negative, got %v", sim.ErrInvalidConfig, f.MTBF)
	}
	if err := opts.Engine.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// resolveCheckpointInterval returns interval when set, else the optimum for
// mtbf and the checkpoint overhead, else defaultCheckpointInterval.
func resolveCheckpointInterval(interval, mtbf, checkpointOverhead float64) float64 {
	if interval != 0 {
		return interval
	}
	if derived := sim.OptimalCheckpointInterval(mtbf, checkpointOverhead); derived > 0 {
		logrus.Debugf("Derived checkpoint interval %.4f from mtbf=%.3f and overhead=%.3f", derived, mtbf, checkpointOverhead)
		return derived
	}
	logrus.Infof("Failures or checkpoint overhead disabled; using checkpoint interval %.1f", defaultCheckpointInterval)
	return defaultCheckpointInterval
}

// resolveOptions merges the --config bundle into the flags and validates the result.
func resolveOptions(cmd *cobra.Command) (engineOptions, error) {
	if configPath != "" {
		bundle, err := sim.LoadEngineBundle(configPath)
		if err != nil {
			return engineOptions{}, err
		}
		if err := bundle.Validate(); err != nil {
			return engineOptions{}, err
		}
		engine.applyBundle(bundle, cmd.Flags().Changed)
		logrus.Infof("Loaded engine config from %s", configPath)
	}
	return engine.options()
}
