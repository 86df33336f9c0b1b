package sim

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// EngineBundle holds a complete run configuration, loadable from a YAML file.
// Nil pointer fields mean "not set in YAML"; they do not override CLI defaults.
// String fields use empty string for "not set".
type EngineBundle struct {
	Policy             string          `yaml:"policy"`
	Machines           *int            `yaml:"machines"`
	CheckpointInterval *float64        `yaml:"checkpoint_interval"` // 0 derives the interval from mtbf
	MTBF               *float64        `yaml:"mtbf"`
	Seed               *int64          `yaml:"seed"`
	Horizon            *int64          `yaml:"horizon"`
	CheckInvariants    *bool           `yaml:"check_invariants"`
	Overheads          OverheadsBundle `yaml:"overheads"`
}

// OverheadsBundle holds the optional overhead constants.
type OverheadsBundle struct {
	Checkpoint *float64 `yaml:"checkpoint"`
	Migration  *float64 `yaml:"migration"`
	Recovery   *float64 `yaml:"recovery"`
}

// LoadEngineBundle reads and parses a YAML engine configuration file.
// Unknown keys are rejected; an empty file yields an empty bundle.
func LoadEngineBundle(path string) (*EngineBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading engine config: %w", err)
	}
	var bundle EngineBundle
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&bundle); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing engine config: %w", err)
	}
	return &bundle, nil
}

// Validate checks the policy name and every parameter range that is set.
func (b *EngineBundle) Validate() error {
	var result *multierror.Error
	if !IsValidPolicy(b.Policy) {
		result = multierror.Append(result, fmt.Errorf("%w: unknown policy %q; valid options: %v", ErrInvalidConfig, b.Policy, ValidPolicyNames()))
	}
	if b.Machines != nil && *b.Machines <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: machines must be positive, got %d", ErrInvalidConfig, *b.Machines))
	}
	if b.Horizon != nil && *b.Horizon < 0 {
		result = multierror.Append(result, fmt.Errorf("%w: horizon must be non-negative, got %d", ErrInvalidConfig, *b.Horizon))
	}
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"checkpoint_interval", b.CheckpointInterval},
		{"mtbf", b.MTBF},
		{"overheads.checkpoint", b.Overheads.Checkpoint},
		{"overheads.migration", b.Overheads.Migration},
		{"overheads.recovery", b.Overheads.Recovery},
	} {
		if f.v != nil && (*f.v < 0 || math.IsNaN(*f.v) || math.IsInf(*f.v, 0)) {
			result = multierror.Append(result, fmt.Errorf("%w: %s must be a finite non-negative number, got %v", ErrInvalidConfig, f.name, *f.v))
		}
	}
	return result.ErrorOrNil()
}
