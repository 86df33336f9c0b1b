package workload

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// Runtime distributions.
const (
	RuntimeUniform     = "uniform"     // integer runtimes uniform in [1, max_runtime]
	RuntimeExponential = "exponential" // rounded exponential with mean mean_runtime, at least 1
)

// Arrival processes.
const (
	ArrivalUniform = "uniform" // initial_fraction at tick 0, the rest uniform in [1, max_release]
	ArrivalPoisson = "poisson" // Poisson(rate) releases per tick starting at tick 0
)

// Valid value registries.
var (
	validRuntimeDists = map[string]bool{"": true, RuntimeUniform: true, RuntimeExponential: true}
	validArrivals     = map[string]bool{"": true, ArrivalUniform: true, ArrivalPoisson: true}
)

// Spec is the job-stream generator configuration.
// Loaded from YAML via LoadSpec(path).
type Spec struct {
	Seed            int64   `yaml:"seed"`
	NumJobs         int     `yaml:"num_jobs"`
	MaxPriority     int     `yaml:"max_priority"`
	MaxRuntime      int     `yaml:"max_runtime"`
	MaxRelease      int64   `yaml:"max_release"`
	InitialFraction float64 `yaml:"initial_fraction"`
	RuntimeDist     string  `yaml:"runtime_dist,omitempty"`
	MeanRuntime     float64 `yaml:"mean_runtime,omitempty"`
	Arrival         string  `yaml:"arrival,omitempty"`
	Rate            float64 `yaml:"rate,omitempty"` // mean releases per tick for poisson arrivals
}

// DefaultSpec mirrors the reference experiment: 50 jobs, priorities and
// runtimes in [1, 5], half released at tick 0.
func DefaultSpec() Spec {
	return Spec{
		Seed:            42,
		NumJobs:         50,
		MaxPriority:     5,
		MaxRuntime:      5,
		MaxRelease:      1,
		InitialFraction: 0.5,
		RuntimeDist:     RuntimeUniform,
		Arrival:         ArrivalUniform,
	}
}

// LoadSpec reads and parses a YAML generator specification file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workload spec: %w", err)
	}
	spec := DefaultSpec()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing workload spec: %w", err)
	}
	return &spec, nil
}

// Validate checks every field and reports all problems at once.
func (s *Spec) Validate() error {
	var result *multierror.Error
	if s.NumJobs < 0 {
		result = multierror.Append(result, fmt.Errorf("num_jobs must be non-negative, got %d", s.NumJobs))
	}
	if s.MaxPriority < 1 {
		result = multierror.Append(result, fmt.Errorf("max_priority must be at least 1, got %d", s.MaxPriority))
	}
	if !validRuntimeDists[s.RuntimeDist] {
		result = multierror.Append(result, fmt.Errorf("unknown runtime_dist %q; valid: uniform, exponential", s.RuntimeDist))
	}
	if !validArrivals[s.Arrival] {
		result = multierror.Append(result, fmt.Errorf("unknown arrival %q; valid: uniform, poisson", s.Arrival))
	}

	switch s.RuntimeDist {
	case RuntimeExponential:
		if err := validateFinitePositive("mean_runtime", s.MeanRuntime); err != nil {
			result = multierror.Append(result, err)
		}
	default:
		if s.MaxRuntime < 1 {
			result = multierror.Append(result, fmt.Errorf("max_runtime must be at least 1, got %d", s.MaxRuntime))
		}
	}

	switch s.Arrival {
	case ArrivalPoisson:
		if err := validateFinitePositive("rate", s.Rate); err != nil {
			result = multierror.Append(result, err)
		}
	default:
		if s.InitialFraction < 0 || s.InitialFraction > 1 || math.IsNaN(s.InitialFraction) {
			result = multierror.Append(result, fmt.Errorf("initial_fraction must be in [0, 1], got %v", s.InitialFraction))
		}
		if s.InitialFraction < 1 && s.MaxRelease < 1 {
			result = multierror.Append(result, fmt.Errorf("max_release must be at least 1 when initial_fraction < 1, got %d", s.MaxRelease))
		}
	}
	return result.ErrorOrNil()
}

func validateFinitePositive(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return fmt.Errorf("%s must be a finite positive number, got %v", name, v)
	}
	return nil
}
