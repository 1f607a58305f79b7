// Package strategy defines the shareable parameter-spec document: a strategy
// identifier plus fixed parameters and optimizer grid ranges, with metadata,
// serialized as YAML or JSON.
package strategy

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ksk-taka/stock-prediction-sub003/internal/signal"
	"github.com/ksk-taka/stock-prediction-sub003/pkg/backtest"
)

// SchemaVersion is the current spec document schema version.
const SchemaVersion = "1.0.0"

// Metadata identifies and describes a spec document
type Metadata struct {
	ID            string    `yaml:"id" json:"id"`
	Name          string    `yaml:"name" json:"name"`
	Description   string    `yaml:"description,omitempty" json:"description,omitempty"`
	Author        string    `yaml:"author,omitempty" json:"author,omitempty"`
	Tags          []string  `yaml:"tags,omitempty" json:"tags,omitempty"`
	SchemaVersion string    `yaml:"schema_version" json:"schema_version"`
	CreatedAt     time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt     time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`
	Source        string    `yaml:"source,omitempty" json:"source,omitempty"`
}

// ParamRange is one named parameter's ordered candidate values
type ParamRange struct {
	Name   string    `yaml:"name" json:"name"`
	Values []float64 `yaml:"values" json:"values"`
}

// Spec is a complete tunable-strategy document. Params are the fixed
// parameter values; Grid holds the ranges an optimizer may sweep.
type Spec struct {
	Metadata Metadata           `yaml:"metadata" json:"metadata"`
	Strategy signal.StrategyID  `yaml:"strategy" json:"strategy"`
	Params   map[string]float64 `yaml:"params,omitempty" json:"params,omitempty"`
	Grid     []ParamRange       `yaml:"grid,omitempty" json:"grid,omitempty"`
}

// Validate checks the document is usable: known strategy, compatible schema
// version, well-formed grid ranges, finite parameter values.
func (s *Spec) Validate() error {
	if _, err := signal.New(s.Strategy); err != nil {
		return fmt.Errorf("spec strategy: %w", err)
	}
	if s.Metadata.SchemaVersion != "" && !compatibleSchema(s.Metadata.SchemaVersion) {
		return fmt.Errorf("incompatible schema version %q (current %s)",
			s.Metadata.SchemaVersion, SchemaVersion)
	}
	for name, v := range s.Params {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("param %q has non-finite value", name)
		}
	}
	seen := make(map[string]bool)
	for _, r := range s.Grid {
		if r.Name == "" {
			return fmt.Errorf("grid range with empty name")
		}
		if seen[r.Name] {
			return fmt.Errorf("duplicate grid range %q", r.Name)
		}
		seen[r.Name] = true
		if len(r.Values) == 0 {
			return fmt.Errorf("grid range %q has no values", r.Name)
		}
		for _, v := range r.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("grid range %q has non-finite value", r.Name)
			}
		}
	}
	return nil
}

// compatibleSchema accepts any version with the same major component
func compatibleSchema(version string) bool {
	return major(version) == major(SchemaVersion)
}

func major(version string) string {
	if i := strings.IndexByte(version, '.'); i >= 0 {
		return version[:i]
	}
	return version
}

// ParamSet returns the fixed parameters as an optimizer param set.
func (s *Spec) ParamSet() backtest.ParamSet {
	ps := make(backtest.ParamSet, len(s.Params))
	for name, v := range s.Params {
		ps[name] = v
	}
	return ps
}

// SearchGrid returns the grid ranges in optimizer form, preserving order.
func (s *Spec) SearchGrid() backtest.Grid {
	grid := make(backtest.Grid, len(s.Grid))
	for i, r := range s.Grid {
		values := make([]float64, len(r.Values))
		copy(values, r.Values)
		grid[i] = backtest.ParamRange{Name: r.Name, Values: values}
	}
	return grid
}

// Generator instantiates the document's signal generator.
func (s *Spec) Generator() (signal.Generator, error) {
	return signal.New(s.Strategy)
}
