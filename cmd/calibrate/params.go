package main

import (
	"github.com/pthm-cable/osmia/config"
)

// ParamSpec defines a single calibrated parameter.
type ParamSpec struct {
	Name    string  // Human-readable name
	Path    string  // Config path for logging
	Min     float64 // Lower bound
	Max     float64 // Upper bound
	Default float64 // Default value
	set     func(cfg *config.Config, v float64)
}

// ParamVector holds the set of all calibrated parameters.
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector creates the standard set of female and forage parameters
// that control fecundity and adult survival.
func NewParamVector() *ParamVector {
	return &ParamVector{
		Specs: []ParamSpec{
			{Name: "daily_mortality", Path: "female.daily_mortality", Min: 0.005, Max: 0.1, Default: 0.02,
				set: func(c *config.Config, v float64) { c.Female.DailyMortality = v }},
			{Name: "egg_load_const", Path: "female.egg_load_const", Min: 0, Max: 10, Default: 2.8399,
				set: func(c *config.Config, v float64) { c.Female.EggLoadConst = v }},
			{Name: "egg_load_slope", Path: "female.egg_load_slope", Min: 0, Max: 0.1, Default: 0.0371,
				set: func(c *config.Config, v float64) { c.Female.EggLoadSlope = v }},
			{Name: "competition", Path: "forage.competition", Min: 0.05, Max: 1, Default: 0.5,
				set: func(c *config.Config, v float64) { c.Forage.Competition = v }},
			{Name: "density_coefficient", Path: "forage.density_coefficient", Min: 0, Max: 0.02, Default: 0.002,
				set: func(c *config.Config, v float64) { c.Forage.DensityCoefficient = v }},
			{Name: "pollen_score_to_mg", Path: "forage.pollen_score_to_mg", Min: 0.1, Max: 2, Default: 0.8,
				set: func(c *config.Config, v float64) { c.Forage.PollenScoreToMg = v }},
		},
	}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// DefaultVector returns the default parameter values as a slice.
func (pv *ParamVector) DefaultVector() []float64 {
	v := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		v[i] = spec.Default
	}
	return v
}

// FromConfig reads the current parameter values from cfg, clamped to bounds.
func (pv *ParamVector) FromConfig(cfg *config.Config) []float64 {
	v := []float64{
		cfg.Female.DailyMortality,
		cfg.Female.EggLoadConst,
		cfg.Female.EggLoadSlope,
		cfg.Forage.Competition,
		cfg.Forage.DensityCoefficient,
		cfg.Forage.PollenScoreToMg,
	}
	return pv.Clamp(v)
}

// Normalize converts raw parameter values to [0,1] range.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	normalized := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		normalized[i] = (raw[i] - spec.Min) / (spec.Max - spec.Min)
	}
	return normalized
}

// Denormalize converts [0,1] values back to raw parameter values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	raw := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		raw[i] = spec.Min + normalized[i]*(spec.Max-spec.Min)
	}
	return raw
}

// Clamp ensures all values are within bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	clamped := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		clamped[i] = min(max(v[i], spec.Min), spec.Max)
	}
	return clamped
}

// ApplyToConfig writes clamped parameter values into cfg.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) {
	for i, v := range pv.Clamp(values) {
		pv.Specs[i].set(cfg, v)
	}
}
