// Package models provides the core data structures shared across clipjoin.
package models

import (
	"fmt"
	"math"
	"strings"
)

// Clip references one input file as positioned in a sequence.
//
// TrimStart and TrimLength select a sub-range of the source. A zero
// TrimLength means "until the end of the source".
type Clip struct {
	Path       string  `json:"path" yaml:"path"`
	TrimStart  float64 `json:"trim_start,omitempty" yaml:"trim_start,omitempty"`
	TrimLength float64 `json:"trim_length,omitempty" yaml:"trim_length,omitempty"`
}

// Trimmed reports whether the clip selects a sub-range of its source.
func (c Clip) Trimmed() bool {
	return c.TrimStart > 0 || c.TrimLength > 0
}

// Validate checks the parts of a clip that do not depend on probing.
func (c Clip) Validate() error {
	if strings.TrimSpace(c.Path) == "" {
		return fmt.Errorf("path cannot be empty")
	}
	fields := []struct {
		name  string
		value float64
	}{{"trim_start", c.TrimStart}, {"trim_length", c.TrimLength}}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%s must be finite", f.name)
		}
		if f.value < 0 {
			return fmt.Errorf("%s cannot be negative", f.name)
		}
	}
	return nil
}

// EffectiveDuration returns the clip length after trimming a source of
// probedDuration seconds.
//
// Returns an error when the trim window does not fit in the source.
func (c Clip) EffectiveDuration(probedDuration float64) (float64, error) {
	if c.TrimStart >= probedDuration {
		return 0, fmt.Errorf("trim start %.3fs is beyond source duration %.3fs", c.TrimStart, probedDuration)
	}
	if c.TrimLength == 0 {
		return probedDuration - c.TrimStart, nil
	}
	if c.TrimStart+c.TrimLength > probedDuration+1e-6 {
		return 0, fmt.Errorf("trim window %.3fs+%.3fs exceeds source duration %.3fs",
			c.TrimStart, c.TrimLength, probedDuration)
	}
	return c.TrimLength, nil
}
