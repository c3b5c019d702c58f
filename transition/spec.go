package transition

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Spec describes the join between two adjacent clips.
type Spec struct {
	Duration float64 `json:"duration" yaml:"duration"`
	Mode     Mode    `json:"mode" yaml:"mode"`
	Effect   Effect  `json:"effect,omitempty" yaml:"effect,omitempty"`
}

// Cut returns a hard-cut join.
func Cut() Spec {
	return Spec{Mode: ModeNone}
}

// Crossfade returns a crossfade join.
func Crossfade(duration float64, effect Effect, mode Mode) Spec {
	return Spec{Duration: duration, Mode: mode, Effect: effect}
}

// Normalized returns s with a zero duration for cuts and the default effect
// filled in for crossfades.
func (s Spec) Normalized() Spec {
	if s.Mode == ModeNone {
		return Spec{Mode: ModeNone}
	}
	if s.Effect == "" {
		s.Effect = DefaultEffect
	}
	return s
}

// Crossfades reports whether the join renders a crossfade.
func (s Spec) Crossfades() bool {
	return s.Mode.Crossfades(s.Duration)
}

// Delta returns the join's contribution to total duration.
func (s Spec) Delta() float64 {
	return s.Mode.Delta(s.Duration)
}

// Check validates the parts of a join that do not depend on clip durations.
func (s Spec) Check() error {
	if !s.Mode.Valid() {
		return fmt.Errorf("invalid transition mode %d", int(s.Mode))
	}
	if math.IsNaN(s.Duration) || math.IsInf(s.Duration, 0) {
		return fmt.Errorf("transition duration must be finite")
	}
	if s.Duration < 0 {
		return fmt.Errorf("transition duration %.3fs is negative", s.Duration)
	}
	if s.Mode != ModeNone && s.Effect != "" {
		if _, err := Resolve(s.Effect); err != nil {
			return err
		}
	}
	return nil
}

func (s Spec) String() string {
	if !s.Crossfades() {
		return "cut"
	}
	return fmt.Sprintf("%s %.2fs (%s)", s.Normalized().Effect, s.Duration, s.Mode)
}

// ParseList parses a comma-separated join list such as
// "1.0:no_increase,1.5:increase:dissolve,2".
//
// Each element is duration[:mode[:effect]]. A missing mode means increase and
// a missing effect means fade. Empty input yields no specs.
func ParseList(list string) ([]Spec, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}

	parts := strings.Split(list, ",")
	specs := make([]Spec, 0, len(parts))
	for i, part := range parts {
		spec, err := parseElement(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("crossfade entry %d (%q): %w", i+1, part, err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseElement(elem string) (Spec, error) {
	if elem == "" {
		return Spec{}, fmt.Errorf("empty entry")
	}
	fields := strings.Split(elem, ":")
	if len(fields) > 3 {
		return Spec{}, fmt.Errorf("too many fields, want duration[:mode[:effect]]")
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(fields[0]), 64)
	if err != nil {
		return Spec{}, fmt.Errorf("invalid duration: %w", err)
	}

	spec := Spec{Duration: duration, Mode: ModeIncrease, Effect: DefaultEffect}
	if len(fields) > 1 {
		mode, err := ParseMode(fields[1])
		if err != nil {
			return Spec{}, err
		}
		spec.Mode = mode
	}
	if len(fields) > 2 {
		effect, err := ParseEffect(fields[2])
		if err != nil {
			return Spec{}, err
		}
		spec.Effect = effect
	}

	if err := spec.Check(); err != nil {
		return Spec{}, err
	}
	return spec.Normalized(), nil
}
