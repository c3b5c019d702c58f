package transition

import (
	"fmt"
	"strings"
)

// Mode selects the duration arithmetic applied at a join.
type Mode int

const (
	// ModeNone is a hard cut.
	ModeNone Mode = iota
	// ModeNoIncrease overlaps the crossfade with the tail of the preceding
	// clip, so the join leaves total duration unchanged.
	ModeNoIncrease
	// ModeIncrease inserts the crossfade between both full clips, adding its
	// duration to the total.
	ModeIncrease
)

var modeNames = map[Mode]string{
	ModeNone:       "none",
	ModeNoIncrease: "no_increase",
	ModeIncrease:   "increase",
}

// UnknownModeError reports a mode name that is not none, no_increase or increase.
type UnknownModeError struct {
	Name string
}

func (e *UnknownModeError) Error() string {
	return fmt.Sprintf("unknown transition mode %q (want none, no_increase or increase)", e.Name)
}

func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Valid reports whether m is one of the three defined modes.
func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

// Crossfades reports whether a join in mode m with duration d renders a
// crossfade. A zero duration degenerates to a cut in every mode.
func (m Mode) Crossfades(d float64) bool {
	return m != ModeNone && d > 0
}

// Delta returns how much a join of duration d adds to the total duration.
func (m Mode) Delta(d float64) float64 {
	if m == ModeIncrease && d > 0 {
		return d
	}
	return 0
}

// ParseMode accepts the canonical names plus dash and "crossfade_" spellings.
func ParseMode(name string) (Mode, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.ReplaceAll(key, "-", "_")
	key = strings.TrimPrefix(key, "crossfade_")
	switch key {
	case "none", "cut", "simple":
		return ModeNone, nil
	case "no_increase", "noincrease":
		return ModeNoIncrease, nil
	case "increase":
		return ModeIncrease, nil
	}
	return ModeNone, &UnknownModeError{Name: name}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("invalid transition mode %d", int(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
