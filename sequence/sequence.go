// Package sequence provides the two-phase construction surface for clip
// sequences: a mutable Builder that accumulates clips and joins, and the
// immutable Sequence it produces.
//
// Example:
//
//	seq, err := sequence.New().
//		Append("a.mp4").
//		AppendWith("b.mp4", 1.0, transition.Fade, transition.ModeNoIncrease).
//		AppendWith("c.mp4", 1.0, transition.Dissolve, transition.ModeIncrease).
//		Build()
package sequence

import (
	"fmt"

	"github.com/google/uuid"

	"clipjoin/models"
	"clipjoin/transition"
)

// InsufficientClipsError is returned when a sequence is finalized with fewer
// than two clips.
type InsufficientClipsError struct {
	Count int
}

func (e *InsufficientClipsError) Error() string {
	return fmt.Sprintf("concatenation requires at least 2 clips, got %d", e.Count)
}

// DefinitionError reports a malformed clip or join in a sequence definition.
type DefinitionError struct {
	Index  int // clip index the problem is attached to
	Reason string
	Err    error
}

func (e *DefinitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("clip %d: %s: %v", e.Index, e.Reason, e.Err)
	}
	return fmt.Sprintf("clip %d: %s", e.Index, e.Reason)
}

func (e *DefinitionError) Unwrap() error { return e.Err }

// Sequence is an ordered alternation of clips and joins: N clips and N-1
// transitions. It is never mutated after Build.
type Sequence struct {
	id          string
	clips       []models.Clip
	transitions []transition.Spec
}

// ID uniquely identifies this sequence; it names temporary files and history rows.
func (s *Sequence) ID() string { return s.id }

// Len returns the number of clips.
func (s *Sequence) Len() int { return len(s.clips) }

// Clips returns a copy of the clips in order.
func (s *Sequence) Clips() []models.Clip {
	return append([]models.Clip(nil), s.clips...)
}

// Clip returns clip i.
func (s *Sequence) Clip(i int) models.Clip { return s.clips[i] }

// Transitions returns a copy of the joins; element i joins clip i and i+1.
func (s *Sequence) Transitions() []transition.Spec {
	return append([]transition.Spec(nil), s.transitions...)
}

// Transition returns the join between clip i and clip i+1.
func (s *Sequence) Transition(i int) transition.Spec { return s.transitions[i] }

// Builder accumulates clips and joins. The first error encountered is kept
// and reported by Build; later calls are ignored once an error is recorded.
type Builder struct {
	clips       []models.Clip
	transitions []transition.Spec
	err         error
}

// New returns an empty Builder.
func New() *Builder {
	return &Builder{}
}

// Append adds a clip joined to the previous one by a hard cut.
func (b *Builder) Append(path string) *Builder {
	return b.AppendClip(models.Clip{Path: path}, transition.Cut())
}

// AppendWith adds a clip joined to the previous one by a crossfade.
// The join is ignored for the first clip.
func (b *Builder) AppendWith(path string, duration float64, effect transition.Effect, mode transition.Mode) *Builder {
	return b.AppendClip(models.Clip{Path: path}, transition.Crossfade(duration, effect, mode))
}

// AppendClip adds clip joined to the previous one by join.
func (b *Builder) AppendClip(clip models.Clip, join transition.Spec) *Builder {
	if b.err != nil {
		return b
	}
	index := len(b.clips)
	if err := clip.Validate(); err != nil {
		b.err = &DefinitionError{Index: index, Reason: "invalid clip", Err: err}
		return b
	}
	if index > 0 {
		if err := join.Check(); err != nil {
			b.err = &DefinitionError{Index: index, Reason: "invalid transition", Err: err}
			return b
		}
		b.transitions = append(b.transitions, join.Normalized())
	}
	b.clips = append(b.clips, clip)
	return b
}

// Trim restricts the most recently appended clip to length seconds starting
// at start. A zero length keeps everything after start.
func (b *Builder) Trim(start, length float64) *Builder {
	if b.err != nil {
		return b
	}
	if len(b.clips) == 0 {
		b.err = &DefinitionError{Index: 0, Reason: "trim before any clip was appended"}
		return b
	}
	last := len(b.clips) - 1
	clip := b.clips[last]
	clip.TrimStart, clip.TrimLength = start, length
	if err := clip.Validate(); err != nil {
		b.err = &DefinitionError{Index: last, Reason: "invalid trim", Err: err}
		return b
	}
	b.clips[last] = clip
	return b
}

// Len returns the number of clips appended so far.
func (b *Builder) Len() int { return len(b.clips) }

// Build finalizes the sequence. The builder may keep being used afterwards;
// the returned Sequence does not share storage with it.
func (b *Builder) Build() (*Sequence, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.clips) < 2 {
		return nil, &InsufficientClipsError{Count: len(b.clips)}
	}
	return &Sequence{
		id:          uuid.NewString(),
		clips:       append([]models.Clip(nil), b.clips...),
		transitions: append([]transition.Spec(nil), b.transitions...),
	}, nil
}

// FromPaths builds a sequence from paths, joining clip i and i+1 with
// joins[i]. Missing joins are hard cuts; extra joins are an error.
func FromPaths(paths []string, joins []transition.Spec) (*Sequence, error) {
	if len(paths) > 0 && len(joins) > len(paths)-1 {
		return nil, &DefinitionError{
			Index:  len(paths) - 1,
			Reason: fmt.Sprintf("%d transitions given for %d clips", len(joins), len(paths)),
		}
	}
	b := New()
	for i, p := range paths {
		join := transition.Cut()
		if i > 0 && i-1 < len(joins) {
			join = joins[i-1]
		}
		b.AppendClip(models.Clip{Path: p}, join)
	}
	return b.Build()
}
