// Package timeline resolves a clip sequence into absolute offsets and a
// predictable total duration.
//
// The computation is a single left-to-right pass. L is the length of the
// timeline built so far and starts at clip 0's effective duration. For the
// join between clip i-1 and clip i with duration d:
//
//	cut (or d == 0)  offset L      clip i visible at L      L += eff[i]
//	no_increase      offset L-d    clip i visible at L-d    L += eff[i]
//	increase         offset L      clip i visible at L      L += d + eff[i]
//
// Every crossfade must satisfy d < min(eff[i-1], eff[i]). Nothing is clamped:
// a violation is reported as *InvalidTransitionError before any encode starts.
package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"clipjoin/ffprobe"
	"clipjoin/internal/timeutil"
	"clipjoin/models"
	"clipjoin/sequence"
	"clipjoin/transition"
)

// Fallback canvas when neither the caller nor clip 0 provide a size.
const (
	DefaultWidth  = 1920
	DefaultHeight = 1080
)

// InvalidTransitionError reports a crossfade that does not fit between its
// two clips.
type InvalidTransitionError struct {
	Index    int // join index; joins clip Index and Index+1
	PrevClip int
	NextClip int
	Duration float64
	Bound    float64
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("transition %d between clip %d and clip %d: duration %.3fs must be shorter than %.3fs",
		e.Index, e.PrevClip, e.NextClip, e.Duration, e.Bound)
}

// Format is the output canvas every clip is conformed to.
type Format struct {
	Width  int
	Height int
	FPS    float64
}

// ClipPlacement positions one clip in the output.
type ClipPlacement struct {
	Index     int
	Clip      models.Clip
	Info      models.MediaInfo
	Effective float64 // post-trim duration
	Start     float64 // first instant the clip is visible, including any crossfade into it
	End       float64 // instant its last frame is shown
	LeadHold  float64 // seconds its first frame is held while crossfading in
	TailHold  float64 // seconds its last frame is held while crossfading out (increase only)
}

// TransitionPlacement positions one join in the output.
type TransitionPlacement struct {
	Index     int
	Spec      transition.Spec
	Offset    float64 // crossfade start in the joined stream; the cut point for cuts
	Delta     float64 // contribution to the total duration
	Bound     float64 // duration must stay below this
	Crossfade bool
}

// Timeline is the resolved layout of a sequence.
type Timeline struct {
	SequenceID  string
	Clips       []ClipPlacement
	Transitions []TransitionPlacement
	Total       float64
	HasAudio    bool
	Format      Format
}

// Build probes each clip once, in order, and computes the timeline. A clip is
// probed before the join into it is validated, so the first failing clip or
// join stops the pass.
//
// Probe failures are returned unchanged (wrapped with the clip index).
func Build(ctx context.Context, seq *sequence.Sequence, prober ffprobe.Prober, canvas Format) (*Timeline, error) {
	probed := make(map[string]models.MediaInfo, seq.Len())
	lookup := func(i int) (models.MediaInfo, error) {
		path := seq.Clip(i).Path
		if info, ok := probed[path]; ok {
			return info, nil
		}
		info, err := prober.Probe(ctx, path)
		if err != nil {
			return models.MediaInfo{}, fmt.Errorf("probe clip %d: %w", i, err)
		}
		slog.Debug("probed clip", "sequence_id", seq.ID(), "clip", i, "path", path, "duration", info.Duration)
		probed[path] = *info
		return *info, nil
	}
	return compute(seq, lookup, canvas)
}

// Compute builds the timeline from already-probed metadata; infos[i]
// describes clip i. It performs no I/O.
func Compute(seq *sequence.Sequence, infos []models.MediaInfo, canvas Format) (*Timeline, error) {
	if len(infos) != seq.Len() {
		return nil, fmt.Errorf("got metadata for %d clips, sequence has %d", len(infos), seq.Len())
	}
	return compute(seq, func(i int) (models.MediaInfo, error) { return infos[i], nil }, canvas)
}

func compute(seq *sequence.Sequence, lookup func(int) (models.MediaInfo, error), canvas Format) (*Timeline, error) {
	if seq.Len() < 2 {
		return nil, &sequence.InsufficientClipsError{Count: seq.Len()}
	}

	tl := &Timeline{
		SequenceID:  seq.ID(),
		Clips:       make([]ClipPlacement, seq.Len()),
		Transitions: make([]TransitionPlacement, seq.Len()-1),
	}

	place := func(i int) error {
		info, err := lookup(i)
		if err != nil {
			return err
		}
		clip := seq.Clip(i)
		eff, err := clip.EffectiveDuration(info.Duration)
		if err != nil {
			return &sequence.DefinitionError{Index: i, Reason: "invalid trim", Err: err}
		}
		tl.Clips[i] = ClipPlacement{Index: i, Clip: clip, Info: info, Effective: eff}
		if info.HasAudio {
			tl.HasAudio = true
		}
		return nil
	}

	if err := place(0); err != nil {
		return nil, err
	}
	length := tl.Clips[0].Effective
	tl.Clips[0].End = length

	for i := 1; i < seq.Len(); i++ {
		if err := place(i); err != nil {
			return nil, err
		}
		prev, next := &tl.Clips[i-1], &tl.Clips[i]
		spec := seq.Transition(i - 1)
		d := spec.Duration

		tp := TransitionPlacement{
			Index:     i - 1,
			Spec:      spec,
			Bound:     math.Min(prev.Effective, next.Effective),
			Crossfade: spec.Crossfades(),
		}

		if tp.Crossfade && !(d < tp.Bound) {
			return nil, &InvalidTransitionError{
				Index:    i - 1,
				PrevClip: i - 1,
				NextClip: i,
				Duration: d,
				Bound:    tp.Bound,
			}
		}

		switch {
		case !tp.Crossfade:
			tp.Offset = length
			next.Start = length
		case spec.Mode == transition.ModeNoIncrease:
			tp.Offset = length - d
			next.Start = length - d
			next.LeadHold = d
		default:
			tp.Offset = length
			prev.TailHold = d
			prev.End = length + d
			next.Start = length
			next.LeadHold = d
		}
		tp.Delta = spec.Delta()
		length += tp.Delta + next.Effective
		next.End = length
		tl.Transitions[i-1] = tp
	}

	tl.Total = length
	tl.Format = resolveFormat(canvas, tl.Clips[0].Info)
	return tl, nil
}

func resolveFormat(canvas Format, first models.MediaInfo) Format {
	f := canvas
	if f.Width <= 0 || f.Height <= 0 {
		f.Width, f.Height = first.Width, first.Height
	}
	if f.Width <= 0 || f.Height <= 0 {
		f.Width, f.Height = DefaultWidth, DefaultHeight
	}
	// yuv420p needs even dimensions
	f.Width -= f.Width % 2
	f.Height -= f.Height % 2
	if f.FPS <= 0 {
		f.FPS = first.FPS
	}
	if f.FPS <= 0 || math.IsInf(f.FPS, 0) || math.IsNaN(f.FPS) {
		f.FPS = timeutil.DefaultFPS
	}
	return f
}

// Tolerance is the accepted difference between expected and measured
// duration: one output frame.
func (t *Timeline) Tolerance() float64 {
	return timeutil.FrameDuration(t.Format.FPS)
}

// Within reports whether a measured duration matches Total within one frame.
func (t *Timeline) Within(actual float64) bool {
	return timeutil.WithinFrame(t.Total, actual, t.Format.FPS)
}

// EffectiveSum returns the sum of all effective clip durations.
func (t *Timeline) EffectiveSum() float64 {
	var sum float64
	for _, c := range t.Clips {
		sum += c.Effective
	}
	return sum
}

// Verify re-checks that Total equals the sum of effective durations plus the
// sum of join deltas, and that joins are ordered.
func (t *Timeline) Verify() error {
	expected := t.EffectiveSum()
	for _, tr := range t.Transitions {
		expected += tr.Delta
	}
	if !timeutil.WithinFrame(expected, t.Total, t.Format.FPS) {
		return fmt.Errorf("timeline total %.6fs disagrees with clip and transition sum %.6fs", t.Total, expected)
	}
	for i := 1; i < len(t.Transitions); i++ {
		if t.Transitions[i].Offset < t.Transitions[i-1].Offset {
			return fmt.Errorf("transition %d offset %.3fs precedes transition %d offset %.3fs",
				i, t.Transitions[i].Offset, i-1, t.Transitions[i-1].Offset)
		}
	}
	return nil
}
