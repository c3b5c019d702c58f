// Package graph turns a resolved timeline into a single flat FFmpeg filter
// graph: one conform chain per clip and stream, followed by N-1 join stages
// threaded through labelled pads.
//
// Labels are deterministic. Clip i's conformed streams are [v<i>] and [a<i>],
// intermediate joins write [xv<k>] and [xa<k>], and the final join writes
// [vout] and [aout].
package graph

import (
	"fmt"
	"strings"

	"clipjoin/internal/timeutil"
	"clipjoin/sequence"
	"clipjoin/timeline"
	"clipjoin/transition"
)

// Terminal labels.
const (
	VideoOut = "vout"
	AudioOut = "aout"
)

// StageKind classifies a stage for display and tests.
type StageKind string

const (
	KindConform   StageKind = "conform" // per-clip normalization chain
	KindSource    StageKind = "source"  // generated input (silence)
	KindCrossfade StageKind = "crossfade"
	KindConcat    StageKind = "concat"
)

// Param is one filter option. An empty Key renders the value positionally.
type Param struct {
	Key   string
	Value string
}

// Filter is one FFmpeg filter with its options.
type Filter struct {
	Name   string
	Params []Param
}

// NewFilter builds a filter from alternating key/value strings.
func NewFilter(name string, kv ...string) Filter {
	f := Filter{Name: name}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Params = append(f.Params, Param{Key: kv[i], Value: kv[i+1]})
	}
	return f
}

// Param returns the value of key and whether it is set.
func (f Filter) Param(key string) (string, bool) {
	for _, p := range f.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

func (f Filter) String() string {
	if len(f.Params) == 0 {
		return f.Name
	}
	parts := make([]string, len(f.Params))
	for i, p := range f.Params {
		if p.Key == "" {
			parts[i] = p.Value
		} else {
			parts[i] = p.Key + "=" + p.Value
		}
	}
	return f.Name + "=" + strings.Join(parts, ":")
}

// Stage is a filter chain reading labelled inputs and writing one labelled output.
type Stage struct {
	Kind    StageKind
	Inputs  []string
	Filters []Filter
	Output  string
}

func (s Stage) String() string {
	var b strings.Builder
	for _, in := range s.Inputs {
		b.WriteString("[" + in + "]")
	}
	for i, f := range s.Filters {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.String())
	}
	b.WriteString("[" + s.Output + "]")
	return b.String()
}

// Description is the emitted graph plus what is needed to run it once.
type Description struct {
	SequenceID string
	Inputs     []string // input files, in -i order
	Stages     []Stage
	VideoOut   string
	AudioOut   string // empty when no clip has audio
	Duration   float64
	FPS        float64
}

// FilterComplex serializes the stages for -filter_complex.
func (d *Description) FilterComplex() string {
	parts := make([]string, len(d.Stages))
	for i, s := range d.Stages {
		parts[i] = s.String()
	}
	return strings.Join(parts, ";")
}

// Joins returns the join stages for one stream ("v" or "a") in order.
func (d *Description) Joins(stream string) []Stage {
	var out []Stage
	for _, s := range d.Stages {
		if s.Kind != KindCrossfade && s.Kind != KindConcat {
			continue
		}
		if strings.HasPrefix(s.Output, "x"+stream) || s.Output == stream+"out" {
			out = append(out, s)
		}
	}
	return out
}

// Emitter holds the audio and pixel formats every clip is conformed to.
type Emitter struct {
	SampleRate    int
	ChannelLayout string
	PixelFormat   string
}

// DefaultEmitter conforms to 48 kHz stereo and yuv420p.
var DefaultEmitter = Emitter{SampleRate: 48000, ChannelLayout: "stereo", PixelFormat: "yuv420p"}

// Emit builds the graph with DefaultEmitter.
func Emit(seq *sequence.Sequence, tl *timeline.Timeline) (*Description, error) {
	return DefaultEmitter.Emit(seq, tl)
}

// Emit builds the graph for seq as laid out by tl. It is pure: emitting
// twice from the same inputs yields identical descriptions.
func (e Emitter) Emit(seq *sequence.Sequence, tl *timeline.Timeline) (*Description, error) {
	if tl == nil || seq == nil {
		return nil, fmt.Errorf("sequence and timeline are required")
	}
	if len(tl.Clips) != seq.Len() || len(tl.Transitions) != seq.Len()-1 {
		return nil, fmt.Errorf("timeline has %d clips and %d transitions, sequence has %d clips",
			len(tl.Clips), len(tl.Transitions), seq.Len())
	}
	if tl.SequenceID != seq.ID() {
		return nil, fmt.Errorf("timeline %s was built for a different sequence than %s", tl.SequenceID, seq.ID())
	}
	e = e.withDefaults()

	desc := &Description{
		SequenceID: seq.ID(),
		Inputs:     make([]string, seq.Len()),
		VideoOut:   VideoOut,
		Duration:   tl.Total,
		FPS:        tl.Format.FPS,
	}
	if tl.HasAudio {
		desc.AudioOut = AudioOut
	}

	for i, c := range tl.Clips {
		desc.Inputs[i] = c.Clip.Path
		desc.Stages = append(desc.Stages, e.videoConform(c, tl.Format))
		if tl.HasAudio {
			desc.Stages = append(desc.Stages, e.audioConform(c))
		}
	}

	for k := 1; k < len(tl.Clips); k++ {
		tp := tl.Transitions[k-1]
		vs, err := videoJoin(k, len(tl.Clips), tp)
		if err != nil {
			return nil, err
		}
		desc.Stages = append(desc.Stages, vs)
		if tl.HasAudio {
			desc.Stages = append(desc.Stages, audioJoin(k, len(tl.Clips), tp))
		}
	}
	return desc, nil
}

func (e Emitter) withDefaults() Emitter {
	if e.SampleRate <= 0 {
		e.SampleRate = DefaultEmitter.SampleRate
	}
	if e.ChannelLayout == "" {
		e.ChannelLayout = DefaultEmitter.ChannelLayout
	}
	if e.PixelFormat == "" {
		e.PixelFormat = DefaultEmitter.PixelFormat
	}
	return e
}

func num(v float64) string { return timeutil.FormatFilterNumber(v) }

func (e Emitter) videoConform(c timeline.ClipPlacement, f timeline.Format) Stage {
	var filters []Filter
	if c.Clip.Trimmed() {
		filters = append(filters, NewFilter("trim", "start", num(c.Clip.TrimStart), "duration", num(c.Effective)))
	}
	w, h := fmt.Sprint(f.Width), fmt.Sprint(f.Height)
	filters = append(filters,
		Filter{Name: "setpts", Params: []Param{{Value: "PTS-STARTPTS"}}},
		NewFilter("fps", "fps", num(f.FPS)),
		NewFilter("scale", "w", w, "h", h, "force_original_aspect_ratio", "decrease"),
		NewFilter("pad", "w", w, "h", h, "x", "(ow-iw)/2", "y", "(oh-ih)/2"),
		NewFilter("setsar", "sar", "1"),
		NewFilter("format", "pix_fmts", e.PixelFormat),
	)
	if hold := holdFilter(c); hold != nil {
		filters = append(filters, *hold)
	}
	// concat joins emit AVTB; xfade needs both inputs on the same time base.
	filters = append(filters, Filter{Name: "settb", Params: []Param{{Value: "AVTB"}}})
	return Stage{
		Kind:    KindConform,
		Inputs:  []string{fmt.Sprintf("%d:v", c.Index)},
		Filters: filters,
		Output:  fmt.Sprintf("v%d", c.Index),
	}
}

// holdFilter freezes the first and last frames for the crossfade windows
// around the clip.
func holdFilter(c timeline.ClipPlacement) *Filter {
	if c.LeadHold <= 0 && c.TailHold <= 0 {
		return nil
	}
	f := Filter{Name: "tpad"}
	if c.LeadHold > 0 {
		f.Params = append(f.Params, Param{"start_mode", "clone"}, Param{"start_duration", num(c.LeadHold)})
	}
	if c.TailHold > 0 {
		f.Params = append(f.Params, Param{"stop_mode", "clone"}, Param{"stop_duration", num(c.TailHold)})
	}
	return &f
}

func (e Emitter) audioConform(c timeline.ClipPlacement) Stage {
	format := NewFilter("aformat",
		"sample_fmts", "fltp",
		"sample_rates", fmt.Sprint(e.SampleRate),
		"channel_layouts", e.ChannelLayout)

	st := Stage{Output: fmt.Sprintf("a%d", c.Index)}
	if c.Info.HasAudio {
		st.Kind = KindConform
		st.Inputs = []string{fmt.Sprintf("%d:a", c.Index)}
		if c.Clip.Trimmed() {
			st.Filters = append(st.Filters, NewFilter("atrim", "start", num(c.Clip.TrimStart), "duration", num(c.Effective)))
		}
		st.Filters = append(st.Filters,
			Filter{Name: "asetpts", Params: []Param{{Value: "PTS-STARTPTS"}}},
			Filter{Name: "aresample", Params: []Param{{Value: fmt.Sprint(e.SampleRate)}}},
			format,
		)
	} else {
		st.Kind = KindSource
		st.Filters = append(st.Filters,
			NewFilter("anullsrc", "r", fmt.Sprint(e.SampleRate), "cl", e.ChannelLayout),
			NewFilter("atrim", "duration", num(c.Effective)),
			format,
		)
	}

	if c.LeadHold > 0 {
		st.Filters = append(st.Filters, NewFilter("adelay", "delays", timeutil.FormatMillis(c.LeadHold), "all", "1"))
	}
	if c.TailHold > 0 {
		st.Filters = append(st.Filters, NewFilter("apad", "pad_dur", num(c.TailHold)))
	}
	return st
}

func joinLabels(stream string, k, n int) (left, right, out string) {
	left = fmt.Sprintf("x%s%d", stream, k-1)
	if k == 1 {
		left = fmt.Sprintf("%s0", stream)
	}
	right = fmt.Sprintf("%s%d", stream, k)
	out = fmt.Sprintf("x%s%d", stream, k)
	if k == n-1 {
		out = stream + "out"
	}
	return left, right, out
}

func videoJoin(k, n int, tp timeline.TransitionPlacement) (Stage, error) {
	left, right, out := joinLabels("v", k, n)
	st := Stage{Inputs: []string{left, right}, Output: out}
	if !tp.Crossfade {
		st.Kind = KindConcat
		st.Filters = []Filter{NewFilter("concat", "n", "2", "v", "1", "a", "0")}
		return st, nil
	}
	id, err := transition.Resolve(tp.Spec.Normalized().Effect)
	if err != nil {
		return Stage{}, fmt.Errorf("transition %d: %w", tp.Index, err)
	}
	st.Kind = KindCrossfade
	st.Filters = []Filter{NewFilter("xfade",
		"transition", id,
		"duration", num(tp.Spec.Duration),
		"offset", num(tp.Offset))}
	return st, nil
}

func audioJoin(k, n int, tp timeline.TransitionPlacement) Stage {
	left, right, out := joinLabels("a", k, n)
	st := Stage{Inputs: []string{left, right}, Output: out}
	if !tp.Crossfade {
		st.Kind = KindConcat
		st.Filters = []Filter{NewFilter("concat", "n", "2", "v", "0", "a", "1")}
		return st
	}
	st.Kind = KindCrossfade
	st.Filters = []Filter{NewFilter("acrossfade", "d", num(tp.Spec.Duration))}
	return st
}
