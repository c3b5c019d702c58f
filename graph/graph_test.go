package graph

import (
	"reflect"
	"strings"
	"testing"

	"clipjoin/models"
	"clipjoin/sequence"
	"clipjoin/timeline"
	"clipjoin/transition"
)

func plan(t *testing.T, b *sequence.Builder, infos []models.MediaInfo) (*sequence.Sequence, *timeline.Timeline) {
	t.Helper()
	seq, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	tl, err := timeline.Compute(seq, infos, timeline.Format{})
	if err != nil {
		t.Fatalf("Compute failed: %v", err)
	}
	return seq, tl
}

func info(d float64, audio bool) models.MediaInfo {
	return models.MediaInfo{Duration: d, Width: 1920, Height: 1080, FPS: 25, HasVideo: true, HasAudio: audio}
}

func TestEmit_CutFilterComplex(t *testing.T) {
	seq, tl := plan(t, sequence.New().Append("a.mp4").Append("b.mp4"), []models.MediaInfo{info(5, false), info(6, false)})

	desc, err := Emit(seq, tl)
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	conform := "setpts=PTS-STARTPTS,fps=fps=25," +
		"scale=w=1920:h=1080:force_original_aspect_ratio=decrease," +
		"pad=w=1920:h=1080:x=(ow-iw)/2:y=(oh-ih)/2,setsar=sar=1,format=pix_fmts=yuv420p,settb=AVTB"
	expected := "[0:v]" + conform + "[v0];" +
		"[1:v]" + conform + "[v1];" +
		"[v0][v1]concat=n=2:v=1:a=0[vout]"

	if got := desc.FilterComplex(); got != expected {
		t.Errorf("FilterComplex mismatch\n got: %s\nwant: %s", got, expected)
	}
	if desc.AudioOut != "" {
		t.Errorf("Expected video-only graph, got audio out %q", desc.AudioOut)
	}
	if !reflect.DeepEqual(desc.Inputs, []string{"a.mp4", "b.mp4"}) {
		t.Errorf("Unexpected inputs %v", desc.Inputs)
	}
	if desc.Duration != 11 {
		t.Errorf("Duration = %f; want 11", desc.Duration)
	}
}

func TestEmit_MixedChain(t *testing.T) {
	seq, tl := plan(t, sequence.New().
		Append("A").
		AppendWith("B", 1, transition.Fade, transition.ModeNoIncrease).
		AppendWith("C", 1, transition.Dissolve, transition.ModeIncrease),
		[]models.MediaInfo{info(15, true), info(15, false), info(15, true)})

	desc, err := Emit(seq, tl)
	if err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if desc.Duration != 46 {
		t.Errorf("Duration = %f; want 46", desc.Duration)
	}

	video := desc.Joins("v")
	if len(video) != 2 {
		t.Fatalf("Expected N-1 = 2 video joins, got %d", len(video))
	}
	want := []struct {
		inputs []string
		output string
		effect string
		offset string
	}{
		{[]string{"v0", "v1"}, "xv1", "fade", "14"},
		{[]string{"xv1", "v2"}, "vout", "dissolve", "30"},
	}
	for i, w := range want {
		st := video[i]
		if !reflect.DeepEqual(st.Inputs, w.inputs) || st.Output != w.output {
			t.Errorf("Join %d labels %v -> %s; want %v -> %s", i, st.Inputs, st.Output, w.inputs, w.output)
		}
		xf := st.Filters[0]
		if xf.Name != "xfade" {
			t.Fatalf("Join %d: expected xfade, got %s", i, xf.Name)
		}
		if v, _ := xf.Param("transition"); v != w.effect {
			t.Errorf("Join %d effect = %s; want %s", i, v, w.effect)
		}
		if v, _ := xf.Param("offset"); v != w.offset {
			t.Errorf("Join %d offset = %s; want %s", i, v, w.offset)
		}
		if v, _ := xf.Param("duration"); v != "1" {
			t.Errorf("Join %d duration = %s; want 1", i, v)
		}
	}

	audio := desc.Joins("a")
	if len(audio) != 2 || audio[1].Output != "aout" {
		t.Fatalf("Expected 2 audio joins ending in aout, got %+v", audio)
	}
	if audio[0].Filters[0].String() != "acrossfade=d=1" {
		t.Errorf("Unexpected audio join %s", audio[0].Filters[0])
	}
}

func TestEmit_Holds(t *testing.T) {
	seq, tl := plan(t, sequence.New().
		Append("A").
		AppendWith("B", 1, transition.Fade, transition.ModeNoIncrease).
		AppendWith("C", 0.5, transition.Fade, transition.ModeIncrease),
		[]models.MediaInfo{info(15, true), info(15, false), info(15, true)})

	desc, err := Emit(seq, tl)
	if err != nil {
		t.Fatal(err)
	}

	stages := map[string]Stage{}
	for _, s := range desc.Stages {
		stages[s.Output] = s
	}

	if strings.Contains(stages["v0"].String(), "tpad") {
		t.Error("First clip has no crossfade into it and no increase out of it")
	}
	if got := stages["v1"].String(); !strings.Contains(got, "tpad=start_mode=clone:start_duration=1:stop_mode=clone:stop_duration=0.5") {
		t.Errorf("Expected lead and tail hold on clip 1, got %s", got)
	}
	if got := stages["v2"].String(); !strings.Contains(got, "tpad=start_mode=clone:start_duration=0.5,settb=AVTB[") {
		t.Errorf("Expected lead hold on clip 2, got %s", got)
	}

	a1 := stages["a1"]
	if a1.Kind != KindSource || len(a1.Inputs) != 0 {
		t.Errorf("Clip without audio should get a generated source, got %+v", a1)
	}
	if got := a1.String(); !strings.HasPrefix(got, "anullsrc=r=48000:cl=stereo,atrim=duration=15,") {
		t.Errorf("Unexpected silence source %s", got)
	}
	if got := a1.String(); !strings.Contains(got, "adelay=delays=1000:all=1,apad=pad_dur=0.5[a1]") {
		t.Errorf("Expected adelay and apad on clip 1 audio, got %s", got)
	}
	if got := stages["a2"].String(); !strings.HasPrefix(got, "[2:a]asetpts=PTS-STARTPTS,aresample=48000,") {
		t.Errorf("Unexpected audio conform %s", got)
	}
}

func TestEmit_Trim(t *testing.T) {
	seq, tl := plan(t, sequence.New().Append("a").Trim(2.5, 4).Append("b"),
		[]models.MediaInfo{info(10, true), info(10, true)})

	desc, err := Emit(seq, tl)
	if err != nil {
		t.Fatal(err)
	}
	fc := desc.FilterComplex()
	if !strings.HasPrefix(fc, "[0:v]trim=start=2.5:duration=4,setpts=PTS-STARTPTS") {
		t.Errorf("Expected trim at start of clip 0 chain, got %s", fc)
	}
	if !strings.Contains(fc, "[0:a]atrim=start=2.5:duration=4,asetpts") {
		t.Errorf("Expected atrim on clip 0 audio, got %s", fc)
	}
	if strings.Contains(fc, "[1:v]trim") {
		t.Error("Untrimmed clip should not be trimmed")
	}
}

func TestEmit_ZeroDurationEmitsConcat(t *testing.T) {
	seq, tl := plan(t, sequence.New().Append("a").AppendWith("b", 0, transition.Fade, transition.ModeIncrease),
		[]models.MediaInfo{info(5, false), info(5, false)})
	desc, err := Emit(seq, tl)
	if err != nil {
		t.Fatal(err)
	}
	joins := desc.Joins("v")
	if len(joins) != 1 || joins[0].Kind != KindConcat {
		t.Errorf("Expected a concat stage, got %+v", joins)
	}
}

func TestEmit_CutThenCrossfadeSharesTimeBase(t *testing.T) {
	infos := []models.MediaInfo{info(5, false), info(5, false), info(5, false)}
	for i := range infos {
		infos[i].FPS = 30
	}
	seq, tl := plan(t, sequence.New().
		Append("a").
		Append("b").
		AppendWith("c", 1, transition.Fade, transition.ModeNoIncrease), infos)

	desc, err := Emit(seq, tl)
	if err != nil {
		t.Fatal(err)
	}

	joins := desc.Joins("v")
	if len(joins) != 2 || joins[0].Kind != KindConcat || joins[1].Kind != KindCrossfade {
		t.Fatalf("Expected concat then xfade, got %+v", joins)
	}
	if got := joins[1].String(); got != "[xv1][v2]xfade=transition=fade:duration=1:offset=9[vout]" {
		t.Errorf("Unexpected crossfade stage %s", got)
	}

	// Every stream reaching a join must already be on AVTB, the time base concat emits.
	for _, st := range desc.Stages {
		if st.Kind != KindConform || !strings.HasPrefix(st.Output, "v") {
			continue
		}
		last := st.Filters[len(st.Filters)-1]
		if last.String() != "settb=AVTB" {
			t.Errorf("Conform %s ends with %s; want settb=AVTB", st.Output, last)
		}
	}
}

func TestEmit_Deterministic(t *testing.T) {
	seq, tl := plan(t, sequence.New().
		Append("a").
		AppendWith("b", 1, transition.CircleOpen, transition.ModeIncrease).
		Append("c").
		AppendWith("d", 0.25, transition.SlideUp, transition.ModeNoIncrease),
		[]models.MediaInfo{info(3, true), info(4, false), info(5, true), info(6, true)})

	first, err := Emit(seq, tl)
	if err != nil {
		t.Fatal(err)
	}
	second, err := Emit(seq, tl)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("Emitting twice should produce identical descriptions")
	}
	if first.FilterComplex() != second.FilterComplex() {
		t.Error("Serialized graphs differ")
	}
}

func TestEmit_LabelsAreUnique(t *testing.T) {
	b := sequence.New().Append("c0")
	infos := []models.MediaInfo{info(5, true)}
	for i := 1; i < 8; i++ {
		b.AppendWith("c", 1, transition.Fade, transition.Mode(i%3))
		infos = append(infos, info(5, i%2 == 0))
	}
	seq, tl := plan(t, b, infos)

	desc, err := Emit(seq, tl)
	if err != nil {
		t.Fatal(err)
	}
	seen := map[string]bool{}
	for _, s := range desc.Stages {
		if seen[s.Output] {
			t.Errorf("Label %s written twice", s.Output)
		}
		seen[s.Output] = true
	}
	if len(desc.Joins("v")) != 7 || len(desc.Joins("a")) != 7 {
		t.Errorf("Expected 7 joins per stream")
	}
	if len(desc.Inputs) != 8 {
		t.Errorf("Expected 8 inputs, got %d", len(desc.Inputs))
	}
}

func TestEmit_RejectsMismatchedTimeline(t *testing.T) {
	seq, tl := plan(t, sequence.New().Append("a").Append("b"), []models.MediaInfo{info(5, false), info(5, false)})
	other, err := sequence.New().Append("a").Append("b").Append("c").Build()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := Emit(other, tl); err == nil {
		t.Error("Expected error for a timeline of a different length")
	}

	twin, err := sequence.New().Append("a").Append("b").Build()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Emit(twin, tl); err == nil {
		t.Error("Expected error for a timeline built from another sequence")
	}
	if _, err := Emit(seq, nil); err == nil {
		t.Error("Expected error for nil timeline")
	}
}

func TestEmitter_CustomFormats(t *testing.T) {
	seq, tl := plan(t, sequence.New().Append("a").Append("b"), []models.MediaInfo{info(5, true), info(5, true)})
	desc, err := Emitter{SampleRate: 44100, ChannelLayout: "mono", PixelFormat: "yuv420p10le"}.Emit(seq, tl)
	if err != nil {
		t.Fatal(err)
	}
	fc := desc.FilterComplex()
	for _, want := range []string{"format=pix_fmts=yuv420p10le", "aresample=44100", "channel_layouts=mono"} {
		if !strings.Contains(fc, want) {
			t.Errorf("Expected %q in %s", want, fc)
		}
	}
}

func TestFilterString(t *testing.T) {
	tests := []struct {
		filter   Filter
		expected string
	}{
		{Filter{Name: "null"}, "null"},
		{NewFilter("fps", "fps", "30"), "fps=fps=30"},
		{Filter{Name: "setpts", Params: []Param{{Value: "PTS-STARTPTS"}}}, "setpts=PTS-STARTPTS"},
		{NewFilter("xfade", "transition", "fade", "duration", "1", "offset", "4"), "xfade=transition=fade:duration=1:offset=4"},
	}
	for _, tt := range tests {
		if got := tt.filter.String(); got != tt.expected {
			t.Errorf("String() = %s; want %s", got, tt.expected)
		}
	}
}
