package concatenator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"clipjoin/command"
	"clipjoin/ffprobe"
	"clipjoin/graph"
	"clipjoin/history"
	"clipjoin/models"
	"clipjoin/sequence"
	"clipjoin/timeline"
	"clipjoin/transition"
)

type fakeProber struct {
	durations map[string]float64
}

func (p *fakeProber) Probe(_ context.Context, path string) (*models.MediaInfo, error) {
	d, ok := p.durations[path]
	if !ok {
		return nil, &ffprobe.MediaNotFoundError{Path: path}
	}
	return &models.MediaInfo{Path: path, Duration: d, Width: 1280, Height: 720, FPS: 30, HasVideo: true, HasAudio: true}, nil
}

// fakeRenderer returns a result with the configured measured duration.
type fakeRenderer struct {
	mu       sync.Mutex
	measured float64
	err      error
	calls    []*graph.Description
	quiet    []bool
}

func (r *fakeRenderer) Execute(_ context.Context, desc *graph.Description, outputPath string, quiet bool) (*models.RenderResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, desc)
	r.quiet = append(r.quiet, quiet)
	if r.err != nil {
		return nil, r.err
	}
	measured := r.measured
	if measured == 0 {
		measured = desc.Duration
	}
	result, err := models.NewRenderResult(desc.SequenceID, outputPath, measured, 4096)
	if err != nil {
		return nil, err
	}
	result.ExpectedDuration = desc.Duration
	return result, nil
}

type fakeRecorder struct {
	entries []history.Entry
}

func (r *fakeRecorder) Record(_ context.Context, e history.Entry) (int64, error) {
	r.entries = append(r.entries, e)
	return int64(len(r.entries)), nil
}

func fixtureProber() *fakeProber {
	return &fakeProber{durations: map[string]float64{"a.mp4": 15, "b.mp4": 15, "c.mp4": 15, "short.mp4": 0.5}}
}

// mixedSequence is three 15s clips joined by a 1s no_increase and a 1s
// increase crossfade: 46s in total.
func mixedSequence(t *testing.T) *sequence.Sequence {
	t.Helper()
	seq, err := sequence.New().
		Append("a.mp4").
		AppendWith("b.mp4", 1, transition.Fade, transition.ModeNoIncrease).
		AppendWith("c.mp4", 1, transition.Dissolve, transition.ModeIncrease).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return seq
}

func TestPlan_NeverRenders(t *testing.T) {
	renderer := &fakeRenderer{}
	c := New(fixtureProber(), renderer, Options{})

	plan, err := c.Plan(context.Background(), mixedSequence(t), "out.mp4")
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if len(renderer.calls) != 0 {
		t.Fatal("Plan must not start the engine")
	}
	if plan.Expected() != 46 {
		t.Errorf("Expected 46s, got %v", plan.Expected())
	}

	joins := plan.Graph.Joins("v")
	if len(joins) != 2 {
		t.Fatalf("Expected 2 video joins, got %d", len(joins))
	}
	for i, want := range []string{"14", "30"} {
		if off, _ := joins[i].Filters[0].Param("offset"); off != want {
			t.Errorf("join %d offset = %s, want %s", i, off, want)
		}
	}
	if !strings.Contains(plan.Command, "-filter_complex") || !strings.Contains(plan.Command, "out.mp4") {
		t.Errorf("Expected a command line, got %q", plan.Command)
	}
}

func TestPlan_NoOutputHasNoCommand(t *testing.T) {
	plan, err := New(fixtureProber(), nil, Options{}).Plan(context.Background(), mixedSequence(t), "")
	if err != nil {
		t.Fatal(err)
	}
	if plan.Command != "" {
		t.Errorf("Expected no command without an output, got %q", plan.Command)
	}
}

func TestRun_WithinTolerance(t *testing.T) {
	renderer := &fakeRenderer{measured: 46.02}
	recorder := &fakeRecorder{}
	c := New(fixtureProber(), renderer, Options{Quiet: true, Recorder: recorder})

	seq := mixedSequence(t)
	report, err := c.Run(context.Background(), seq, "out.mp4")
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(renderer.calls) != 1 {
		t.Fatalf("Expected exactly one engine invocation, got %d", len(renderer.calls))
	}
	if !renderer.quiet[0] {
		t.Error("Quiet option should reach the renderer")
	}
	if !report.WithinTolerance || report.Expected != 46 {
		t.Errorf("Unexpected report %+v", report)
	}
	if report.Result.OutputPath != "out.mp4" || report.Result.SequenceID != seq.ID() {
		t.Errorf("Unexpected result %+v", report.Result)
	}

	if len(recorder.entries) != 1 {
		t.Fatalf("Expected one history entry, got %d", len(recorder.entries))
	}
	e := recorder.entries[0]
	if e.Status != history.StatusOK || e.ClipCount != 3 || e.Actual != 46.02 || e.Expected != 46 {
		t.Errorf("Unexpected history entry %+v", e)
	}
}

func TestRun_Drift(t *testing.T) {
	tests := []struct {
		name    string
		strict  bool
		wantErr bool
	}{
		{"lenient", false, false},
		{"strict", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := &fakeRecorder{}
			c := New(fixtureProber(), &fakeRenderer{measured: 47}, Options{Strict: tt.strict, Recorder: recorder})

			report, err := c.Run(context.Background(), mixedSequence(t), "out.mp4")
			if report == nil {
				t.Fatal("Expected a report even when drifting")
			}
			if report.WithinTolerance || report.Drift != 1 {
				t.Errorf("Unexpected report %+v", report)
			}

			var drift *DriftError
			if got := errors.As(err, &drift); got != tt.wantErr {
				t.Fatalf("DriftError = %v, want %v (err %v)", got, tt.wantErr, err)
			}
			if tt.wantErr && (drift.Expected != 46 || drift.Actual != 47) {
				t.Errorf("Unexpected drift error %+v", drift)
			}
			if recorder.entries[0].Status != history.StatusDrift {
				t.Errorf("Expected drift status, got %s", recorder.entries[0].Status)
			}
		})
	}
}

func TestRun_DefinitionErrorsNeverReachEngine(t *testing.T) {
	tests := []struct {
		name       string
		build      func() (*sequence.Sequence, error)
		definition bool
		check      func(error) bool
	}{
		{
			name: "transition longer than clip",
			build: func() (*sequence.Sequence, error) {
				return sequence.New().Append("a.mp4").AppendWith("short.mp4", 1, transition.Fade, transition.ModeIncrease).Build()
			},
			definition: true,
			check: func(err error) bool {
				var e *timeline.InvalidTransitionError
				return errors.As(err, &e) && e.NextClip == 1
			},
		},
		{
			name: "transition equal to clip",
			build: func() (*sequence.Sequence, error) {
				return sequence.New().Append("a.mp4").AppendWith("b.mp4", 15, transition.Fade, transition.ModeNoIncrease).Build()
			},
			definition: true,
			check: func(err error) bool {
				var e *timeline.InvalidTransitionError
				return errors.As(err, &e)
			},
		},
		{
			name: "missing clip",
			build: func() (*sequence.Sequence, error) {
				return sequence.New().Append("a.mp4").Append("missing.mp4").Build()
			},
			definition: false,
			check: func(err error) bool {
				var e *ffprobe.MediaNotFoundError
				return errors.As(err, &e) && e.Path == "missing.mp4"
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seq, err := tt.build()
			if err != nil {
				t.Fatalf("Build failed: %v", err)
			}
			renderer := &fakeRenderer{}
			recorder := &fakeRecorder{}
			_, err = New(fixtureProber(), renderer, Options{Recorder: recorder}).Run(context.Background(), seq, "out.mp4")
			if err == nil || !tt.check(err) {
				t.Fatalf("Unexpected error %v", err)
			}
			if IsDefinitionError(err) != tt.definition {
				t.Errorf("IsDefinitionError = %v, want %v", !tt.definition, tt.definition)
			}
			if len(renderer.calls) != 0 {
				t.Error("Engine must not start for an invalid sequence")
			}
			if len(recorder.entries) != 0 {
				t.Error("Nothing rendered, nothing recorded")
			}
		})
	}
}

func TestRun_EngineFailure(t *testing.T) {
	engineErr := errors.New("render failed (exit code 1)\n[xfade] bad offset")
	recorder := &fakeRecorder{}
	c := New(fixtureProber(), &fakeRenderer{err: engineErr}, Options{Recorder: recorder})

	report, err := c.Run(context.Background(), mixedSequence(t), "out.mp4")
	if !errors.Is(err, engineErr) || report != nil {
		t.Fatalf("Expected engine error unchanged, got %v", err)
	}
	e := recorder.entries[0]
	if e.Status != history.StatusFailed || e.Error != "render failed (exit code 1)" {
		t.Errorf("Unexpected history entry %+v", e)
	}
	if !filepath.IsAbs(e.OutputPath) || filepath.Base(e.OutputPath) != "out.mp4" {
		t.Errorf("Expected absolute output path, got %q", e.OutputPath)
	}
}

func TestRun_RequiresRendererAndOutput(t *testing.T) {
	seq := mixedSequence(t)
	if _, err := New(fixtureProber(), nil, Options{}).Run(context.Background(), seq, "out.mp4"); err == nil {
		t.Error("Expected error without renderer")
	}
	if _, err := New(fixtureProber(), &fakeRenderer{}, Options{}).Run(context.Background(), seq, " "); err == nil {
		t.Error("Expected error without output")
	}
}

func TestJob_Command(t *testing.T) {
	renderer := &fakeRenderer{}
	c := New(fixtureProber(), renderer, Options{})
	job := c.NewJob("intro", mixedSequence(t), "intro.mp4")

	var cmd command.Command = job
	if cmd.GetTaskType() != command.TaskTypeRender || cmd.GetPriority() != command.PriorityNormal {
		t.Errorf("Unexpected defaults: %s %d", cmd.GetTaskType(), cmd.GetPriority())
	}
	if cmd.SetPriority(command.PriorityHigh).GetPriority() != command.PriorityHigh {
		t.Error("SetPriority did not stick")
	}
	if cmd.GetInputPath() != "a.mp4" || cmd.GetOutputPath() != "intro.mp4" {
		t.Errorf("Unexpected paths %s -> %s", cmd.GetInputPath(), cmd.GetOutputPath())
	}

	line, err := cmd.DryRun()
	if err != nil || !strings.Contains(line, "xfade") {
		t.Errorf("DryRun = %q, %v", line, err)
	}
	if args := cmd.BuildArgs(); len(args) == 0 || args[len(args)-1] != "intro.mp4" {
		t.Errorf("Unexpected args %v", args)
	}
	if len(renderer.calls) != 0 {
		t.Fatal("Previewing a job must not render")
	}

	if job.Result() != nil {
		t.Error("No result before Run")
	}
	if err := cmd.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if job.Result() == nil || job.Result().OutputPath != "intro.mp4" || job.Report() == nil {
		t.Errorf("Expected result after Run, got %+v", job.Result())
	}
}

func TestJob_PreviewPlansWithoutRendering(t *testing.T) {
	renderer := &fakeRenderer{}
	job := New(fixtureProber(), renderer, Options{}).NewJob("intro", mixedSequence(t), "intro.mp4").SetPreview(true)

	if job.GetTaskType() != command.TaskTypePreview {
		t.Errorf("GetTaskType() = %s; want preview", job.GetTaskType())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(renderer.calls) != 0 {
		t.Errorf("Preview must not render, got %d calls", len(renderer.calls))
	}
	if job.Result() != nil {
		t.Error("Preview produces no result")
	}
	if line, err := job.DryRun(); err != nil || !strings.Contains(line, "xfade") {
		t.Errorf("DryRun = %q, %v", line, err)
	}

	broken, err := sequence.New().Append("a.mp4").Append("missing.mp4").Build()
	if err != nil {
		t.Fatal(err)
	}
	failing := New(fixtureProber(), renderer, Options{}).NewJob("broken", broken, "o.mp4").SetPreview(true)
	if err := failing.Run(context.Background()); err == nil {
		t.Error("Expected planning error from preview Run")
	}
}

func TestJob_DryRunFailsForInvalidSequence(t *testing.T) {
	seq, err := sequence.New().Append("a.mp4").Append("missing.mp4").Build()
	if err != nil {
		t.Fatal(err)
	}
	job := New(fixtureProber(), &fakeRenderer{}, Options{}).NewJob("broken", seq, "o.mp4")
	if _, err := job.DryRun(); err == nil {
		t.Error("Expected DryRun error")
	}
	if args := job.BuildArgs(); args != nil {
		t.Errorf("Expected no args, got %v", args)
	}
}

func TestDriftError_Message(t *testing.T) {
	err := &DriftError{Output: "o.mp4", Expected: 46, Actual: 47, Tolerance: 0.04}
	if !strings.Contains(err.Error(), "47.000s") || !strings.Contains(err.Error(), "46.000s") {
		t.Errorf("Unexpected message %q", err.Error())
	}
}
