// Package concatenator joins a clip sequence into one output file: it lays
// out the timeline, emits the filter graph, runs it once and reconciles the
// measured duration with the prediction.
package concatenator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"clipjoin/command/render"
	"clipjoin/ffprobe"
	"clipjoin/graph"
	"clipjoin/history"
	"clipjoin/models"
	"clipjoin/sequence"
	"clipjoin/timeline"
	"clipjoin/transition"
)

// Renderer executes an emitted graph. *ffmpeg.Executor satisfies it.
type Renderer interface {
	Execute(ctx context.Context, desc *graph.Description, outputPath string, quiet bool) (*models.RenderResult, error)
}

// commandPreviewer is implemented by renderers that can show the exact
// command line they would run.
type commandPreviewer interface {
	Command(desc *graph.Description, outputPath string) *render.Builder
}

// Recorder stores a line of render history. *history.Store satisfies it.
type Recorder interface {
	Record(ctx context.Context, e history.Entry) (int64, error)
}

// DriftError reports an output whose measured duration is more than one
// frame away from the predicted total.
type DriftError struct {
	Output    string
	Expected  float64
	Actual    float64
	Tolerance float64
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("output %s is %.3fs long, expected %.3fs (tolerance %.3fs)",
		e.Output, e.Actual, e.Expected, e.Tolerance)
}

// Options configure a Concatenator. The zero value renders on the first
// clip's canvas with the default emitter.
type Options struct {
	Canvas   timeline.Format
	Emitter  graph.Emitter
	Strict   bool // return *DriftError instead of only logging drift
	Quiet    bool // suppress engine progress
	Recorder Recorder
	Logger   *slog.Logger
}

// Concatenator plans and runs sequences.
type Concatenator struct {
	prober   ffprobe.Prober
	renderer Renderer
	opts     Options
	logger   *slog.Logger
}

// New creates a Concatenator. renderer may be nil for a planner that never
// executes.
func New(prober ffprobe.Prober, renderer Renderer, opts Options) *Concatenator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Concatenator{prober: prober, renderer: renderer, opts: opts, logger: logger}
}

// Plan is everything decided before the engine starts.
type Plan struct {
	Sequence *sequence.Sequence
	Timeline *timeline.Timeline
	Graph    *graph.Description
	Output   string
	Command  string // shell-quoted command line; empty when it cannot be built
}

// Expected returns the predicted output duration.
func (p *Plan) Expected() float64 { return p.Timeline.Total }

// Report is the outcome of a successful render.
type Report struct {
	Plan            *Plan
	Result          *models.RenderResult
	Expected        float64
	Drift           float64
	Tolerance       float64
	WithinTolerance bool
}

// Plan probes the clips, validates every transition and emits the graph.
// It never starts the engine.
func (c *Concatenator) Plan(ctx context.Context, seq *sequence.Sequence, outputPath string) (*Plan, error) {
	if seq == nil {
		return nil, fmt.Errorf("sequence is required")
	}
	tl, err := timeline.Build(ctx, seq, c.prober, c.opts.Canvas)
	if err != nil {
		return nil, err
	}
	if err := tl.Verify(); err != nil {
		return nil, err
	}
	desc, err := c.opts.Emitter.Emit(seq, tl)
	if err != nil {
		return nil, fmt.Errorf("emit graph: %w", err)
	}

	plan := &Plan{Sequence: seq, Timeline: tl, Graph: desc, Output: outputPath}
	if strings.TrimSpace(outputPath) != "" {
		var cmd *render.Builder
		if p, ok := c.renderer.(commandPreviewer); ok {
			cmd = p.Command(desc, outputPath)
		} else {
			cmd = render.NewBuilder(desc, outputPath)
		}
		if line, err := cmd.DryRun(); err == nil {
			plan.Command = line
		}
	}

	c.logger.Debug("sequence planned",
		"sequence_id", seq.ID(),
		"clips", seq.Len(),
		"expected_duration", tl.Total,
		"has_audio", tl.HasAudio)
	return plan, nil
}

// Run plans seq and renders it to outputPath with one engine invocation.
//
// Definition and probe errors are returned before the engine starts.
// Engine failures are returned as they come from the Renderer. Drift beyond
// one frame is logged; with Options.Strict the report is returned together
// with a *DriftError.
func (c *Concatenator) Run(ctx context.Context, seq *sequence.Sequence, outputPath string) (*Report, error) {
	return c.run(ctx, "", seq, outputPath)
}

func (c *Concatenator) run(ctx context.Context, job string, seq *sequence.Sequence, outputPath string) (*Report, error) {
	if c.renderer == nil {
		return nil, fmt.Errorf("no renderer configured")
	}
	if strings.TrimSpace(outputPath) == "" {
		return nil, fmt.Errorf("output path cannot be empty")
	}
	plan, err := c.Plan(ctx, seq, outputPath)
	if err != nil {
		return nil, err
	}

	result, err := c.renderer.Execute(ctx, plan.Graph, outputPath, c.opts.Quiet)
	if err != nil {
		c.record(ctx, history.Entry{
			SequenceID: seq.ID(),
			Job:        job,
			OutputPath: absPath(outputPath),
			ClipCount:  seq.Len(),
			Expected:   plan.Expected(),
			Status:     history.StatusFailed,
			Error:      firstLine(err),
		})
		return nil, err
	}

	tl := plan.Timeline
	report := &Report{
		Plan:            plan,
		Result:          result,
		Expected:        tl.Total,
		Drift:           result.Duration - tl.Total,
		Tolerance:       tl.Tolerance(),
		WithinTolerance: tl.Within(result.Duration),
	}

	status := history.StatusOK
	if !report.WithinTolerance {
		status = history.StatusDrift
		c.logger.Warn("output duration drifted",
			"sequence_id", seq.ID(),
			"output", result.OutputPath,
			"expected_duration", report.Expected,
			"duration", result.Duration,
			"drift", report.Drift)
	}
	c.record(ctx, history.Entry{
		SequenceID: seq.ID(),
		Job:        job,
		OutputPath: result.OutputPath,
		ClipCount:  seq.Len(),
		Expected:   report.Expected,
		Actual:     result.Duration,
		SizeBytes:  result.SizeBytes,
		Status:     status,
		Elapsed:    result.Elapsed,
	})

	if !report.WithinTolerance && c.opts.Strict {
		return report, &DriftError{
			Output:    result.OutputPath,
			Expected:  report.Expected,
			Actual:    result.Duration,
			Tolerance: report.Tolerance,
		}
	}
	return report, nil
}

func (c *Concatenator) record(ctx context.Context, e history.Entry) {
	if c.opts.Recorder == nil {
		return
	}
	// Record even when ctx is already cancelled.
	if _, err := c.opts.Recorder.Record(context.WithoutCancel(ctx), e); err != nil {
		c.logger.Warn("failed to record render history", "output", e.OutputPath, "error", err)
	}
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func firstLine(err error) string {
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

// IsDefinitionError reports whether err means the sequence itself is
// unusable, as opposed to a missing file or a failed render.
func IsDefinitionError(err error) bool {
	var (
		insufficient *sequence.InsufficientClipsError
		definition   *sequence.DefinitionError
		invalid      *timeline.InvalidTransitionError
		effect       *transition.UnknownEffectError
		mode         *transition.UnknownModeError
	)
	return errors.As(err, &insufficient) || errors.As(err, &definition) || errors.As(err, &invalid) ||
		errors.As(err, &effect) || errors.As(err, &mode)
}
