package concatenator

import (
	"context"
	"fmt"
	"sync"

	"clipjoin/command"
	"clipjoin/command/render"
	"clipjoin/models"
	"clipjoin/sequence"
)

// Job is one named render that the orchestrator can schedule. It
// implements command.Command.
type Job struct {
	Name     string
	Sequence *sequence.Sequence
	Output   string

	concat   *Concatenator
	priority int
	planOnly bool

	mu     sync.Mutex
	report *Report
	plan   *Plan
}

// NewJob wraps a sequence for batch rendering.
func (c *Concatenator) NewJob(name string, seq *sequence.Sequence, output string) *Job {
	return &Job{Name: name, Sequence: seq, Output: output, concat: c, priority: command.PriorityNormal}
}

// SetPreview switches the job to plan only: Run probes and plans but never
// starts the engine.
func (j *Job) SetPreview(preview bool) *Job {
	j.planOnly = preview
	return j
}

// Run renders the job. The report stays available through Report even when
// a strict drift check fails.
func (j *Job) Run(ctx context.Context) error {
	if j.planOnly {
		_, err := j.preview(ctx)
		return err
	}
	report, err := j.concat.run(ctx, j.Name, j.Sequence, j.Output)
	j.mu.Lock()
	j.report = report
	if report != nil {
		j.plan = report.Plan
	}
	j.mu.Unlock()
	return err
}

// Report returns the last run's report, or nil.
func (j *Job) Report() *Report {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.report
}

// Result returns the realized output of the last run, or nil.
func (j *Job) Result() *models.RenderResult {
	if r := j.Report(); r != nil {
		return r.Result
	}
	return nil
}

// preview plans the job once; it probes the clips but never renders.
func (j *Job) preview(ctx context.Context) (*Plan, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.plan != nil {
		return j.plan, nil
	}
	plan, err := j.concat.Plan(ctx, j.Sequence, j.Output)
	if err != nil {
		return nil, err
	}
	j.plan = plan
	return plan, nil
}

// BuildArgs returns the engine arguments, or nil when planning fails.
func (j *Job) BuildArgs() []string {
	plan, err := j.preview(context.Background())
	if err != nil {
		return nil
	}
	if p, ok := j.concat.renderer.(commandPreviewer); ok {
		return p.Command(plan.Graph, j.Output).BuildArgs()
	}
	return render.NewBuilder(plan.Graph, j.Output).BuildArgs()
}

// DryRun returns the command line the job would run.
func (j *Job) DryRun() (string, error) {
	plan, err := j.preview(context.Background())
	if err != nil {
		return "", err
	}
	if plan.Command == "" {
		return "", fmt.Errorf("job %s: no command available", j.Name)
	}
	return plan.Command, nil
}

func (j *Job) GetPriority() int { return j.priority }

func (j *Job) SetPriority(priority int) command.Command {
	j.priority = priority
	return j
}

func (j *Job) GetTaskType() command.TaskType {
	if j.planOnly {
		return command.TaskTypePreview
	}
	return command.TaskTypeRender
}

func (j *Job) GetInputPath() string {
	if j.Sequence == nil || j.Sequence.Len() == 0 {
		return ""
	}
	return j.Sequence.Clip(0).Path
}

func (j *Job) GetOutputPath() string { return j.Output }
