package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"clipjoin/command"
	"clipjoin/concatenator"
	"clipjoin/orchestrator"
	"clipjoin/sequence"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "batch MANIFEST",
		Short: "Render every job in a YAML manifest, honouring depends_on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobs, err := sequence.LoadManifest(args[0])
			if err != nil {
				return err
			}
			jobs, err = selectJobs(jobs, only)
			if err != nil {
				return err
			}

			store := ctx.openHistory()
			defer store.Close()

			// One bar per terminal; concurrent renders log sampled progress instead.
			progressOut := cmd.ErrOrStderr()
			if ctx.cfg.Workers > 1 && len(jobs) > 1 {
				progressOut = io.Discard
			}

			dependents := make(map[string]bool)
			for _, job := range jobs {
				for _, dep := range job.DependsOn {
					dependents[dep] = true
				}
			}

			orch := orchestrator.NewDAGOrchestrator([]orchestrator.ResourceConstraint{
				{Type: orchestrator.ResourceEncode, MaxSlots: ctx.cfg.Workers},
			})
			displays := make(map[string]*progressDisplay, len(jobs))
			for _, job := range jobs {
				concat, display, err := ctx.newConcatenator(progressOut, job.Name, store)
				if err != nil {
					return err
				}
				render := concat.NewJob(job.Name, job.Sequence, job.Output).SetPreview(ctx.cfg.DryRun)
				// Jobs others wait on start first.
				if dependents[job.Name] {
					render.SetPriority(command.PriorityHigh)
				}
				displays[job.Name] = display

				if err := orch.AddTask(&orchestrator.Task{
					ID:           job.Name,
					Command:      render,
					Dependencies: job.DependsOn,
					Resource:     orchestrator.ResourceEncode,
				}); err != nil {
					return err
				}
			}

			if ctx.cfg.DryRun {
				finished, err := orch.Execute(cmd.Context())
				if err != nil {
					return err
				}
				return printBatchPlan(cmd.OutOrStdout(), finished)
			}

			orch.SetProgressCallback(func(completed, total int, task *orchestrator.Task) {
				displays[task.ID].Finish()
				if task.Status == orchestrator.TaskFailed {
					ctx.logger.Error("job failed", "job", task.ID, "completed", completed, "total", total, "error", task.Error)
					return
				}
				ctx.logger.Info("job finished", "job", task.ID, "completed", completed, "total", total)
			})

			ctx.logger.Info("batch started", "manifest", args[0], "jobs", len(jobs), "workers", ctx.cfg.Workers)
			start := time.Now()
			finished, runErr := orch.Execute(cmd.Context())
			printBatchSummary(cmd.OutOrStdout(), finished)
			stats := orch.GetStats()
			ctx.logger.Info("batch finished",
				"completed", stats.Completed,
				"failed", stats.Failed,
				"elapsed", time.Since(start).Round(time.Millisecond))

			if runErr != nil {
				return runErr
			}
			if stats.Failed > 0 {
				return fmt.Errorf("%d of %d jobs failed", stats.Failed, stats.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&only, "only", nil, "Render only these jobs (and what they depend on)")
	return cmd
}

// selectJobs keeps the named jobs plus everything they depend on.
func selectJobs(jobs []sequence.Job, names []string) ([]sequence.Job, error) {
	if len(names) == 0 {
		return jobs, nil
	}
	byName := make(map[string]sequence.Job, len(jobs))
	for _, job := range jobs {
		byName[job.Name] = job
	}

	keep := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		if keep[name] {
			return nil
		}
		job, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown job %q", name)
		}
		keep[name] = true
		for _, dep := range job.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range names {
		if err := visit(strings.TrimSpace(name)); err != nil {
			return nil, err
		}
	}

	selected := make([]sequence.Job, 0, len(keep))
	for _, job := range jobs {
		if keep[job.Name] {
			selected = append(selected, job)
		}
	}
	return selected, nil
}

// printBatchPlan prints the command of each previewed job in the order the
// jobs were scheduled. The first failure stops the listing.
func printBatchPlan(w io.Writer, tasks []*orchestrator.Task) error {
	for _, task := range tasks {
		if task.Status == orchestrator.TaskFailed {
			return fmt.Errorf("job %s: %w", task.ID, task.Error)
		}
		line, err := task.Command.DryRun()
		if err != nil {
			return fmt.Errorf("job %s: %w", task.ID, err)
		}
		fmt.Fprintf(w, "# %s\n%s\n", task.ID, line)
	}
	return nil
}

func printBatchSummary(out io.Writer, tasks []*orchestrator.Task) {
	if len(tasks) == 0 {
		return
	}
	sorted := append([]*orchestrator.Task(nil), tasks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	rows := make([][]string, 0, len(sorted))
	for _, task := range sorted {
		row := []string{task.ID, task.Status.String(), task.Command.GetOutputPath(), "", "", ""}
		if r := task.Result; r != nil {
			row[3] = fmt.Sprintf("%.3fs", r.Duration)
			row[4] = humanize.Bytes(uint64(max(r.SizeBytes, 0)))
			row[5] = r.Elapsed.Round(time.Second).String()
		}
		if task.Error != nil {
			row = append(row, firstLine(task.Error))
		} else {
			row = append(row, driftNote(task))
		}
		rows = append(rows, row)
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Job", "Status", "Output", "Duration", "Size", "Elapsed", "Note"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
}

func driftNote(task *orchestrator.Task) string {
	job, ok := task.Command.(*concatenator.Job)
	if !ok {
		return ""
	}
	report := job.Report()
	if report == nil || report.WithinTolerance {
		return ""
	}
	return fmt.Sprintf("drift %+.3fs", report.Drift)
}

func firstLine(err error) string {
	var drift *concatenator.DriftError
	if errors.As(err, &drift) {
		return fmt.Sprintf("drift %+.3fs (strict)", drift.Actual-drift.Expected)
	}
	msg := err.Error()
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return msg
}
