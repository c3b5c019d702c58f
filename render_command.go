package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"clipjoin/concatenator"
	"clipjoin/models"
	"clipjoin/sequence"
	"clipjoin/transition"
)

// sequenceFlags are the flags that describe a sequence on the command line.
type sequenceFlags struct {
	output     string
	crossfades string
	trimStart  []float64
	trimLength []float64
}

func (f *sequenceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "Output file")
	cmd.Flags().StringVarP(&f.crossfades, "crossfade", "x", "",
		"Joins between consecutive clips: duration[:mode[:effect]],... (mode: increase, no_increase, none)")
	cmd.Flags().Float64SliceVar(&f.trimStart, "trim-start", nil, "Per-clip trim start in seconds, comma separated")
	cmd.Flags().Float64SliceVar(&f.trimLength, "trim-length", nil, "Per-clip trim length in seconds (0 = to the end), comma separated")
}

// build turns positional clips and the join list into a sequence.
func (f *sequenceFlags) build(clips []string) (*sequence.Sequence, error) {
	joins, err := transition.ParseList(f.crossfades)
	if err != nil {
		return nil, &sequence.DefinitionError{Index: 0, Reason: "invalid --crossfade list", Err: err}
	}
	if len(f.trimStart) == 0 && len(f.trimLength) == 0 {
		return sequence.FromPaths(clips, joins)
	}
	if len(clips) > 0 && len(joins) > len(clips)-1 {
		return nil, &sequence.DefinitionError{
			Index:  len(clips) - 1,
			Reason: fmt.Sprintf("%d transitions given for %d clips", len(joins), len(clips)),
		}
	}
	if len(f.trimStart) > len(clips) || len(f.trimLength) > len(clips) {
		return nil, &sequence.DefinitionError{Index: len(clips), Reason: "more trim values than clips"}
	}

	b := sequence.New()
	for i, path := range clips {
		join := transition.Cut()
		if i > 0 && i-1 < len(joins) {
			join = joins[i-1]
		}
		b.AppendClip(clipAt(path, i, f.trimStart, f.trimLength), join)
	}
	return b.Build()
}

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var flags sequenceFlags

	cmd := &cobra.Command{
		Use:   "render [flags] CLIP CLIP...",
		Short: "Join clips into one output with a single ffmpeg run",
		Example: `  clipjoin render -o out.mp4 a.mp4 b.mp4 c.mp4
  clipjoin render -o out.mp4 -x 1:no_increase,1.5:increase:dissolve a.mp4 b.mp4 c.mp4`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireOutput(flags.output); err != nil {
				return err
			}
			seq, err := flags.build(args)
			if err != nil {
				return err
			}

			store := ctx.openHistory()
			defer store.Close()

			concat, display, err := ctx.newConcatenator(cmd.ErrOrStderr(), "", store)
			if err != nil {
				return err
			}

			if ctx.cfg.DryRun {
				plan, err := concat.Plan(cmd.Context(), seq, flags.output)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), plan.Command)
				return nil
			}

			report, err := concat.Run(cmd.Context(), seq, flags.output)
			display.Finish()
			if report != nil {
				printReport(cmd, report)
			}
			return err
		},
	}

	flags.register(cmd)
	return cmd
}

func printReport(cmd *cobra.Command, report *concatenator.Report) {
	r := report.Result
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %s (%.3fs, %s) in %s\n",
		r.OutputPath, r.Duration, humanize.Bytes(uint64(max(r.SizeBytes, 0))), r.Elapsed.Round(time.Millisecond))
	if !report.WithinTolerance {
		fmt.Fprintf(out, "Duration drift: expected %.3fs, measured %.3fs (%+.3fs, tolerance %.3fs)\n",
			report.Expected, r.Duration, report.Drift, report.Tolerance)
	}
}

func clipAt(path string, i int, starts, lengths []float64) models.Clip {
	clip := models.Clip{Path: path}
	if i < len(starts) {
		clip.TrimStart = starts[i]
	}
	if i < len(lengths) {
		clip.TrimLength = lengths[i]
	}
	return clip
}
