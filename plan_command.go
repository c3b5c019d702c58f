package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"clipjoin/concatenator"
	"clipjoin/internal/timeutil"
)

func newPlanCommand(ctx *commandContext) *cobra.Command {
	var flags sequenceFlags
	var showGraph bool

	cmd := &cobra.Command{
		Use:   "plan [flags] CLIP CLIP...",
		Short: "Show the timeline, filter graph and ffmpeg command without rendering",
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := flags.build(args)
			if err != nil {
				return err
			}
			concat, _, err := ctx.newConcatenator(io.Discard, "", nil)
			if err != nil {
				return err
			}
			plan, err := concat.Plan(cmd.Context(), seq, flags.output)
			if err != nil {
				return err
			}
			printPlan(cmd.OutOrStdout(), plan, showGraph)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&showGraph, "graph", true, "Print the filter graph, one stage per line")
	return cmd
}

func printPlan(out io.Writer, plan *concatenator.Plan, showGraph bool) {
	tl := plan.Timeline

	clipRows := make([][]string, 0, len(tl.Clips))
	for _, c := range tl.Clips {
		clipRows = append(clipRows, []string{
			strconv.Itoa(c.Index),
			c.Clip.Path,
			seconds(c.Effective),
			timeutil.FormatSeconds(c.Start),
			timeutil.FormatSeconds(c.End),
			yesNo(c.Info.HasAudio),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Clip", "Length", "Start", "End", "Audio"},
		clipRows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))

	joinRows := make([][]string, 0, len(tl.Transitions))
	for _, tp := range tl.Transitions {
		effect := "cut"
		if tp.Crossfade {
			effect = tp.Spec.Effect.String()
		}
		joinRows = append(joinRows, []string{
			fmt.Sprintf("%d→%d", tp.Index, tp.Index+1),
			effect,
			tp.Spec.Mode.String(),
			seconds(tp.Spec.Duration),
			timeutil.FormatSeconds(tp.Offset),
			fmt.Sprintf("%+.3f", tp.Delta),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Join", "Effect", "Mode", "Duration", "Offset", "Delta"},
		joinRows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
	))

	fmt.Fprintf(out, "Expected duration: %s (%ss, tolerance %ss at %s fps)\n",
		timeutil.FormatSeconds(tl.Total), seconds(tl.Total), seconds(tl.Tolerance()),
		timeutil.FormatFilterNumber(tl.Format.FPS))
	fmt.Fprintf(out, "Canvas: %dx%d, audio: %s\n", tl.Format.Width, tl.Format.Height, yesNo(tl.HasAudio))

	if showGraph {
		fmt.Fprintln(out, "\nFilter graph:")
		for _, stage := range plan.Graph.Stages {
			fmt.Fprintf(out, "  %s\n", stage.String())
		}
	}
	if plan.Command != "" {
		fmt.Fprintf(out, "\nCommand:\n  %s\n", plan.Command)
	}
}

func seconds(v float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
