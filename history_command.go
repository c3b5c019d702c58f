package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"clipjoin/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var output string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent renders and how their durations compared to the plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.cfg.HistoryDB == "" {
				return fmt.Errorf("render history is disabled (set history_db or --history-db)")
			}
			store, err := history.Open(ctx.cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer store.Close()

			var entries []history.Entry
			if output != "" {
				abs, err := filepath.Abs(output)
				if err != nil {
					return err
				}
				entries, err = store.ForOutput(cmd.Context(), abs)
				if err != nil {
					return err
				}
			} else {
				entries, err = store.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No renders recorded")
				return nil
			}
			rows := make([][]string, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, historyRow(e))
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "When", "Job", "Output", "Clips", "Expected", "Actual", "Drift", "Size", "Status"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of renders to show (0 = all)")
	cmd.Flags().StringVar(&output, "output", "", "Only show renders of this output file")
	return cmd
}

func historyRow(e history.Entry) []string {
	row := []string{
		strconv.FormatInt(e.ID, 10),
		humanize.Time(e.CreatedAt),
		e.Job,
		e.OutputPath,
		strconv.Itoa(e.ClipCount),
		fmt.Sprintf("%.3fs", e.Expected),
		"-",
		"-",
		"-",
		string(e.Status),
	}
	if e.Status != history.StatusFailed {
		row[6] = fmt.Sprintf("%.3fs", e.Actual)
		row[7] = fmt.Sprintf("%+.3fs", e.Drift())
		row[8] = humanize.Bytes(uint64(max(e.SizeBytes, 0)))
	} else if e.Error != "" {
		row[9] = "failed: " + e.Error
	}
	if e.Elapsed > 0 {
		row[1] += " (" + e.Elapsed.Round(time.Second).String() + ")"
	}
	return row
}
