package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"clipjoin/transition"
)

func newEffectsCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "effects",
		Short:       "List the available transition effects and modes",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			effects := transition.Effects()
			rows := make([][]string, 0, len(effects))
			for i, e := range effects {
				name, err := transition.Resolve(e)
				if err != nil {
					return err
				}
				note := ""
				if e == transition.DefaultEffect {
					note = "default"
				}
				rows = append(rows, []string{strconv.Itoa(i + 1), e.String(), name, note})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"#", "Effect", "xfade", ""},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintln(out, "Modes:")
			fmt.Fprintln(out, "  increase     transition adds its duration to the output (default)")
			fmt.Fprintln(out, "  no_increase  clips overlap; the output is as long as the clips")
			fmt.Fprintln(out, "  none         hard cut")
			return nil
		},
	}
}
