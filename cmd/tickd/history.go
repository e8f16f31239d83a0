package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"tickd/internal/app"
	"tickd/internal/config"
)

func newHistoryCmd(cfgPath *string) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print the most recent runs from the run journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.NewManager(*cfgPath).Load(context.Background())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			runs, err := app.RecentRuns(ctx, cfg, n)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STARTED\tTASK\tMODE\tOUTCOME\tLATE\tTOOK\tERROR")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.Started.Local().Format(time.DateTime),
					r.Name, r.Mode, r.Outcome,
					time.Duration(r.LatenessMS)*time.Millisecond,
					time.Duration(r.DurationMS)*time.Millisecond,
					r.Error,
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&n, "limit", "n", 20, "number of runs to show")
	return cmd
}
