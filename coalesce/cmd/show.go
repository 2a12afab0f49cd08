package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/coalesce/datarecording"
)

var showCmd = &cobra.Command{
	Use:   "show <results.sqlite3>",
	Short: "Print the runs recorded by analyze --db.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true

		kernel, _ := cmd.Flags().GetString("kernel")

		err := runShow(cmd.Context(), cmd.OutOrStdout(), args[0], kernel)
		if err != nil {
			atexit.Fatalf("Error: %v", err)
		}
	},
}

func init() {
	showCmd.Flags().StringP("kernel", "k", "", "only print the runs of this kernel")
	rootCmd.AddCommand(showCmd)
}

func runShow(ctx context.Context, w io.Writer, path, kernel string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	reader, err := datarecording.OpenRuns(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	params := datarecording.QueryParams{OrderBy: "StartTime"}
	if kernel != "" {
		params.Where = "Kernel = ?"
		params.Args = []any{kernel}
	}

	runs, _, err := reader.Query(ctx, datarecording.RunsTable, params)
	if err != nil {
		return err
	}

	for _, r := range runs {
		run := r.(*datarecording.RunEntry)

		fmt.Fprintf(w, "run %s: kernel %s, %d warps, loop multiplier %t, %s\n",
			run.RunID, run.Kernel, run.Warps, run.LoopMultiplier, run.StartTime)

		accesses, _, err := reader.Query(ctx, datarecording.AccessesTable,
			datarecording.QueryParams{
				Where:   "RunID = ?",
				Args:    []any{run.RunID},
				OrderBy: "Position",
			})
		if err != nil {
			return err
		}

		for _, a := range accesses {
			access := a.(*datarecording.AccessRow)
			fmt.Fprintf(w, "  %3d %-5s %-7s %s: %s = %d\n",
				access.Position, access.Kind, access.AddressSpace,
				access.Block, access.Metric, access.Value)
		}
	}

	return nil
}
