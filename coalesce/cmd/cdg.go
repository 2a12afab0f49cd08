package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/coalesce/cdg"
	"github.com/sarchlab/coalesce/dominance"
	"github.com/sarchlab/coalesce/guard"
	"github.com/sarchlab/coalesce/loopinfo"
	"github.com/sarchlab/coalesce/scev"
)

var cdgCmd = &cobra.Command{
	Use:   "cdg <kernel.yaml>",
	Short: "Print the control dependences and block guards of kernels.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true

		name, _ := cmd.Flags().GetString("kernel")
		showLoops, _ := cmd.Flags().GetBool("loops")

		err := runCDG(cmd.OutOrStdout(), args[0], name, showLoops)
		if err != nil {
			atexit.Fatalf("Error: %v", err)
		}
	},
}

func init() {
	cdgCmd.Flags().StringP("kernel", "k", "", "only print the kernel with this name")
	cdgCmd.Flags().Bool("loops", false, "also print the loop nest")
	rootCmd.AddCommand(cdgCmd)
}

func runCDG(w io.Writer, path, name string, showLoops bool) error {
	kernels, err := selectKernels(path, name)
	if err != nil {
		return err
	}

	for _, fn := range kernels {
		g, err := cdg.Build(fn, dominance.NewPostDominatorTree(fn))
		if err != nil {
			return err
		}

		loops := loopinfo.New(fn, dominance.NewDominatorTree(fn))
		mask := guard.Build(fn, g, scev.New(fn, loops))

		fmt.Fprintf(w, "kernel %s\n", fn.Name())
		g.Dump(w)
		fmt.Fprintln(w, "guards:")
		mask.Dump(w)

		if showLoops {
			fmt.Fprintln(w, "loops:")
			loops.Dump(w)
		}
	}

	return nil
}
