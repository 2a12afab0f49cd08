// Package cmd provides the command-line interface of coalesce.
package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/shirou/gopsutil/process"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/coalesce/config"
	"github.com/sarchlab/coalesce/kernel"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "coalesce",
	Short: "Coalesce statically predicts the memory behavior of GPU kernels.",
	Long: `Coalesce statically predicts how many memory transactions and ` +
		`local memory bank conflicts every load and store of a kernel ` +
		`causes, without running the kernel. Configuration file paths ` +
		`default to the ` + config.EnvHardwareConfig + `, ` +
		config.EnvKernelArgs + ` and ` + config.EnvNDRangeConfig +
		` environment variables, which can also be set in a .env file.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadDotEnv(".env")
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			logResources()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false,
		"log the resources used by the process")
}

// Execute adds all child commands to the root command and sets flags
// appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		atexit.Exit(1)
	}
}

func logResources() {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		log.Printf("cannot inspect process: %v", err)
		return
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		log.Printf("cannot read CPU usage: %v", err)
		return
	}

	mem, err := p.MemoryInfo()
	if err != nil {
		log.Printf("cannot read memory usage: %v", err)
		return
	}

	log.Printf("cpu %.1f%%, resident memory %d bytes", cpuPercent, mem.RSS)
}

// selectKernels returns the kernel named name, or every kernel of the
// module when name is empty.
func selectKernels(path, name string) ([]*kernel.Function, error) {
	m, err := kernel.LoadFile(path)
	if err != nil {
		return nil, err
	}

	if name == "" {
		return m.Kernels, nil
	}

	fn := m.Lookup(name)
	if fn == nil {
		return nil, fmt.Errorf("%s: no kernel named %s", path, name)
	}

	return []*kernel.Function{fn}, nil
}
