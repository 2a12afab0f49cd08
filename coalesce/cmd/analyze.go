package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/coalesce/analysis"
	"github.com/sarchlab/coalesce/coalescing"
	"github.com/sarchlab/coalesce/config"
	"github.com/sarchlab/coalesce/datarecording"
	"github.com/sarchlab/coalesce/monitoring"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <kernel.yaml>",
	Short: "Predict the transactions and bank conflicts of every memory access.",
	Long: "`analyze <kernel.yaml>` analyzes every kernel of the file, or the " +
		"one selected with --kernel, and prints one YAML report per kernel.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true

		err := runAnalyze(cmd.OutOrStdout(), args[0], readAnalyzeFlags(cmd))
		if err != nil {
			atexit.Fatalf("Error: %v", err)
		}
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.StringP("kernel", "k", "", "analyze only the kernel with this name")
	f.String("hardware", "", "hardware configuration file")
	f.String("args", "", "kernel argument configuration file")
	f.String("ndrange", "", "index space configuration file")
	f.Int("local-size-x", 0, "override the work-group size along x")
	f.Int("local-size-y", 0, "override the work-group size along y")
	f.Int("local-size-z", 0, "override the work-group size along z")
	f.Int("groups-x", 0, "override the number of work-groups along x")
	f.Int("groups-y", 0, "override the number of work-groups along y")
	f.Int("groups-z", 0, "override the number of work-groups along z")
	f.Bool("full-simulation", false,
		"simulate every warp of the selected work-group")
	f.Bool("loop-multiplier", false,
		"multiply accesses in loops by the loop trip count")
	f.Bool("annotate", false, "print the kernels with their annotations")
	f.String("db", "", "record the results in this SQLite database")
	f.String("csv", "", "write the results to this CSV file")
	f.Bool("monitor", false, "serve the results over HTTP while analyzing")
	f.Int("monitor-port", 0, "port of the monitoring server")

	rootCmd.AddCommand(analyzeCmd)
}

type analyzeOptions struct {
	kernel         string
	paths          config.Paths
	overrides      config.Overrides
	loopMultiplier bool
	annotate       bool
	db             string
	csv            string
	monitor        *monitoring.Monitor
}

func readAnalyzeFlags(cmd *cobra.Command) analyzeOptions {
	f := cmd.Flags()

	var o analyzeOptions

	o.kernel, _ = f.GetString("kernel")
	o.loopMultiplier, _ = f.GetBool("loop-multiplier")
	o.annotate, _ = f.GetBool("annotate")
	o.db, _ = f.GetString("db")
	o.csv, _ = f.GetString("csv")
	o.overrides.FullSimulation, _ = f.GetBool("full-simulation")

	if monitor, _ := f.GetBool("monitor"); monitor {
		port, _ := f.GetInt("monitor-port")
		o.monitor = monitoring.NewMonitor().WithPortNumber(port)
		o.monitor.StartServer()
	}

	for axis, name := range []string{"x", "y", "z"} {
		o.overrides.LocalSize[axis], _ = f.GetInt("local-size-" + name)
		o.overrides.NumberOfGroups[axis], _ = f.GetInt("groups-" + name)
	}

	o.paths = config.DefaultPaths()

	if v, _ := f.GetString("hardware"); v != "" {
		o.paths.Hardware = v
	}

	if v, _ := f.GetString("args"); v != "" {
		o.paths.KernelArgs = v
	}

	if v, _ := f.GetString("ndrange"); v != "" {
		o.paths.NDRange = v
	}

	return o
}

type configuration struct {
	hw   coalescing.HardwareConfig
	nd   config.NDRangeConfig
	args []config.KernelArgs
}

func loadConfiguration(paths config.Paths) (*configuration, error) {
	var (
		c   configuration
		err error
	)

	if c.hw, err = config.LoadHardware(paths.Hardware); err != nil {
		return nil, err
	}

	if c.nd, err = config.LoadNDRange(paths.NDRange); err != nil {
		return nil, err
	}

	if c.args, err = config.LoadKernelArgs(paths.KernelArgs); err != nil {
		return nil, err
	}

	return &c, nil
}

func runAnalyze(w io.Writer, path string, o analyzeOptions) error {
	kernels, err := selectKernels(path, o.kernel)
	if err != nil {
		return err
	}

	c, err := loadConfiguration(o.paths)
	if err != nil {
		return err
	}

	var recorder datarecording.DataRecorder
	if o.db != "" {
		recorder, err = datarecording.New(o.db)
		if err != nil {
			return err
		}
		defer recorder.Close()
	}

	var csvSink *analysis.CSVSink
	if o.csv != "" {
		csvSink, err = analysis.NewCSVSink(o.csv)
		if err != nil {
			return err
		}
		defer csvSink.Close()
	}

	var progress *monitoring.ProgressBar
	if o.monitor != nil {
		progress = o.monitor.CreateProgressBar("kernels", uint64(len(kernels)))
		defer o.monitor.CompleteProgressBar(progress)
	}

	for _, fn := range kernels {
		if progress != nil {
			progress.IncrementInProgress(1)
		}

		env, err := config.BuildEnvironment(fn, c.hw, c.nd, c.args, o.overrides)
		if err != nil {
			return err
		}

		var sinks teeSink

		if recorder != nil {
			sinks = append(sinks, datarecording.NewAccessRecorder(recorder,
				datarecording.RunEntry{
					Kernel:         fn.Name(),
					Warps:          len(env.Warps),
					LoopMultiplier: o.loopMultiplier,
				}))
		}

		if csvSink != nil {
			sinks = append(sinks, csvSink)
		}

		b := analysis.MakeBuilder().
			WithEnvironment(env).
			WithLoopMultiplier(o.loopMultiplier)

		if len(sinks) > 0 {
			b = b.WithSink(sinks)
		}

		a, err := b.Build(fn)
		if err != nil {
			return err
		}

		report, err := a.Run()
		if err != nil {
			return err
		}

		if o.monitor != nil {
			o.monitor.RegisterResult(fn, report)
			progress.MoveInProgressToFinished(1)
		}

		fmt.Fprintf(w, "--- # %s\n", fn.Name())

		if err := report.WriteYAML(w); err != nil {
			return err
		}

		if o.annotate {
			fn.Print(w)
		}
	}

	return nil
}

// teeSink forwards accesses to several sinks.
type teeSink []analysis.AccessSink

func (t teeSink) AddAccess(entry analysis.AccessEntry) {
	for _, s := range t {
		s.AddAccess(entry)
	}
}

func (t teeSink) Flush() {
	for _, s := range t {
		s.Flush()
	}
}
