package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/coalesce/datarecording"
	"github.com/sarchlab/coalesce/monitoring"
)

var serveCmd = &cobra.Command{
	Use:   "serve <results.sqlite3>",
	Short: "Serve the runs recorded by analyze --db over HTTP.",
	Long: "`serve <results.sqlite3>` starts a web server that lists the " +
		"recorded runs at /api/runs and the accesses of one run at " +
		"/api/run/{id}. The server stops on interrupt.",
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cmd.SilenceUsage = true

		port, _ := cmd.Flags().GetInt("port")
		open, _ := cmd.Flags().GetBool("open")

		reader, err := datarecording.OpenRuns(args[0])
		if err != nil {
			atexit.Fatalf("Error: %v", err)
		}
		defer reader.Close()

		m := monitoring.NewMonitor().WithPortNumber(port)
		m.RegisterReader(reader)

		url := m.StartServer()

		if open {
			if err := browser.OpenURL(url + "/api/runs"); err != nil {
				log.Printf("cannot open a browser: %v", err)
			}
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		<-ctx.Done()
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "port of the server, random if unset")
	serveCmd.Flags().Bool("open", false, "open the run list in a browser")
	rootCmd.AddCommand(serveCmd)
}
