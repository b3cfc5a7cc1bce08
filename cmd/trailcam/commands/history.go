package commands

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"trailcam/config"
	"trailcam/report"
)

// HistoryCommand holds the flags of the history command.
type HistoryCommand struct {
	configPath string
	limit      int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand() *cobra.Command {
	hc := &HistoryCommand{}

	cobraCmd := &cobra.Command{
		Use:   "history",
		Short: "Show the most recent runs from the run ledger",
		RunE:  hc.run,
	}

	cobraCmd.Flags().StringVarP(&hc.configPath, "config", "c", "", "Config file")
	cobraCmd.Flags().IntVarP(&hc.limit, "limit", "n", 20, "Number of runs to show")

	return cobraCmd
}

func (hc *HistoryCommand) run(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(hc.configPath)
	if err != nil {
		return err
	}

	path := cfg.LedgerPath()
	if path == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "Run history is disabled (history.database is off)")
		return nil
	}

	ledger, err := report.OpenLedger(path)
	if err != nil {
		return err
	}
	defer ledger.Close()

	runs, err := ledger.Recent(cmd.Context(), hc.limit)
	if err != nil {
		return err
	}
	renderHistory(cmd.OutOrStdout(), runs)
	return nil
}

func renderHistory(w io.Writer, runs []*report.Report) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded yet")
		return
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"When", "Status", "Frames", "Errors", "Avg FPS", "Device", "Output"})

	for _, r := range runs {
		tbl.AppendRow(table.Row{
			humanize.Time(r.Timestamp),
			r.Status,
			fmt.Sprintf("%s/%s", humanize.Comma(int64(r.FramesProcessed)), humanize.Comma(int64(r.TotalFrames))),
			r.FrameErrors,
			fmt.Sprintf("%.2f", r.AverageFPS()),
			r.Device,
			r.OutputPath,
		})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d runs", len(runs))})
	tbl.Render()
}
