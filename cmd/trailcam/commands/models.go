package commands

import (
	"fmt"
	"io"
	"slices"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"trailcam/catalog"
	"trailcam/config"
)

// ModelsCommand holds the flags of the models command.
type ModelsCommand struct {
	dir       string
	recommend string
	all       bool
}

// NewModelsCommand creates the models command.
func NewModelsCommand() *cobra.Command {
	mc := &ModelsCommand{}

	cobraCmd := &cobra.Command{
		Use:   "models",
		Short: "List catalog models and which are available locally",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return mc.run(cmd.OutOrStdout())
		},
	}

	cobraCmd.Flags().StringVar(&mc.dir, "model-dir", config.DefaultModelDir, "Directory holding model files")
	cobraCmd.Flags().StringVar(&mc.recommend, "recommend", "", "Print the model for a use case (speed, general, balanced, accuracy, best)")
	cobraCmd.Flags().BoolVar(&mc.all, "all", false, "Include YOLOv8 and YOLOv10 entries")

	return cobraCmd
}

func (mc *ModelsCommand) run(w io.Writer) error {
	if mc.recommend != "" {
		m := catalog.Recommend(mc.recommend)
		if !slices.Contains(catalog.UseCases(), mc.recommend) {
			color.New(color.FgYellow).Fprintf(w, "Unknown use case %q, showing the general recommendation\n", mc.recommend)
		}
		color.New(color.FgGreen).Fprintf(w, "%s (%s)\n", m.Name, m.File)
		fmt.Fprintf(w, "  %s\n", m.Description)
		return nil
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetStyle(table.StyleLight)
	tbl.AppendHeader(table.Row{"File", "Name", "Size MB", "CPU ms", "GPU ms", "mAP50-95", "Local"})

	shown := 0
	for _, m := range catalog.All() {
		if !mc.all && m.Family != catalog.DefaultFamily {
			continue
		}
		local := ""
		if catalog.Available(mc.dir, m) {
			local = "yes"
		}
		if m.HasSpecs {
			tbl.AppendRow(table.Row{m.File, m.Name, m.SizeMB, m.CPUMs, m.GPUMs, m.MAP50to95, local})
		} else {
			tbl.AppendRow(table.Row{m.File, m.Name, "-", "-", "-", "-", local})
		}
		shown++
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d models", shown)})
	tbl.Render()

	files, err := catalog.Local(mc.dir)
	if err != nil {
		return err
	}
	var unknown []string
	for _, f := range files {
		if _, lookupErr := catalog.Lookup(f); lookupErr != nil {
			unknown = append(unknown, f)
		}
	}
	if len(unknown) > 0 {
		fmt.Fprintf(w, "Other models in %s: %v\n", mc.dir, unknown)
	}
	return nil
}
