package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"diffusiond/internal/catalog"
	"diffusiond/internal/orchestrator"
	"diffusiond/pkg/types"
)

func newModelsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Scan the models directory and list usable packages",
		RunE: func(cmd *cobra.Command, args []string) error {
			scanner := catalog.NewScanner(a.log)
			entries, err := scanner.Scan(cmd.Context(), a.cfg.ModelsDir, a.cfg.ConditioningDir)
			if err != nil {
				return err
			}
			views := make([]types.Model, 0, len(entries))
			for _, e := range entries {
				views = append(views, orchestrator.ModelView(e))
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(types.ModelsResponse{Models: views})
			}
			printModels(cmd.OutOrStdout(), views)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the listing as JSON")
	return cmd
}

var (
	nameColor = color.New(color.FgCyan, color.Bold)
	tagColor  = color.New(color.FgYellow)
	dimColor  = color.New(color.Faint)
)

func printModels(w io.Writer, models []types.Model) {
	for _, m := range models {
		var tags []string
		tags = append(tags, m.Backend)
		if m.Attention != "" {
			tags = append(tags, m.Attention)
		}
		if m.LargeVariant {
			tags = append(tags, "large")
		}
		if m.ExtendedCapable {
			tags = append(tags, "controlled")
		}
		nameColor.Fprint(w, m.Name)
		fmt.Fprint(w, " ")
		tagColor.Fprintf(w, "[%s]", strings.Join(tags, ", "))
		if m.Resolution != nil {
			fmt.Fprintf(w, " %dx%d", m.Resolution.Width, m.Resolution.Height)
		}
		fmt.Fprintln(w)
		dimColor.Fprintf(w, "  %s\n", m.Path)
		if len(m.Schedulers) > 0 {
			dimColor.Fprintf(w, "  schedulers: %s\n", strings.Join(m.Schedulers, ", "))
		}
		for _, cn := range m.ControlNets {
			dimColor.Fprintf(w, "  conditioning: %s\n", cn.Name)
		}
	}
}
