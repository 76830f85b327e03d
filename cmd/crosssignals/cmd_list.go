package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aepodrez/crosssignals/internal/signal"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available signal definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defs, err := signal.LoadDefinitionDir(cfg.SignalDir)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tINPUTS\tSTEPS\tOUTPUT\tDESCRIPTION")
			for _, d := range defs {
				fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n", d.Name, len(d.Inputs), len(d.Steps), d.Output, d.Description)
			}
			return w.Flush()
		},
	}
}
