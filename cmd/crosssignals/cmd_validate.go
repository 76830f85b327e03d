package main

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aepodrez/crosssignals/internal/signal"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [definition.yaml ...]",
		Short: "Validate signal definitions without running them",
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := args
			if len(paths) == 0 {
				cfg, err := loadConfig()
				if err != nil {
					return err
				}
				defs, err := signal.LoadDefinitionDir(cfg.SignalDir)
				if err != nil {
					return err
				}
				for _, d := range defs {
					reportDefinition(d)
				}
				log.Info().Int("signals", len(defs)).Msg("all definitions valid")
				return nil
			}
			for _, p := range paths {
				def, err := signal.LoadDefinition(p)
				if err != nil {
					return fmt.Errorf("%s: %w", p, err)
				}
				reportDefinition(def)
			}
			log.Info().Int("signals", len(paths)).Msg("all definitions valid")
			return nil
		},
	}
}

func reportDefinition(d *signal.Definition) {
	ev := log.Info().Str("signal", d.Name).Str("output", d.Output)
	if d.UsesLead() {
		ev = ev.Bool("forward_looking", true)
	}
	ev.Msg("definition valid")
}
