package main

import (
	"context"
	"fmt"

	"github.com/sky-flux/cardsched/config"
	"github.com/spf13/cobra"
)

func presetsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "presets",
		Short: "Manage deck presets",
	}
	load := &cobra.Command{
		Use:   "load [file]",
		Short: "Import deck presets and decks from YAML (defaults to CARDSCHED_PRESETS_FILE)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, args []string) error {
			path := a.cfg.PresetsFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no presets file given")
			}
			p, err := config.LoadPresets(path)
			if err != nil {
				return err
			}
			if err := a.store.PutDeckConfig(ctx, p.Configs...); err != nil {
				return err
			}
			if err := a.store.PutDeck(ctx, p.Decks...); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "loaded %d presets and %d decks\n", len(p.Configs), len(p.Decks))
			return nil
		}),
	}
	cmd.AddCommand(load)
	return cmd
}
