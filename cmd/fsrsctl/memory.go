package main

import (
	"context"
	"fmt"

	"github.com/sky-flux/cardsched"
	"github.com/spf13/cobra"
)

func memoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Maintain card memory states",
	}

	var (
		presetID   int64
		search     string
		reschedule bool
		disable    bool
	)
	update := &cobra.Command{
		Use:   "update",
		Short: "Recompute memory states from review history with a preset's parameters",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			conf, err := a.store.GetDeckConfig(ctx, presetID)
			if err != nil {
				return err
			}
			conf.Normalize()
			ignoreBefore, err := cardsched.IgnoreRevlogsBeforeMillis(conf.IgnoreRevlogsBeforeDate)
			if err != nil {
				return err
			}
			u := cardsched.MemoryStateUpdate{
				Search:              search,
				DesiredRetention:    conf.DesiredRetention,
				HistoricalRetention: conf.HistoricalRetention,
				MaximumInterval:     conf.MaximumReviewInterval,
				IgnoreBefore:        ignoreBefore,
				Reschedule:          reschedule,
			}
			if u.Search == "" {
				u.Search = fmt.Sprintf("preset:%d", presetID)
			}
			if !disable {
				p, err := conf.Parameters()
				if err != nil {
					return err
				}
				u.Params = &p
			}
			return a.sched.UpdateMemoryState(ctx, []cardsched.MemoryStateUpdate{u}, func(p cardsched.MemoryStateProgress) error {
				fmt.Fprintf(cmd.ErrOrStderr(), "\r%d/%d cards", p.Current, p.Total)
				if p.Current == p.Total {
					fmt.Fprintln(cmd.ErrOrStderr())
				}
				return nil
			})
		}),
	}
	update.Flags().Int64VarP(&presetID, "preset", "p", 1, "Deck config (preset) ID")
	update.Flags().StringVarP(&search, "search", "s", "", "Card search; defaults to the preset's cards")
	update.Flags().BoolVar(&reschedule, "reschedule", false, "Move review cards to the interval their new memory state implies")
	update.Flags().BoolVar(&disable, "disable", false, "Clear memory states instead of computing them")

	cmd.AddCommand(update)
	return cmd
}
