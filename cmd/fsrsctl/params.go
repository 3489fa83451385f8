package main

import (
	"context"
	"fmt"

	"github.com/sky-flux/cardsched"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func paramsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "params",
		Short: "Train or evaluate FSRS parameters",
	}

	var (
		presetID    int64
		search      string
		healthCheck bool
		save        bool
	)
	compute := &cobra.Command{
		Use:   "compute",
		Short: "Train parameters on a preset's review history",
		RunE: withApp(func(ctx context.Context, a *app, cmd *cobra.Command, _ []string) error {
			conf, err := a.store.GetDeckConfig(ctx, presetID)
			if err != nil {
				return err
			}
			conf.Normalize()
			current, err := conf.Parameters()
			if err != nil {
				return err
			}
			ignoreBefore, err := cardsched.IgnoreRevlogsBeforeMillis(conf.IgnoreRevlogsBeforeDate)
			if err != nil {
				return err
			}
			if search == "" {
				search = fmt.Sprintf("preset:%d", presetID)
			}
			trainer, err := a.trainer()
			if err != nil {
				return err
			}
			resp, err := trainer.ComputeParams(ctx, cardsched.ComputeParamsRequest{
				Search:             search,
				IgnoreBefore:       ignoreBefore,
				CurrentParams:      current,
				NumRelearningSteps: len(conf.RelearnSteps),
				CurrentPreset:      1,
				TotalPresets:       1,
				HealthCheck:        healthCheck,
				Progress: func(p cardsched.ComputeParamsProgress) error {
					fmt.Fprintf(cmd.ErrOrStderr(), "\r%d/%d iterations (%d reviews)", p.CurrentIteration, p.TotalIterations, p.Reviews)
					return nil
				},
			})
			fmt.Fprintln(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if save && resp.ItemCount > 0 {
				conf.FSRSParams = resp.Params.Slice()
				if err := a.store.UpdateDeckConfig(ctx, &conf); err != nil {
					return err
				}
				a.log.Info("saved params", zap.Int64("preset", presetID))
			}
			return a.printJSON(struct {
				Params            []float64 `json:"params"`
				ItemCount         int       `json:"item_count"`
				HealthCheckPassed *bool     `json:"health_check_passed,omitempty"`
			}{resp.Params.Slice(), resp.ItemCount, resp.HealthCheckPassed})
		}),
	}
	compute.Flags().Int64VarP(&presetID, "preset", "p", 1, "Deck config (preset) ID")
	compute.Flags().StringVarP(&search, "search", "s", "", "Card search; defaults to the preset's cards")
	compute.Flags().BoolVar(&healthCheck, "health-check", false, "Check the fit against expected error levels")
	compute.Flags().BoolVar(&save, "save", false, "Store the trained parameters on the preset")

	var params []float64
	evaluate := &cobra.Command{
		Use:   "evaluate",
		Short: "Score parameters against review history",
		RunE: withApp(func(ctx context.Context, a *app, _ *cobra.Command, _ []string) error {
			conf, err := a.store.GetDeckConfig(ctx, presetID)
			if err != nil {
				return err
			}
			if len(params) == 0 {
				params = conf.FSRSParams
			}
			p, err := cardsched.ParametersFromSlice(params)
			if err != nil {
				return err
			}
			ignoreBefore, err := cardsched.IgnoreRevlogsBeforeMillis(conf.IgnoreRevlogsBeforeDate)
			if err != nil {
				return err
			}
			if search == "" {
				search = fmt.Sprintf("preset:%d", presetID)
			}
			trainer, err := a.trainer()
			if err != nil {
				return err
			}
			eval, err := trainer.EvaluateParams(ctx, p, search, ignoreBefore)
			if err != nil {
				return err
			}
			return a.printJSON(eval)
		}),
	}
	evaluate.Flags().Int64VarP(&presetID, "preset", "p", 1, "Deck config (preset) ID")
	evaluate.Flags().StringVarP(&search, "search", "s", "", "Card search; defaults to the preset's cards")
	evaluate.Flags().Float64SliceVar(&params, "params", nil, "Parameters to score; defaults to the preset's")

	cmd.AddCommand(compute, evaluate)
	return cmd
}
