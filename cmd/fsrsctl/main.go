// Command fsrsctl trains FSRS parameters, recomputes memory states and
// answers cards against a sqlite collection.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sky-flux/cardsched"
	"github.com/sky-flux/cardsched/config"
	"github.com/sky-flux/cardsched/logger"
	"github.com/sky-flux/cardsched/metrics"
	"github.com/sky-flux/cardsched/optimizer"
	"github.com/sky-flux/cardsched/store"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app is what every subcommand runs against.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store *store.SQL
	sched *cardsched.Scheduler
	out   io.Writer
}

func newApp(out io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	st, err := store.OpenSQLite(cfg.DBPath, log)
	if err != nil {
		return nil, err
	}

	var recorder cardsched.Recorder
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		recorder = metrics.NewCollector(reg)
		go func() {
			if err := http.ListenAndServe(cfg.MetricsAddr, metrics.Handler(reg)); err != nil {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
	}

	sched, err := cardsched.NewScheduler(cardsched.SchedulerConfig{
		Store:                  st,
		Created:                cfg.Created,
		RolloverHour:           cfg.RolloverHour,
		FSRS:                   cfg.FSRS,
		FSRSShortTermWithSteps: cfg.FSRSShortTermWithSteps,
		DisableFuzzing:         cfg.DisableFuzzing,
		Logger:                 log,
		Recorder:               recorder,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return &app{cfg: cfg, log: log, store: st, sched: sched, out: out}, nil
}

func (a *app) close() {
	_ = a.log.Sync()
	_ = a.store.Close()
}

func (a *app) trainer() (*cardsched.Trainer, error) {
	opt := optimizer.New(optimizer.Config{
		Epochs:        a.cfg.TrainEpochs,
		MiniBatchSize: a.cfg.TrainBatchSize,
		Logger:        a.log.Named("optimizer"),
	})
	return cardsched.NewTrainer(cardsched.TrainerConfig{Scheduler: a.sched, Optimizer: opt})
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withApp adapts a subcommand body to cobra, handling setup and teardown.
func withApp(run func(ctx context.Context, a *app, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer a.close()
		return run(cmd.Context(), a, cmd, args)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "fsrsctl",
		Short:         "Spaced-repetition scheduling tools for a cardsched collection",
		Long:          "Settings are read from CARDSCHED_* environment variables (see config.Config).",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(paramsCommand(), memoryCommand(), answerCommand(), statesCommand(), presetsCommand())
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, cardsched.ErrInterrupted) {
			os.Exit(130)
		}
		os.Exit(1)
	}
}
