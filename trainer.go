package cardsched

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ModelEvaluation scores a parameter set against a set of items.
type ModelEvaluation struct {
	LogLoss  float64 `json:"log_loss"`
	RMSEBins float64 `json:"rmse_bins"`
}

// ParamsOptimizer fits FSRS parameters. The optimizer package provides the
// standard implementation.
type ParamsOptimizer interface {
	// ComputeParameters trains on items. It should report progress on p and
	// return ErrInterrupted soon after p.WantAbort becomes true.
	ComputeParameters(ctx context.Context, items []FSRSItem, p *CombinedProgress) (Parameters, error)
	Evaluate(ctx context.Context, params Parameters, items []FSRSItem) (ModelEvaluation, error)
}

// CombinedProgress is the progress of a running optimizer, shared between
// the optimizer and the goroutine publishing it.
type CombinedProgress struct {
	mu        sync.Mutex
	current   int
	total     int
	finished  bool
	wantAbort bool
}

// SetTotal sets the number of iterations the optimizer will run.
func (p *CombinedProgress) SetTotal(total int) {
	p.mu.Lock()
	p.total = total
	p.mu.Unlock()
}

// Advance records n finished iterations.
func (p *CombinedProgress) Advance(n int) {
	p.mu.Lock()
	p.current += n
	p.mu.Unlock()
}

// Finish marks the optimizer as done.
func (p *CombinedProgress) Finish() {
	p.mu.Lock()
	p.finished = true
	p.mu.Unlock()
}

// Abort asks the optimizer to stop.
func (p *CombinedProgress) Abort() {
	p.mu.Lock()
	p.wantAbort = true
	p.mu.Unlock()
}

// WantAbort reports whether the optimizer should stop.
func (p *CombinedProgress) WantAbort() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wantAbort
}

func (p *CombinedProgress) snapshot() (current, total int, finished bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.total, p.finished
}

// ComputeParamsProgress is published while parameters are computed.
type ComputeParamsProgress struct {
	CurrentIteration int
	TotalIterations  int
	Reviews          int
	CurrentPreset    int
	TotalPresets     int
}

// ComputeParamsRequest selects the history to train on.
type ComputeParamsRequest struct {
	Search             string
	IgnoreBefore       int64 // unix milliseconds
	CurrentParams      Parameters
	NumRelearningSteps int
	CurrentPreset      int
	TotalPresets       int
	HealthCheck        bool
	// Progress receives updates every poll interval. Returning an error
	// cancels the computation.
	Progress func(ComputeParamsProgress) error
}

// ComputeParamsResponse is the outcome of ComputeParams. ItemCount 0 means
// there was nothing to train on and Params are the current ones.
type ComputeParamsResponse struct {
	Params            Parameters
	ItemCount         int
	HealthCheckPassed *bool
}

// TrainerConfig configures a Trainer.
type TrainerConfig struct {
	Scheduler    *Scheduler      // required; supplies store, timing and logging
	Optimizer    ParamsOptimizer // required
	PollInterval time.Duration   // zero → 100ms
}

// Trainer fits and evaluates FSRS parameters from stored review history.
type Trainer struct {
	sched        *Scheduler
	opt          ParamsOptimizer
	pollInterval time.Duration
}

// NewTrainer creates a Trainer from the given config.
func NewTrainer(cfg TrainerConfig) (*Trainer, error) {
	if cfg.Scheduler == nil || cfg.Optimizer == nil {
		return nil, fmt.Errorf("%w: trainer needs a scheduler and an optimizer", ErrInvalidInput)
	}
	poll := cfg.PollInterval
	if poll == 0 {
		poll = 100 * time.Millisecond
	}
	return &Trainer{sched: cfg.Scheduler, opt: cfg.Optimizer, pollInterval: poll}, nil
}

// ComputeParams trains parameters on the history matched by req.Search.
// The current parameters are kept unless the trained ones have a lower log
// loss. Cancelling ctx or failing the progress callback returns
// ErrInterrupted.
func (t *Trainer) ComputeParams(ctx context.Context, req ComputeParamsRequest) (ComputeParamsResponse, error) {
	timing := t.sched.timing()
	revlog, err := t.sched.store.RevlogForSearch(ctx, req.Search)
	if err != nil {
		return ComputeParamsResponse{}, err
	}
	items, reviews := ItemsForTraining(revlog, timing.NextDayAt, req.IgnoreBefore)
	if len(items) == 0 {
		return ComputeParamsResponse{Params: req.CurrentParams}, nil
	}

	log := t.sched.logger.With(zap.String("run", uuid.NewString()), zap.String("search", req.Search))
	log.Info("computing params", zap.Int("items", len(items)), zap.Int("reviews", reviews))
	start := time.Now()

	params, err := t.optimize(ctx, items, reviews, &req)
	if errors.Is(err, ErrInsufficientData) {
		log.Info("too little history to train on, keeping current params", zap.Error(err))
		t.sched.recorder.TrainingFinished(len(items), time.Since(start).Seconds(), nil)
		return ComputeParamsResponse{Params: req.CurrentParams, ItemCount: len(items)}, nil
	}
	if err == nil {
		params, err = t.keepBetter(ctx, items, params, &req)
	}
	t.sched.recorder.TrainingFinished(len(items), time.Since(start).Seconds(), err)
	if err != nil {
		log.Warn("computing params failed", zap.Error(err))
		return ComputeParamsResponse{}, err
	}

	resp := ComputeParamsResponse{Params: params, ItemCount: len(items)}
	if req.HealthCheck && len(items) > 300 {
		passed, err := t.healthCheck(ctx, items)
		if err == nil {
			resp.HealthCheckPassed = &passed
		} else {
			log.Warn("health check failed", zap.Error(err))
		}
	}
	log.Info("params computed", zap.Duration("took", time.Since(start)), zap.Float64s("params", params.Slice()))
	return resp, nil
}

// optimize runs the optimizer on one goroutine while another publishes its
// progress every poll interval.
func (t *Trainer) optimize(ctx context.Context, items []FSRSItem, reviews int, req *ComputeParamsRequest) (Parameters, error) {
	progress := &CombinedProgress{}
	g, gctx := errgroup.WithContext(ctx)

	var params Parameters
	g.Go(func() error {
		defer progress.Finish()
		var err error
		params, err = t.opt.ComputeParameters(gctx, items, progress)
		return err
	})
	g.Go(func() error {
		ticker := time.NewTicker(t.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				progress.Abort()
				return nil
			case <-ticker.C:
			}
			current, total, finished := progress.snapshot()
			if req.Progress != nil {
				err := req.Progress(ComputeParamsProgress{
					CurrentIteration: current,
					TotalIterations:  total,
					Reviews:          reviews,
					CurrentPreset:    req.CurrentPreset,
					TotalPresets:     req.TotalPresets,
				})
				if err != nil {
					progress.Abort()
					return nil
				}
			}
			if finished {
				return nil
			}
		}
	})

	err := g.Wait()
	switch {
	case err == nil && progress.WantAbort():
		return Parameters{}, ErrInterrupted
	case errors.Is(err, ErrInterrupted), errors.Is(err, context.Canceled), ctx.Err() != nil:
		return Parameters{}, fmt.Errorf("%w: %v", ErrInterrupted, err)
	case err != nil:
		return Parameters{}, err
	}
	return params, nil
}

// keepBetter returns the current parameters unless the optimized ones fit
// items better. With several relearning steps, the current parameters are
// only kept when they let a card recover its stability within those steps.
func (t *Trainer) keepBetter(ctx context.Context, items []FSRSItem, optimized Parameters, req *ComputeParamsRequest) (Parameters, error) {
	currentModel, err := NewModel(req.CurrentParams)
	if err != nil {
		// Invalid current params can't be kept.
		return optimized, nil
	}
	current, err := t.opt.Evaluate(ctx, req.CurrentParams, items)
	if err != nil {
		return Parameters{}, err
	}
	trained, err := t.opt.Evaluate(ctx, optimized, items)
	if err != nil {
		return Parameters{}, err
	}
	if current.LogLoss > trained.LogLoss {
		return optimized, nil
	}
	if req.NumRelearningSteps <= 1 {
		return req.CurrentParams, nil
	}

	start := MemoryState{Stability: 1, Difficulty: 1}
	shortTerm := currentModel.NextStates(&start, 0.9, 2).Again.Memory
	for range req.NumRelearningSteps {
		shortTerm = currentModel.NextStates(&shortTerm, 0.9, 0).Good.Memory
	}
	if shortTerm.Stability < start.Stability {
		return req.CurrentParams, nil
	}
	return optimized, nil
}

// healthCheckSplits is the number of chronological folds the health check
// trains and scores.
const healthCheckSplits = 5

// healthCheck compares the out-of-sample fit against what is expected for
// the observed retention and item count.
func (t *Trainer) healthCheck(ctx context.Context, items []FSRSItem) (bool, error) {
	eval, err := t.evaluateTimeSeriesSplits(ctx, items)
	if err != nil {
		return false, err
	}
	recalled := 0
	for _, it := range items {
		if last, ok := it.LastReview(); ok && last.Rating > int(Again) {
			recalled++
		}
	}
	r := float64(recalled) / float64(len(items))
	adjustedLogLoss := eval.LogLoss / logLossAdjustment(r)
	adjustedRMSE := eval.RMSEBins / rmseAdjustment(r, len(items))
	return adjustedLogLoss <= 1.11 || adjustedRMSE <= 1.53, nil
}

// evaluateTimeSeriesSplits cuts the chronologically sorted items into
// healthCheckSplits+1 equal parts. Fold i trains a fresh model on parts
// [0, i) and scores it on part i; the last fold also scores the remainder.
// The result is the mean over folds that had enough data to train.
func (t *Trainer) evaluateTimeSeriesSplits(ctx context.Context, items []FSRSItem) (ModelEvaluation, error) {
	size := len(items) / (healthCheckSplits + 1)
	if size == 0 {
		return ModelEvaluation{}, ErrInsufficientData
	}
	var sum ModelEvaluation
	folds := 0
	for i := 1; i <= healthCheckSplits; i++ {
		train, test := items[:i*size], items[i*size:(i+1)*size]
		if i == healthCheckSplits {
			test = items[i*size:]
		}
		params, err := t.opt.ComputeParameters(ctx, train, &CombinedProgress{})
		if errors.Is(err, ErrInsufficientData) {
			continue
		}
		if err != nil {
			return ModelEvaluation{}, err
		}
		eval, err := t.opt.Evaluate(ctx, params, test)
		if err != nil {
			return ModelEvaluation{}, err
		}
		sum.LogLoss += eval.LogLoss
		sum.RMSEBins += eval.RMSEBins
		folds++
	}
	if folds == 0 {
		return ModelEvaluation{}, ErrInsufficientData
	}
	return ModelEvaluation{
		LogLoss:  sum.LogLoss / float64(folds),
		RMSEBins: sum.RMSEBins / float64(folds),
	}, nil
}

func logLossAdjustment(r float64) float64 {
	return 0.623 * math.Pow(4*r*(1-r), 0.738)
}

func rmseAdjustment(r float64, count int) float64 {
	return 0.0135/(math.Pow(r, 0.504)-1.14) + 0.176/(math.Pow(float64(count)/1000, 0.825)+2.22) + 0.101
}

// EvaluateParams scores params against the history matched by search.
func (t *Trainer) EvaluateParams(ctx context.Context, params Parameters, search string, ignoreBefore int64) (ModelEvaluation, error) {
	if err := ValidateParameters(params); err != nil {
		return ModelEvaluation{}, err
	}
	timing := t.sched.timing()
	revlog, err := t.sched.store.RevlogForSearch(ctx, search)
	if err != nil {
		return ModelEvaluation{}, err
	}
	items, _ := ItemsForTraining(revlog, timing.NextDayAt, ignoreBefore)
	if len(items) == 0 {
		return ModelEvaluation{}, fmt.Errorf("%w: no items match %q", ErrInsufficientData, search)
	}
	return t.opt.Evaluate(ctx, params, items)
}
