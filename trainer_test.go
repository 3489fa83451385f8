package cardsched_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sky-flux/cardsched"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeOptimizer returns trained after ten iterations. The log loss of a
// parameter set is its first weight, so tests pick the winner directly.
type fakeOptimizer struct {
	trained cardsched.Parameters
	err     error
	block   bool
	calls   atomic.Int32
	// minItems makes smaller training sets insufficient.
	minItems int

	mu        sync.Mutex
	trainedOn []int
}

func (o *fakeOptimizer) ComputeParameters(ctx context.Context, items []cardsched.FSRSItem, p *cardsched.CombinedProgress) (cardsched.Parameters, error) {
	o.calls.Add(1)
	o.mu.Lock()
	o.trainedOn = append(o.trainedOn, len(items))
	o.mu.Unlock()
	if o.err != nil {
		return cardsched.Parameters{}, o.err
	}
	if len(items) < o.minItems {
		return cardsched.Parameters{}, cardsched.ErrInsufficientData
	}
	p.SetTotal(10)
	for i := 0; o.block || i < 10; i++ {
		if p.WantAbort() {
			return cardsched.Parameters{}, cardsched.ErrInterrupted
		}
		if err := ctx.Err(); err != nil {
			return cardsched.Parameters{}, err
		}
		p.Advance(1)
		time.Sleep(time.Millisecond)
	}
	return o.trained, nil
}

func (o *fakeOptimizer) Evaluate(_ context.Context, params cardsched.Parameters, items []cardsched.FSRSItem) (cardsched.ModelEvaluation, error) {
	if len(items) == 0 {
		return cardsched.ModelEvaluation{}, cardsched.ErrInsufficientData
	}
	return cardsched.ModelEvaluation{LogLoss: params[0], RMSEBins: 0.01}, nil
}

func newTrainer(t *testing.T, f *fixture, opt cardsched.ParamsOptimizer) *cardsched.Trainer {
	t.Helper()
	tr, err := cardsched.NewTrainer(cardsched.TrainerConfig{Scheduler: f.sched, Optimizer: opt, PollInterval: time.Millisecond})
	require.NoError(t, err)
	return tr
}

// withWeight returns the default parameters with w[0] replaced.
func withWeight(w0 float64) cardsched.Parameters {
	p := cardsched.DefaultParameters
	p[0] = w0
	return p
}

func TestNewTrainer(t *testing.T) {
	_, err := cardsched.NewTrainer(cardsched.TrainerConfig{})
	assert.ErrorIs(t, err, cardsched.ErrInvalidInput)

	f := newFixture(t)
	_, err = cardsched.NewTrainer(cardsched.TrainerConfig{Scheduler: f.sched})
	assert.ErrorIs(t, err, cardsched.ErrInvalidInput)
}

func TestComputeParamsNoMatchingCards(t *testing.T) {
	f := newFixture(t)
	f.putHistory(1)
	opt := &fakeOptimizer{trained: withWeight(0.1)}
	current := withWeight(0.5)

	resp, err := newTrainer(t, f, opt).ComputeParams(f.ctx, cardsched.ComputeParamsRequest{
		Search:        "cid:999",
		CurrentParams: current,
	})
	require.NoError(t, err)
	assert.Equal(t, current, resp.Params)
	assert.Zero(t, resp.ItemCount)
	assert.Nil(t, resp.HealthCheckPassed)
	assert.Zero(t, opt.calls.Load(), "nothing to train on")
}

func TestComputeParamsKeepsBetterFit(t *testing.T) {
	tests := []struct {
		name          string
		current       float64
		trained       float64
		relearnSteps  int
		wantTrainedW0 bool
	}{
		{"trained fits better", 0.5, 0.1, 1, true},
		{"current fits better", 0.1, 0.5, 1, false},
		{"equal fit keeps current", 0.3, 0.3, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.putHistory(1)
			f.putHistory(2)
			opt := &fakeOptimizer{trained: withWeight(tt.trained)}

			var updates []cardsched.ComputeParamsProgress
			resp, err := newTrainer(t, f, opt).ComputeParams(f.ctx, cardsched.ComputeParamsRequest{
				CurrentParams:      withWeight(tt.current),
				NumRelearningSteps: tt.relearnSteps,
				CurrentPreset:      1,
				TotalPresets:       2,
				Progress: func(p cardsched.ComputeParamsProgress) error {
					updates = append(updates, p)
					return nil
				},
			})
			require.NoError(t, err)
			assert.Equal(t, 2, resp.ItemCount, "one interday review per card")
			if tt.wantTrainedW0 {
				assert.Equal(t, withWeight(tt.trained), resp.Params)
			} else {
				assert.Equal(t, withWeight(tt.current), resp.Params)
			}

			require.NotEmpty(t, updates)
			last := updates[len(updates)-1]
			assert.Equal(t, 10, last.TotalIterations)
			assert.Equal(t, 6, last.Reviews)
			assert.Equal(t, 1, last.CurrentPreset)
			assert.Equal(t, 2, last.TotalPresets)
			require.Len(t, f.rec.training, 1)
			assert.NoError(t, f.rec.training[0])
		})
	}
}

// With several relearning steps, current params that fit no worse are only
// kept if a lapsed card can't climb back to its old stability within those
// steps.
func TestComputeParamsShortTermCheck(t *testing.T) {
	trained := withWeight(0.3)
	trained[1] = 1.5

	flat := withWeight(0.3)
	flat[17], flat[18], flat[19] = 0, 0, 0
	steep := withWeight(0.3)
	steep[17], steep[18] = 1.5, 0.5

	tests := []struct {
		name    string
		current cardsched.Parameters
		want    cardsched.Parameters
	}{
		{"stability can't recover", flat, flat},
		{"stability recovers", steep, trained},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.putHistory(1)
			resp, err := newTrainer(t, f, &fakeOptimizer{trained: trained}).ComputeParams(f.ctx, cardsched.ComputeParamsRequest{
				CurrentParams:      tt.current,
				NumRelearningSteps: 3,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.Params)
		})
	}
}

func TestComputeParamsInsufficientData(t *testing.T) {
	f := newFixture(t)
	f.putHistory(1)
	current := withWeight(0.4)
	opt := &fakeOptimizer{err: cardsched.ErrInsufficientData}

	resp, err := newTrainer(t, f, opt).ComputeParams(f.ctx, cardsched.ComputeParamsRequest{CurrentParams: current})
	require.NoError(t, err)
	assert.Equal(t, current, resp.Params)
	assert.Equal(t, 1, resp.ItemCount)
}

func TestComputeParamsOptimizerError(t *testing.T) {
	f := newFixture(t)
	f.putHistory(1)
	boom := errors.New("boom")

	_, err := newTrainer(t, f, &fakeOptimizer{err: boom}).ComputeParams(f.ctx, cardsched.ComputeParamsRequest{
		CurrentParams: cardsched.DefaultParameters,
	})
	require.ErrorIs(t, err, boom)
	require.Len(t, f.rec.training, 1)
	assert.ErrorIs(t, f.rec.training[0], boom)
}

func TestComputeParamsProgressAbort(t *testing.T) {
	f := newFixture(t)
	f.putHistory(1)
	opt := &fakeOptimizer{block: true}

	_, err := newTrainer(t, f, opt).ComputeParams(f.ctx, cardsched.ComputeParamsRequest{
		CurrentParams: cardsched.DefaultParameters,
		Progress: func(p cardsched.ComputeParamsProgress) error {
			if p.CurrentIteration >= 3 {
				return errors.New("user cancelled")
			}
			return nil
		},
	})
	assert.ErrorIs(t, err, cardsched.ErrInterrupted)
}

func TestComputeParamsCancelled(t *testing.T) {
	f := newFixture(t)
	f.putHistory(1)
	opt := &fakeOptimizer{block: true}

	ctx, cancel := context.WithTimeout(f.ctx, 20*time.Millisecond)
	defer cancel()
	_, err := newTrainer(t, f, opt).ComputeParams(ctx, cardsched.ComputeParamsRequest{
		CurrentParams: cardsched.DefaultParameters,
	})
	assert.ErrorIs(t, err, cardsched.ErrInterrupted)
}

func TestComputeParamsHealthCheck(t *testing.T) {
	f := newFixture(t)
	for id := int64(1); id <= 310; id++ {
		f.putHistory(id)
	}
	opt := &fakeOptimizer{trained: withWeight(0.1)}
	tr := newTrainer(t, f, opt)

	resp, err := tr.ComputeParams(f.ctx, cardsched.ComputeParamsRequest{
		CurrentParams: withWeight(0.5),
		HealthCheck:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, 310, resp.ItemCount)
	require.NotNil(t, resp.HealthCheckPassed)
	assert.True(t, *resp.HealthCheckPassed)
	// The full set, then five growing chronological folds of 310/6 items.
	assert.Equal(t, []int{310, 51, 102, 153, 204, 255}, opt.trainedOn)

	resp, err = tr.ComputeParams(f.ctx, cardsched.ComputeParamsRequest{CurrentParams: withWeight(0.5)})
	require.NoError(t, err)
	assert.Nil(t, resp.HealthCheckPassed)
}

func TestComputeParamsHealthCheckNeedsTrainableFolds(t *testing.T) {
	f := newFixture(t)
	for id := int64(1); id <= 310; id++ {
		f.putHistory(id)
	}
	opt := &fakeOptimizer{trained: withWeight(0.1), minItems: 300}

	resp, err := newTrainer(t, f, opt).ComputeParams(f.ctx, cardsched.ComputeParamsRequest{
		CurrentParams: withWeight(0.5),
		HealthCheck:   true,
	})
	require.NoError(t, err)
	assert.Equal(t, withWeight(0.1), resp.Params)
	assert.Nil(t, resp.HealthCheckPassed, "no fold is large enough to train")
}

func TestEvaluateParams(t *testing.T) {
	f := newFixture(t)
	f.putHistory(1)
	tr := newTrainer(t, f, &fakeOptimizer{})

	eval, err := tr.EvaluateParams(f.ctx, withWeight(0.25), "", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.25, eval.LogLoss)

	_, err = tr.EvaluateParams(f.ctx, cardsched.DefaultParameters, "cid:999", 0)
	assert.ErrorIs(t, err, cardsched.ErrInsufficientData)

	bad := cardsched.DefaultParameters
	bad[20] = 2
	_, err = tr.EvaluateParams(f.ctx, bad, "", 0)
	assert.ErrorIs(t, err, cardsched.ErrInvalidParameters)

	_, err = tr.EvaluateParams(f.ctx, cardsched.DefaultParameters, "", time.Now().UnixMilli())
	assert.ErrorIs(t, err, cardsched.ErrInsufficientData, "everything before the cutoff")
}
