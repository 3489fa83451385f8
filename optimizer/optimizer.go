package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/sky-flux/cardsched"
	"go.uber.org/zap"
)

// Config configures the training process.
// Zero values are replaced with defaults.
type Config struct {
	Epochs        int     `json:"epochs" yaml:"epochs"`                   // default 5
	MiniBatchSize int     `json:"mini_batch_size" yaml:"mini_batch_size"` // default 512
	LearningRate  float64 `json:"learning_rate" yaml:"learning_rate"`     // default 0.04
	MaxSeqLen     int     `json:"max_seq_len" yaml:"max_seq_len"`         // default 64
	// MinSamples is the least number of cross-day reviews worth training
	// on. Below it ComputeParameters returns ErrInsufficientData.
	MinSamples int   `json:"min_samples" yaml:"min_samples"` // default 8
	Seed       int64 `json:"seed" yaml:"seed"`               // default 42

	Logger *zap.Logger `json:"-" yaml:"-"`
}

// Optimizer trains FSRS parameters with mini-batch gradient descent, using
// Adam and a cosine-annealed learning rate. It implements
// cardsched.ParamsOptimizer.
type Optimizer struct {
	epochs        int
	miniBatchSize int
	learningRate  float64
	maxSeqLen     int
	minSamples    int
	seed          int64
	logger        *zap.Logger
}

var _ cardsched.ParamsOptimizer = (*Optimizer)(nil)

// New creates an Optimizer with the given config.
func New(cfg Config) *Optimizer {
	o := &Optimizer{
		epochs:        cfg.Epochs,
		miniBatchSize: cfg.MiniBatchSize,
		learningRate:  cfg.LearningRate,
		maxSeqLen:     cfg.MaxSeqLen,
		minSamples:    cfg.MinSamples,
		seed:          cfg.Seed,
		logger:        cfg.Logger,
	}
	if o.epochs == 0 {
		o.epochs = 5
	}
	if o.miniBatchSize == 0 {
		o.miniBatchSize = 512
	}
	if o.learningRate == 0 {
		o.learningRate = 0.04
	}
	if o.maxSeqLen == 0 {
		o.maxSeqLen = 64
	}
	if o.minSamples == 0 {
		o.minSamples = 8
	}
	if o.seed == 0 {
		o.seed = 42
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// ComputeParameters trains parameters on items, starting from
// DefaultParameters, and returns those of the epoch with the lowest loss.
// Progress is reported per mini-batch; p.WantAbort or a cancelled ctx stops
// training with cardsched.ErrInterrupted.
func (o *Optimizer) ComputeParameters(ctx context.Context, items []cardsched.FSRSItem, p *cardsched.CombinedProgress) (cardsched.Parameters, error) {
	samples := buildSamples(items, o.maxSeqLen)
	if len(samples) < o.minSamples {
		return cardsched.Parameters{}, fmt.Errorf("%w: %d cross-day reviews, need %d",
			cardsched.ErrInsufficientData, len(samples), o.minSamples)
	}
	if p == nil {
		p = &cardsched.CombinedProgress{}
	}

	batches := int(math.Ceil(float64(len(samples)) / float64(o.miniBatchSize)))
	p.SetTotal(batches * o.epochs)

	params := cardsched.DefaultParameters
	stepper := newAdam(o.learningRate, batches*o.epochs)
	rng := rand.New(rand.NewSource(o.seed))

	bestParams := params
	bestLoss := computeBatchLoss(params, samples)

	for epoch := range o.epochs {
		rng.Shuffle(len(samples), func(i, j int) {
			samples[i], samples[j] = samples[j], samples[i]
		})
		for start := 0; start < len(samples); start += o.miniBatchSize {
			if p.WantAbort() {
				return cardsched.Parameters{}, cardsched.ErrInterrupted
			}
			if err := ctx.Err(); err != nil {
				return cardsched.Parameters{}, fmt.Errorf("%w: %v", cardsched.ErrInterrupted, err)
			}
			batch := samples[start:min(start+o.miniBatchSize, len(samples))]
			grad, err := numericalGradient(ctx, params, batch)
			if err != nil {
				return cardsched.Parameters{}, fmt.Errorf("%w: %v", cardsched.ErrInterrupted, err)
			}
			params = stepper.step(params, grad)
			p.Advance(1)
		}

		loss := computeBatchLoss(params, samples)
		o.logger.Debug("epoch finished", zap.Int("epoch", epoch), zap.Float64("loss", loss))
		if loss < bestLoss {
			bestLoss = loss
			bestParams = params
		}
	}
	return bestParams, nil
}

// Evaluate scores params against items. Only cross-day reviews with prior
// history are scored.
func (o *Optimizer) Evaluate(ctx context.Context, params cardsched.Parameters, items []cardsched.FSRSItem) (cardsched.ModelEvaluation, error) {
	if err := ctx.Err(); err != nil {
		return cardsched.ModelEvaluation{}, err
	}
	return evaluate(params, buildSamples(items, o.maxSeqLen))
}
