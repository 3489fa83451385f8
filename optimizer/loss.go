package optimizer

import (
	"context"
	"math"
	"runtime"

	"github.com/sky-flux/cardsched"
	"golang.org/x/sync/errgroup"
)

const bceClamp = 1e-7

// bceLoss computes the binary cross-entropy loss: -[y*ln(p) + (1-y)*ln(1-p)].
// rPred is clamped to [bceClamp, 1-bceClamp] to avoid log(0).
func bceLoss(rPred, y float64) float64 {
	p := math.Max(bceClamp, math.Min(rPred, 1-bceClamp))
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

// predict returns the recall probability the model assigns to s, or false
// when the history can't be replayed.
func predict(m *cardsched.Model, s *sample) (float64, bool) {
	ms, err := m.MemoryState(s.history, nil)
	if err != nil {
		return 0, false
	}
	return m.Retrievability(s.deltaT, ms.Stability), true
}

// computeBatchLoss returns the mean BCE loss of params over samples, or 0
// when nothing could be scored.
func computeBatchLoss(params cardsched.Parameters, samples []sample) float64 {
	m, err := cardsched.NewModel(params)
	if err != nil {
		return 0
	}
	var total float64
	var count int
	for i := range samples {
		r, ok := predict(m, &samples[i])
		if !ok {
			continue
		}
		total += bceLoss(r, samples[i].label)
		count++
	}
	if count == 0 {
		return 0
	}
	return total / float64(count)
}

const gradEps = 1e-5

// numericalGradient computes dL/dw[i] ≈ (L(w[i]+ε) - L(w[i]-ε)) / (2ε),
// one parameter per goroutine.
func numericalGradient(ctx context.Context, params cardsched.Parameters, samples []sample) (cardsched.Parameters, error) {
	var grad cardsched.Parameters
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range params {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			pPlus, pMinus := params, params
			pPlus[i] = math.Min(pPlus[i]+gradEps, cardsched.UpperBounds[i])
			pMinus[i] = math.Max(pMinus[i]-gradEps, cardsched.LowerBounds[i])
			if pPlus[i] == pMinus[i] {
				return nil
			}
			lPlus := computeBatchLoss(pPlus, samples)
			lMinus := computeBatchLoss(pMinus, samples)
			grad[i] = (lPlus - lMinus) / (pPlus[i] - pMinus[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return cardsched.Parameters{}, err
	}
	return grad, nil
}

// evaluate scores params with mean log loss and the RMSE of recall
// probability over 20 bins of predicted retrievability, weighted by bin
// size.
func evaluate(params cardsched.Parameters, samples []sample) (cardsched.ModelEvaluation, error) {
	m, err := cardsched.NewModel(params)
	if err != nil {
		return cardsched.ModelEvaluation{}, err
	}
	const numBins = 20
	var (
		predSum, actualSum [numBins]float64
		binCount           [numBins]int
		logLoss            float64
		count              int
	)
	for i := range samples {
		r, ok := predict(m, &samples[i])
		if !ok {
			continue
		}
		logLoss += bceLoss(r, samples[i].label)
		b := min(int(r*numBins), numBins-1)
		predSum[b] += r
		actualSum[b] += samples[i].label
		binCount[b]++
		count++
	}
	if count == 0 {
		return cardsched.ModelEvaluation{}, cardsched.ErrInsufficientData
	}
	var sq float64
	for b := range numBins {
		if binCount[b] == 0 {
			continue
		}
		n := float64(binCount[b])
		diff := predSum[b]/n - actualSum[b]/n
		sq += n * diff * diff
	}
	return cardsched.ModelEvaluation{
		LogLoss:  logLoss / float64(count),
		RMSEBins: math.Sqrt(sq / float64(count)),
	}, nil
}
