package optimizer

import (
	"math"

	"github.com/sky-flux/cardsched"
)

// adam moves FSRS parameters against their loss gradient with
// bias-corrected Adam moments. The learning rate is cosine-annealed from
// peakLR to zero over totalSteps, and every step ends inside the
// parameter bounds.
//
//	m = β1·m + (1-β1)·g
//	v = β2·v + (1-β2)·g²
//	w = clamp(w - lr_t · (m/(1-β1^t)) / (√(v/(1-β2^t)) + ε))
//	lr_t = ½·peakLR·(1 + cos(π·t/T))
type adam struct {
	peakLR       float64
	totalSteps   int
	beta1, beta2 float64
	eps          float64
	m, v         cardsched.Parameters
	t            int
}

func newAdam(peakLR float64, totalSteps int) *adam {
	return &adam{
		peakLR:     peakLR,
		totalSteps: totalSteps,
		beta1:      0.9,
		beta2:      0.999,
		eps:        1e-8,
	}
}

// learningRate is the rate the next step will use.
func (a *adam) learningRate() float64 {
	if a.totalSteps <= 0 {
		return a.peakLR
	}
	progress := float64(min(a.t, a.totalSteps)) / float64(a.totalSteps)
	return 0.5 * a.peakLR * (1 + math.Cos(math.Pi*progress))
}

// step returns params after one update. Weights with a zero gradient keep
// their value and moments.
func (a *adam) step(params, grads cardsched.Parameters) cardsched.Parameters {
	lr := a.learningRate()
	a.t++
	mCorr := 1 - math.Pow(a.beta1, float64(a.t))
	vCorr := 1 - math.Pow(a.beta2, float64(a.t))

	for i, g := range grads {
		if g == 0 {
			continue
		}
		a.m[i] = a.beta1*a.m[i] + (1-a.beta1)*g
		a.v[i] = a.beta2*a.v[i] + (1-a.beta2)*g*g
		params[i] -= lr * (a.m[i] / mCorr) / (math.Sqrt(a.v[i]/vCorr) + a.eps)
	}
	return params.Clamp()
}
