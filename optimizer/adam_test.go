package optimizer

import (
	"math"
	"testing"

	"github.com/sky-flux/cardsched"
	"github.com/stretchr/testify/assert"
)

// w4 (initial difficulty) has room on both sides of its default.
const w4 = 4

func gradOn(i int, g float64) cardsched.Parameters {
	var grads cardsched.Parameters
	grads[i] = g
	return grads
}

func TestAdamDescendsAlongGradient(t *testing.T) {
	tests := []struct {
		name string
		grad float64
		down bool
	}{
		{"positive gradient", 2.0, true},
		{"negative gradient", -2.0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := cardsched.DefaultParameters
			updated := newAdam(0.04, 100).step(params, gradOn(w4, tt.grad))
			if tt.down {
				assert.Less(t, updated[w4], params[w4])
			} else {
				assert.Greater(t, updated[w4], params[w4])
			}
		})
	}
}

func TestAdamFirstStepIsPeakRate(t *testing.T) {
	// At t=1, m̂ = g and v̂ = g², and the annealed rate is still the peak.
	params := cardsched.DefaultParameters
	updated := newAdam(0.04, 100).step(params, gradOn(w4, 1))
	assert.InDelta(t, 0.04, params[w4]-updated[w4], 1e-6)
}

func TestAdamZeroGradientLeavesParams(t *testing.T) {
	params := cardsched.DefaultParameters
	assert.Equal(t, params, newAdam(0.04, 100).step(params, cardsched.Parameters{}))
}

func TestAdamStaysWithinBounds(t *testing.T) {
	params := cardsched.DefaultParameters
	params[w4] = cardsched.UpperBounds[w4]
	opt := newAdam(0.5, 10)
	for range 10 {
		params = opt.step(params, gradOn(w4, -3))
		assert.NoError(t, cardsched.ValidateParameters(params))
	}
	assert.Equal(t, cardsched.UpperBounds[w4], params[w4])
}

func TestAdamCosineAnnealing(t *testing.T) {
	const peak, total = 0.04, 100
	opt := newAdam(peak, total)
	assert.InDelta(t, peak, opt.learningRate(), 1e-12)

	params := cardsched.DefaultParameters
	prev := opt.learningRate()
	for step := 1; step <= total; step++ {
		params = opt.step(params, cardsched.Parameters{})
		got := opt.learningRate()
		want := 0.5 * peak * (1 + math.Cos(math.Pi*float64(step)/total))
		assert.InDelta(t, want, got, 1e-12, "step %d", step)
		assert.LessOrEqual(t, got, prev+1e-12, "step %d", step)
		prev = got
	}
	assert.InDelta(t, 0, opt.learningRate(), 1e-9)

	params = opt.step(params, cardsched.Parameters{})
	assert.InDelta(t, 0, opt.learningRate(), 1e-9, "stays at zero past the schedule")
}
