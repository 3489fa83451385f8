package cardsched

import (
	"fmt"
	"math"
)

// Parameters is the FSRS v6 weight vector.
type Parameters [21]float64

// DefaultParameters are the FSRS v6 default parameter values.
var DefaultParameters = Parameters{
	0.212, 1.2931, 2.3065, 8.2956, // w[0..3]  initial stability S₀(G)
	6.4133, 0.8334, 3.0194, 0.001, // w[4..7]  difficulty params
	1.8722, 0.1666, 0.796, 1.4835, // w[8..11] recall stability params
	0.0614, 0.2629, 1.6483, 0.6014, // w[12..15] forget stability params
	1.8729, 0.5425, 0.0912, 0.0658, // w[16..19] easy/short-term params
	0.1542, // w[20] decay exponent
}

// LowerBounds defines the minimum allowed value for each parameter.
var LowerBounds = Parameters{
	0.001, 0.001, 0.001, 0.001,
	1.0, 0.001, 0.001, 0.001,
	0.0, 0.0, 0.001, 0.001,
	0.001, 0.001, 0.0, 0.0,
	1.0, 0.0, 0.0, 0.0,
	0.1,
}

// UpperBounds defines the maximum allowed value for each parameter.
var UpperBounds = Parameters{
	100.0, 100.0, 100.0, 100.0,
	10.0, 4.0, 4.0, 0.75,
	4.5, 0.8, 3.5, 5.0,
	0.25, 0.9, 4.0, 1.0,
	6.0, 2.0, 2.0, 0.8,
	0.8,
}

// legacyDecay is the fixed decay of parameter sets older than FSRS v6.
const legacyDecay = 0.5

// ValidateParameters checks that all 21 parameters are within [LowerBounds, UpperBounds].
func ValidateParameters(p Parameters) error {
	for i := range p {
		if math.IsNaN(p[i]) || p[i] < LowerBounds[i] || p[i] > UpperBounds[i] {
			return fmt.Errorf("%w: w[%d] = %f, bounds [%f, %f]",
				ErrInvalidParameters, i, p[i], LowerBounds[i], UpperBounds[i])
		}
	}
	return nil
}

// ParametersFromSlice converts a stored weight vector into Parameters.
// An empty slice yields DefaultParameters. 19-element vectors get the fixed
// legacy decay; 17-element vectors additionally get zero short-term weights.
func ParametersFromSlice(w []float64) (Parameters, error) {
	var p Parameters
	switch len(w) {
	case 0:
		return DefaultParameters, nil
	case 21:
		copy(p[:], w)
	case 19:
		copy(p[:], w)
		p[20] = legacyDecay
	case 17:
		copy(p[:], w)
		p[20] = legacyDecay
	default:
		return Parameters{}, fmt.Errorf("%w: expected 17, 19 or 21 weights, got %d", ErrInvalidParameters, len(w))
	}
	if err := ValidateParameters(p); err != nil {
		return Parameters{}, err
	}
	return p, nil
}

// Slice returns the parameters as a slice for storage.
func (p Parameters) Slice() []float64 {
	out := make([]float64, len(p))
	copy(out, p[:])
	return out
}

// Clamp constrains each parameter to [LowerBounds, UpperBounds].
func (p Parameters) Clamp() Parameters {
	for i := range p {
		p[i] = math.Min(math.Max(p[i], LowerBounds[i]), UpperBounds[i])
	}
	return p
}

// allowsShortTerm reports whether the same-day stability weights are active.
func (p Parameters) allowsShortTerm() bool {
	return p[17] > 0 && p[18] > 0
}
