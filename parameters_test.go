package cardsched

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultParametersWithinBounds(t *testing.T) {
	require.NoError(t, ValidateParameters(DefaultParameters))
	for i := range LowerBounds {
		assert.LessOrEqual(t, LowerBounds[i], UpperBounds[i], "w[%d]", i)
	}
}

func TestValidateParameters(t *testing.T) {
	tests := []struct {
		name  string
		index int
		value float64
	}{
		{"below lower bound", 0, 0},
		{"above upper bound", 4, 10.5},
		{"nan", 20, math.NaN()},
		{"decay too high", 20, 0.81},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParameters
			p[tt.index] = tt.value
			assert.ErrorIs(t, ValidateParameters(p), ErrInvalidParameters)
		})
	}
}

func TestParametersFromSlice(t *testing.T) {
	p, err := ParametersFromSlice(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultParameters, p)

	p, err = ParametersFromSlice(DefaultParameters.Slice())
	require.NoError(t, err)
	assert.Equal(t, DefaultParameters, p)

	p, err = ParametersFromSlice(DefaultParameters.Slice()[:19])
	require.NoError(t, err)
	assert.Equal(t, 0.5, p[20])
	assert.Equal(t, DefaultParameters[18], p[18])

	p, err = ParametersFromSlice(DefaultParameters.Slice()[:17])
	require.NoError(t, err)
	assert.Equal(t, 0.5, p[20])
	assert.Zero(t, p[17])
	assert.Zero(t, p[18])
	assert.False(t, p.allowsShortTerm())

	_, err = ParametersFromSlice(make([]float64, 20))
	assert.ErrorIs(t, err, ErrInvalidParameters)

	bad := DefaultParameters.Slice()
	bad[3] = 1000
	_, err = ParametersFromSlice(bad)
	assert.ErrorIs(t, err, ErrInvalidParameters)
}

func TestParametersSliceIsCopy(t *testing.T) {
	p := DefaultParameters
	s := p.Slice()
	s[0] = 99
	assert.Equal(t, DefaultParameters[0], p[0])
}

func TestParametersClamp(t *testing.T) {
	p := DefaultParameters
	p[0], p[4], p[20] = -1, 50, 0.05
	clamped := p.Clamp()
	assert.Equal(t, LowerBounds[0], clamped[0])
	assert.Equal(t, UpperBounds[4], clamped[4])
	assert.Equal(t, LowerBounds[20], clamped[20])
	assert.Equal(t, DefaultParameters[1], clamped[1])
	assert.NoError(t, ValidateParameters(clamped))
	assert.Equal(t, -1.0, p[0], "Clamp must not modify the receiver")
}
