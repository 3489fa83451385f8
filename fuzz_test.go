package cardsched

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFuzzDelta(t *testing.T) {
	tests := []struct {
		interval, want float64
	}{
		{1, 0},
		{2.4, 0},
		{3, 1.075},  // 1 + 0.15*0.5
		{10, 1.975}, // 1 + 0.15*4.5 + 0.10*3
		{50, 4.475}, // 1 + 0.675 + 1.3 + 0.05*30
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, fuzzDelta(tt.interval), epsilon, "interval %v", tt.interval)
	}
}

func TestFuzzBounds(t *testing.T) {
	tests := []struct {
		name               string
		interval           float64
		minimum, maximum   int
		wantLower, wantUpr int
	}{
		{"below fuzz range", 1, 1, 36500, 1, 1},
		{"small", 3, 1, 36500, 2, 4},
		{"minimum raises lower", 3, 3, 36500, 3, 4},
		{"medium", 10, 1, 36500, 8, 12},
		{"capped by maximum", 100, 1, 100, 93, 100},
		{"interval above maximum", 500, 1, 100, 93, 100},
		{"fixed", 5, 5, 5, 5, 5},
		{"minimum above maximum", 10, 20, 15, 15, 15},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lower, upper := FuzzBounds(tt.interval, tt.minimum, tt.maximum)
			assert.Equal(t, tt.wantLower, lower)
			assert.Equal(t, tt.wantUpr, upper)
		})
	}
}

func TestFuzzedInterval(t *testing.T) {
	assert.Equal(t, 10, FuzzedInterval(10.4, nil, 1, 36500))
	assert.Equal(t, 2, FuzzedInterval(2.5, nil, 1, 36500), "rounds half to even")
	assert.Equal(t, 4, FuzzedInterval(1.2, nil, 4, 36500))
	assert.Equal(t, 30, FuzzedInterval(45, nil, 1, 30))

	zero, almostOne := 0.0, 0.999
	assert.Equal(t, 8, FuzzedInterval(10, &zero, 1, 36500))
	assert.Equal(t, 12, FuzzedInterval(10, &almostOne, 1, 36500))

	for seed := range uint64(200) {
		f := FuzzFactor(seed)
		got := FuzzedInterval(10, &f, 1, 36500)
		assert.GreaterOrEqual(t, got, 8)
		assert.LessOrEqual(t, got, 12)
	}
}

func TestFuzzFactorDeterministic(t *testing.T) {
	card := NewCard(1234, 1, 0)
	card.Reps = 5
	seed := FuzzSeed(&card, false)
	assert.Equal(t, uint64(1239), seed)
	assert.Equal(t, uint64(1238), FuzzSeed(&card, true))
	assert.Equal(t, FuzzFactor(seed), FuzzFactor(seed))

	f := FuzzFactor(seed)
	assert.GreaterOrEqual(t, f, 0.0)
	assert.Less(t, f, 1.0)

	card.Reps = 0
	assert.Equal(t, uint64(1234), FuzzSeed(&card, true))
}

func TestFuzzedLearningSecs(t *testing.T) {
	half := 0.5
	assert.Equal(t, 600, fuzzedLearningSecs(600, nil))
	assert.Equal(t, 675, fuzzedLearningSecs(600, &half))
	assert.Equal(t, 7200+150, fuzzedLearningSecs(7200, &half), "extra capped at five minutes")
	assert.Equal(t, 3, fuzzedLearningSecs(3, &half))
}

func TestFuzzedIntervalAveragesOut(t *testing.T) {
	const seeds = 2000
	for _, interval := range []float64{3, 10, 30, 100} {
		lower, upper := FuzzBounds(interval, 1, 36500)
		sum := 0
		for seed := range uint64(seeds) {
			f := FuzzFactor(seed)
			got := FuzzedInterval(interval, &f, 1, 36500)
			assert.GreaterOrEqual(t, got, lower)
			assert.LessOrEqual(t, got, upper)
			sum += got
		}
		assert.InDelta(t, interval, float64(sum)/seeds, 0.5, "interval %v", interval)
	}
}

func TestFuzzedIntervalAtMaximum(t *testing.T) {
	const maximum = 45
	for _, interval := range []float64{0.2, 3, 44, 45, 50, 400} {
		for seed := range uint64(500) {
			f := FuzzFactor(seed)
			got := FuzzedInterval(interval, &f, 1, maximum)
			assert.GreaterOrEqual(t, got, 1, "interval %v seed %d", interval, seed)
			assert.LessOrEqual(t, got, maximum, "interval %v seed %d", interval, seed)
		}
	}
}
