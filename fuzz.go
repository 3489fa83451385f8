package cardsched

import (
	"math"
	"math/rand"
)

type fuzzRange struct {
	start, end float64
	factor     float64
}

var fuzzRanges = []fuzzRange{
	{2.5, 7.0, 0.15},
	{7.0, 20.0, 0.10},
	{20.0, math.Inf(1), 0.05},
}

// Learning delays are extended by at most 25%, capped at five minutes.
const (
	learningFuzzRatio   = 0.25
	learningFuzzMaxSecs = 300
)

// fuzzDelta computes the fuzz range delta for a given interval.
// delta = 1.0 + Σ(factor * max(min(interval, end) - start, 0)), or 0 below 2.5 days.
func fuzzDelta(interval float64) float64 {
	if interval < 2.5 {
		return 0
	}
	delta := 1.0
	for _, r := range fuzzRanges {
		delta += r.factor * math.Max(math.Min(interval, r.end)-r.start, 0)
	}
	return delta
}

// FuzzSeed returns the deterministic seed for a card: its ID plus its reps.
// When forReschedule is set the previous answer's reps are used, so a
// reschedule lands where the last answer would have put the card.
func FuzzSeed(card *Card, forReschedule bool) uint64 {
	reps := card.Reps
	if forReschedule && reps > 0 {
		reps--
	}
	return uint64(card.ID) + uint64(reps)
}

// FuzzFactor returns a value in [0, 1) drawn from a source seeded with seed.
func FuzzFactor(seed uint64) float64 {
	return rand.New(rand.NewSource(int64(seed))).Float64()
}

// FuzzBounds returns the inclusive range a fuzzed interval may land in,
// constrained to [minimum, maximum].
func FuzzBounds(interval float64, minimum, maximum int) (lower, upper int) {
	minimum = min(minimum, maximum)
	interval = math.Min(math.Max(interval, float64(minimum)), float64(maximum))
	delta := fuzzDelta(interval)
	lower = roundDays(interval - delta)
	upper = roundDays(interval + delta)

	lower = min(max(lower, minimum), maximum)
	upper = min(max(upper, minimum), maximum)
	if upper == lower && upper > 2 && upper < maximum {
		upper = lower + 1
	}
	return lower, upper
}

// FuzzedInterval picks an interval within FuzzBounds using factor. A nil
// factor disables fuzzing: the interval is rounded and clamped.
func FuzzedInterval(interval float64, factor *float64, minimum, maximum int) int {
	if factor == nil {
		return min(max(roundDays(interval), minimum), maximum)
	}
	lower, upper := FuzzBounds(interval, minimum, maximum)
	return int(math.Floor(float64(lower) + *factor*float64(1+upper-lower)))
}

// fuzzedLearningSecs extends a learning delay by a factor-chosen amount.
func fuzzedLearningSecs(secs int, factor *float64) int {
	if factor == nil {
		return secs
	}
	extra := int(math.Min(float64(secs)*learningFuzzRatio, learningFuzzMaxSecs))
	if extra <= 0 {
		return secs
	}
	return secs + int(*factor*float64(extra))
}
