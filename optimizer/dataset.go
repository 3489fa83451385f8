package optimizer

import (
	"github.com/sky-flux/cardsched"
)

// sample is one training example: the reviews before a cross-day review,
// and whether that review was recalled.
type sample struct {
	history cardsched.FSRSItem
	deltaT  float64 // days between the last history review and the target
	label   float64 // 0 if Again, 1 otherwise
}

// buildSamples turns items into training samples. Items without history,
// same-day targets, and histories longer than maxSeqLen are skipped.
func buildSamples(items []cardsched.FSRSItem, maxSeqLen int) []sample {
	out := make([]sample, 0, len(items))
	for _, it := range items {
		n := len(it.Reviews)
		if n < 2 || n-1 > maxSeqLen {
			continue
		}
		target := it.Reviews[n-1]
		if target.DeltaT <= 0 {
			continue
		}
		label := 1.0
		if cardsched.Rating(target.Rating) == cardsched.Again {
			label = 0
		}
		out = append(out, sample{
			history: cardsched.FSRSItem{Reviews: it.Reviews[:n-1]},
			deltaT:  float64(target.DeltaT),
			label:   label,
		})
	}
	return out
}
