package cardsched

import "time"

const secsPerDay = 86_400

// LearningSteps is a learning or relearning ladder.
//
// A card's RemainingSteps counts down towards the end of the ladder; only
// its last three digits are significant.
type LearningSteps []time.Duration

func (s LearningSteps) index(remaining int) (int, bool) {
	total := len(s)
	if total == 0 {
		return 0, false
	}
	idx := max(total-remaining%1000, 0)
	return min(idx, total-1), true
}

func (s LearningSteps) secsAt(idx int) (int, bool) {
	if idx < 0 || idx >= len(s) {
		return 0, false
	}
	return int(s[idx] / time.Second), true
}

func (s LearningSteps) isEmpty() bool {
	return len(s) == 0
}

// againDelaySecs is the delay of the first step.
func (s LearningSteps) againDelaySecs() (int, bool) {
	return s.secsAt(0)
}

// hardDelaySecs repeats the current step. On the first step it is the
// mean of the first two steps, or 1.5x a single step but at most one day
// longer.
func (s LearningSteps) hardDelaySecs(remaining int) (int, bool) {
	idx, ok := s.index(remaining)
	if !ok {
		return 0, false
	}
	current, _ := s.secsAt(idx)
	if idx != 0 {
		return current, true
	}
	if next, ok := s.secsAt(1); ok {
		return (current + next) / 2, true
	}
	return min(current*3/2, current+secsPerDay), true
}

// goodDelaySecs is the delay of the following step; false means graduation.
func (s LearningSteps) goodDelaySecs(remaining int) (int, bool) {
	idx, ok := s.index(remaining)
	if !ok {
		return 0, false
	}
	return s.secsAt(idx + 1)
}

func (s LearningSteps) currentDelaySecs(remaining int) (int, bool) {
	idx, ok := s.index(remaining)
	if !ok {
		return 0, false
	}
	return s.secsAt(idx)
}

func (s LearningSteps) remainingForGood(remaining int) int {
	idx, _ := s.index(remaining)
	return max(len(s)-(idx+1), 0)
}

func (s LearningSteps) remainingForFailed() int {
	return len(s)
}
