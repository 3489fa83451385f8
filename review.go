package cardsched

import "math"

func (s ReviewState) daysLate() int {
	return s.ElapsedDays - s.ScheduledDays
}

func (s ReviewState) nextStates(ctx *StateContext) SchedulingStates {
	hard, good, easy := s.passingIntervals(ctx)
	return SchedulingStates{
		Current: s,
		Again:   s.answerAgain(ctx),
		Hard:    s.answerHard(hard, ctx),
		Good:    s.answerGood(good, ctx),
		Easy:    s.answerEasy(easy, ctx),
	}
}

// failingInterval returns the interval (in days, possibly fractional under
// FSRS) and memory state after a lapse. FSRS intervals are fuzzed when the
// card leaves relearning.
func (s ReviewState) failingInterval(ctx *StateContext) (float64, *MemoryState) {
	if st := ctx.FSRSNextStates; st != nil {
		m := st.Again.Memory
		return st.Again.Interval, &m
	}
	minimum, maximum := ctx.minAndMaxReviewIntervals(ctx.MinimumLapseInterval)
	interval := ctx.withReviewFuzz(
		math.Max(float64(s.ScheduledDays), 1)*ctx.LapseMultiplier,
		minimum,
		maximum,
	)
	return float64(interval), nil
}

func (s ReviewState) answerAgain(ctx *StateContext) CardState {
	lapses := s.Lapses + 1
	scheduled, memory := s.failingInterval(ctx)
	review := ReviewState{
		ScheduledDays: ctx.lapsedDays(scheduled),
		EaseFactor:    math.Max(s.EaseFactor+easeAgainDelta, minimumEase),
		Lapses:        lapses,
		Leeched:       leechThresholdMet(lapses, ctx.LeechThreshold),
		Memory:        memory,
	}
	learning := LearnState{
		RemainingSteps: ctx.RelearnSteps.remainingForFailed(),
		Memory:         memory,
	}
	if delay, ok := ctx.RelearnSteps.againDelaySecs(); ok {
		learning.ScheduledSecs = delay
		return RelearnState{Learning: learning, Review: review}
	}
	if ctx.shortTermAllowed(ctx.RelearnSteps) && scheduled < 0.5 {
		learning.ScheduledSecs = int(scheduled * secsPerDay)
		return RelearnState{Learning: learning, Review: review}
	}
	return review
}

func (s ReviewState) answerHard(days int, ctx *StateContext) ReviewState {
	next := s
	next.ScheduledDays = days
	next.ElapsedDays = 0
	next.EaseFactor = math.Max(s.EaseFactor+easeHardDelta, minimumEase)
	next.Memory = ctx.fsrsMemory(Hard)
	return next
}

func (s ReviewState) answerGood(days int, ctx *StateContext) ReviewState {
	next := s
	next.ScheduledDays = days
	next.ElapsedDays = 0
	next.Memory = ctx.fsrsMemory(Good)
	return next
}

func (s ReviewState) answerEasy(days int, ctx *StateContext) ReviewState {
	next := s
	next.ScheduledDays = days
	next.ElapsedDays = 0
	next.EaseFactor = s.EaseFactor + easeEasyDelta
	next.Memory = ctx.fsrsMemory(Easy)
	return next
}

// passingIntervals returns the hard, good and easy intervals, each of which
// depends on the previous one.
func (s ReviewState) passingIntervals(ctx *StateContext) (int, int, int) {
	switch {
	case ctx.FSRSNextStates != nil:
		return s.passingFSRSIntervals(ctx, ctx.FSRSNextStates)
	case s.daysLate() < 0:
		return s.passingEarlyIntervals(ctx)
	default:
		return s.passingNonEarlyIntervals(ctx)
	}
}

func (s ReviewState) passingFSRSIntervals(ctx *StateContext, st *ItemStates) (int, int, int) {
	// A growing interval may not be fuzzed back to the last one. A
	// shrinking one (e.g. after a retention change) is not limited.
	greaterThanLast := func(interval float64) int {
		if roundDays(interval) > s.ScheduledDays {
			return s.ScheduledDays + 1
		}
		return 0
	}
	hard := constrainPassingInterval(ctx, st.Hard.Interval, max(greaterThanLast(st.Hard.Interval), 1), true)
	good := constrainPassingInterval(ctx, st.Good.Interval, max(greaterThanLast(st.Good.Interval), hard+1), true)
	easy := constrainPassingInterval(ctx, st.Easy.Interval, max(greaterThanLast(st.Easy.Interval), good+1), true)
	return hard, good, easy
}

func (s ReviewState) passingNonEarlyIntervals(ctx *StateContext) (int, int, int) {
	current := math.Max(float64(s.ScheduledDays), 1)
	daysLate := float64(max(s.daysLate(), 0))

	hardMinimum := 0
	if ctx.HardMultiplier > 1 {
		hardMinimum = s.ScheduledDays + 1
	}
	hard := constrainPassingInterval(ctx, current*ctx.HardMultiplier, hardMinimum, true)

	goodMinimum := hard + 1
	if ctx.HardMultiplier <= 1 {
		goodMinimum = s.ScheduledDays + 1
	}
	good := constrainPassingInterval(ctx, (current+daysLate/2)*s.EaseFactor, goodMinimum, true)

	easy := constrainPassingInterval(ctx, (current+daysLate)*s.EaseFactor*ctx.EasyMultiplier, good+1, true)
	return hard, good, easy
}

// passingEarlyIntervals handles cards reviewed ahead of schedule in a
// filtered deck. Intervals are based on the time actually elapsed.
func (s ReviewState) passingEarlyIntervals(ctx *StateContext) (int, int, int) {
	scheduled := math.Max(float64(s.ScheduledDays), 1)
	elapsed := float64(s.ScheduledDays + s.daysLate())

	hard := constrainPassingInterval(ctx,
		math.Max(elapsed*ctx.HardMultiplier, scheduled*ctx.HardMultiplier/2), 0, false)
	good := constrainPassingInterval(ctx, math.Max(elapsed*s.EaseFactor, scheduled), 0, false)
	reducedBonus := ctx.EasyMultiplier - (ctx.EasyMultiplier-1)/2
	easy := constrainPassingInterval(ctx, math.Max(elapsed*s.EaseFactor, scheduled)*reducedBonus, 0, false)
	return hard, good, easy
}

// constrainPassingInterval applies the interval multiplier (SM-2 only) and
// fuzz, then keeps the result within [max(minimum, 1), maximum interval].
func constrainPassingInterval(ctx *StateContext, interval float64, minimum int, fuzz bool) int {
	if ctx.FSRSNextStates == nil {
		interval *= ctx.IntervalMultiplier
	}
	minimum, maximum := ctx.minAndMaxReviewIntervals(minimum)
	if fuzz {
		return ctx.withReviewFuzz(interval, minimum, maximum)
	}
	return min(max(roundDays(interval), minimum), maximum)
}

// leechThresholdMet is true at the threshold and every half threshold
// (rounded up) after it. A zero threshold disables leech detection.
func leechThresholdMet(lapses, threshold int) bool {
	if threshold <= 0 {
		return false
	}
	half := max((threshold+1)/2, 1)
	return lapses >= threshold && (lapses-threshold)%half == 0
}
