package cardsched

func (s RelearnState) nextStates(ctx *StateContext) SchedulingStates {
	return SchedulingStates{
		Current: s,
		Again:   s.answerAgain(ctx),
		Hard:    s.answerHard(ctx),
		Good:    s.answerGood(ctx),
		Easy:    s.answerEasy(ctx),
	}
}

func (s RelearnState) answerAgain(ctx *StateContext) CardState {
	scheduled, memory := s.Review.failingInterval(ctx)
	review := s.Review
	review.ScheduledDays = ctx.lapsedDays(scheduled)
	review.ElapsedDays = 0
	review.Memory = memory

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

func (s RelearnState) answerHard(ctx *StateContext) CardState {
	memory := ctx.fsrsMemory(Hard)
	if delay, ok := ctx.RelearnSteps.hardDelaySecs(s.Learning.RemainingSteps); ok {
		next := s
		next.Learning.ScheduledSecs = delay
		next.Learning.ElapsedSecs = 0
		next.Learning.Memory = memory
		next.Review.ElapsedDays = 0
		next.Review.Memory = memory
		return next
	}
	return s.regraduate(ctx, Hard, s.Learning.RemainingSteps)
}

func (s RelearnState) answerGood(ctx *StateContext) CardState {
	memory := ctx.fsrsMemory(Good)
	if delay, ok := ctx.RelearnSteps.goodDelaySecs(s.Learning.RemainingSteps); ok {
		next := s
		next.Learning = LearnState{
			RemainingSteps: ctx.RelearnSteps.remainingForGood(s.Learning.RemainingSteps),
			ScheduledSecs:  delay,
			Memory:         memory,
		}
		next.Review.ElapsedDays = 0
		next.Review.Memory = memory
		return next
	}
	return s.regraduate(ctx, Good, s.Learning.RemainingSteps)
}

// regraduate returns the card to review once the relearning ladder is done,
// keeping the lapsed interval, ease and lapse count. Under FSRS the interval
// comes from the model, and short-term scheduling may keep the card in
// relearning.
func (s RelearnState) regraduate(ctx *StateContext, r Rating, remaining int) CardState {
	memory := ctx.fsrsMemory(r)
	review := s.Review
	review.ElapsedDays = 0
	review.Memory = memory
	if st := ctx.FSRSNextStates; st != nil {
		interval := st.ForRating(r).Interval
		if ctx.shortTermAllowed(ctx.RelearnSteps) && interval < 0.5 {
			return RelearnState{
				Learning: LearnState{
					RemainingSteps: remaining,
					ScheduledSecs:  int(interval * secsPerDay),
					Memory:         memory,
				},
				Review: review,
			}
		}
		minimum, maximum := ctx.minAndMaxReviewIntervals(1)
		review.ScheduledDays = ctx.withReviewFuzz(interval, minimum, maximum)
	}
	return review
}

func (s RelearnState) answerEasy(ctx *StateContext) ReviewState {
	review := s.Review
	review.ElapsedDays = 0
	review.Memory = ctx.fsrsMemory(Easy)
	minimum, maximum := ctx.minAndMaxReviewIntervals(1)
	if st := ctx.FSRSNextStates; st != nil {
		good := ctx.withReviewFuzz(st.Good.Interval, minimum, maximum)
		review.ScheduledDays = ctx.withReviewFuzz(st.Easy.Interval, good+1, maximum)
	} else {
		review.ScheduledDays = min(max(s.Review.ScheduledDays+1, minimum), maximum)
	}
	return review
}
