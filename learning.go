package cardsched

func (s NewState) nextStates(ctx *StateContext) SchedulingStates {
	next := LearnState{RemainingSteps: ctx.Steps.remainingForFailed()}.nextStates(ctx)
	next.Current = s
	return next
}

func (s LearnState) nextStates(ctx *StateContext) SchedulingStates {
	return SchedulingStates{
		Current: s,
		Again:   s.answerAgain(ctx),
		Hard:    s.answerHard(ctx),
		Good:    s.answerGood(ctx),
		Easy:    s.answerEasy(ctx),
	}
}

func (s LearnState) answerAgain(ctx *StateContext) CardState {
	memory := ctx.fsrsMemory(Again)
	restart := LearnState{RemainingSteps: ctx.Steps.remainingForFailed(), Memory: memory}
	if delay, ok := ctx.Steps.againDelaySecs(); ok {
		restart.ScheduledSecs = delay
		return restart
	}
	return s.leaveLadder(ctx, Again, restart)
}

func (s LearnState) answerHard(ctx *StateContext) CardState {
	memory := ctx.fsrsMemory(Hard)
	if delay, ok := ctx.Steps.hardDelaySecs(s.RemainingSteps); ok {
		return LearnState{
			RemainingSteps: s.RemainingSteps,
			ScheduledSecs:  delay,
			Memory:         memory,
		}
	}
	stay := s
	stay.Memory = memory
	return s.leaveLadder(ctx, Hard, stay)
}

func (s LearnState) answerGood(ctx *StateContext) CardState {
	memory := ctx.fsrsMemory(Good)
	if delay, ok := ctx.Steps.goodDelaySecs(s.RemainingSteps); ok {
		return LearnState{
			RemainingSteps: ctx.Steps.remainingForGood(s.RemainingSteps),
			ScheduledSecs:  delay,
			Memory:         memory,
		}
	}
	stay := s
	stay.Memory = memory
	return s.leaveLadder(ctx, Good, stay)
}

// leaveLadder is reached when no step remains for rating r. The card
// graduates with the good graduating interval (or the FSRS interval), unless
// FSRS short-term scheduling keeps it in learning as stay.
func (s LearnState) leaveLadder(ctx *StateContext, r Rating, stay LearnState) CardState {
	minimum, maximum := ctx.minAndMaxReviewIntervals(1)
	interval := float64(ctx.GraduatingIntervalGood)
	shortTerm := false
	if st := ctx.FSRSNextStates; st != nil {
		interval = st.ForRating(r).Interval
		shortTerm = ctx.shortTermAllowed(ctx.Steps) && interval < 0.5
	}
	if shortTerm {
		stay.ScheduledSecs = int(interval * secsPerDay)
		stay.ElapsedSecs = 0
		return stay
	}
	return ReviewState{
		ScheduledDays: ctx.withReviewFuzz(roundedInterval(interval), minimum, maximum),
		EaseFactor:    ctx.InitialEaseFactor,
		Memory:        ctx.fsrsMemory(r),
	}
}

func (s LearnState) answerEasy(ctx *StateContext) ReviewState {
	minimum, maximum := ctx.minAndMaxReviewIntervals(1)
	var interval float64
	if st := ctx.FSRSNextStates; st != nil {
		good := ctx.withReviewFuzz(st.Good.Interval, minimum, maximum)
		minimum = good + 1
		interval = roundedInterval(st.Easy.Interval)
	} else {
		interval = float64(ctx.GraduatingIntervalEasy)
	}
	return ReviewState{
		ScheduledDays: ctx.withReviewFuzz(interval, minimum, maximum),
		EaseFactor:    ctx.InitialEaseFactor,
		Memory:        ctx.fsrsMemory(Easy),
	}
}
