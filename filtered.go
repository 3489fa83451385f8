package cardsched

func (s PreviewState) nextStates(ctx *StateContext) SchedulingStates {
	return SchedulingStates{
		Current: s,
		Again:   previewDelayOrFinish(ctx.PreviewDelays.Again),
		Hard:    previewDelayOrFinish(ctx.PreviewDelays.Hard),
		Good:    previewDelayOrFinish(ctx.PreviewDelays.Good),
		Easy:    PreviewState{Finished: true},
	}
}

func previewDelayOrFinish(secs int) PreviewState {
	if secs == 0 {
		return PreviewState{Finished: true}
	}
	return PreviewState{ScheduledSecs: secs}
}

// nextStates delegates to the wrapped state. Results are wrapped again while
// the card is still in a filtered deck.
func (s ReschedulingState) nextStates(ctx *StateContext) SchedulingStates {
	normal := nextStates(s.Original, ctx)
	if !ctx.InFilteredDeck {
		return normal
	}
	return SchedulingStates{
		Current: s,
		Again:   wrapRescheduling(normal.Again),
		Hard:    wrapRescheduling(normal.Hard),
		Good:    wrapRescheduling(normal.Good),
		Easy:    wrapRescheduling(normal.Easy),
	}
}

func wrapRescheduling(state CardState) CardState {
	if n, ok := state.(NormalState); ok {
		return ReschedulingState{Original: n}
	}
	return state
}
