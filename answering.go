package cardsched

import (
	"fmt"
	"math"
)

// revlogPartial is a revlog entry before the answer's details are known.
type revlogPartial struct {
	interval     IntervalKind
	lastInterval IntervalKind
	easeFactor   float64
	kind         RevlogKind
}

func newRevlogPartial(from, to CardState, easeFactor float64, secsUntilRollover int) revlogPartial {
	return revlogPartial{
		interval:     StateInterval(to).MaybeAsDays(secsUntilRollover),
		lastInterval: StateInterval(from),
		easeFactor:   easeFactor,
		kind:         revlogKind(from),
	}
}

func (p revlogPartial) revlogEntry(usn int32, answer *CardAnswer) RevlogEntry {
	return RevlogEntry{
		ID:           answer.AnsweredAt.UnixMilli(),
		CardID:       answer.CardID,
		USN:          usn,
		ButtonChosen: int(answer.Rating),
		Interval:     p.interval.revlogValue(),
		LastInterval: p.lastInterval.revlogValue(),
		EaseFactor:   easePermille(p.easeFactor),
		TakenMillis:  answer.MillisecondsTaken,
		Kind:         p.kind,
	}
}

func easePermille(ease float64) int {
	return int(math.RoundToEven(ease * 1000))
}

// applyStudyState writes next onto the card.
func (u *cardUpdater) applyStudyState(current, next CardState) (revlogPartial, error) {
	switch n := next.(type) {
	case NormalState:
		switch current.(type) {
		case PreviewState:
			return revlogPartial{}, fmt.Errorf("%w: a previewed card must finish, not change state", ErrInvalidInput)
		case ReschedulingState:
			u.card.removeFromFilteredDeckBeforeReschedule()
		}
		return u.applyNormalState(current, n), nil
	case PreviewState:
		if err := u.ensureFiltered(); err != nil {
			return revlogPartial{}, err
		}
		return u.applyPreviewState(current, n), nil
	case ReschedulingState:
		if err := u.ensureFiltered(); err != nil {
			return revlogPartial{}, err
		}
		partial := u.applyNormalState(current, n.Original)
		u.card.OriginalDue = u.card.Due
		return partial, nil
	}
	return revlogPartial{}, fmt.Errorf("%w: unknown card state %T", ErrInvalidInput, next)
}

func (u *cardUpdater) ensureFiltered() error {
	if !u.card.InFilteredDeck() {
		return fmt.Errorf("%w: card %d can't transition into a filtered state", ErrInvalidInput, u.card.ID)
	}
	return nil
}

func (u *cardUpdater) applyNormalState(current CardState, next NormalState) revlogPartial {
	u.card.Reps++
	u.card.DesiredRetention = cloneRetention(u.desiredRetention)

	var partial revlogPartial
	switch n := next.(type) {
	case NewState:
		partial = u.applyNewState(current, n)
	case LearnState:
		partial = u.applyLearningState(current, n)
	case ReviewState:
		partial = u.applyReviewState(current, n)
	case RelearnState:
		partial = u.applyRelearningState(current, n)
	}

	if leeched(next) && u.conf.LeechAction == LeechSuspend {
		u.card.Queue = QueueSuspended
	}
	return partial
}

func (u *cardUpdater) applyNewState(current CardState, next NewState) revlogPartial {
	u.card.Due = next.Position
	u.card.Type = CardTypeNew
	u.card.Queue = QueueNew
	u.card.Interval = 0
	u.card.OriginalPosition = nil
	return newRevlogPartial(current, next, 0, u.timing.SecsUntilRollover())
}

func (u *cardUpdater) applyLearningState(current CardState, next LearnState) revlogPartial {
	u.card.RemainingSteps = next.RemainingSteps
	u.card.Type = CardTypeLearn
	if pos, ok := newPosition(current); ok {
		u.card.OriginalPosition = &pos
	}
	u.card.setMemoryState(next.Memory)
	u.scheduleLearning(StateInterval(next))
	return newRevlogPartial(current, next, 0, u.timing.SecsUntilRollover())
}

func (u *cardUpdater) applyReviewState(current CardState, next ReviewState) revlogPartial {
	u.card.Type = CardTypeReview
	u.card.Queue = QueueReview
	u.card.Interval = next.ScheduledDays
	u.card.Due = int64(u.timing.DaysElapsed + next.ScheduledDays)
	u.card.EaseFactor = easePermille(next.EaseFactor)
	u.card.Lapses = next.Lapses
	u.card.RemainingSteps = 0
	u.card.OriginalPosition = nil
	u.card.setMemoryState(next.Memory)
	return newRevlogPartial(current, next, next.EaseFactor, u.timing.SecsUntilRollover())
}

func (u *cardUpdater) applyRelearningState(current CardState, next RelearnState) revlogPartial {
	u.card.Type = CardTypeRelearn
	u.card.Interval = next.Review.ScheduledDays
	u.card.RemainingSteps = next.Learning.RemainingSteps
	u.card.Lapses = next.Review.Lapses
	u.card.EaseFactor = easePermille(next.Review.EaseFactor)
	u.card.setMemoryState(next.Learning.Memory)
	u.scheduleLearning(StateInterval(next))
	return newRevlogPartial(current, next, next.Review.EaseFactor, u.timing.SecsUntilRollover())
}

// scheduleLearning queues a (re)learning card. Delays reaching the next day
// move the card to the day-granular learning queue.
func (u *cardUpdater) scheduleLearning(ivl IntervalKind) {
	ivl = ivl.MaybeAsDays(u.timing.SecsUntilRollover())
	if days, ok := ivl.Days(); ok {
		u.card.Queue = QueueDayLearn
		u.card.Due = int64(u.timing.DaysElapsed + days)
		return
	}
	secs, _ := ivl.Secs()
	u.card.Queue = QueueLearn
	u.card.Due = u.timing.Now + int64(fuzzedLearningSecs(secs, u.fuzzFactor))
}

func (u *cardUpdater) applyPreviewState(current CardState, next PreviewState) revlogPartial {
	if next.Finished {
		u.card.removeFromFilteredDeckRestoringQueue()
		return newRevlogPartial(current, next, 0, u.timing.SecsUntilRollover())
	}
	u.card.Queue = QueuePreviewRepeat
	u.card.Due = u.timing.Now + int64(next.ScheduledSecs)
	return newRevlogPartial(current, next, 0, u.timing.SecsUntilRollover())
}

func cloneRetention(r *float64) *float64 {
	if r == nil {
		return nil
	}
	v := *r
	return &v
}
