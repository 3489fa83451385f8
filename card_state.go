package cardsched

import (
	"fmt"
	"math"
)

// CardState is the derived scheduling state of a card. It is one of
// NewState, LearnState, ReviewState, RelearnState (the normal states),
// PreviewState or ReschedulingState (the filtered states). It is rebuilt
// from the card on every access and never stored.
type CardState interface {
	isCardState()
}

// NormalState is a CardState outside of a filtered deck.
type NormalState interface {
	CardState
	isNormalState()
}

// NewState is a card that has never been answered.
type NewState struct {
	Position int64
}

// LearnState is a card in its learning ladder.
type LearnState struct {
	RemainingSteps int
	ScheduledSecs  int
	ElapsedSecs    int
	Memory         *MemoryState
}

// ReviewState is a graduated card.
type ReviewState struct {
	ScheduledDays int
	ElapsedDays   int
	EaseFactor    float64 // multiplier, 2.5 = 250%.
	Lapses        int
	Leeched       bool
	Memory        *MemoryState
}

// RelearnState is a lapsed card in its relearning ladder. Review holds the
// state it re-graduates to.
type RelearnState struct {
	Learning LearnState
	Review   ReviewState
}

// PreviewState is a card being previewed in a filtered deck that does not
// reschedule cards.
type PreviewState struct {
	ScheduledSecs int
	Finished      bool
}

// ReschedulingState is a card in a filtered deck that reschedules cards
// based on the answers given.
type ReschedulingState struct {
	Original NormalState
}

func (NewState) isCardState()          {}
func (LearnState) isCardState()        {}
func (ReviewState) isCardState()       {}
func (RelearnState) isCardState()      {}
func (PreviewState) isCardState()      {}
func (ReschedulingState) isCardState() {}

func (NewState) isNormalState()     {}
func (LearnState) isNormalState()   {}
func (ReviewState) isNormalState()  {}
func (RelearnState) isNormalState() {}

// Ease factor adjustments of review answers.
const (
	initialEase     = 2.5
	minimumEase     = 1.3
	easeAgainDelta  = -0.2
	easeHardDelta   = -0.15
	easeEasyDelta   = 0.15
	defaultMaxIvl   = 36500
	defaultLeechMax = 8
)

// PreviewDelays are the re-show delays of a preview filtered deck, in
// seconds. Zero means the card leaves the deck.
type PreviewDelays struct {
	Again, Hard, Good int
}

// StateContext is everything a transition needs beyond the state itself.
type StateContext struct {
	// FuzzFactor in [0, 1) picks the final interval from the fuzz range;
	// nil disables fuzzing.
	FuzzFactor *float64
	// FSRSNextStates is set when FSRS is enabled.
	FSRSNextStates         *ItemStates
	FSRSShortTermWithSteps bool
	FSRSAllowShortTerm     bool

	Steps                  LearningSteps
	GraduatingIntervalGood int
	GraduatingIntervalEasy int
	InitialEaseFactor      float64

	HardMultiplier        float64
	EasyMultiplier        float64
	IntervalMultiplier    float64
	MaximumReviewInterval int
	LeechThreshold        int

	RelearnSteps         LearningSteps
	LapseMultiplier      float64
	MinimumLapseInterval int

	InFilteredDeck bool
	PreviewDelays  PreviewDelays
}

// minAndMaxReviewIntervals returns maximum = max(MaximumReviewInterval, 1)
// and minimum clamped to [1, maximum].
func (c *StateContext) minAndMaxReviewIntervals(minimum int) (int, int) {
	maximum := max(c.MaximumReviewInterval, 1)
	return min(max(minimum, 1), maximum), maximum
}

// lapsedDays rounds a failing interval into [1, MaximumReviewInterval].
func (c *StateContext) lapsedDays(interval float64) int {
	_, maximum := c.minAndMaxReviewIntervals(1)
	return min(int(roundedInterval(interval)), maximum)
}

func (c *StateContext) withReviewFuzz(interval float64, minimum, maximum int) int {
	return FuzzedInterval(interval, c.FuzzFactor, minimum, maximum)
}

// shortTermAllowed reports whether FSRS may keep a card in same-day
// learning once the given ladder is exhausted.
func (c *StateContext) shortTermAllowed(steps LearningSteps) bool {
	return c.FSRSAllowShortTerm && (c.FSRSShortTermWithSteps || steps.isEmpty())
}

func (c *StateContext) fsrsMemory(r Rating) *MemoryState {
	if c.FSRSNextStates == nil {
		return nil
	}
	m := c.FSRSNextStates.ForRating(r).Memory
	return &m
}

// SchedulingStates is the current state and the state each rating leads to.
type SchedulingStates struct {
	Current CardState
	Again   CardState
	Hard    CardState
	Good    CardState
	Easy    CardState
}

// ForRating returns the next state of rating r.
func (s *SchedulingStates) ForRating(r Rating) CardState {
	switch r {
	case Again:
		return s.Again
	case Hard:
		return s.Hard
	case Good:
		return s.Good
	default:
		return s.Easy
	}
}

// NextStates previews the outcome of every rating from current. It has no
// side effects.
func NextStates(current CardState, ctx *StateContext) (SchedulingStates, error) {
	if err := validateState(current); err != nil {
		return SchedulingStates{}, err
	}
	return nextStates(current, ctx), nil
}

func nextStates(current CardState, ctx *StateContext) SchedulingStates {
	switch s := current.(type) {
	case NewState:
		return s.nextStates(ctx)
	case LearnState:
		return s.nextStates(ctx)
	case ReviewState:
		return s.nextStates(ctx)
	case RelearnState:
		return s.nextStates(ctx)
	case PreviewState:
		return s.nextStates(ctx)
	case ReschedulingState:
		return s.nextStates(ctx)
	}
	return SchedulingStates{}
}

// validateState rejects nil and foreign CardState implementations.
func validateState(state CardState) error {
	switch s := state.(type) {
	case NewState, LearnState, ReviewState, RelearnState, PreviewState:
		return nil
	case ReschedulingState:
		switch s.Original.(type) {
		case NewState, LearnState, ReviewState, RelearnState:
			return nil
		}
		return fmt.Errorf("%w: rescheduling state wraps %T", ErrInvalidInput, s.Original)
	}
	return fmt.Errorf("%w: unknown card state %T", ErrInvalidInput, state)
}

// StateInterval is the delay a state was scheduled with.
func StateInterval(state CardState) IntervalKind {
	switch s := state.(type) {
	case NewState:
		return InDays(0)
	case LearnState:
		return InSecs(s.ScheduledSecs)
	case ReviewState:
		return InDays(s.ScheduledDays)
	case RelearnState:
		return InSecs(s.Learning.ScheduledSecs)
	case PreviewState:
		return InSecs(s.ScheduledSecs)
	case ReschedulingState:
		return StateInterval(s.Original)
	}
	return InDays(0)
}

// revlogKind is the log kind of an answer given in state.
func revlogKind(state CardState) RevlogKind {
	switch s := state.(type) {
	case NewState, LearnState:
		return RevlogLearning
	case ReviewState:
		if s.daysLate() < 0 {
			return RevlogFiltered
		}
		return RevlogReview
	case RelearnState:
		return RevlogRelearning
	case PreviewState:
		return RevlogFiltered
	case ReschedulingState:
		return revlogKind(s.Original)
	}
	return RevlogManual
}

// leeched reports whether the answer that produced state hit the leech
// threshold.
func leeched(state CardState) bool {
	switch s := state.(type) {
	case ReviewState:
		return s.Leeched
	case RelearnState:
		return s.Review.Leeched
	case ReschedulingState:
		return leeched(s.Original)
	}
	return false
}

// newPosition returns the position of a (possibly filtered) new card.
func newPosition(state CardState) (int64, bool) {
	switch s := state.(type) {
	case NewState:
		return s.Position, true
	case ReschedulingState:
		if n, ok := s.Original.(NewState); ok {
			return n.Position, true
		}
	}
	return 0, false
}

// StatesEqual compares two states structurally, following memory-state
// pointers.
func StatesEqual(a, b CardState) bool {
	switch x := a.(type) {
	case NewState:
		y, ok := b.(NewState)
		return ok && x == y
	case LearnState:
		y, ok := b.(LearnState)
		return ok && x.learnEqual(y)
	case ReviewState:
		y, ok := b.(ReviewState)
		return ok && x.reviewEqual(y)
	case RelearnState:
		y, ok := b.(RelearnState)
		return ok && x.Learning.learnEqual(y.Learning) && x.Review.reviewEqual(y.Review)
	case PreviewState:
		y, ok := b.(PreviewState)
		return ok && x == y
	case ReschedulingState:
		y, ok := b.(ReschedulingState)
		return ok && StatesEqual(x.Original, y.Original)
	}
	return false
}

func (s LearnState) learnEqual(o LearnState) bool {
	return s.RemainingSteps == o.RemainingSteps &&
		s.ScheduledSecs == o.ScheduledSecs &&
		s.ElapsedSecs == o.ElapsedSecs &&
		memoryEqual(s.Memory, o.Memory)
}

func (s ReviewState) reviewEqual(o ReviewState) bool {
	return s.ScheduledDays == o.ScheduledDays &&
		s.ElapsedDays == o.ElapsedDays &&
		s.EaseFactor == o.EaseFactor &&
		s.Lapses == o.Lapses &&
		s.Leeched == o.Leeched &&
		memoryEqual(s.Memory, o.Memory)
}

func memoryEqual(a, b *MemoryState) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// setElapsedSecsEqual copies the elapsed seconds of current into asserted,
// which would otherwise differ only because time has passed.
func setElapsedSecsEqual(current CardState, asserted CardState) CardState {
	cur, ok := unwrapNormal(current)
	if !ok {
		return asserted
	}
	ans, ok := unwrapNormal(asserted)
	if !ok {
		return asserted
	}
	switch c := cur.(type) {
	case LearnState:
		if a, ok := ans.(LearnState); ok {
			a.ElapsedSecs = c.ElapsedSecs
			ans = a
		}
	case RelearnState:
		if a, ok := ans.(RelearnState); ok {
			a.Learning.ElapsedSecs = c.Learning.ElapsedSecs
			ans = a
		}
	}
	if _, wrapped := asserted.(ReschedulingState); wrapped {
		return ReschedulingState{Original: ans}
	}
	return ans
}

func unwrapNormal(state CardState) (NormalState, bool) {
	switch s := state.(type) {
	case ReschedulingState:
		return s.Original, s.Original != nil
	case NormalState:
		return s, true
	}
	return nil, false
}

// roundedInterval rounds a fractional day count, never below one day.
func roundedInterval(days float64) float64 {
	return math.Max(math.RoundToEven(days), 1)
}
