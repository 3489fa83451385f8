package cardsched

import (
	"fmt"
	"math"
)

// Stability is kept within [stabilityMin, stabilityMax] days and difficulty
// within [1, 10].
const (
	stabilityMin = 0.001
	stabilityMax = 36500.0
)

// FSRSReview is one answer inside an FSRSItem: the rating pressed and the
// number of days since the previous review (0 for the first).
type FSRSReview struct {
	Rating int `json:"rating"`
	DeltaT int `json:"delta_t"`
}

// FSRSItem is a card's review trajectory up to and including its last review.
type FSRSItem struct {
	Reviews []FSRSReview `json:"reviews"`
}

// LastReview returns the final review of the item.
func (it FSRSItem) LastReview() (FSRSReview, bool) {
	if len(it.Reviews) == 0 {
		return FSRSReview{}, false
	}
	return it.Reviews[len(it.Reviews)-1], true
}

// ItemState is the memory state and unrounded interval (in days) that a
// single rating would produce.
type ItemState struct {
	Memory   MemoryState
	Interval float64
}

// ItemStates holds the FSRS outcome of each rating.
type ItemStates struct {
	Again, Hard, Good, Easy ItemState
}

// ForRating returns the ItemState of the given rating.
func (n *ItemStates) ForRating(r Rating) ItemState {
	switch r {
	case Again:
		return n.Again
	case Hard:
		return n.Hard
	case Good:
		return n.Good
	default:
		return n.Easy
	}
}

// Model is the FSRS v6 forgetting-curve model for one parameter set.
type Model struct {
	w      Parameters
	decay  float64 // -w[20]
	factor float64 // 0.9^(1/decay) - 1
}

// NewModel validates p and precomputes the decay constants.
func NewModel(p Parameters) (*Model, error) {
	if err := ValidateParameters(p); err != nil {
		return nil, err
	}
	decay := -p[20]
	return &Model{
		w:      p,
		decay:  decay,
		factor: math.Pow(0.9, 1.0/decay) - 1.0,
	}, nil
}

// Parameters returns the weights the model was built from.
func (m *Model) Parameters() Parameters {
	return m.w
}

// Retrievability computes R(t, S) = (1 + FACTOR * t / S) ^ DECAY.
func (m *Model) Retrievability(elapsedDays, stability float64) float64 {
	return math.Pow(1+m.factor*elapsedDays/stability, m.decay)
}

// NextInterval returns the unrounded number of days after which recall
// probability falls to desiredRetention:
// I(r, S) = (S / FACTOR) * (r^(1/DECAY) - 1).
func (m *Model) NextInterval(stability, desiredRetention float64) float64 {
	return stability / m.factor * (math.Pow(desiredRetention, 1.0/m.decay) - 1)
}

// NextIntervalForRetention returns how many days from today the card should
// next be due, given that elapsedDays have already passed since its last
// review. The result is negative when the card is already overdue.
func (m *Model) NextIntervalForRetention(stability, desiredRetention float64, elapsedDays int) float64 {
	return m.NextInterval(stability, desiredRetention) - float64(elapsedDays)
}

// NextStates returns the memory state and interval each rating would
// produce. memory is nil for a card that has never been answered.
func (m *Model) NextStates(memory *MemoryState, desiredRetention float64, daysElapsed int) ItemStates {
	var out ItemStates
	for _, r := range Ratings {
		var next MemoryState
		if memory == nil {
			next = m.initState(r)
		} else {
			next = m.step(*memory, daysElapsed, r)
		}
		st := ItemState{Memory: next, Interval: m.NextInterval(next.Stability, desiredRetention)}
		switch r {
		case Again:
			out.Again = st
		case Hard:
			out.Hard = st
		case Good:
			out.Good = st
		case Easy:
			out.Easy = st
		}
	}
	return out
}

// MemoryState replays item on top of starting (nil for a complete history)
// and returns the resulting memory state.
func (m *Model) MemoryState(item FSRSItem, starting *MemoryState) (MemoryState, error) {
	var state *MemoryState
	if starting != nil {
		s := *starting
		state = &s
	}
	for _, rev := range item.Reviews {
		r := Rating(rev.Rating)
		if !r.IsValid() {
			return MemoryState{}, fmt.Errorf("%w: %d", ErrInvalidRating, rev.Rating)
		}
		var next MemoryState
		if state == nil {
			next = m.initState(r)
		} else {
			next = m.step(*state, rev.DeltaT, r)
		}
		state = &next
	}
	if state == nil {
		return MemoryState{}, fmt.Errorf("%w: empty item without starting state", ErrInvalidInput)
	}
	return *state, nil
}

// MemoryStateFromSM2 infers a memory state from a legacy ease factor (as a
// multiplier, e.g. 2.5) and interval, assuming the card was scheduled to be
// recalled with probability sm2Retention.
func (m *Model) MemoryStateFromSM2(ease, interval, sm2Retention float64) (MemoryState, error) {
	if sm2Retention <= 0 || sm2Retention >= 1 {
		return MemoryState{}, fmt.Errorf("%w: sm2 retention %f out of range (0, 1)", ErrInvalidInput, sm2Retention)
	}
	stability := math.Max(interval, stabilityMin) * m.factor / (math.Pow(sm2Retention, 1.0/m.decay) - 1)
	w8, w9, w10 := m.w[8], m.w[9], m.w[10]
	difficulty := 11 - (ease-1)/(math.Exp(w8)*math.Pow(stability, -w9)*math.Expm1((1-sm2Retention)*w10))
	ms := MemoryState{Stability: clampS(stability), Difficulty: clampD(difficulty)}
	if err := ms.Validate(); err != nil {
		return MemoryState{}, err
	}
	return ms, nil
}

func (m *Model) initState(r Rating) MemoryState {
	return MemoryState{
		Stability:  m.initStability(r),
		Difficulty: m.initDifficulty(r, true),
	}
}

// step advances a memory state by one review deltaT days after the last.
func (m *Model) step(state MemoryState, deltaT int, r Rating) MemoryState {
	var s float64
	if deltaT == 0 {
		s = m.shortTermStability(state.Stability, r)
	} else {
		ret := m.Retrievability(float64(deltaT), state.Stability)
		if r == Again {
			s = m.nextForgetStability(state.Difficulty, state.Stability, ret)
		} else {
			s = m.nextRecallStability(state.Difficulty, state.Stability, ret, r)
		}
	}
	return MemoryState{
		Stability:  clampS(s),
		Difficulty: m.nextDifficulty(state.Difficulty, r),
	}
}

// initStability returns the initial stability S₀(G) = clamp_s(w[G-1]).
func (m *Model) initStability(r Rating) float64 {
	return clampS(m.w[r-1])
}

// initDifficulty returns D₀(G) = w[4] - e^(w[5] * (G - 1)) + 1.
func (m *Model) initDifficulty(r Rating, clamp bool) float64 {
	d := m.w[4] - math.Exp(m.w[5]*float64(r-1)) + 1
	if clamp {
		return clampD(d)
	}
	return d
}

// shortTermStability computes the same-day review stability.
// SInc = e^(w[17] * (G - 3 + w[18])) * S^(-w[19]), at least 1 for Good/Easy.
func (m *Model) shortTermStability(stability float64, r Rating) float64 {
	sInc := math.Exp(m.w[17]*(float64(r)-3+m.w[18])) * math.Pow(stability, -m.w[19])
	if r == Good || r == Easy {
		sInc = math.Max(sInc, 1.0)
	}
	return stability * sInc
}

// nextDifficulty applies linear damping towards 10 and mean reversion
// towards D₀(Easy).
func (m *Model) nextDifficulty(difficulty float64, r Rating) float64 {
	deltaD := -m.w[6] * (float64(r) - 3)
	dPrime := difficulty + (10-difficulty)*deltaD/9
	d0Easy := m.initDifficulty(Easy, false)
	return clampD(m.w[7]*d0Easy + (1-m.w[7])*dPrime)
}

// nextRecallStability computes stability after a successful recall.
// S'_r = S * (1 + e^w[8] * (11-D) * S^(-w[9]) * (e^((1-R)*w[10]) - 1) * hardPenalty * easyBonus)
func (m *Model) nextRecallStability(d, s, ret float64, r Rating) float64 {
	hardPenalty := 1.0
	if r == Hard {
		hardPenalty = m.w[15]
	}
	easyBonus := 1.0
	if r == Easy {
		easyBonus = m.w[16]
	}
	return s * (1 + math.Exp(m.w[8])*
		(11-d)*
		math.Pow(s, -m.w[9])*
		(math.Exp((1-ret)*m.w[10])-1)*
		hardPenalty*easyBonus)
}

// nextForgetStability computes stability after a lapse, never above the
// short-term ceiling S / e^(w[17] * w[18]).
func (m *Model) nextForgetStability(d, s, ret float64) float64 {
	long := m.w[11] *
		math.Pow(d, -m.w[12]) *
		(math.Pow(s+1, m.w[13]) - 1) *
		math.Exp((1-ret)*m.w[14])
	short := s / math.Exp(m.w[17]*m.w[18])
	return math.Min(long, short)
}

func clampS(s float64) float64 {
	return math.Min(math.Max(s, stabilityMin), stabilityMax)
}

func clampD(d float64) float64 {
	return math.Min(math.Max(d, 1), 10)
}

// roundDays is the single rounding rule used for intervals and ease
// factors: round half to even.
func roundDays(v float64) int {
	return int(math.RoundToEven(v))
}
