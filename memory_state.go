package cardsched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ItemForMemoryState is the history a card's memory state is computed from.
// StartingState is set when the history is incomplete and was seeded from
// SM-2 data.
type ItemForMemoryState struct {
	Item          FSRSItem
	StartingState *MemoryState
}

// FSRSItemForMemoryState reduces one card's revlog for memory-state
// inference. It returns nil when no usable history exists.
func FSRSItemForMemoryState(model *Model, entries []RevlogEntry, nextDayAt int64, historicalRetention float64, ignoreBefore int64) (*ItemForMemoryState, error) {
	reduced := ReduceReviews(entries, nextDayAt, false, ignoreBefore)
	item, ok := reduced.LastItem()
	if !ok {
		return nil, nil
	}
	if reduced.Complete {
		return &ItemForMemoryState{Item: item}, nil
	}
	if len(reduced.FilteredRevlogs) == 0 {
		return nil, nil
	}

	// The first graded review seeds the state and is dropped from the item.
	first := reduced.FilteredRevlogs[0]
	easeFactor := first.EaseFactor
	if easeFactor == 0 {
		easeFactor = DefaultEaseFactor
	}
	starting, err := model.MemoryStateFromSM2(float64(easeFactor)/1000, float64(max(first.Interval, 1)), historicalRetention)
	if err != nil {
		return nil, err
	}
	item.Reviews = item.Reviews[1:]
	return &ItemForMemoryState{Item: item, StartingState: &starting}, nil
}

// SetMemoryState recomputes the card's memory state from item. Without an
// item, a new or never-graduated card has no memory state, and any other
// card's state is inferred from its ease factor and interval.
func (c *Card) SetMemoryState(model *Model, item *ItemForMemoryState, historicalRetention float64) error {
	switch {
	case item != nil:
		ms, err := model.MemoryState(item.Item, item.StartingState)
		if err != nil {
			return err
		}
		c.setMemoryState(&ms)
	case c.Type == CardTypeNew || c.Interval == 0:
		c.setMemoryState(nil)
	default:
		easeFactor := c.EaseFactor
		if easeFactor == 0 {
			easeFactor = DefaultEaseFactor
		}
		ms, err := model.MemoryStateFromSM2(float64(easeFactor)/1000, float64(c.Interval), historicalRetention)
		if err != nil {
			return err
		}
		c.setMemoryState(&ms)
	}
	return nil
}

// MemoryStateUpdate selects cards and the FSRS settings to apply to them.
type MemoryStateUpdate struct {
	Search string
	// Params nil disables FSRS for the matched cards: their memory state and
	// retention override are cleared.
	Params              *Parameters
	DesiredRetention    float64 // zero → 0.9
	HistoricalRetention float64 // zero → 0.9
	MaximumInterval     int     // zero → 36500
	IgnoreBefore        int64   // unix milliseconds
	// Reschedule review cards as if Good had just been answered at the
	// desired retention.
	Reschedule bool
}

// MemoryStateProgress reports how far UpdateMemoryState has got.
type MemoryStateProgress struct {
	Current, Total int
}

// UpdateMemoryState recomputes the memory state of every non-new card
// matched by each update. progress is called at most every 100ms and after
// the last card; returning an error from it, or cancelling ctx, stops the
// update between cards with ErrInterrupted. Cards written before the
// interruption keep their new state.
func (s *Scheduler) UpdateMemoryState(ctx context.Context, updates []MemoryStateUpdate, progress func(MemoryStateProgress) error) error {
	timing := s.timing()
	limiter := rate.NewLimiter(rate.Every(100*time.Millisecond), 1)
	updated := 0
	defer func() { s.recorder.MemoryStatesUpdated(updated) }()

	for _, u := range updates {
		u.normalize()
		var model *Model
		if u.Params != nil {
			m, err := NewModel(*u.Params)
			if err != nil {
				return err
			}
			model = m
		}

		ids, err := s.store.SearchCards(ctx, u.Search)
		if err != nil {
			return fmt.Errorf("searching %q: %w", u.Search, err)
		}
		for i, id := range ids {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: %v", ErrInterrupted, err)
			}
			err := s.store.Transact(ctx, func(tx Store) error {
				return s.updateCardMemoryState(ctx, tx, id, model, &u, timing)
			})
			switch {
			case errors.Is(err, errSkipCard):
			case err != nil:
				return fmt.Errorf("card %d: %w", id, err)
			default:
				updated++
			}
			if progress != nil && (limiter.Allow() || i == len(ids)-1) {
				if err := progress(MemoryStateProgress{Current: i + 1, Total: len(ids)}); err != nil {
					return fmt.Errorf("%w: %v", ErrInterrupted, err)
				}
			}
		}
		s.logger.Info("memory states updated",
			zap.String("search", u.Search),
			zap.Int("cards", len(ids)),
			zap.Bool("fsrs", model != nil),
			zap.Bool("reschedule", u.Reschedule))
	}
	return nil
}

var errSkipCard = errors.New("skip card")

func (u *MemoryStateUpdate) normalize() {
	if u.DesiredRetention == 0 {
		u.DesiredRetention = 0.9
	}
	if u.HistoricalRetention == 0 {
		u.HistoricalRetention = 0.9
	}
	if u.MaximumInterval == 0 {
		u.MaximumInterval = defaultMaxIvl
	}
}

func (s *Scheduler) updateCardMemoryState(ctx context.Context, tx Store, id int64, model *Model, u *MemoryStateUpdate, timing SchedTimingToday) error {
	card, err := tx.GetCard(ctx, id)
	if err != nil {
		return err
	}
	if card.Type == CardTypeNew {
		return errSkipCard
	}
	if model == nil {
		card.MemoryState = nil
		card.DesiredRetention = nil
		return tx.UpdateCard(ctx, &card)
	}

	revlog, err := tx.RevlogForCard(ctx, id)
	if err != nil {
		return err
	}
	item, err := FSRSItemForMemoryState(model, revlog, timing.NextDayAt, u.HistoricalRetention, u.IgnoreBefore)
	if err != nil {
		return err
	}
	retention := u.DesiredRetention
	card.DesiredRetention = &retention
	if err := card.SetMemoryState(model, item, u.HistoricalRetention); err != nil {
		return err
	}

	if u.Reschedule && card.Type == CardTypeReview && card.MemoryState != nil {
		if err := s.rescheduleFromMemory(ctx, tx, &card, model, u, revlog, timing); err != nil {
			return err
		}
	}
	s.logger.Debug("memory state updated", zap.Int64("card", id), zap.Any("memory", card.MemoryState))
	return tx.UpdateCard(ctx, &card)
}

// rescheduleFromMemory moves a review card's due date to where the memory
// model puts it, measured from the last graded review rather than from the
// old due date.
func (s *Scheduler) rescheduleFromMemory(ctx context.Context, tx Store, card *Card, model *Model, u *MemoryStateUpdate, revlog []RevlogEntry, timing SchedTimingToday) error {
	var lastReviewed *int64
	for i := len(revlog) - 1; i >= 0; i-- {
		if revlog[i].HasRatingAndAffectsScheduling() {
			secs := revlog[i].Secs()
			lastReviewed = &secs
			break
		}
	}
	if lastReviewed == nil {
		return nil
	}
	daysElapsed := timing.daysSince(*lastReviewed)

	originalInterval := card.Interval
	ivl := model.NextInterval(card.MemoryState.Stability, u.DesiredRetention)
	card.Interval = FuzzedInterval(ivl, s.fuzzFactor(card, true), 1, u.MaximumInterval)
	newDue := int64(timing.DaysElapsed - daysElapsed + card.Interval)
	if card.OriginalDue != 0 {
		card.OriginalDue = newDue
	} else {
		card.Due = newDue
	}

	if len(revlog) > 0 && revlog[len(revlog)-1].Kind == RevlogRescheduled {
		return nil
	}
	usn, err := tx.USN(ctx)
	if err != nil {
		return err
	}
	return tx.AddRevlog(ctx, &RevlogEntry{
		ID:           s.now().UnixMilli(),
		CardID:       card.ID,
		USN:          usn,
		Interval:     card.Interval,
		LastInterval: originalInterval,
		EaseFactor:   card.EaseFactor,
		Kind:         RevlogRescheduled,
	})
}
