// Package cardsched implements the card scheduling engine of a spaced
// repetition application.
//
// It covers the card lifecycle state machine (new, learning, review,
// relearning, and the filtered-deck wrappers around them), the answer
// protocol that commits a rating onto a card, interval fuzzing, the FSRS v6
// memory model, the reduction of a card's review log into FSRS items, and
// the training loop that fits global FSRS parameters through a pluggable
// optimizer (see the cardsched/optimizer subpackage).
//
// Persistence is delegated to a [Store]; the cardsched/store subpackage has
// in-memory and sqlite implementations.
//
// Basic usage:
//
//	s, err := cardsched.NewScheduler(cardsched.SchedulerConfig{Store: st})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	states, err := s.SchedulingStates(ctx, cardID)
//	err = s.AnswerCard(ctx, &cardsched.CardAnswer{
//	    CardID:       cardID,
//	    CurrentState: states.Current,
//	    NewState:     states.Good,
//	    Rating:       cardsched.Good,
//	    AnsweredAt:   time.Now(),
//	})
package cardsched
