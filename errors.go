package cardsched

import "errors"

// Sentinel errors for the cardsched package.
// Use errors.Is to check: errors.Is(err, cardsched.ErrStaleState)
var (
	ErrInvalidRating     = errors.New("cardsched: invalid rating")
	ErrInvalidParameters = errors.New("cardsched: parameters out of bounds")
	ErrInvalidInput      = errors.New("cardsched: invalid input")
	ErrNotFound          = errors.New("cardsched: not found")

	// ErrStaleState is returned by AnswerCard when the caller's view of the
	// card's current state no longer matches the stored card. The caller
	// must refetch the scheduling states and try again.
	ErrStaleState = errors.New("cardsched: card was modified")

	// ErrInterrupted is returned when a long-running operation was aborted
	// through its context or progress callback.
	ErrInterrupted = errors.New("cardsched: interrupted")

	ErrInsufficientData = errors.New("cardsched: insufficient review data for optimization")
)
