package cardsched

import "fmt"

// RevlogKind tags what kind of event a RevlogEntry records.
type RevlogKind int8

const (
	RevlogLearning    RevlogKind = iota // Answer in the learning ladder (or of a new card).
	RevlogReview                        // Answer of a review card.
	RevlogRelearning                    // Answer in the relearning ladder.
	RevlogFiltered                      // Answer in a filtered deck; cramming when EaseFactor is 0.
	RevlogManual                        // Reset or set-due; a reset has EaseFactor 0.
	RevlogRescheduled                   // System-driven reschedule.
)

var revlogKindNames = [...]string{
	RevlogLearning:    "Learning",
	RevlogReview:      "Review",
	RevlogRelearning:  "Relearning",
	RevlogFiltered:    "Filtered",
	RevlogManual:      "Manual",
	RevlogRescheduled: "Rescheduled",
}

// String returns the name of the kind, or "RevlogKind(n)" for invalid values.
func (k RevlogKind) String() string {
	if k >= RevlogLearning && k <= RevlogRescheduled {
		return revlogKindNames[k]
	}
	return fmt.Sprintf("RevlogKind(%d)", int(k))
}

// RevlogEntry is one append-only review log record.
//
// Interval and LastInterval are positive for days and negative for seconds.
type RevlogEntry struct {
	ID           int64      `json:"id"` // millisecond timestamp, also the ordering key.
	CardID       int64      `json:"card_id"`
	USN          int32      `json:"usn"`
	ButtonChosen int        `json:"button_chosen"` // 0 for non-graded entries.
	Interval     int        `json:"interval"`
	LastInterval int        `json:"last_interval"`
	EaseFactor   int        `json:"ease_factor"` // permille.
	TakenMillis  int        `json:"taken_millis"`
	Kind         RevlogKind `json:"kind"`
}

// HasRating reports whether the entry was produced by an answer button.
func (e *RevlogEntry) HasRating() bool {
	return e.ButtonChosen > 0
}

// IsCramming reports whether the entry is a filtered-deck answer that did
// not affect the card's schedule.
func (e *RevlogEntry) IsCramming() bool {
	return e.Kind == RevlogFiltered && e.EaseFactor == 0
}

// IsReset reports whether the entry marks the card being reset to new.
func (e *RevlogEntry) IsReset() bool {
	return e.Kind == RevlogManual && e.EaseFactor == 0
}

// AffectsScheduling reports whether the entry moved the card's schedule
// through normal answering (not cramming, manual or system rescheduling).
func (e *RevlogEntry) AffectsScheduling() bool {
	return e.Kind != RevlogManual && e.Kind != RevlogRescheduled && !e.IsCramming()
}

// HasRatingAndAffectsScheduling combines HasRating and AffectsScheduling.
func (e *RevlogEntry) HasRatingAndAffectsScheduling() bool {
	return e.HasRating() && e.AffectsScheduling()
}

// Secs returns the entry timestamp in unix seconds.
func (e *RevlogEntry) Secs() int64 {
	return e.ID / 1000
}

// DaysElapsed returns how many whole days lie between the entry and the
// next day rollover, never negative.
func (e *RevlogEntry) DaysElapsed(nextDayAt int64) int {
	return max(int((nextDayAt-e.Secs())/86_400), 0)
}
