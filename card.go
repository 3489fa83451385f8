package cardsched

import (
	"fmt"
	"math"
)

// Ease factors are stored on cards in permille.
const (
	DefaultEaseFactor = 2500
	MinimumEaseFactor = 1300
)

// MemoryState is the FSRS memory model of a card. Both fields are finite
// and positive whenever a MemoryState is present.
type MemoryState struct {
	Stability  float64 `json:"stability"`  // days until recall probability decays to 90%.
	Difficulty float64 `json:"difficulty"` // 1..10.
}

// Validate reports an error if either field is non-finite or not positive.
func (m MemoryState) Validate() error {
	for name, v := range map[string]float64{"stability": m.Stability, "difficulty": m.Difficulty} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%w: memory %s %v", ErrInvalidInput, name, v)
		}
	}
	return nil
}

// Card is a scheduled card.
//
// The meaning of Due depends on Type and Queue: a position for new cards, a
// unix timestamp in seconds for intraday learning (QueueLearn,
// QueuePreviewRepeat), or a day number relative to collection creation for
// day-granular queues.
type Card struct {
	ID               int64        `json:"id"`
	NoteID           int64        `json:"note_id"`
	DeckID           int64        `json:"deck_id"`
	OriginalDeckID   int64        `json:"original_deck_id"` // non-zero while in a filtered deck.
	Type             CardType     `json:"type"`
	Queue            CardQueue    `json:"queue"`
	Due              int64        `json:"due"`
	OriginalDue      int64        `json:"original_due"`
	OriginalPosition *int64       `json:"original_position,omitempty"`
	Interval         int          `json:"interval"`    // days.
	EaseFactor       int          `json:"ease_factor"` // permille.
	Reps             int          `json:"reps"`
	Lapses           int          `json:"lapses"`
	RemainingSteps   int          `json:"remaining_steps"`
	MemoryState      *MemoryState `json:"memory_state,omitempty"`
	DesiredRetention *float64     `json:"desired_retention,omitempty"`
	LastReviewTime   *int64       `json:"last_review_time,omitempty"` // unix seconds.
	Flags            uint8        `json:"flags"`
}

// NewCard returns a new card with the given ID, deck and new-card position.
func NewCard(id, deckID, position int64) Card {
	return Card{
		ID:     id,
		DeckID: deckID,
		Type:   CardTypeNew,
		Queue:  QueueNew,
		Due:    position,
	}
}

// Clone returns a deep copy of the card. Pointer fields are copied by value.
func (c Card) Clone() Card {
	out := c
	if c.OriginalPosition != nil {
		v := *c.OriginalPosition
		out.OriginalPosition = &v
	}
	if c.MemoryState != nil {
		v := *c.MemoryState
		out.MemoryState = &v
	}
	if c.DesiredRetention != nil {
		v := *c.DesiredRetention
		out.DesiredRetention = &v
	}
	if c.LastReviewTime != nil {
		v := *c.LastReviewTime
		out.LastReviewTime = &v
	}
	return out
}

// Ease returns the ease factor as a multiplier (2500 → 2.5).
func (c *Card) Ease() float64 {
	return float64(c.EaseFactor) / 1000
}

// OriginalOrCurrentDeckID returns the home deck of the card.
func (c *Card) OriginalOrCurrentDeckID() int64 {
	if c.OriginalDeckID != 0 {
		return c.OriginalDeckID
	}
	return c.DeckID
}

// InFilteredDeck reports whether the card is temporarily hosted by a
// filtered deck.
func (c *Card) InFilteredDeck() bool {
	return c.OriginalDeckID != 0
}

// removeFromFilteredDeckBeforeReschedule moves the card back to its home
// deck, restoring the original due value, ahead of normal scheduling.
func (c *Card) removeFromFilteredDeckBeforeReschedule() {
	if c.OriginalDeckID == 0 {
		return
	}
	c.DeckID = c.OriginalDeckID
	c.OriginalDeckID = 0
	if c.OriginalDue != 0 {
		c.Due = c.OriginalDue
	}
	c.OriginalDue = 0
}

// removeFromFilteredDeckRestoringQueue returns a previewed card to its home
// deck and the queue matching its type.
func (c *Card) removeFromFilteredDeckRestoringQueue() {
	if c.OriginalDeckID == 0 {
		return
	}
	c.DeckID = c.OriginalDeckID
	c.OriginalDeckID = 0
	if c.OriginalDue != 0 {
		c.Due = c.OriginalDue
	}
	c.OriginalDue = 0
	c.restoreQueueFromType()
}

func (c *Card) restoreQueueFromType() {
	switch c.Type {
	case CardTypeNew:
		c.Queue = QueueNew
	case CardTypeLearn, CardTypeRelearn:
		if c.Due > 1_000_000_000 {
			c.Queue = QueueLearn
		} else {
			c.Queue = QueueDayLearn
		}
	case CardTypeReview:
		c.Queue = QueueReview
	}
}

func (c *Card) setMemoryState(m *MemoryState) {
	if m == nil {
		c.MemoryState = nil
		return
	}
	v := *m
	c.MemoryState = &v
}
