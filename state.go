package cardsched

import (
	"encoding"
	"fmt"
)

// CardType is the persisted lifecycle stage of a card.
type CardType int8

const (
	CardTypeNew     CardType = iota // Never answered.
	CardTypeLearn                   // In the initial learning ladder.
	CardTypeReview                  // Graduated into the long-term review cycle.
	CardTypeRelearn                 // Lapsed, walking the relearning ladder.
)

// CardQueue is the runtime bucket a card is gathered from. It is more
// granular than CardType: learning cards sit in QueueLearn while their due
// value is a timestamp and in QueueDayLearn once it is a day number.
type CardQueue int8

const (
	QueueUserBuried    CardQueue = -3
	QueueSchedBuried   CardQueue = -2
	QueueSuspended     CardQueue = -1
	QueueNew           CardQueue = 0
	QueueLearn         CardQueue = 1 // Due is a unix timestamp in seconds.
	QueueReview        CardQueue = 2 // Due is a day number.
	QueueDayLearn      CardQueue = 3 // Due is a day number.
	QueuePreviewRepeat CardQueue = 4 // Due is a unix timestamp in seconds.
)

var (
	cardTypeNames = [...]string{
		CardTypeNew:     "New",
		CardTypeLearn:   "Learn",
		CardTypeReview:  "Review",
		CardTypeRelearn: "Relearn",
	}
	cardTypeByName = map[string]CardType{
		"New":     CardTypeNew,
		"Learn":   CardTypeLearn,
		"Review":  CardTypeReview,
		"Relearn": CardTypeRelearn,
	}
	queueNames = map[CardQueue]string{
		QueueUserBuried:    "UserBuried",
		QueueSchedBuried:   "SchedBuried",
		QueueSuspended:     "Suspended",
		QueueNew:           "New",
		QueueLearn:         "Learn",
		QueueReview:        "Review",
		QueueDayLearn:      "DayLearn",
		QueuePreviewRepeat: "PreviewRepeat",
	}
)

var (
	_ fmt.Stringer             = CardType(0)
	_ encoding.TextMarshaler   = CardType(0)
	_ encoding.TextUnmarshaler = (*CardType)(nil)
	_ fmt.Stringer             = CardQueue(0)
)

func (t CardType) isValid() bool {
	return t >= CardTypeNew && t <= CardTypeRelearn
}

// String returns the name of the card type, or "CardType(n)" for invalid values.
func (t CardType) String() string {
	if t.isValid() {
		return cardTypeNames[t]
	}
	return fmt.Sprintf("CardType(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t CardType) MarshalText() ([]byte, error) {
	if !t.isValid() {
		return nil, fmt.Errorf("%w: card type %d", ErrInvalidInput, int(t))
	}
	return []byte(cardTypeNames[t]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *CardType) UnmarshalText(text []byte) error {
	v, ok := cardTypeByName[string(text)]
	if !ok {
		return fmt.Errorf("%w: card type %q", ErrInvalidInput, text)
	}
	*t = v
	return nil
}

// String returns the name of the queue, or "CardQueue(n)" for unknown values.
func (q CardQueue) String() string {
	if name, ok := queueNames[q]; ok {
		return name
	}
	return fmt.Sprintf("CardQueue(%d)", int(q))
}

// DueIsTimestamp reports whether a card in this queue stores a unix
// timestamp in Due rather than a day number or new-card position.
func (q CardQueue) DueIsTimestamp() bool {
	return q == QueueLearn || q == QueuePreviewRepeat
}
