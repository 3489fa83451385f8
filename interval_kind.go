package cardsched

// IntervalKind is a delay measured either in seconds (intraday) or in days.
type IntervalKind struct {
	value  int
	inDays bool
}

// InSecs returns an intraday interval.
func InSecs(secs int) IntervalKind { return IntervalKind{value: secs} }

// InDays returns a day-granular interval.
func InDays(days int) IntervalKind { return IntervalKind{value: days, inDays: true} }

// Days returns the day count of a day-granular interval.
func (k IntervalKind) Days() (int, bool) {
	return k.value, k.inDays
}

// Secs returns the seconds of an intraday interval.
func (k IntervalKind) Secs() (int, bool) {
	return k.value, !k.inDays
}

// AsSeconds converts the interval to seconds.
func (k IntervalKind) AsSeconds() int {
	if k.inDays {
		return k.value * secsPerDay
	}
	return k.value
}

// MaybeAsDays converts a seconds interval that reaches the next day rollover
// into a day count, so the card is queued for the right day.
func (k IntervalKind) MaybeAsDays(secsUntilRollover int) IntervalKind {
	if k.inDays || k.value < secsUntilRollover {
		return k
	}
	return InDays((k.value-secsUntilRollover)/secsPerDay + 1)
}

// revlogValue encodes the interval the way RevlogEntry stores it: positive
// days, negative seconds.
func (k IntervalKind) revlogValue() int {
	if k.inDays {
		return k.value
	}
	return -k.value
}
