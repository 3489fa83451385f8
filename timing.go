package cardsched

import "time"

// SchedTimingToday locates "today" for scheduling purposes.
type SchedTimingToday struct {
	Now         int64 // unix seconds.
	DaysElapsed int   // days since the collection was created.
	NextDayAt   int64 // unix seconds of the next day rollover.
}

// SecsUntilRollover returns the seconds left before the next day starts.
func (t SchedTimingToday) SecsUntilRollover() int {
	return int(max(t.NextDayAt-t.Now, 0))
}

// NearCutoff reports whether the next rollover is less than a minute away.
func (t SchedTimingToday) NearCutoff() bool {
	return t.NextDayAt-t.Now < 60
}

// TimingToday computes the scheduling day for now, for a collection created
// at created, with days starting at rolloverHour in now's location.
func TimingToday(created, now time.Time, rolloverHour int) SchedTimingToday {
	loc := now.Location()
	rollover := time.Duration(rolloverHour) * time.Hour
	createdDay := civilDay(created.In(loc).Add(-rollover))
	today := civilDay(now.Add(-rollover))

	days := int(today.Sub(createdDay).Hours() / 24)
	next := time.Date(today.Year(), today.Month(), today.Day()+1, rolloverHour, 0, 0, 0, loc)
	return SchedTimingToday{
		Now:         now.Unix(),
		DaysElapsed: max(days, 0),
		NextDayAt:   next.Unix(),
	}
}

// civilDay truncates t to its calendar date, expressed in UTC so day
// differences are not affected by DST.
func civilDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// daysSince returns whole days between ts (unix seconds) and the next
// rollover, never negative.
func (t SchedTimingToday) daysSince(ts int64) int {
	return int(max(t.NextDayAt-ts, 0) / secsPerDay)
}
