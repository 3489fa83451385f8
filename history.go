package cardsched

import (
	"cmp"
	"slices"
)

// ItemWithID is an FSRSItem ending at the revlog entry RevlogID.
type ItemWithID struct {
	RevlogID int64
	Item     FSRSItem
}

// ReviewsForFSRS is a card's history reduced for FSRS.
type ReviewsForFSRS struct {
	// FilteredRevlogs are the entries left after trimming (e.g. those before
	// a reset) and dropping entries without a scheduling rating.
	FilteredRevlogs []RevlogEntry
	// Items has one item per growing prefix of FilteredRevlogs.
	Items []ItemWithID
	// Complete is true when the history alone determines the memory state.
	// Otherwise a starting state must be inferred from SM-2 data.
	Complete bool
}

// LastItem returns the item covering the whole filtered history.
func (r *ReviewsForFSRS) LastItem() (FSRSItem, bool) {
	if r == nil || len(r.Items) == 0 {
		return FSRSItem{}, false
	}
	return r.Items[len(r.Items)-1].Item, true
}

// ReduceReviews filters one card's chronological revlog and builds FSRS items
// from it. It returns nil when the history is unusable: nothing was graded
// since the last reset, or, when training, there is no learning run after
// ignoreBefore (unix milliseconds).
func ReduceReviews(entries []RevlogEntry, nextDayAt int64, training bool, ignoreBefore int64) *ReviewsForFSRS {
	firstOfLastLearn, firstUserGrade := -1, -1
	complete := false

	// Walk from the newest entry back.
	for idx := len(entries) - 1; idx >= 0; idx-- {
		e := &entries[idx]
		if e.IsCramming() {
			continue
		}
		// Without a complete history the starting state comes from the first
		// graded review after the cutoff with an interval of at least a day.
		withinCutoff := e.ID > ignoreBefore
		graded := e.HasRating()
		interday := e.Interval >= 1 || e.Interval <= -secsPerDay
		if graded && withinCutoff && interday {
			firstUserGrade = idx
		}

		if graded && e.Kind == RevlogLearning {
			firstOfLastLearn = idx
			complete = true
			continue
		}
		if e.IsReset() {
			// Entries before a reset are dropped. Nothing graded since the
			// reset leaves no usable history.
			if firstOfLastLearn >= 0 {
				complete = true
				break
			}
			if firstUserGrade >= 0 {
				complete = false
				break
			}
			return nil
		}
		// Older versions did not log resets; anything before the last
		// learning run ends the usable history.
		if firstOfLastLearn >= 0 {
			break
		}
	}

	if training {
		if firstOfLastLearn >= 0 && entries[firstOfLastLearn].ID < ignoreBefore {
			return nil
		}
	} else if firstOfLastLearn >= 0 && entries[firstOfLastLearn].ID < ignoreBefore && firstOfLastLearn < len(entries)-1 {
		complete = false
		firstOfLastLearn = -1
	}

	var start int
	switch {
	case firstOfLastLearn >= 0:
		start = firstOfLastLearn
	case training:
		return nil
	case firstUserGrade >= 0:
		start = firstUserGrade
	default:
		return nil
	}

	filtered := make([]RevlogEntry, 0, len(entries)-start)
	for _, e := range entries[start:] {
		if e.HasRatingAndAffectsScheduling() {
			filtered = append(filtered, e)
		}
	}

	deltaTs := make([]int, len(filtered))
	for i := 1; i < len(filtered); i++ {
		deltaTs[i] = filtered[i-1].DaysElapsed(nextDayAt) - filtered[i].DaysElapsed(nextDayAt)
	}

	skip := 0
	if training {
		skip = 1
	}
	var items []ItemWithID
	for outer := skip; outer < len(filtered); outer++ {
		if training && deltaTs[outer] <= 0 {
			continue
		}
		reviews := make([]FSRSReview, outer+1)
		for inner := range reviews {
			reviews[inner] = FSRSReview{Rating: filtered[inner].ButtonChosen, DeltaT: deltaTs[inner]}
		}
		items = append(items, ItemWithID{RevlogID: filtered[outer].ID, Item: FSRSItem{Reviews: reviews}})
	}
	if len(items) == 0 {
		return nil
	}
	return &ReviewsForFSRS{FilteredRevlogs: filtered, Items: items, Complete: complete}
}

// ItemsForTraining reduces the revlog of many cards (grouped by card, each
// group in chronological order) into training items sorted by the revlog ID
// they end at. It also returns the number of reviews the items draw on.
func ItemsForTraining(entries []RevlogEntry, nextDayAt int64, ignoreBefore int64) ([]FSRSItem, int) {
	var all []ItemWithID
	reviewCount := 0
	for start := 0; start < len(entries); {
		end := start + 1
		for end < len(entries) && entries[end].CardID == entries[start].CardID {
			end++
		}
		if r := ReduceReviews(entries[start:end], nextDayAt, true, ignoreBefore); r != nil {
			reviewCount += len(r.FilteredRevlogs)
			all = append(all, r.Items...)
		}
		start = end
	}
	slices.SortStableFunc(all, func(a, b ItemWithID) int { return cmp.Compare(a.RevlogID, b.RevlogID) })

	items := make([]FSRSItem, len(all))
	for i, it := range all {
		items[i] = it.Item
	}
	return items, reviewCount
}
