package cardsched

import "context"

// Store is the storage collaborator of the scheduler. Implementations live
// in the store package.
//
// Searches use a small syntax: "" matches every card, "cid:1,2,3" matches
// card IDs, "deck:N" matches cards whose home deck is N, and "preset:N"
// matches cards whose home deck uses config N.
type Store interface {
	GetCard(ctx context.Context, id int64) (Card, error)
	UpdateCard(ctx context.Context, card *Card) error
	GetDeck(ctx context.Context, id int64) (Deck, error)
	GetDeckConfig(ctx context.Context, id int64) (DeckConfig, error)
	UpdateDeckConfig(ctx context.Context, conf *DeckConfig) error

	// AddRevlog appends an entry. If its ID is taken, the store bumps it
	// to the next free millisecond and writes the final ID back.
	AddRevlog(ctx context.Context, entry *RevlogEntry) error
	// RevlogForCard returns the entries of one card, oldest first.
	RevlogForCard(ctx context.Context, cardID int64) ([]RevlogEntry, error)
	// RevlogForSearch returns the entries of all matching cards, grouped by
	// card ID and oldest first within a card.
	RevlogForSearch(ctx context.Context, search string) ([]RevlogEntry, error)
	SearchCards(ctx context.Context, search string) ([]int64, error)

	// USN returns the sequence number stamped on new revlog entries.
	USN(ctx context.Context) (int32, error)
	// Transact runs fn with exclusive write access; fn's error rolls back.
	Transact(ctx context.Context, fn func(tx Store) error) error
}

// Recorder receives scheduling events, e.g. for metrics.
type Recorder interface {
	AnswerRecorded(rating Rating, kind RevlogKind)
	StaleStateRejected()
	MemoryStatesUpdated(cards int)
	TrainingFinished(items int, seconds float64, err error)
}

type nopRecorder struct{}

func (nopRecorder) AnswerRecorded(Rating, RevlogKind) {}
func (nopRecorder) StaleStateRejected() {}
func (nopRecorder) MemoryStatesUpdated(int) {}
func (nopRecorder) TrainingFinished(int, float64, error) {}
