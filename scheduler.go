package cardsched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// SchedulerConfig configures a Scheduler.
// Zero values produce sensible defaults; see field comments.
type SchedulerConfig struct {
	Store                  Store            // required
	Created                time.Time        // collection creation; zero → unix epoch
	RolloverHour           int              // hour a new day starts, 0-23
	Now                    func() time.Time // nil → time.Now
	FSRS                   bool             // false → SM-2 intervals
	FSRSShortTermWithSteps bool             // allow FSRS same-day intervals even with steps configured
	DisableFuzzing         bool             // zero false → fuzz enabled
	Logger                 *zap.Logger      // nil → no logging
	Recorder               Recorder         // nil → no metrics
}

// Scheduler answers cards and maintains their memory states against a Store.
type Scheduler struct {
	store              Store
	created            time.Time
	rolloverHour       int
	now                func() time.Time
	fsrs               bool
	shortTermWithSteps bool
	disableFuzzing     bool
	logger             *zap.Logger
	recorder           Recorder
}

// NewScheduler creates a Scheduler from the given config.
// Zero-value fields are filled with defaults; invalid values return an error.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidInput)
	}
	if cfg.RolloverHour < 0 || cfg.RolloverHour > 23 {
		return nil, fmt.Errorf("%w: rollover hour %d out of range [0, 23]", ErrInvalidInput, cfg.RolloverHour)
	}
	created := cfg.Created
	if created.IsZero() {
		created = time.Unix(0, 0)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	var recorder Recorder = nopRecorder{}
	if cfg.Recorder != nil {
		recorder = cfg.Recorder
	}
	return &Scheduler{
		store:              cfg.Store,
		created:            created,
		rolloverHour:       cfg.RolloverHour,
		now:                now,
		fsrs:               cfg.FSRS,
		shortTermWithSteps: cfg.FSRSShortTermWithSteps,
		disableFuzzing:     cfg.DisableFuzzing,
		logger:             logger,
		recorder:           recorder,
	}, nil
}

// Timing returns today's scheduling day.
func (s *Scheduler) Timing() SchedTimingToday {
	return s.timing()
}

func (s *Scheduler) timing() SchedTimingToday {
	return TimingToday(s.created, s.now(), s.rolloverHour)
}

// fuzzFactor returns the card's fuzz factor, or nil when fuzzing is off.
func (s *Scheduler) fuzzFactor(card *Card, forReschedule bool) *float64 {
	if s.disableFuzzing {
		return nil
	}
	f := FuzzFactor(FuzzSeed(card, forReschedule))
	return &f
}

// CardAnswer is an answer to apply with AnswerCard. CurrentState and
// NewState come from a prior SchedulingStates call.
type CardAnswer struct {
	CardID            int64
	CurrentState      CardState
	NewState          CardState
	Rating            Rating
	AnsweredAt        time.Time
	MillisecondsTaken int
}

func (a *CardAnswer) capAnswerTime(maxSecs int) {
	a.MillisecondsTaken = min(a.MillisecondsTaken, maxSecs*1000)
}

// SchedulingStates returns the card's current state and the state each
// rating would lead to.
func (s *Scheduler) SchedulingStates(ctx context.Context, cardID int64) (SchedulingStates, error) {
	card, err := s.store.GetCard(ctx, cardID)
	if err != nil {
		return SchedulingStates{}, err
	}
	u, err := s.cardUpdater(ctx, s.store, card)
	if err != nil {
		return SchedulingStates{}, err
	}
	current, err := u.currentState()
	if err != nil {
		return SchedulingStates{}, err
	}
	return NextStates(current, u.stateContext())
}

// AnswerCard applies an answer, writing the card and a revlog entry. It
// fails with ErrStaleState when the card no longer is in
// answer.CurrentState; the caller must fetch fresh states and retry.
// The answer's time taken is capped to the preset's limit.
func (s *Scheduler) AnswerCard(ctx context.Context, answer *CardAnswer) (Card, error) {
	if !answer.Rating.IsValid() {
		return Card{}, fmt.Errorf("%w: %d", ErrInvalidRating, answer.Rating)
	}
	if err := validateState(answer.CurrentState); err != nil {
		return Card{}, err
	}
	if err := validateState(answer.NewState); err != nil {
		return Card{}, err
	}

	var out Card
	err := s.store.Transact(ctx, func(tx Store) error {
		card, err := tx.GetCard(ctx, answer.CardID)
		if err != nil {
			return err
		}
		u, err := s.cardUpdater(ctx, tx, card)
		if err != nil {
			return err
		}
		answer.capAnswerTime(u.conf.CapAnswerTimeSecs)

		current, err := u.currentState()
		if err != nil {
			return err
		}
		asserted := setElapsedSecsEqual(current, answer.CurrentState)
		if !StatesEqual(current, asserted) {
			s.recorder.StaleStateRejected()
			s.logger.Warn("answer conflicts with card state",
				zap.Int64("card", answer.CardID),
				zap.Any("current", current),
				zap.Any("asserted", answer.CurrentState))
			return fmt.Errorf("%w: card %d", ErrStaleState, answer.CardID)
		}

		partial, err := u.applyStudyState(current, answer.NewState)
		if err != nil {
			return err
		}
		usn, err := tx.USN(ctx)
		if err != nil {
			return err
		}
		entry := partial.revlogEntry(usn, answer)
		if err := tx.AddRevlog(ctx, &entry); err != nil {
			return err
		}

		if _, preview := current.(PreviewState); !preview {
			secs := answer.AnsweredAt.Unix()
			u.card.LastReviewTime = &secs
		}
		if err := tx.UpdateCard(ctx, &u.card); err != nil {
			return err
		}
		s.recorder.AnswerRecorded(answer.Rating, entry.Kind)
		s.logger.Debug("card answered",
			zap.Int64("card", answer.CardID),
			zap.Stringer("rating", answer.Rating),
			zap.Stringer("kind", entry.Kind),
			zap.Int("interval", entry.Interval))
		out = u.card
		return nil
	})
	if err != nil {
		return Card{}, err
	}
	return out, nil
}

// cardUpdater holds what is needed to derive a card's state and apply a
// new one to it.
type cardUpdater struct {
	card               Card
	deck               Deck
	conf               DeckConfig
	timing             SchedTimingToday
	fuzzFactor         *float64
	fsrsNext           *ItemStates
	desiredRetention   *float64
	shortTermWithSteps bool
	allowShortTerm     bool
}

func (s *Scheduler) cardUpdater(ctx context.Context, st Store, card Card) (*cardUpdater, error) {
	timing := s.timing()
	deck, err := st.GetDeck(ctx, card.DeckID)
	if err != nil {
		return nil, fmt.Errorf("deck %d: %w", card.DeckID, err)
	}
	home := deck
	if card.OriginalOrCurrentDeckID() != card.DeckID {
		if home, err = st.GetDeck(ctx, card.OriginalOrCurrentDeckID()); err != nil {
			return nil, fmt.Errorf("home deck %d: %w", card.OriginalOrCurrentDeckID(), err)
		}
	}
	if home.IsFiltered() {
		return nil, fmt.Errorf("%w: home deck %d is filtered", ErrInvalidInput, home.ID)
	}
	conf, err := st.GetDeckConfig(ctx, home.ConfigID)
	switch {
	case errors.Is(err, ErrNotFound):
		conf = DefaultDeckConfig()
	case err != nil:
		return nil, err
	}
	conf.Normalize()

	u := &cardUpdater{
		card:               card,
		deck:               deck,
		conf:               conf,
		timing:             timing,
		shortTermWithSteps: s.shortTermWithSteps,
	}
	if s.fsrs {
		if err := s.prepareFSRS(ctx, st, u, &home); err != nil {
			return nil, err
		}
	}
	u.fuzzFactor = s.fuzzFactor(&u.card, false)
	return u, nil
}

// prepareFSRS computes the FSRS next states of u's card, first inferring
// its memory state from history if it has none yet.
func (s *Scheduler) prepareFSRS(ctx context.Context, st Store, u *cardUpdater, home *Deck) error {
	params, err := u.conf.Parameters()
	if err != nil {
		return err
	}
	model, err := NewModel(params)
	if err != nil {
		return err
	}
	ignoreBefore, err := IgnoreRevlogsBeforeMillis(u.conf.IgnoreRevlogsBeforeDate)
	if err != nil {
		return err
	}

	var revlog []RevlogEntry
	needRevlog := (u.card.MemoryState == nil && u.card.Type != CardTypeNew) || u.card.LastReviewTime == nil
	if needRevlog {
		if revlog, err = st.RevlogForCard(ctx, u.card.ID); err != nil {
			return err
		}
	}
	if u.card.MemoryState == nil && u.card.Type != CardTypeNew {
		// Moved or imported into an FSRS preset after its params were set.
		item, err := FSRSItemForMemoryState(model, revlog, u.timing.NextDayAt, u.conf.HistoricalRetention, ignoreBefore)
		if err != nil {
			return err
		}
		if err := u.card.SetMemoryState(model, item, u.conf.HistoricalRetention); err != nil {
			return err
		}
	}

	daysElapsed := 0
	if u.card.LastReviewTime != nil {
		daysElapsed = u.timing.daysSince(*u.card.LastReviewTime)
	} else {
		for i := len(revlog) - 1; i >= 0; i-- {
			if revlog[i].HasRatingAndAffectsScheduling() {
				daysElapsed = u.timing.daysSince(revlog[i].Secs())
				break
			}
		}
	}

	retention := home.EffectiveDesiredRetention(&u.conf)
	next := model.NextStates(u.card.MemoryState, retention, daysElapsed)
	u.fsrsNext = &next
	u.desiredRetention = &retention
	u.allowShortTerm = params.allowsShortTerm()
	return nil
}

func (u *cardUpdater) stateContext() *StateContext {
	return stateContext(&u.deck, &u.conf, u.fuzzFactor, u.fsrsNext, u.shortTermWithSteps, u.allowShortTerm)
}

func (u *cardUpdater) currentState() (CardState, error) {
	return CurrentState(&u.card, &u.deck, &u.conf, u.timing)
}

// CurrentState derives the state of card in deck, whose home deck uses conf.
func CurrentState(card *Card, deck *Deck, conf *DeckConfig, timing SchedTimingToday) (CardState, error) {
	due := card.Due
	switch {
	case deck.IsFiltered():
		if card.OriginalDue != 0 {
			due = card.OriginalDue
		}
	case card.Type == CardTypeReview:
		// Outside filtered decks a review card is never reviewed early.
		due = min(due, int64(timing.DaysElapsed))
	}

	normal, err := normalState(card, conf, timing, due)
	if err != nil {
		return nil, err
	}
	switch {
	case !deck.IsFiltered():
		return normal, nil
	case deck.Filtered.Reschedule:
		return ReschedulingState{Original: normal}, nil
	default:
		return PreviewState{ScheduledSecs: deck.Filtered.PreviewDelaySecs}, nil
	}
}

func normalState(card *Card, conf *DeckConfig, timing SchedTimingToday, due int64) (NormalState, error) {
	memory := cloneMemory(card.MemoryState)
	switch card.Type {
	case CardTypeNew:
		return NewState{Position: max(due, 0)}, nil
	case CardTypeLearn:
		scheduled, _ := conf.LearnSteps.currentDelaySecs(card.RemainingSteps)
		return LearnState{
			RemainingSteps: card.RemainingSteps,
			ScheduledSecs:  scheduled,
			ElapsedSecs:    elapsedSecs(card, timing, due, scheduled),
			Memory:         memory,
		}, nil
	case CardTypeReview:
		return ReviewState{
			ScheduledDays: card.Interval,
			ElapsedDays:   max(card.Interval-int(due-int64(timing.DaysElapsed)), 0),
			EaseFactor:    card.Ease(),
			Lapses:        card.Lapses,
			Memory:        memory,
		}, nil
	case CardTypeRelearn:
		scheduled, _ := conf.RelearnSteps.currentDelaySecs(card.RemainingSteps)
		return RelearnState{
			Learning: LearnState{
				RemainingSteps: card.RemainingSteps,
				ScheduledSecs:  scheduled,
				ElapsedSecs:    elapsedSecs(card, timing, due, scheduled),
				Memory:         memory,
			},
			Review: ReviewState{
				ScheduledDays: card.Interval,
				ElapsedDays:   card.Interval,
				EaseFactor:    card.Ease(),
				Lapses:        card.Lapses,
				Memory:        cloneMemory(card.MemoryState),
			},
		}, nil
	}
	return nil, fmt.Errorf("%w: card %d has type %v", ErrInvalidInput, card.ID, card.Type)
}

func elapsedSecs(card *Card, timing SchedTimingToday, due int64, scheduled int) int {
	switch {
	case card.LastReviewTime != nil:
		return int(max(timing.Now-*card.LastReviewTime, 0))
	case card.Queue.DueIsTimestamp():
		return int(max(timing.Now-(due-int64(scheduled)), 0))
	}
	return 0
}

func cloneMemory(m *MemoryState) *MemoryState {
	if m == nil {
		return nil
	}
	v := *m
	return &v
}
