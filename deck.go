package cardsched

import (
	"fmt"
	"time"
)

// LeechAction is what happens to a card when it becomes a leech.
type LeechAction int8

const (
	LeechSuspend LeechAction = iota
	LeechTagOnly
)

// FilteredDeck holds the settings of a deck that temporarily hosts cards
// from other decks.
type FilteredDeck struct {
	// Reschedule means answers affect the card's schedule. Otherwise cards
	// are only previewed.
	Reschedule       bool `json:"reschedule" yaml:"reschedule"`
	PreviewDelaySecs int  `json:"preview_delay_secs" yaml:"preview_delay_secs"`
	PreviewAgainSecs int  `json:"preview_again_secs" yaml:"preview_again_secs"`
	PreviewHardSecs  int  `json:"preview_hard_secs" yaml:"preview_hard_secs"`
	PreviewGoodSecs  int  `json:"preview_good_secs" yaml:"preview_good_secs"`
}

// Deck is a normal deck (with a config) or a filtered deck.
type Deck struct {
	ID               int64         `json:"id" yaml:"id"`
	Name             string        `json:"name" yaml:"name"`
	ConfigID         int64         `json:"config_id" yaml:"config_id"`
	DesiredRetention *float64      `json:"desired_retention,omitempty" yaml:"desired_retention,omitempty"`
	Filtered         *FilteredDeck `json:"filtered,omitempty" yaml:"filtered,omitempty"`
}

// IsFiltered reports whether d is a filtered deck.
func (d *Deck) IsFiltered() bool {
	return d.Filtered != nil
}

// EffectiveDesiredRetention returns the deck's retention override, or the
// config's.
func (d *Deck) EffectiveDesiredRetention(conf *DeckConfig) float64 {
	if d.DesiredRetention != nil {
		return *d.DesiredRetention
	}
	return conf.DesiredRetention
}

func (d *Deck) previewDelays() PreviewDelays {
	if d.Filtered == nil {
		return PreviewDelays{}
	}
	return PreviewDelays{
		Again: d.Filtered.PreviewAgainSecs,
		Hard:  d.Filtered.PreviewHardSecs,
		Good:  d.Filtered.PreviewGoodSecs,
	}
}

// DeckConfig is a scheduling preset shared by one or more decks.
// Use DefaultDeckConfig for the stock preset; Normalize fills zero values
// that are never valid.
type DeckConfig struct {
	ID   int64  `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`

	LearnSteps             LearningSteps `json:"learn_steps" yaml:"learn_steps"`     // nil → [1m, 10m]; empty → no steps
	RelearnSteps           LearningSteps `json:"relearn_steps" yaml:"relearn_steps"` // nil → [10m]; empty → no steps
	GraduatingIntervalGood int           `json:"graduating_interval_good" yaml:"graduating_interval_good"`
	GraduatingIntervalEasy int           `json:"graduating_interval_easy" yaml:"graduating_interval_easy"`
	InitialEase            float64       `json:"initial_ease" yaml:"initial_ease"` // zero → 2.5

	HardMultiplier        float64 `json:"hard_multiplier" yaml:"hard_multiplier"`         // zero → 1.2
	EasyMultiplier        float64 `json:"easy_multiplier" yaml:"easy_multiplier"`         // zero → 1.3
	IntervalMultiplier    float64 `json:"interval_multiplier" yaml:"interval_multiplier"` // zero → 1.0
	LapseMultiplier       float64 `json:"lapse_multiplier" yaml:"lapse_multiplier"`
	MinimumLapseInterval  int     `json:"minimum_lapse_interval" yaml:"minimum_lapse_interval"`
	MaximumReviewInterval int     `json:"maximum_review_interval" yaml:"maximum_review_interval"` // zero → 36500

	LeechThreshold int         `json:"leech_threshold" yaml:"leech_threshold"` // zero disables
	LeechAction    LeechAction `json:"leech_action" yaml:"leech_action"`

	FSRSParams              []float64 `json:"fsrs_params" yaml:"fsrs_params"`                   // empty → DefaultParameters
	DesiredRetention        float64   `json:"desired_retention" yaml:"desired_retention"`       // zero → 0.9
	HistoricalRetention     float64   `json:"historical_retention" yaml:"historical_retention"` // zero → 0.9
	IgnoreRevlogsBeforeDate string    `json:"ignore_revlogs_before_date" yaml:"ignore_revlogs_before_date"`
	CapAnswerTimeSecs       int       `json:"cap_answer_time_secs" yaml:"cap_answer_time_secs"` // zero → 60
}

// DefaultDeckConfig returns the stock preset.
func DefaultDeckConfig() DeckConfig {
	conf := DeckConfig{
		ID:                     1,
		Name:                   "Default",
		GraduatingIntervalGood: 1,
		GraduatingIntervalEasy: 4,
		MinimumLapseInterval:   1,
		LeechThreshold:         defaultLeechMax,
		LeechAction:            LeechTagOnly,
	}
	conf.Normalize()
	return conf
}

// Normalize replaces zero values that have no valid meaning with defaults.
func (c *DeckConfig) Normalize() {
	if c.LearnSteps == nil {
		c.LearnSteps = LearningSteps{time.Minute, 10 * time.Minute}
	}
	if c.RelearnSteps == nil {
		c.RelearnSteps = LearningSteps{10 * time.Minute}
	}
	if c.InitialEase == 0 {
		c.InitialEase = initialEase
	}
	if c.HardMultiplier == 0 {
		c.HardMultiplier = 1.2
	}
	if c.EasyMultiplier == 0 {
		c.EasyMultiplier = 1.3
	}
	if c.IntervalMultiplier == 0 {
		c.IntervalMultiplier = 1.0
	}
	if c.MaximumReviewInterval == 0 {
		c.MaximumReviewInterval = defaultMaxIvl
	}
	if c.DesiredRetention == 0 {
		c.DesiredRetention = 0.9
	}
	if c.HistoricalRetention == 0 {
		c.HistoricalRetention = 0.9
	}
	if c.CapAnswerTimeSecs == 0 {
		c.CapAnswerTimeSecs = 60
	}
}

// Validate reports settings that cannot be scheduled with.
func (c *DeckConfig) Validate() error {
	if c.DesiredRetention <= 0 || c.DesiredRetention >= 1 {
		return fmt.Errorf("%w: desired retention %f out of range (0, 1)", ErrInvalidInput, c.DesiredRetention)
	}
	if c.HistoricalRetention <= 0 || c.HistoricalRetention >= 1 {
		return fmt.Errorf("%w: historical retention %f out of range (0, 1)", ErrInvalidInput, c.HistoricalRetention)
	}
	if c.MaximumReviewInterval < 0 {
		return fmt.Errorf("%w: maximum interval %d must be positive", ErrInvalidInput, c.MaximumReviewInterval)
	}
	if _, err := c.Parameters(); err != nil {
		return err
	}
	_, err := IgnoreRevlogsBeforeMillis(c.IgnoreRevlogsBeforeDate)
	return err
}

// Parameters returns the preset's FSRS weights.
func (c *DeckConfig) Parameters() (Parameters, error) {
	return ParametersFromSlice(c.FSRSParams)
}

// IgnoreRevlogsBeforeMillis converts a "YYYY-MM-DD" cutoff date into UTC
// midnight in unix milliseconds. An empty date means no cutoff.
func IgnoreRevlogsBeforeMillis(date string) (int64, error) {
	if date == "" {
		return 0, nil
	}
	t, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return 0, fmt.Errorf("%w: parsing date %q: %v", ErrInvalidInput, date, err)
	}
	return t.UnixMilli(), nil
}

// stateContext builds the transition context for a card in deck, whose
// home deck uses conf.
func stateContext(deck *Deck, conf *DeckConfig, fuzzFactor *float64, fsrs *ItemStates, shortTermWithSteps, allowShortTerm bool) *StateContext {
	return &StateContext{
		FuzzFactor:             fuzzFactor,
		FSRSNextStates:         fsrs,
		FSRSShortTermWithSteps: shortTermWithSteps,
		FSRSAllowShortTerm:     allowShortTerm,
		Steps:                  conf.LearnSteps,
		GraduatingIntervalGood: conf.GraduatingIntervalGood,
		GraduatingIntervalEasy: conf.GraduatingIntervalEasy,
		InitialEaseFactor:      conf.InitialEase,
		HardMultiplier:         conf.HardMultiplier,
		EasyMultiplier:         conf.EasyMultiplier,
		IntervalMultiplier:     conf.IntervalMultiplier,
		MaximumReviewInterval:  conf.MaximumReviewInterval,
		LeechThreshold:         conf.LeechThreshold,
		RelearnSteps:           conf.RelearnSteps,
		LapseMultiplier:        conf.LapseMultiplier,
		MinimumLapseInterval:   conf.MinimumLapseInterval,
		InFilteredDeck:         deck.IsFiltered(),
		PreviewDelays:          deck.previewDelays(),
	}
}
