package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/sky-flux/cardsched"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

type cardRow struct {
	ID               int64 `gorm:"primaryKey;autoIncrement:false"`
	NoteID           int64
	DeckID           int64 `gorm:"index"`
	OriginalDeckID   int64 `gorm:"index"`
	Type             int8
	Queue            int8
	Due              int64
	OriginalDue      int64
	OriginalPosition *int64
	Interval         int
	EaseFactor       int
	Reps             int
	Lapses           int
	RemainingSteps   int
	Stability        *float64
	Difficulty       *float64
	DesiredRetention *float64
	LastReviewTime   *int64
	Flags            uint8
}

func (cardRow) TableName() string { return "cards" }

type deckRow struct {
	ID               int64 `gorm:"primaryKey;autoIncrement:false"`
	Name             string
	ConfigID         int64 `gorm:"index"`
	DesiredRetention *float64
	Filtered         *cardsched.FilteredDeck `gorm:"serializer:json"`
}

func (deckRow) TableName() string { return "decks" }

type deckConfigRow struct {
	ID     int64                `gorm:"primaryKey;autoIncrement:false"`
	Config cardsched.DeckConfig `gorm:"serializer:json"`
}

func (deckConfigRow) TableName() string { return "deck_configs" }

type revlogRow struct {
	ID           int64 `gorm:"primaryKey;autoIncrement:false"`
	CardID       int64 `gorm:"index"`
	USN          int32
	ButtonChosen int
	Interval     int
	LastInterval int
	EaseFactor   int
	TakenMillis  int
	Kind         int8
}

func (revlogRow) TableName() string { return "revlog" }

type collectionRow struct {
	ID  int64 `gorm:"primaryKey"`
	USN int32
}

func (collectionRow) TableName() string { return "col" }

// SQL is a cardsched.Store backed by gorm.
type SQL struct {
	db  *gorm.DB
	log *zap.Logger
}

var _ cardsched.Store = (*SQL)(nil)

// OpenSQLite opens (creating if needed) a sqlite collection at path.
func OpenSQLite(path string, log *zap.Logger) (*SQL, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return NewSQL(db, log)
}

// NewSQL migrates db and wraps it.
func NewSQL(db *gorm.DB, log *zap.Logger) (*SQL, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := db.AutoMigrate(&cardRow{}, &deckRow{}, &deckConfigRow{}, &revlogRow{}, &collectionRow{}); err != nil {
		return nil, fmt.Errorf("migrating: %w", err)
	}
	if err := db.FirstOrCreate(&collectionRow{ID: 1}).Error; err != nil {
		return nil, err
	}
	return &SQL{db: db, log: log.With(zap.String("store", "sql"))}, nil
}

// Close closes the underlying connection pool.
func (s *SQL) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func notFound(err error, what string, id int64) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %d", cardsched.ErrNotFound, what, id)
	}
	return err
}

// PutCard inserts or replaces cards.
func (s *SQL) PutCard(ctx context.Context, cards ...cardsched.Card) error {
	for i := range cards {
		row := toCardRow(&cards[i])
		if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// PutDeck inserts or replaces decks.
func (s *SQL) PutDeck(ctx context.Context, decks ...cardsched.Deck) error {
	for _, d := range decks {
		row := deckRow{ID: d.ID, Name: d.Name, ConfigID: d.ConfigID, DesiredRetention: d.DesiredRetention, Filtered: d.Filtered}
		if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// PutDeckConfig inserts or replaces deck configs.
func (s *SQL) PutDeckConfig(ctx context.Context, configs ...cardsched.DeckConfig) error {
	for _, c := range configs {
		row := deckConfigRow{ID: c.ID, Config: c}
		if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
			return err
		}
	}
	return nil
}

// SetUSN sets the sequence number stamped on new revlog entries.
func (s *SQL) SetUSN(ctx context.Context, usn int32) error {
	return s.db.WithContext(ctx).Model(&collectionRow{}).Where("id = ?", 1).Update("usn", usn).Error
}

func (s *SQL) GetCard(ctx context.Context, id int64) (cardsched.Card, error) {
	var row cardRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return cardsched.Card{}, notFound(err, "card", id)
	}
	return row.card(), nil
}

func (s *SQL) UpdateCard(ctx context.Context, card *cardsched.Card) error {
	row := toCardRow(card)
	res := s.db.WithContext(ctx).Select("*").Updates(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: card %d", cardsched.ErrNotFound, card.ID)
	}
	return nil
}

func (s *SQL) GetDeck(ctx context.Context, id int64) (cardsched.Deck, error) {
	var row deckRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return cardsched.Deck{}, notFound(err, "deck", id)
	}
	return cardsched.Deck{
		ID:               row.ID,
		Name:             row.Name,
		ConfigID:         row.ConfigID,
		DesiredRetention: row.DesiredRetention,
		Filtered:         row.Filtered,
	}, nil
}

func (s *SQL) GetDeckConfig(ctx context.Context, id int64) (cardsched.DeckConfig, error) {
	var row deckConfigRow
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return cardsched.DeckConfig{}, notFound(err, "deck config", id)
	}
	conf := row.Config
	conf.ID = row.ID
	return conf, nil
}

func (s *SQL) UpdateDeckConfig(ctx context.Context, conf *cardsched.DeckConfig) error {
	row := deckConfigRow{ID: conf.ID, Config: *conf}
	res := s.db.WithContext(ctx).Select("*").Updates(&row)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: deck config %d", cardsched.ErrNotFound, conf.ID)
	}
	return nil
}

func (s *SQL) AddRevlog(ctx context.Context, entry *cardsched.RevlogEntry) error {
	db := s.db.WithContext(ctx)
	for {
		var taken int64
		if err := db.Model(&revlogRow{}).Where("id = ?", entry.ID).Count(&taken).Error; err != nil {
			return err
		}
		if taken == 0 {
			break
		}
		s.log.Debug("revlog id taken", zap.Int64("id", entry.ID))
		entry.ID++
	}
	row := toRevlogRow(entry)
	return db.Create(&row).Error
}

func (s *SQL) RevlogForCard(ctx context.Context, cardID int64) ([]cardsched.RevlogEntry, error) {
	var rows []revlogRow
	if err := s.db.WithContext(ctx).Where("card_id = ?", cardID).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return revlogEntries(rows), nil
}

func (s *SQL) RevlogForSearch(ctx context.Context, search string) ([]cardsched.RevlogEntry, error) {
	cards, err := s.searchQuery(ctx, search)
	if err != nil {
		return nil, err
	}
	var rows []revlogRow
	err = s.db.WithContext(ctx).
		Where("card_id IN (?)", cards.Model(&cardRow{}).Select("id")).
		Order("card_id, id").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return revlogEntries(rows), nil
}

func (s *SQL) SearchCards(ctx context.Context, search string) ([]int64, error) {
	q, err := s.searchQuery(ctx, search)
	if err != nil {
		return nil, err
	}
	var ids []int64
	if err := q.Model(&cardRow{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

const homeDeck = "CASE WHEN original_deck_id != 0 THEN original_deck_id ELSE deck_id END"

// searchQuery returns a cards query filtered by search.
func (s *SQL) searchQuery(ctx context.Context, search string) (*gorm.DB, error) {
	q, err := ParseSearch(search)
	if err != nil {
		return nil, err
	}
	db := s.db.WithContext(ctx).Model(&cardRow{})
	switch q.kind {
	case searchCardIDs:
		db = db.Where("id IN ?", q.ids)
	case searchDeck:
		db = db.Where(homeDeck+" = ?", q.ids[0])
	case searchPreset:
		decks := s.db.WithContext(ctx).Model(&deckRow{}).Select("id").Where("config_id = ?", q.ids[0])
		db = db.Where(homeDeck+" IN (?)", decks)
	}
	return db, nil
}

func (s *SQL) USN(ctx context.Context) (int32, error) {
	var row collectionRow
	if err := s.db.WithContext(ctx).First(&row, 1).Error; err != nil {
		return 0, err
	}
	return row.USN, nil
}

// Transact runs fn inside a database transaction.
func (s *SQL) Transact(ctx context.Context, fn func(tx cardsched.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SQL{db: tx, log: s.log})
	})
}

func toCardRow(c *cardsched.Card) cardRow {
	row := cardRow{
		ID:               c.ID,
		NoteID:           c.NoteID,
		DeckID:           c.DeckID,
		OriginalDeckID:   c.OriginalDeckID,
		Type:             int8(c.Type),
		Queue:            int8(c.Queue),
		Due:              c.Due,
		OriginalDue:      c.OriginalDue,
		OriginalPosition: c.OriginalPosition,
		Interval:         c.Interval,
		EaseFactor:       c.EaseFactor,
		Reps:             c.Reps,
		Lapses:           c.Lapses,
		RemainingSteps:   c.RemainingSteps,
		DesiredRetention: c.DesiredRetention,
		LastReviewTime:   c.LastReviewTime,
		Flags:            c.Flags,
	}
	if c.MemoryState != nil {
		s, d := c.MemoryState.Stability, c.MemoryState.Difficulty
		row.Stability, row.Difficulty = &s, &d
	}
	return row
}

func (r *cardRow) card() cardsched.Card {
	c := cardsched.Card{
		ID:               r.ID,
		NoteID:           r.NoteID,
		DeckID:           r.DeckID,
		OriginalDeckID:   r.OriginalDeckID,
		Type:             cardsched.CardType(r.Type),
		Queue:            cardsched.CardQueue(r.Queue),
		Due:              r.Due,
		OriginalDue:      r.OriginalDue,
		OriginalPosition: r.OriginalPosition,
		Interval:         r.Interval,
		EaseFactor:       r.EaseFactor,
		Reps:             r.Reps,
		Lapses:           r.Lapses,
		RemainingSteps:   r.RemainingSteps,
		DesiredRetention: r.DesiredRetention,
		LastReviewTime:   r.LastReviewTime,
		Flags:            r.Flags,
	}
	if r.Stability != nil && r.Difficulty != nil {
		c.MemoryState = &cardsched.MemoryState{Stability: *r.Stability, Difficulty: *r.Difficulty}
	}
	return c
}

func toRevlogRow(e *cardsched.RevlogEntry) revlogRow {
	return revlogRow{
		ID:           e.ID,
		CardID:       e.CardID,
		USN:          e.USN,
		ButtonChosen: e.ButtonChosen,
		Interval:     e.Interval,
		LastInterval: e.LastInterval,
		EaseFactor:   e.EaseFactor,
		TakenMillis:  e.TakenMillis,
		Kind:         int8(e.Kind),
	}
}

func revlogEntries(rows []revlogRow) []cardsched.RevlogEntry {
	out := make([]cardsched.RevlogEntry, len(rows))
	for i, r := range rows {
		out[i] = cardsched.RevlogEntry{
			ID:           r.ID,
			CardID:       r.CardID,
			USN:          r.USN,
			ButtonChosen: r.ButtonChosen,
			Interval:     r.Interval,
			LastInterval: r.LastInterval,
			EaseFactor:   r.EaseFactor,
			TakenMillis:  r.TakenMillis,
			Kind:         cardsched.RevlogKind(r.Kind),
		}
	}
	return out
}
