package store

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/sky-flux/cardsched"
)

// Memory is an in-memory cardsched.Store. Transactions are serialized and
// undo their writes when fn fails.
type Memory struct {
	txMu sync.Mutex
	mu   sync.RWMutex

	cards   map[int64]cardsched.Card
	decks   map[int64]cardsched.Deck
	configs map[int64]cardsched.DeckConfig
	revlog  map[int64]cardsched.RevlogEntry
	usn     int32
}

var _ cardsched.Store = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		cards:   make(map[int64]cardsched.Card),
		decks:   make(map[int64]cardsched.Deck),
		configs: make(map[int64]cardsched.DeckConfig),
		revlog:  make(map[int64]cardsched.RevlogEntry),
	}
}

// PutCard inserts or replaces cards.
func (m *Memory) PutCard(cards ...cardsched.Card) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range cards {
		m.cards[c.ID] = c.Clone()
	}
}

// PutDeck inserts or replaces decks.
func (m *Memory) PutDeck(decks ...cardsched.Deck) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range decks {
		m.decks[d.ID] = d
	}
}

// PutDeckConfig inserts or replaces deck configs.
func (m *Memory) PutDeckConfig(configs ...cardsched.DeckConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range configs {
		m.configs[c.ID] = c
	}
}

// PutRevlog inserts or replaces revlog entries, keeping their IDs.
func (m *Memory) PutRevlog(entries ...cardsched.RevlogEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		m.revlog[e.ID] = e
	}
}

// SetUSN sets the sequence number stamped on new revlog entries.
func (m *Memory) SetUSN(usn int32) {
	m.mu.Lock()
	m.usn = usn
	m.mu.Unlock()
}

func (m *Memory) GetCard(_ context.Context, id int64) (cardsched.Card, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.cards[id]
	if !ok {
		return cardsched.Card{}, fmt.Errorf("%w: card %d", cardsched.ErrNotFound, id)
	}
	return c.Clone(), nil
}

func (m *Memory) UpdateCard(_ context.Context, card *cardsched.Card) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.cards[card.ID]; !ok {
		return fmt.Errorf("%w: card %d", cardsched.ErrNotFound, card.ID)
	}
	m.cards[card.ID] = card.Clone()
	return nil
}

func (m *Memory) GetDeck(_ context.Context, id int64) (cardsched.Deck, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.decks[id]
	if !ok {
		return cardsched.Deck{}, fmt.Errorf("%w: deck %d", cardsched.ErrNotFound, id)
	}
	return d, nil
}

func (m *Memory) GetDeckConfig(_ context.Context, id int64) (cardsched.DeckConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.configs[id]
	if !ok {
		return cardsched.DeckConfig{}, fmt.Errorf("%w: deck config %d", cardsched.ErrNotFound, id)
	}
	return c, nil
}

func (m *Memory) UpdateDeckConfig(_ context.Context, conf *cardsched.DeckConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.configs[conf.ID]; !ok {
		return fmt.Errorf("%w: deck config %d", cardsched.ErrNotFound, conf.ID)
	}
	c := *conf
	c.LearnSteps = slices.Clone(conf.LearnSteps)
	c.RelearnSteps = slices.Clone(conf.RelearnSteps)
	c.FSRSParams = slices.Clone(conf.FSRSParams)
	m.configs[c.ID] = c
	return nil
}

func (m *Memory) AddRevlog(_ context.Context, entry *cardsched.RevlogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for {
		if _, taken := m.revlog[entry.ID]; !taken {
			break
		}
		entry.ID++
	}
	m.revlog[entry.ID] = *entry
	return nil
}

func (m *Memory) RevlogForCard(_ context.Context, cardID int64) ([]cardsched.RevlogEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []cardsched.RevlogEntry
	for _, e := range m.revlog {
		if e.CardID == cardID {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b cardsched.RevlogEntry) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *Memory) RevlogForSearch(ctx context.Context, search string) ([]cardsched.RevlogEntry, error) {
	ids, err := m.SearchCards(ctx, search)
	if err != nil {
		return nil, err
	}
	matched := make(map[int64]bool, len(ids))
	for _, id := range ids {
		matched[id] = true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []cardsched.RevlogEntry
	for _, e := range m.revlog {
		if matched[e.CardID] {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, func(a, b cardsched.RevlogEntry) int {
		return cmp.Or(cmp.Compare(a.CardID, b.CardID), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// SearchCards returns the IDs of matching cards in ascending order.
func (m *Memory) SearchCards(_ context.Context, search string) ([]int64, error) {
	q, err := ParseSearch(search)
	if err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	configOf := func(deckID int64) (int64, bool) {
		d, ok := m.decks[deckID]
		return d.ConfigID, ok
	}
	var ids []int64
	for _, id := range slices.Sorted(maps.Keys(m.cards)) {
		c := m.cards[id]
		if q.matches(&c, configOf) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *Memory) USN(context.Context) (int32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usn, nil
}

// Transact runs fn against a journaling view of the store. If fn fails, the
// cards and configs it updated and the revlog entries it added are restored.
func (m *Memory) Transact(_ context.Context, fn func(tx cardsched.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	tx := &memoryTx{
		Memory:  m,
		cards:   make(map[int64]cardsched.Card),
		configs: make(map[int64]cardsched.DeckConfig),
	}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// memoryTx records what it overwrites so it can be undone.
type memoryTx struct {
	*Memory
	cards   map[int64]cardsched.Card
	configs map[int64]cardsched.DeckConfig
	added   []int64
}

func (tx *memoryTx) UpdateDeckConfig(ctx context.Context, conf *cardsched.DeckConfig) error {
	if _, saved := tx.configs[conf.ID]; !saved {
		old, err := tx.Memory.GetDeckConfig(ctx, conf.ID)
		if err != nil {
			return err
		}
		tx.configs[conf.ID] = old
	}
	return tx.Memory.UpdateDeckConfig(ctx, conf)
}

func (tx *memoryTx) UpdateCard(ctx context.Context, card *cardsched.Card) error {
	if _, saved := tx.cards[card.ID]; !saved {
		old, err := tx.Memory.GetCard(ctx, card.ID)
		if err != nil {
			return err
		}
		tx.cards[card.ID] = old
	}
	return tx.Memory.UpdateCard(ctx, card)
}

func (tx *memoryTx) AddRevlog(ctx context.Context, entry *cardsched.RevlogEntry) error {
	if err := tx.Memory.AddRevlog(ctx, entry); err != nil {
		return err
	}
	tx.added = append(tx.added, entry.ID)
	return nil
}

// Transact nests: fn joins the surrounding transaction.
func (tx *memoryTx) Transact(_ context.Context, fn func(tx cardsched.Store) error) error {
	return fn(tx)
}

func (tx *memoryTx) rollback() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	for id, c := range tx.cards {
		tx.Memory.cards[id] = c
	}
	for id, c := range tx.configs {
		tx.Memory.configs[id] = c
	}
	for _, id := range tx.added {
		delete(tx.Memory.revlog, id)
	}
}
