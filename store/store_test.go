package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/sky-flux/cardsched"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seeder interface {
	cardsched.Store
	seed(t *testing.T, cards []cardsched.Card, decks []cardsched.Deck, confs []cardsched.DeckConfig, revlog []cardsched.RevlogEntry)
}

type memorySeeder struct{ *Memory }

func (m memorySeeder) seed(_ *testing.T, cards []cardsched.Card, decks []cardsched.Deck, confs []cardsched.DeckConfig, revlog []cardsched.RevlogEntry) {
	m.PutCard(cards...)
	m.PutDeck(decks...)
	m.PutDeckConfig(confs...)
	m.PutRevlog(revlog...)
}

type sqlSeeder struct{ *SQL }

func (s sqlSeeder) seed(t *testing.T, cards []cardsched.Card, decks []cardsched.Deck, confs []cardsched.DeckConfig, revlog []cardsched.RevlogEntry) {
	ctx := context.Background()
	require.NoError(t, s.PutCard(ctx, cards...))
	require.NoError(t, s.PutDeck(ctx, decks...))
	require.NoError(t, s.PutDeckConfig(ctx, confs...))
	for i := range revlog {
		require.NoError(t, s.AddRevlog(ctx, &revlog[i]))
	}
}

func stores() map[string]func(t *testing.T) seeder {
	return map[string]func(t *testing.T) seeder{
		"memory": func(*testing.T) seeder { return memorySeeder{NewMemory()} },
		"sql": func(t *testing.T) seeder {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "collection.db"), nil)
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			return sqlSeeder{s}
		},
	}
}

func fixture(t *testing.T, st seeder) {
	retention := 0.85
	stability := cardsched.MemoryState{Stability: 12.5, Difficulty: 6}
	cards := []cardsched.Card{
		cardsched.NewCard(1, 10, 0),
		cardsched.NewCard(2, 10, 1),
		cardsched.NewCard(3, 20, 2),
		cardsched.NewCard(4, 99, 3), // in filtered deck 99, home deck 20
	}
	cards[1].Type, cards[1].Queue, cards[1].Interval = cardsched.CardTypeReview, cardsched.QueueReview, 12
	cards[1].MemoryState, cards[1].DesiredRetention = &stability, &retention
	cards[3].OriginalDeckID = 20

	decks := []cardsched.Deck{
		{ID: 10, Name: "Spanish", ConfigID: 1},
		{ID: 20, Name: "Kanji", ConfigID: 2, DesiredRetention: &retention},
		{ID: 99, Name: "Cram", Filtered: &cardsched.FilteredDeck{PreviewAgainSecs: 60}},
	}
	conf := cardsched.DefaultDeckConfig()
	other := cardsched.DefaultDeckConfig()
	other.ID, other.Name, other.DesiredRetention = 2, "Hard", 0.95

	revlog := []cardsched.RevlogEntry{
		{ID: 300, CardID: 2, ButtonChosen: 3, Interval: 12, Kind: cardsched.RevlogReview},
		{ID: 100, CardID: 2, ButtonChosen: 3, Interval: -600, Kind: cardsched.RevlogLearning},
		{ID: 200, CardID: 1, ButtonChosen: 1, Interval: -60, Kind: cardsched.RevlogLearning},
		{ID: 400, CardID: 4, ButtonChosen: 3, Interval: 3, Kind: cardsched.RevlogReview},
	}
	st.seed(t, cards, decks, []cardsched.DeckConfig{conf, other}, revlog)
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, open := range stores() {
		t.Run(name, func(t *testing.T) {
			st := open(t)
			fixture(t, st)

			t.Run("card round trip", func(t *testing.T) {
				card, err := st.GetCard(ctx, 2)
				require.NoError(t, err)
				require.NotNil(t, card.MemoryState)
				assert.Equal(t, 12.5, card.MemoryState.Stability)
				assert.Equal(t, cardsched.CardTypeReview, card.Type)

				card.Due, card.MemoryState = 42, nil
				require.NoError(t, st.UpdateCard(ctx, &card))
				got, err := st.GetCard(ctx, 2)
				require.NoError(t, err)
				assert.EqualValues(t, 42, got.Due)
				assert.Nil(t, got.MemoryState)
			})

			t.Run("not found", func(t *testing.T) {
				_, err := st.GetCard(ctx, 404)
				assert.ErrorIs(t, err, cardsched.ErrNotFound)
				_, err = st.GetDeck(ctx, 404)
				assert.ErrorIs(t, err, cardsched.ErrNotFound)
				_, err = st.GetDeckConfig(ctx, 404)
				assert.ErrorIs(t, err, cardsched.ErrNotFound)
				missing := cardsched.NewCard(404, 10, 0)
				assert.ErrorIs(t, st.UpdateCard(ctx, &missing), cardsched.ErrNotFound)
			})

			t.Run("decks and configs", func(t *testing.T) {
				deck, err := st.GetDeck(ctx, 99)
				require.NoError(t, err)
				require.True(t, deck.IsFiltered())
				assert.Equal(t, 60, deck.Filtered.PreviewAgainSecs)

				conf, err := st.GetDeckConfig(ctx, 2)
				require.NoError(t, err)
				assert.Equal(t, 0.95, conf.DesiredRetention)
				assert.Equal(t, cardsched.DefaultDeckConfig().LearnSteps, conf.LearnSteps)

				conf.FSRSParams = cardsched.DefaultParameters.Slice()
				require.NoError(t, st.UpdateDeckConfig(ctx, &conf))
				got, err := st.GetDeckConfig(ctx, 2)
				require.NoError(t, err)
				assert.Equal(t, conf.FSRSParams, got.FSRSParams)

				missing := cardsched.DefaultDeckConfig()
				missing.ID = 404
				assert.ErrorIs(t, st.UpdateDeckConfig(ctx, &missing), cardsched.ErrNotFound)
			})

			t.Run("search", func(t *testing.T) {
				tests := []struct {
					search string
					want   []int64
				}{
					{"", []int64{1, 2, 3, 4}},
					{"cid:3,1", []int64{1, 3}},
					{"deck:20", []int64{3, 4}},
					{"preset:1", []int64{1, 2}},
				}
				for _, tt := range tests {
					got, err := st.SearchCards(ctx, tt.search)
					require.NoError(t, err)
					assert.Equal(t, tt.want, got, tt.search)
				}
				_, err := st.SearchCards(ctx, "tag:x")
				assert.ErrorIs(t, err, cardsched.ErrInvalidInput)
			})

			t.Run("revlog ordering", func(t *testing.T) {
				entries, err := st.RevlogForCard(ctx, 2)
				require.NoError(t, err)
				require.Len(t, entries, 2)
				assert.EqualValues(t, 100, entries[0].ID)

				entries, err = st.RevlogForSearch(ctx, "")
				require.NoError(t, err)
				var ids []int64
				for _, e := range entries {
					ids = append(ids, e.ID)
				}
				assert.Equal(t, []int64{200, 100, 300, 400}, ids)
			})

			t.Run("revlog id collision", func(t *testing.T) {
				entry := cardsched.RevlogEntry{ID: 300, CardID: 1, ButtonChosen: 3, Kind: cardsched.RevlogReview}
				require.NoError(t, st.AddRevlog(ctx, &entry))
				assert.EqualValues(t, 301, entry.ID)
			})

			t.Run("transaction rollback", func(t *testing.T) {
				boom := errors.New("boom")
				err := st.Transact(ctx, func(tx cardsched.Store) error {
					card, err := tx.GetCard(ctx, 1)
					require.NoError(t, err)
					card.Reps = 99
					require.NoError(t, tx.UpdateCard(ctx, &card))
					require.NoError(t, tx.AddRevlog(ctx, &cardsched.RevlogEntry{ID: 900, CardID: 1}))
					return boom
				})
				require.ErrorIs(t, err, boom)

				card, err := st.GetCard(ctx, 1)
				require.NoError(t, err)
				assert.Zero(t, card.Reps)
				entries, err := st.RevlogForCard(ctx, 1)
				require.NoError(t, err)
				for _, e := range entries {
					assert.NotEqualValues(t, 900, e.ID)
				}
			})

			t.Run("transaction commit", func(t *testing.T) {
				err := st.Transact(ctx, func(tx cardsched.Store) error {
					card, err := tx.GetCard(ctx, 3)
					if err != nil {
						return err
					}
					card.Reps = 5
					return tx.UpdateCard(ctx, &card)
				})
				require.NoError(t, err)
				card, err := st.GetCard(ctx, 3)
				require.NoError(t, err)
				assert.Equal(t, 5, card.Reps)
			})
		})
	}
}

func TestParseSearch(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"", false},
		{"  ", false},
		{"cid:1", false},
		{"cid:1, 2 ,3", false},
		{"deck:5", false},
		{"preset:7", false},
		{"deck:1,2", true},
		{"cid:x", true},
		{"nonsense", true},
		{"note:1", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			_, err := ParseSearch(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, cardsched.ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
