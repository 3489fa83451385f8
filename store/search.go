package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sky-flux/cardsched"
)

type searchKind int

const (
	searchAll searchKind = iota
	searchCardIDs
	searchDeck
	searchPreset
)

// Search is a parsed card search.
type Search struct {
	kind searchKind
	ids  []int64
}

// ParseSearch parses "" (every card), "cid:1,2,3", "deck:N" or "preset:N".
// Deck and preset searches match a card's home deck.
func ParseSearch(s string) (Search, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Search{kind: searchAll}, nil
	}
	prefix, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Search{}, fmt.Errorf("%w: search %q", cardsched.ErrInvalidInput, s)
	}
	var kind searchKind
	switch prefix {
	case "cid":
		kind = searchCardIDs
	case "deck":
		kind = searchDeck
	case "preset":
		kind = searchPreset
	default:
		return Search{}, fmt.Errorf("%w: unknown search %q", cardsched.ErrInvalidInput, prefix)
	}

	var ids []int64
	for _, f := range strings.Split(rest, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return Search{}, fmt.Errorf("%w: search %q: %v", cardsched.ErrInvalidInput, s, err)
		}
		ids = append(ids, id)
	}
	if kind != searchCardIDs && len(ids) != 1 {
		return Search{}, fmt.Errorf("%w: search %q takes one id", cardsched.ErrInvalidInput, s)
	}
	return Search{kind: kind, ids: ids}, nil
}

// matches reports whether card satisfies q. configOf resolves a deck's
// config ID.
func (q Search) matches(card *cardsched.Card, configOf func(deckID int64) (int64, bool)) bool {
	switch q.kind {
	case searchCardIDs:
		for _, id := range q.ids {
			if id == card.ID {
				return true
			}
		}
		return false
	case searchDeck:
		return card.OriginalOrCurrentDeckID() == q.ids[0]
	case searchPreset:
		conf, ok := configOf(card.OriginalOrCurrentDeckID())
		return ok && conf == q.ids[0]
	}
	return true
}
