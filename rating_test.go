package cardsched

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatingButtons(t *testing.T) {
	for i, r := range Ratings {
		assert.Equal(t, i+1, int(r), r.String())
	}
}

func TestRatingString(t *testing.T) {
	tests := []struct {
		r    Rating
		want string
	}{
		{Again, "Again"},
		{Hard, "Hard"},
		{Good, "Good"},
		{Easy, "Easy"},
		{Rating(0), "Rating(0)"},
		{Rating(5), "Rating(5)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.r.String())
	}
}

func TestRatingFromButton(t *testing.T) {
	for button := 1; button <= 4; button++ {
		r, err := RatingFromButton(button)
		require.NoError(t, err)
		assert.Equal(t, button, int(r))
	}
	for _, button := range []int{-1, 0, 5, 100} {
		_, err := RatingFromButton(button)
		assert.ErrorIs(t, err, ErrInvalidRating, "button %d", button)
	}
}

func TestRatingJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Rating{"r": Hard})
	require.NoError(t, err)
	assert.JSONEq(t, `{"r":"Hard"}`, string(data))

	var got Rating
	require.NoError(t, json.Unmarshal([]byte(`"Easy"`), &got))
	assert.Equal(t, Easy, got)

	assert.ErrorIs(t, json.Unmarshal([]byte(`"Okay"`), &got), ErrInvalidRating)
	assert.ErrorIs(t, json.Unmarshal([]byte(`3`), &got), ErrInvalidRating)

	_, err = json.Marshal(Rating(9))
	assert.ErrorIs(t, err, ErrInvalidRating)
}

func TestRatingText(t *testing.T) {
	for _, r := range Ratings {
		text, err := r.MarshalText()
		require.NoError(t, err)
		var back Rating
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, r, back)
	}
}
