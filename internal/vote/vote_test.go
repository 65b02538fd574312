package vote

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HanjuJo/Latteh/internal/apperr"
)

func TestNext(t *testing.T) {
	cases := []struct {
		current, requested, want Direction
	}{
		{None, Up, Up},
		{None, Down, Down},
		{Up, Up, None},
		{Down, Down, None},
		{Up, Down, Down},
		{Down, Up, Up},
	}
	for _, c := range cases {
		require.Equal(t, c.want, Next(c.current, c.requested), "%s then %s", c.current, c.requested)
	}
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection(" UP ")
	require.NoError(t, err)
	require.Equal(t, Up, d)

	d, err = ParseDirection("down")
	require.NoError(t, err)
	require.Equal(t, Down, d)

	_, err = ParseDirection("sideways")
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = ParseDirection("none")
	require.ErrorIs(t, err, apperr.ErrValidation)
}

func TestResultScore(t *testing.T) {
	r := NewResult(Tally{Upvotes: 3, Downvotes: 5}, Down)
	require.Equal(t, int64(-2), r.Score)
	require.Equal(t, Down, r.MyVote)
}
