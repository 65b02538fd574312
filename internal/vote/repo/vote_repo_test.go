package repo

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/HanjuJo/Latteh/internal/testutil"
	userrepo "github.com/HanjuJo/Latteh/internal/user/repo"
	"github.com/HanjuJo/Latteh/internal/vote"
)

func newTestRepo(t *testing.T) *VoteRepo {
	t.Helper()
	ctx := context.Background()
	db := testutil.NewDB(t)
	require.NoError(t, userrepo.NewUserRepo(db).EnsureTable(ctx))
	r := NewVoteRepo(db)
	require.NoError(t, r.EnsureTable(ctx))
	for _, id := range []string{"a", "b", "c"} {
		testutil.InsertUser(t, db, id, 0)
	}
	return r
}

func TestToggleSequence(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	q := vote.Target{Type: vote.TargetQuestion, ID: "q1"}

	tally, dir, err := r.Toggle(ctx, q, "a", vote.Up)
	require.NoError(t, err)
	require.Equal(t, vote.Tally{Upvotes: 1}, tally)
	require.Equal(t, vote.Up, dir)

	tally, dir, err = r.Toggle(ctx, q, "a", vote.Down)
	require.NoError(t, err)
	require.Equal(t, vote.Tally{Downvotes: 1}, tally, "switching moves the vote")
	require.Equal(t, vote.Down, dir)

	tally, dir, err = r.Toggle(ctx, q, "a", vote.Down)
	require.NoError(t, err)
	require.Equal(t, vote.Tally{}, tally, "repeating withdraws the vote")
	require.Equal(t, vote.None, dir)

	got, err := mine(ctx, r.db, q, "a")
	require.NoError(t, err)
	require.Equal(t, vote.None, got)
}

func TestPutOverwritesExistingRow(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	q := vote.Target{Type: vote.TargetQuestion, ID: "q1"}

	// the second write is what a voter who lost a first-vote race runs
	require.NoError(t, put(ctx, r.db, q, "a", vote.Up))
	require.NoError(t, put(ctx, r.db, q, "a", vote.Down))

	got, err := mine(ctx, r.db, q, "a")
	require.NoError(t, err)
	require.Equal(t, vote.Down, got)
	tally, err := r.Tally(ctx, q)
	require.NoError(t, err)
	require.Equal(t, vote.Tally{Downvotes: 1}, tally)
}

func TestConcurrentFirstVotes(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	q := vote.Target{Type: vote.TargetAnswer, ID: "a1"}

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := r.Toggle(ctx, q, "b", vote.Up)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	tally, err := r.Tally(ctx, q)
	require.NoError(t, err)
	require.LessOrEqual(t, tally.Upvotes, int64(1))
}

func TestTallies(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	q1 := vote.Target{Type: vote.TargetQuestion, ID: "q1"}
	q2 := vote.Target{Type: vote.TargetQuestion, ID: "q2"}

	for _, u := range []string{"a", "b"} {
		_, _, err := r.Toggle(ctx, q1, u, vote.Up)
		require.NoError(t, err)
	}
	_, _, err := r.Toggle(ctx, q1, "c", vote.Down)
	require.NoError(t, err)
	_, _, err = r.Toggle(ctx, q2, "c", vote.Down)
	require.NoError(t, err)
	// same id, different kind of content
	_, _, err = r.Toggle(ctx, vote.Target{Type: vote.TargetAnswer, ID: "q1"}, "a", vote.Up)
	require.NoError(t, err)

	tally, err := r.Tally(ctx, q1)
	require.NoError(t, err)
	require.Equal(t, vote.Tally{Upvotes: 2, Downvotes: 1}, tally)
	require.Equal(t, int64(1), tally.Score())

	all, err := r.Tallies(ctx, vote.TargetQuestion, []string{"q1", "q2", "q3"})
	require.NoError(t, err)
	require.Equal(t, vote.Tally{Upvotes: 2, Downvotes: 1}, all["q1"])
	require.Equal(t, vote.Tally{Downvotes: 1}, all["q2"])
	require.Equal(t, vote.Tally{}, all["q3"])

	empty, err := r.Tallies(ctx, vote.TargetQuestion, nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}
