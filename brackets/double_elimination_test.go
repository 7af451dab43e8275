package brackets

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjjston/sealedleague/models"
)

func TestDoubleEliminationFourTeams(t *testing.T) {
	store := &stubStore{}
	item := elimItem(models.StageItemDoubleElimination, 4)
	rounds := testRounds(6)

	err := NewDoubleEliminationBuilder().BuildBracket(context.Background(), BuildParams{StageItem: item, Rounds: rounds}, store)
	require.NoError(t, err)
	require.Len(t, store.matches, 7)

	// Winners bracket: two semifinals, one final.
	wb1 := store.byRound(1)
	require.Len(t, wb1, 2)
	assert.Equal(t, 101, *wb1[0].Side1.InputID)
	assert.Equal(t, 104, *wb1[0].Side2.InputID)
	assert.Equal(t, 102, *wb1[1].Side1.InputID)
	assert.Equal(t, 103, *wb1[1].Side2.InputID)

	wb2 := store.byRound(2)
	require.Len(t, wb2, 1)
	assert.Equal(t, wb1[0].ID, *wb2[0].Side1.WinnerFromMatchID)
	assert.Equal(t, wb1[1].ID, *wb2[0].Side2.WinnerFromMatchID)

	// Losers round one pairs the semifinal losers; losers round two is the
	// cross against the winners final's loser.
	lb1 := store.byRound(3)
	require.Len(t, lb1, 1)
	assert.Equal(t, wb1[0].ID, *lb1[0].Side1.LoserFromMatchID)
	assert.Equal(t, wb1[1].ID, *lb1[0].Side2.LoserFromMatchID)

	lb2 := store.byRound(4)
	require.Len(t, lb2, 1)
	assert.Equal(t, lb1[0].ID, *lb2[0].Side1.WinnerFromMatchID)
	assert.Equal(t, wb2[0].ID, *lb2[0].Side2.LoserFromMatchID)

	grandFinal := store.byRound(5)
	require.Len(t, grandFinal, 1)
	assert.Equal(t, wb2[0].ID, *grandFinal[0].Side1.WinnerFromMatchID)
	assert.Equal(t, lb2[0].ID, *grandFinal[0].Side2.WinnerFromMatchID)

	reset := store.byRound(6)
	require.Len(t, reset, 1)
	assert.Equal(t, grandFinal[0].ID, *reset[0].Side1.WinnerFromMatchID)
	assert.Equal(t, grandFinal[0].ID, *reset[0].Side2.LoserFromMatchID)
}

func TestDoubleEliminationEightTeams(t *testing.T) {
	store := &stubStore{}
	item := elimItem(models.StageItemDoubleElimination, 8)
	rounds := testRounds(9)

	err := NewDoubleEliminationBuilder().BuildBracket(context.Background(), BuildParams{StageItem: item, Rounds: rounds}, store)
	require.NoError(t, err)

	// Winners: 4, 2, 1. Losers: 2 (pairs of WB1 losers), 2 (cross vs WB2
	// losers), 1 (consolidation), 1 (cross vs WB3 loser). Plus grand final
	// and reset.
	wantCounts := []int{4, 2, 1, 2, 2, 1, 1, 1, 1}
	for i, want := range wantCounts {
		assert.Len(t, store.byRound(i+1), want, "round %d", i+1)
	}

	// Every entrant appears exactly once in winners round one.
	seen := make(map[int]bool)
	for _, m := range store.byRound(1) {
		seen[*m.Side1.InputID] = true
		seen[*m.Side2.InputID] = true
	}
	assert.Len(t, seen, 8)
}

func TestDoubleEliminationBounds(t *testing.T) {
	builder := NewDoubleEliminationBuilder()

	err := builder.BuildBracket(context.Background(), BuildParams{
		StageItem: elimItem(models.StageItemDoubleElimination, 2),
		Rounds:    testRounds(4),
	}, &stubStore{})
	assert.ErrorIs(t, err, ErrTooFewTeams)

	err = builder.BuildBracket(context.Background(), BuildParams{
		StageItem: elimItem(models.StageItemDoubleElimination, 65),
		Rounds:    testRounds(20),
	}, &stubStore{})
	assert.ErrorIs(t, err, ErrTooManyTeams)

	err = builder.BuildBracket(context.Background(), BuildParams{
		StageItem: elimItem(models.StageItemDoubleElimination, 8),
		Rounds:    testRounds(8),
	}, &stubStore{})
	assert.ErrorIs(t, err, ErrRoundCountMismatch)
}
