package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tjjston/sealedleague/live"
	"github.com/tjjston/sealedleague/models"
	"github.com/tjjston/sealedleague/repositories"
)

func newPropagationFixture(t *testing.T, itemType models.StageItemType, teamCount int) (*fixture, *models.StageItem, PropagationService) {
	t.Helper()
	f := newFixture()
	tournament := f.addTournament(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC), 30, 15)
	stage := f.addStage(tournament.ID, "knockout")
	item := f.addStageItem(stage, itemType, teamCount)

	_, _, _, stageItemRepo, roundRepo, matchRepo := newTestRepos(f)
	service := NewPropagationService(stageItemRepo, roundRepo, matchRepo, NewTournamentLocker(), nil)
	return f, item, service
}

func inputID(item *models.StageItem, slot int) int {
	for _, in := range item.Inputs {
		if in.Slot == slot {
			return in.ID
		}
	}
	return 0
}

// buildFourTeamSingleElim lays out two played-ready semifinals and a final
// fed by their winners.
func buildFourTeamSingleElim(f *fixture, item *models.StageItem) (semi1, semi2, final *models.Match) {
	r1 := f.addRound(item, "Round 1")
	r2 := f.addRound(item, "Round 2")
	semi1 = f.addMatch(r1, &models.Match{
		Side1: models.SideFromInput(inputID(item, 1)),
		Side2: models.SideFromInput(inputID(item, 4)),
	})
	semi2 = f.addMatch(r1, &models.Match{
		Side1: models.SideFromInput(inputID(item, 2)),
		Side2: models.SideFromInput(inputID(item, 3)),
	})
	final = f.addMatch(r2, &models.Match{
		Side1: models.SideFromWinner(semi1.ID),
		Side2: models.SideFromWinner(semi2.ID),
	})
	return semi1, semi2, final
}

func TestPropagateResultsOneHop(t *testing.T) {
	f, item, service := newPropagationFixture(t, models.StageItemSingleElimination, 4)
	semi1, _, final := buildFourTeamSingleElim(f, item)

	semi1.Score1, semi1.Score2 = 2, 1

	updated, err := service.PropagateResults(context.Background(), semi1.RoundID, []int{semi1.ID})
	require.NoError(t, err)
	require.Len(t, updated, 1)
	assert.Equal(t, final.ID, updated[0].ID)

	require.NotNil(t, final.Side1.InputID)
	assert.Equal(t, inputID(item, 1), *final.Side1.InputID)
	assert.Nil(t, final.Side2.InputID, "semifinal two has not been played")
}

func TestPropagateResultsScopedToChangedSet(t *testing.T) {
	f, item, service := newPropagationFixture(t, models.StageItemSingleElimination, 4)
	semi1, semi2, final := buildFourTeamSingleElim(f, item)

	semi1.Score1, semi1.Score2 = 2, 0
	semi2.Score1, semi2.Score2 = 0, 2

	// Only semi1 is declared changed, so semi2's decided result must not
	// leak into the final during this pass.
	_, err := service.PropagateResults(context.Background(), semi1.RoundID, []int{semi1.ID})
	require.NoError(t, err)
	assert.NotNil(t, final.Side1.InputID)
	assert.Nil(t, final.Side2.InputID)
}

func TestPropagateResultsRejectsMatchFromOtherRound(t *testing.T) {
	f, item, service := newPropagationFixture(t, models.StageItemSingleElimination, 4)
	semi1, _, final := buildFourTeamSingleElim(f, item)

	_, err := service.PropagateResults(context.Background(), semi1.RoundID, []int{final.ID})
	assert.ErrorIs(t, err, ErrRoundNotInStageItem)
}

func TestPropagateStageItemReachesFixpoint(t *testing.T) {
	f, item, service := newPropagationFixture(t, models.StageItemSingleElimination, 8)
	r1 := f.addRound(item, "Round 1")
	r2 := f.addRound(item, "Round 2")
	r3 := f.addRound(item, "Round 3")

	var quarters []*models.Match
	for i := 0; i < 4; i++ {
		quarters = append(quarters, f.addMatch(r1, &models.Match{
			Side1:  models.SideFromInput(inputID(item, 2*i+1)),
			Side2:  models.SideFromInput(inputID(item, 2*i+2)),
			Score1: 1,
		}))
	}
	semi1 := f.addMatch(r2, &models.Match{
		Side1:  models.SideFromWinner(quarters[0].ID),
		Side2:  models.SideFromWinner(quarters[1].ID),
		Score1: 2, Score2: 1,
	})
	semi2 := f.addMatch(r2, &models.Match{
		Side1:  models.SideFromWinner(quarters[2].ID),
		Side2:  models.SideFromWinner(quarters[3].ID),
		Score1: 1, Score2: 2,
	})
	final := f.addMatch(r3, &models.Match{
		Side1: models.SideFromWinner(semi1.ID),
		Side2: models.SideFromWinner(semi2.ID),
	})

	// Both early rounds hold decided results but no resolved inputs past
	// round one. A single fixpoint pass must settle everything: round two
	// inputs from round one, then the final from the freshly resolved round
	// two.
	err := service.PropagateStageItem(context.Background(), item.ID)
	require.NoError(t, err)

	require.NotNil(t, semi1.Side1.InputID)
	assert.Equal(t, inputID(item, 1), *semi1.Side1.InputID)
	require.NotNil(t, final.Side1.InputID)
	assert.Equal(t, inputID(item, 1), *final.Side1.InputID)
	require.NotNil(t, final.Side2.InputID)
	assert.Equal(t, inputID(item, 7), *final.Side2.InputID)
}

// buildThreeTeamDoubleElim mirrors the double elimination builder's topology
// for three entrants: seed one gets a first-round bye, and the losers
// bracket's opening match waits on a loser that will never arrive.
func buildThreeTeamDoubleElim(f *fixture, item *models.StageItem) (bye, wb1, wbFinal, lb1, lb2, grandFinal, reset *models.Match) {
	wr1 := f.addRound(item, "Winners Round 1")
	wr2 := f.addRound(item, "Winners Round 2")
	lr1 := f.addRound(item, "Losers Round 1")
	lr2 := f.addRound(item, "Losers Round 2")
	gf := f.addRound(item, "Grand Final")
	rs := f.addRound(item, "Grand Final Reset")

	bye = f.addMatch(wr1, &models.Match{
		Side1:  models.SideFromInput(inputID(item, 1)),
		Score1: 1,
	})
	wb1 = f.addMatch(wr1, &models.Match{
		Side1: models.SideFromInput(inputID(item, 2)),
		Side2: models.SideFromInput(inputID(item, 3)),
	})
	wbFinal = f.addMatch(wr2, &models.Match{
		Side1: models.SideFromWinner(bye.ID),
		Side2: models.SideFromWinner(wb1.ID),
	})
	lb1 = f.addMatch(lr1, &models.Match{
		Side1: models.SideFromLoser(bye.ID),
		Side2: models.SideFromLoser(wb1.ID),
	})
	lb2 = f.addMatch(lr2, &models.Match{
		Side1: models.SideFromWinner(lb1.ID),
		Side2: models.SideFromLoser(wbFinal.ID),
	})
	grandFinal = f.addMatch(gf, &models.Match{
		Side1: models.SideFromWinner(wbFinal.ID),
		Side2: models.SideFromWinner(lb2.ID),
	})
	reset = f.addMatch(rs, &models.Match{
		Side1: models.SideFromWinner(grandFinal.ID),
		Side2: models.SideFromLoser(grandFinal.ID),
	})
	return
}

func TestAutoAdvanceByesThroughLosersBracket(t *testing.T) {
	f, item, service := newPropagationFixture(t, models.StageItemDoubleElimination, 3)
	_, wb1, wbFinal, lb1, lb2, _, _ := buildThreeTeamDoubleElim(f, item)

	wb1.Score1, wb1.Score2 = 2, 0
	require.NoError(t, service.PropagateStageItem(context.Background(), item.ID))

	require.NotNil(t, wbFinal.Side1.InputID)
	assert.Equal(t, inputID(item, 1), *wbFinal.Side1.InputID)
	require.NotNil(t, lb1.Side2.InputID)
	assert.Equal(t, inputID(item, 3), *lb1.Side2.InputID)
	assert.Nil(t, lb1.Side1.InputID, "the bye has no loser to send down")

	err := service.AutoAdvanceByes(context.Background(), item.ID)
	require.NoError(t, err)

	// Side one can never be filled, so the populated side two advances.
	assert.Equal(t, 0, lb1.Score1)
	assert.Equal(t, 1, lb1.Score2)
	require.NotNil(t, lb2.Side1.InputID)
	assert.Equal(t, inputID(item, 3), *lb2.Side1.InputID)

	// The losers final still waits on the winners final, played for real.
	assert.False(t, lb2.IsPlayed())
}

func TestAutoAdvanceByesResolvesDeadPairings(t *testing.T) {
	f, item, service := newPropagationFixture(t, models.StageItemDoubleElimination, 4)
	r1 := f.addRound(item, "Winners Round 1")
	r2 := f.addRound(item, "Losers Round 1")
	r3 := f.addRound(item, "Losers Round 2")

	bye1 := f.addMatch(r1, &models.Match{Side1: models.SideFromInput(inputID(item, 1)), Score1: 1})
	bye2 := f.addMatch(r1, &models.Match{Side1: models.SideFromInput(inputID(item, 2)), Score1: 1})
	dead := f.addMatch(r2, &models.Match{
		Side1: models.SideFromLoser(bye1.ID),
		Side2: models.SideFromLoser(bye2.ID),
	})
	next := f.addMatch(r3, &models.Match{
		Side1: models.SideFromWinner(dead.ID),
		Side2: models.SideFromInput(inputID(item, 3)),
	})

	err := service.AutoAdvanceByes(context.Background(), item.ID)
	require.NoError(t, err)

	// Neither side of the dead pairing can ever be populated; it resolves
	// 1-0 so the match waiting on its winner can resolve too.
	assert.True(t, dead.IsPlayed())
	assert.Equal(t, 1, dead.Score1)
	assert.Nil(t, dead.Side1.InputID)

	// Its winner is nobody, so the downstream match becomes a bye and the
	// directly seeded side advances.
	assert.True(t, next.IsPlayed())
	assert.Equal(t, 0, next.Score1)
	assert.Equal(t, 1, next.Score2)
}

func TestFinalizeGrandFinalResetShortCircuits(t *testing.T) {
	f, item, service := newPropagationFixture(t, models.StageItemDoubleElimination, 3)
	_, wb1, wbFinal, _, lb2, grandFinal, reset := buildThreeTeamDoubleElim(f, item)

	// Play the bracket through: seed 2 beats seed 3, seed 1 beats seed 2,
	// seed 3 falls out of the losers bracket, and the winners-bracket
	// finalist takes the grand final.
	wb1.Score1, wb1.Score2 = 2, 0
	require.NoError(t, service.PropagateStageItem(context.Background(), item.ID))
	require.NoError(t, service.AutoAdvanceByes(context.Background(), item.ID))

	wbFinal.Score1, wbFinal.Score2 = 2, 1
	require.NoError(t, service.PropagateStageItem(context.Background(), item.ID))
	require.NotNil(t, lb2.Side2.InputID)
	assert.Equal(t, inputID(item, 2), *lb2.Side2.InputID)

	lb2.Score1, lb2.Score2 = 0, 2
	require.NoError(t, service.PropagateStageItem(context.Background(), item.ID))
	require.NotNil(t, grandFinal.Side2.InputID)
	assert.Equal(t, inputID(item, 2), *grandFinal.Side2.InputID)

	grandFinal.Score1, grandFinal.Score2 = 3, 1
	err := service.FinalizeGrandFinalReset(context.Background(), item.ID)
	require.NoError(t, err)

	// The winners-bracket side already won twice overall; the reset is
	// decided without being played.
	assert.Equal(t, 1, reset.Score1)
	assert.Equal(t, 0, reset.Score2)
	require.NotNil(t, reset.Side1.InputID)
	assert.Equal(t, inputID(item, 1), *reset.Side1.InputID)
	require.NotNil(t, reset.Side2.InputID)
	assert.Equal(t, inputID(item, 2), *reset.Side2.InputID)
}

func TestFinalizeGrandFinalResetLeavesRequiredReset(t *testing.T) {
	f, item, service := newPropagationFixture(t, models.StageItemDoubleElimination, 3)
	_, wb1, wbFinal, _, lb2, grandFinal, reset := buildThreeTeamDoubleElim(f, item)

	wb1.Score1, wb1.Score2 = 2, 0
	require.NoError(t, service.PropagateStageItem(context.Background(), item.ID))
	require.NoError(t, service.AutoAdvanceByes(context.Background(), item.ID))
	wbFinal.Score1, wbFinal.Score2 = 2, 1
	require.NoError(t, service.PropagateStageItem(context.Background(), item.ID))
	lb2.Score1, lb2.Score2 = 0, 2
	require.NoError(t, service.PropagateStageItem(context.Background(), item.ID))

	// The losers-bracket finalist takes the grand final; a real reset match
	// is now required and must stay open.
	grandFinal.Score1, grandFinal.Score2 = 1, 3
	err := service.FinalizeGrandFinalReset(context.Background(), item.ID)
	require.NoError(t, err)

	assert.False(t, reset.IsPlayed())
	require.NotNil(t, reset.Side1.InputID)
	assert.Equal(t, inputID(item, 2), *reset.Side1.InputID)
	require.NotNil(t, reset.Side2.InputID)
	assert.Equal(t, inputID(item, 1), *reset.Side2.InputID)
}

func TestFinalizeGrandFinalResetRejectsOtherFormats(t *testing.T) {
	f, item, service := newPropagationFixture(t, models.StageItemSingleElimination, 4)
	buildFourTeamSingleElim(f, item)

	err := service.FinalizeGrandFinalReset(context.Background(), item.ID)
	assert.ErrorIs(t, err, ErrNotDoubleElimination)
}

// snapshotStageItemRepo hands out a fresh deep copy of the graph on every
// read, the way a row store does. A caller only observes writes that
// happened before its own read.
type snapshotStageItemRepo struct{ f *fixture }

func (r *snapshotStageItemRepo) GetTournamentID(_ context.Context, id int) (int, error) {
	item, ok := r.f.items[id]
	if !ok {
		return 0, repositories.ErrStageItemNotFound
	}
	return item.TournamentID, nil
}

func (r *snapshotStageItemRepo) GetWithGraph(_ context.Context, id int) (*models.StageItem, error) {
	item, ok := r.f.items[id]
	if !ok {
		return nil, repositories.ErrStageItemNotFound
	}
	snapshot := *item
	snapshot.Rounds = make([]*models.Round, 0, len(item.Rounds))
	for _, round := range item.Rounds {
		roundCopy := *round
		roundCopy.Matches = make([]*models.Match, 0, len(round.Matches))
		for _, match := range round.Matches {
			matchCopy := *match
			roundCopy.Matches = append(roundCopy.Matches, &matchCopy)
		}
		snapshot.Rounds = append(snapshot.Rounds, &roundCopy)
	}
	return &snapshot, nil
}

func TestPropagateResultsReadsStateAfterSerializing(t *testing.T) {
	f := newFixture()
	tournament := f.addTournament(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC), 30, 15)
	stage := f.addStage(tournament.ID, "knockout")
	item := f.addStageItem(stage, models.StageItemSingleElimination, 4)
	semi1, _, final := buildFourTeamSingleElim(f, item)

	_, _, _, _, roundRepo, matchRepo := newTestRepos(f)
	locker := NewTournamentLocker()
	service := NewPropagationService(&snapshotStageItemRepo{f}, roundRepo, matchRepo, locker, nil)

	// Start a pass while another writer holds the tournament lock and lands
	// a result. The pass serializes behind that write, so its graph read
	// must pick the result up.
	unlock := locker.Lock(tournament.ID)
	done := make(chan error, 1)
	go func() {
		_, err := service.PropagateResults(context.Background(), semi1.RoundID, nil)
		done <- err
	}()
	semi1.Score1, semi1.Score2 = 2, 1
	unlock()

	require.NoError(t, <-done)
	require.NotNil(t, final.Side1.InputID)
	assert.Equal(t, inputID(item, 1), *final.Side1.InputID)
}

func TestPropagateResultsBroadcastsMatchUpdated(t *testing.T) {
	f := newFixture()
	tournament := f.addTournament(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC), 30, 15)
	stage := f.addStage(tournament.ID, "knockout")
	item := f.addStageItem(stage, models.StageItemSingleElimination, 4)
	semi1, _, _ := buildFourTeamSingleElim(f, item)

	hub := live.NewHub()
	go hub.Run()
	client := live.NewClient(hub, nil, fmt.Sprintf("tournament_%d", tournament.ID))
	hub.Register <- client
	// Registering a second client proves the first registration has been
	// fully processed before we broadcast.
	hub.Register <- live.NewClient(hub, nil, "tournament_0")

	_, _, _, stageItemRepo, roundRepo, matchRepo := newTestRepos(f)
	service := NewPropagationService(stageItemRepo, roundRepo, matchRepo, NewTournamentLocker(), hub)

	semi1.Score1, semi1.Score2 = 2, 1
	updated, err := service.PropagateResults(context.Background(), semi1.RoundID, nil)
	require.NoError(t, err)
	require.NotEmpty(t, updated)

	select {
	case payload := <-client.Send:
		var msg live.Message
		require.NoError(t, json.Unmarshal(payload, &msg))
		assert.Equal(t, live.EventMatchUpdated, msg.Type)
		assert.Equal(t, fmt.Sprintf("tournament_%d", tournament.ID), msg.RoomID)
	default:
		t.Fatal("expected a match update broadcast in the tournament room")
	}
}
