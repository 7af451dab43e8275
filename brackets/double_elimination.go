package brackets

import (
	"context"
	"fmt"

	"github.com/tjjston/sealedleague/models"
)

// DoubleEliminationBuilder builds a winners bracket, a losers bracket fed by
// the winners bracket's losers, a grand final, and a grand final reset.
//
// The losers bracket alternates two round shapes. Its first round pairs the
// losers of winners round one. After that, every winners round contributes a
// "cross" round (losers-bracket survivors vs. that winners round's losers)
// and, except at the very end, a "consolidation" round that pairs the cross
// round's winners back down to the width of the next winners round. That
// alternation is why the losers bracket spans 2*(winners rounds - 1) rounds.
type DoubleEliminationBuilder struct{}

func NewDoubleEliminationBuilder() BracketBuilder {
	return &DoubleEliminationBuilder{}
}

func (b *DoubleEliminationBuilder) Name() string {
	return "double_elimination"
}

func (b *DoubleEliminationBuilder) BuildBracket(ctx context.Context, params BuildParams, store MatchCreator) error {
	item := params.StageItem
	if item.TeamCount < doubleElimMinTeams {
		return fmt.Errorf("%w: double elimination needs at least %d, got %d", ErrTooFewTeams, doubleElimMinTeams, item.TeamCount)
	}
	if item.TeamCount > eliminationMaxTeams {
		return fmt.Errorf("%w: got %d", ErrTooManyTeams, item.TeamCount)
	}

	winnersCount, losersCount := DoubleElimRoundCounts(item.TeamCount)
	if len(params.Rounds) != winnersCount+losersCount+2 {
		return fmt.Errorf("%w: want %d rounds, got %d",
			ErrRoundCountMismatch, winnersCount+losersCount+2, len(params.Rounds))
	}

	winnersRounds, err := b.buildWinnersBracket(ctx, store, item, params.Rounds[:winnersCount])
	if err != nil {
		return err
	}

	losersRounds := params.Rounds[winnersCount : winnersCount+losersCount]
	lastLosers, err := b.buildLosersBracket(ctx, store, winnersRounds, losersRounds)
	if err != nil {
		return err
	}

	winnersFinal := winnersRounds[len(winnersRounds)-1]
	if len(winnersFinal) != 1 || len(lastLosers) != 1 {
		return fmt.Errorf("%w: winners final has %d matches, losers final has %d",
			ErrBracketShapeMismatch, len(winnersFinal), len(lastLosers))
	}

	grandFinal := &models.Match{
		RoundID: params.Rounds[winnersCount+losersCount].ID,
		Side1:   models.SideFromWinner(winnersFinal[0].ID),
		Side2:   models.SideFromWinner(lastLosers[0].ID),
	}
	if err := store.CreateMatch(ctx, grandFinal); err != nil {
		return fmt.Errorf("failed to create grand final: %w", err)
	}

	// Only played when the losers-bracket finalist takes the grand final;
	// otherwise the reset is short-circuited by the scoring flow.
	reset := &models.Match{
		RoundID: params.Rounds[winnersCount+losersCount+1].ID,
		Side1:   models.SideFromWinner(grandFinal.ID),
		Side2:   models.SideFromLoser(grandFinal.ID),
	}
	if err := store.CreateMatch(ctx, reset); err != nil {
		return fmt.Errorf("failed to create grand final reset: %w", err)
	}
	return nil
}

func (b *DoubleEliminationBuilder) buildWinnersBracket(ctx context.Context, store MatchCreator, item *models.StageItem, rounds []*models.Round) ([][]*models.Match, error) {
	winnersRounds := make([][]*models.Match, 0, len(rounds))
	prev, err := buildFirstRound(ctx, store, item.Inputs, BracketSize(item.TeamCount), rounds[0].ID)
	if err != nil {
		return nil, err
	}
	winnersRounds = append(winnersRounds, prev)
	for _, round := range rounds[1:] {
		prev, err = buildWinnersRound(ctx, store, prev, round.ID)
		if err != nil {
			return nil, err
		}
		winnersRounds = append(winnersRounds, prev)
	}
	return winnersRounds, nil
}

// buildLosersBracket consumes every losers round exactly once and returns the
// final losers round's matches (always a single match for a valid bracket).
func (b *DoubleEliminationBuilder) buildLosersBracket(ctx context.Context, store MatchCreator, winnersRounds [][]*models.Match, rounds []*models.Round) ([]*models.Match, error) {
	cursor := 0

	current, err := buildLosersRound(ctx, store, winnersRounds[0], rounds[cursor].ID)
	if err != nil {
		return nil, err
	}
	cursor++

	for i := 1; i < len(winnersRounds); i++ {
		dropped := winnersRounds[i]
		if len(current) != len(dropped) {
			return nil, fmt.Errorf("%w: %d losers-bracket survivors vs %d losers from winners round %d",
				ErrBracketShapeMismatch, len(current), len(dropped), i+1)
		}

		cross := make([]*models.Match, 0, len(current))
		for j := range current {
			match := &models.Match{
				RoundID: rounds[cursor].ID,
				Side1:   models.SideFromWinner(current[j].ID),
				Side2:   models.SideFromLoser(dropped[j].ID),
			}
			if err := store.CreateMatch(ctx, match); err != nil {
				return nil, fmt.Errorf("failed to create losers cross match: %w", err)
			}
			cross = append(cross, match)
		}
		cursor++
		current = cross

		if i < len(winnersRounds)-1 {
			current, err = buildWinnersRound(ctx, store, current, rounds[cursor].ID)
			if err != nil {
				return nil, err
			}
			cursor++
		}
	}

	if cursor != len(rounds) {
		return nil, fmt.Errorf("%w: consumed %d of %d losers rounds", ErrBracketIncomplete, cursor, len(rounds))
	}
	return current, nil
}
