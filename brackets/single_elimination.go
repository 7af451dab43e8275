package brackets

import (
	"context"
	"fmt"
	"sort"

	"github.com/tjjston/sealedleague/models"
)

const (
	singleElimMinTeams  = 2
	doubleElimMinTeams  = 3
	eliminationMaxTeams = 64
)

// SingleEliminationBuilder builds a knockout bracket: a seeded first round
// followed by rounds of winner-of pairings down to the final.
type SingleEliminationBuilder struct{}

func NewSingleEliminationBuilder() BracketBuilder {
	return &SingleEliminationBuilder{}
}

func (b *SingleEliminationBuilder) Name() string {
	return "single_elimination"
}

func (b *SingleEliminationBuilder) BuildBracket(ctx context.Context, params BuildParams, store MatchCreator) error {
	item := params.StageItem
	if item.TeamCount < singleElimMinTeams {
		return fmt.Errorf("%w: single elimination needs at least %d, got %d", ErrTooFewTeams, singleElimMinTeams, item.TeamCount)
	}
	if item.TeamCount > eliminationMaxTeams {
		return fmt.Errorf("%w: got %d", ErrTooManyTeams, item.TeamCount)
	}

	roundCount := SingleElimRoundCount(item.TeamCount)
	if len(params.Rounds) != roundCount {
		return fmt.Errorf("%w: want %d rounds, got %d", ErrRoundCountMismatch, roundCount, len(params.Rounds))
	}

	prev, err := buildFirstRound(ctx, store, item.Inputs, BracketSize(item.TeamCount), params.Rounds[0].ID)
	if err != nil {
		return err
	}
	for _, round := range params.Rounds[1:] {
		prev, err = buildWinnersRound(ctx, store, prev, round.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// buildFirstRound seeds the sorted inputs into the classic seed order and
// creates one match per adjacent seed pair. Pairings with a single entrant
// become auto-byes: the entrant sits on side 1 with a synthetic 1-0 score.
// Pairings with no entrant at all create no match.
func buildFirstRound(ctx context.Context, store MatchCreator, inputs []*models.StageItemInput, bracketSize int, roundID int) ([]*models.Match, error) {
	sorted := make([]*models.StageItemInput, len(inputs))
	copy(sorted, inputs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Slot < sorted[j].Slot })

	// Seed s (1-based) maps to the s-th input in slot order; seeds past the
	// entrant list are the padding that produces byes.
	inputForSeed := func(seed int) *models.StageItemInput {
		if seed <= len(sorted) {
			return sorted[seed-1]
		}
		return nil
	}

	order := SeedOrder(bracketSize)
	matches := make([]*models.Match, 0, bracketSize/2)
	for i := 0; i < len(order); i += 2 {
		in1 := inputForSeed(order[i])
		in2 := inputForSeed(order[i+1])
		if in1 == nil && in2 == nil {
			continue
		}
		// Keep the real entrant on side 1.
		if in1 == nil {
			in1, in2 = in2, nil
		}

		match := &models.Match{
			RoundID: roundID,
			Side1:   models.SideFromInput(in1.ID),
		}
		if in2 != nil {
			match.Side2 = models.SideFromInput(in2.ID)
		} else {
			// Pre-resolved bye; no need to wait for the propagation pass.
			match.Score1 = 1
		}
		if err := store.CreateMatch(ctx, match); err != nil {
			return nil, fmt.Errorf("failed to create first round match: %w", err)
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// buildWinnersRound pairs consecutive matches of the previous round and
// creates one winner-of/winner-of match per pair.
func buildWinnersRound(ctx context.Context, store MatchCreator, prev []*models.Match, roundID int) ([]*models.Match, error) {
	if len(prev)%2 != 0 {
		return nil, fmt.Errorf("%w: %d matches in previous round", ErrOddMatchCount, len(prev))
	}
	matches := make([]*models.Match, 0, len(prev)/2)
	for i := 0; i < len(prev); i += 2 {
		match := &models.Match{
			RoundID: roundID,
			Side1:   models.SideFromWinner(prev[i].ID),
			Side2:   models.SideFromWinner(prev[i+1].ID),
		}
		if err := store.CreateMatch(ctx, match); err != nil {
			return nil, fmt.Errorf("failed to create winners round match: %w", err)
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// buildLosersRound mirrors buildWinnersRound but feeds on the losers of the
// previous round. Used for the opening round of a losers bracket.
func buildLosersRound(ctx context.Context, store MatchCreator, prev []*models.Match, roundID int) ([]*models.Match, error) {
	if len(prev)%2 != 0 {
		return nil, fmt.Errorf("%w: %d matches in previous round", ErrOddMatchCount, len(prev))
	}
	matches := make([]*models.Match, 0, len(prev)/2)
	for i := 0; i < len(prev); i += 2 {
		match := &models.Match{
			RoundID: roundID,
			Side1:   models.SideFromLoser(prev[i].ID),
			Side2:   models.SideFromLoser(prev[i+1].ID),
		}
		if err := store.CreateMatch(ctx, match); err != nil {
			return nil, fmt.Errorf("failed to create losers round match: %w", err)
		}
		matches = append(matches, match)
	}
	return matches, nil
}
