package brackets

import (
	"context"
	"fmt"
	"sort"

	"github.com/tjjston/sealedleague/models"
)

// RoundRobinGenerator pairs every input against every other input once,
// using the circle method: one input stays fixed while the rest rotate, each
// rotation yielding one round. An odd entrant count gets a phantom opponent,
// and pairings against the phantom are dropped (the entrant rests).
type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() PairingGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) Name() string {
	return "round_robin"
}

// RoundRobinRoundCount is the number of rounds the circle method produces
// for teamCount entrants.
func RoundRobinRoundCount(teamCount int) int {
	if teamCount < 2 {
		return 0
	}
	if teamCount%2 == 0 {
		return teamCount - 1
	}
	return teamCount
}

func (g *RoundRobinGenerator) GenerateMatches(ctx context.Context, params BuildParams) ([]*models.Match, error) {
	inputs := sortedInputs(params.StageItem.Inputs)
	if len(inputs) < 2 {
		return nil, fmt.Errorf("%w: round robin needs at least 2, got %d", ErrTooFewTeams, len(inputs))
	}
	roundCount := RoundRobinRoundCount(len(inputs))
	if len(params.Rounds) != roundCount {
		return nil, fmt.Errorf("%w: want %d rounds, got %d", ErrRoundCountMismatch, roundCount, len(params.Rounds))
	}

	// Rotation ring of input ids, -1 marking the phantom seat.
	ring := make([]int, 0, len(inputs)+1)
	for _, in := range inputs {
		ring = append(ring, in.ID)
	}
	if len(ring)%2 != 0 {
		ring = append(ring, -1)
	}
	half := len(ring) / 2

	matches := make([]*models.Match, 0, roundCount*half)
	for r := 0; r < roundCount; r++ {
		for i := 0; i < half; i++ {
			id1, id2 := ring[i], ring[len(ring)-1-i]
			if id1 == -1 || id2 == -1 {
				continue
			}
			matches = append(matches, &models.Match{
				RoundID: params.Rounds[r].ID,
				Side1:   models.SideFromInput(id1),
				Side2:   models.SideFromInput(id2),
			})
		}
		// Rotate everything but the first seat.
		last := ring[len(ring)-1]
		copy(ring[2:], ring[1:len(ring)-1])
		ring[1] = last
	}
	return matches, nil
}

// MatchupGenerator pairs consecutive slots into a single round: slot 1 vs
// slot 2, slot 3 vs slot 4, and so on. Used for regular season matchups
// where the pairing is fixed by slot order.
type MatchupGenerator struct{}

func NewMatchupGenerator() PairingGenerator {
	return &MatchupGenerator{}
}

func (g *MatchupGenerator) Name() string {
	return "regular_season_matchup"
}

func (g *MatchupGenerator) GenerateMatches(ctx context.Context, params BuildParams) ([]*models.Match, error) {
	inputs := sortedInputs(params.StageItem.Inputs)
	if len(inputs) < 2 {
		return nil, fmt.Errorf("%w: matchups need at least 2, got %d", ErrTooFewTeams, len(inputs))
	}
	if len(inputs)%2 != 0 {
		return nil, fmt.Errorf("%w: %d inputs", ErrOddMatchCount, len(inputs))
	}
	if len(params.Rounds) != 1 {
		return nil, fmt.Errorf("%w: want 1 round, got %d", ErrRoundCountMismatch, len(params.Rounds))
	}

	matches := make([]*models.Match, 0, len(inputs)/2)
	for i := 0; i < len(inputs); i += 2 {
		matches = append(matches, &models.Match{
			RoundID: params.Rounds[0].ID,
			Side1:   models.SideFromInput(inputs[i].ID),
			Side2:   models.SideFromInput(inputs[i+1].ID),
		})
	}
	return matches, nil
}

func sortedInputs(inputs []*models.StageItemInput) []*models.StageItemInput {
	sorted := make([]*models.StageItemInput, len(inputs))
	copy(sorted, inputs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Slot < sorted[j].Slot })
	return sorted
}
