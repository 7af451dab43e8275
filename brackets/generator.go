package brackets

import (
	"context"
	"errors"
	"fmt"

	"github.com/tjjston/sealedleague/models"
)

// Validation errors surfaced before any match is created.
var (
	ErrTooFewTeams          = errors.New("not enough teams for this bracket format")
	ErrTooManyTeams         = errors.New("too many teams for this bracket format (maximum 64)")
	ErrOddMatchCount        = errors.New("cannot pair an odd number of matches")
	ErrRoundCountMismatch   = errors.New("supplied round count does not match the bracket shape")
	ErrBracketShapeMismatch = errors.New("losers and winners bracket rounds do not line up")
	ErrBracketIncomplete    = errors.New("bracket construction did not consume every losers round")
)

// ValidateTeamCount checks a stage item's team count against the bounds of
// its format. Callers run it before creating rounds or matches so a bad
// count never leaves a partial skeleton behind.
func ValidateTeamCount(itemType models.StageItemType, teamCount int) error {
	switch itemType {
	case models.StageItemSingleElimination:
		if teamCount < 2 {
			return fmt.Errorf("%w: single elimination needs at least 2, got %d", ErrTooFewTeams, teamCount)
		}
		if teamCount > 64 {
			return fmt.Errorf("%w: got %d", ErrTooManyTeams, teamCount)
		}
	case models.StageItemDoubleElimination:
		if teamCount < 3 {
			return fmt.Errorf("%w: double elimination needs at least 3, got %d", ErrTooFewTeams, teamCount)
		}
		if teamCount > 64 {
			return fmt.Errorf("%w: got %d", ErrTooManyTeams, teamCount)
		}
	case models.StageItemRoundRobin:
		if teamCount < 2 {
			return fmt.Errorf("%w: round robin needs at least 2, got %d", ErrTooFewTeams, teamCount)
		}
	case models.StageItemRegularSeasonMatchup:
		if teamCount < 2 {
			return fmt.Errorf("%w: matchups need at least 2, got %d", ErrTooFewTeams, teamCount)
		}
		if teamCount%2 != 0 {
			return fmt.Errorf("%w: %d inputs", ErrOddMatchCount, teamCount)
		}
	}
	return nil
}

// MatchCreator persists bracket matches as the builders produce them, filling
// in the store-issued id so later matches can reference earlier ones.
type MatchCreator interface {
	CreateMatch(ctx context.Context, match *models.Match) error
}

// BuildParams bundles everything a builder needs: the stage item with its
// inputs, and its rounds ordered by ascending id. The round skeleton is
// created by the caller; builders only verify its shape.
type BuildParams struct {
	StageItem *models.StageItem
	Rounds    []*models.Round
}

// BracketBuilder constructs the full match graph of one stage item.
type BracketBuilder interface {
	BuildBracket(ctx context.Context, params BuildParams, store MatchCreator) error
	Name() string
}

// PairingGenerator is the boundary to the pool-style formats (round robin,
// regular season matchups, Swiss). Generators emit ready-to-insert matches
// with round ids already assigned; their pairing heuristics are their own.
type PairingGenerator interface {
	GenerateMatches(ctx context.Context, params BuildParams) ([]*models.Match, error)
	Name() string
}
