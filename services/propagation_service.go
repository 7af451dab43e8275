package services

import (
	"context"
	"fmt"
	"log"

	"github.com/tjjston/sealedleague/live"
	"github.com/tjjston/sealedleague/models"
	"github.com/tjjston/sealedleague/repositories"
)

// PropagationService keeps a stage item's match graph consistent as results
// arrive: it pushes winners and losers of decided matches into the sides of
// later matches referencing them, and resolves byes.
type PropagationService interface {
	// PropagateResults pushes the outcome of the given round's matches one
	// hop downstream. When changedMatchIDs is non-empty, only references to
	// those matches are considered. Returns the downstream matches whose
	// resolved inputs actually changed.
	PropagateResults(ctx context.Context, roundID int, changedMatchIDs []int) ([]*models.Match, error)

	// PropagateStageItem runs propagation to a fixpoint across the whole
	// stage item, round by round from earliest to latest.
	PropagateStageItem(ctx context.Context, stageItemID int) error

	// AutoAdvanceByes repeatedly resolves matches that can no longer receive
	// a second entrant, assigning a synthetic 1-0 score and re-propagating,
	// until no such match remains.
	AutoAdvanceByes(ctx context.Context, stageItemID int) error

	// FinalizeGrandFinalReset short-circuits a double elimination's reset
	// match with a synthetic 1-0 when the winners-bracket finalist has won
	// the grand final outright. A reset that is actually required (the
	// losers-bracket finalist won) is left to be played.
	FinalizeGrandFinalReset(ctx context.Context, stageItemID int) error
}

type propagationService struct {
	stageItemRepo repositories.StageItemRepository
	roundRepo     repositories.RoundRepository
	matchRepo     repositories.MatchRepository
	locker        *TournamentLocker

	hub *live.Hub // optional
}

func NewPropagationService(
	stageItemRepo repositories.StageItemRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	locker *TournamentLocker,
	hub *live.Hub,
) PropagationService {
	return &propagationService{
		stageItemRepo: stageItemRepo,
		roundRepo:     roundRepo,
		matchRepo:     matchRepo,
		locker:        locker,
		hub:           hub,
	}
}

// matchGraph indexes a loaded stage item for propagation. Rounds keep the
// ascending-id order the repository returns them in.
type matchGraph struct {
	item    *models.StageItem
	byID    map[int]*models.Match
	roundOf map[int]int
}

func newMatchGraph(item *models.StageItem) *matchGraph {
	g := &matchGraph{
		item:    item,
		byID:    make(map[int]*models.Match),
		roundOf: make(map[int]int),
	}
	for _, round := range item.Rounds {
		for _, match := range round.Matches {
			g.byID[match.ID] = match
			g.roundOf[match.ID] = round.ID
		}
	}
	return g
}

func (s *propagationService) PropagateResults(ctx context.Context, roundID int, changedMatchIDs []int) ([]*models.Match, error) {
	round, err := s.roundRepo.GetByID(ctx, roundID)
	if err != nil {
		return nil, err
	}
	tournamentID, err := s.stageItemRepo.GetTournamentID(ctx, round.StageItemID)
	if err != nil {
		return nil, err
	}
	defer s.locker.Lock(tournamentID)()

	// The graph is loaded only inside the critical section so a pass that
	// serialized after another writer computes from that writer's state.
	item, err := s.stageItemRepo.GetWithGraph(ctx, round.StageItemID)
	if err != nil {
		return nil, err
	}

	graph := newMatchGraph(item)
	affected, err := affectedSet(graph, roundID, changedMatchIDs)
	if err != nil {
		return nil, err
	}
	updated, err := propagateFrom(graph, roundID, affected)
	if err != nil {
		return nil, err
	}
	if err := s.persistInputs(ctx, updated); err != nil {
		return nil, err
	}
	if s.hub != nil && len(updated) > 0 {
		s.hub.BroadcastToRoom(fmt.Sprintf("tournament_%d", tournamentID), live.Message{
			Type:    live.EventMatchUpdated,
			Payload: updated,
		})
	}
	return updated, nil
}

func (s *propagationService) PropagateStageItem(ctx context.Context, stageItemID int) error {
	tournamentID, err := s.stageItemRepo.GetTournamentID(ctx, stageItemID)
	if err != nil {
		return err
	}
	defer s.locker.Lock(tournamentID)()

	item, err := s.stageItemRepo.GetWithGraph(ctx, stageItemID)
	if err != nil {
		return err
	}

	graph := newMatchGraph(item)
	updated, err := propagateAll(graph)
	if err != nil {
		return err
	}
	return s.persistInputs(ctx, updated)
}

func (s *propagationService) AutoAdvanceByes(ctx context.Context, stageItemID int) error {
	tournamentID, err := s.stageItemRepo.GetTournamentID(ctx, stageItemID)
	if err != nil {
		return err
	}
	defer s.locker.Lock(tournamentID)()

	item, err := s.stageItemRepo.GetWithGraph(ctx, stageItemID)
	if err != nil {
		return err
	}

	graph := newMatchGraph(item)

	// Every iteration resolves exactly one match, so the loop is bounded by
	// the match count. The guard turns a logic bug into an error instead of
	// a spin.
	maxIterations := len(graph.byID) + 1
	for iteration := 0; ; iteration++ {
		if iteration > maxIterations {
			return fmt.Errorf("%w: stage item %d", ErrByeResolutionStalled, stageItemID)
		}

		match, err := findResolvableBye(graph)
		if err != nil {
			return err
		}
		if match == nil {
			return nil
		}

		// Synthetic win for the populated side; a dead pairing with no
		// entrants at all resolves 1-0 so downstream byes keep unwinding.
		if match.Side2.Resolved() && !match.Side1.Resolved() {
			match.Score1, match.Score2 = 0, 1
		} else {
			match.Score1, match.Score2 = 1, 0
		}
		if err := s.matchRepo.UpdateScore(ctx, nil, match.ID, match.Score1, match.Score2); err != nil {
			return err
		}
		log.Printf("Auto-advanced bye match %d in stage item %d (%d-%d)",
			match.ID, stageItemID, match.Score1, match.Score2)

		updated, err := propagateFrom(graph, graph.roundOf[match.ID], map[int]bool{match.ID: true})
		if err != nil {
			return err
		}
		if err := s.persistInputs(ctx, updated); err != nil {
			return err
		}
		// Rescan from the earliest round: resolving one bye can expose
		// another one round later.
	}
}

func (s *propagationService) FinalizeGrandFinalReset(ctx context.Context, stageItemID int) error {
	tournamentID, err := s.stageItemRepo.GetTournamentID(ctx, stageItemID)
	if err != nil {
		return err
	}
	defer s.locker.Lock(tournamentID)()

	item, err := s.stageItemRepo.GetWithGraph(ctx, stageItemID)
	if err != nil {
		return err
	}
	if item.Type != models.StageItemDoubleElimination {
		return fmt.Errorf("%w: stage item %d is %s", ErrNotDoubleElimination, stageItemID, item.Type)
	}
	if len(item.Rounds) < 2 {
		return fmt.Errorf("%w: stage item %d has %d rounds", ErrMalformedBracket, stageItemID, len(item.Rounds))
	}

	grandFinalRound := item.Rounds[len(item.Rounds)-2]
	resetRound := item.Rounds[len(item.Rounds)-1]
	if len(grandFinalRound.Matches) != 1 || len(resetRound.Matches) != 1 {
		return fmt.Errorf("%w: grand final round has %d matches, reset round has %d",
			ErrMalformedBracket, len(grandFinalRound.Matches), len(resetRound.Matches))
	}

	grandFinal := grandFinalRound.Matches[0]
	reset := resetRound.Matches[0]
	if !grandFinal.IsPlayed() {
		return nil
	}
	if grandFinal.Score1 == grandFinal.Score2 {
		return fmt.Errorf("grand final of stage item %d: %w", stageItemID, models.ErrMatchTied)
	}

	graph := newMatchGraph(item)
	updated, err := propagateFrom(graph, grandFinalRound.ID, map[int]bool{grandFinal.ID: true})
	if err != nil {
		return err
	}
	if err := s.persistInputs(ctx, updated); err != nil {
		return err
	}

	// Side 1 of the grand final is the winners-bracket finalist by
	// construction. If they won, the reset is moot.
	if grandFinal.Score1 > grandFinal.Score2 && reset.Score1 == reset.Score2 {
		reset.Score1, reset.Score2 = 1, 0
		if err := s.matchRepo.UpdateScore(ctx, nil, reset.ID, reset.Score1, reset.Score2); err != nil {
			return err
		}
		log.Printf("Grand final reset %d short-circuited for stage item %d", reset.ID, stageItemID)
	}
	return nil
}

func (s *propagationService) persistInputs(ctx context.Context, matches []*models.Match) error {
	for _, match := range matches {
		if err := s.matchRepo.UpdateInputs(ctx, nil, match.ID, match.Side1.InputID, match.Side2.InputID); err != nil {
			return err
		}
	}
	return nil
}

// affectedSet resolves the restricting match-id set for a propagation pass:
// the given round's matches, or the supplied subset of them.
func affectedSet(graph *matchGraph, roundID int, changedMatchIDs []int) (map[int]bool, error) {
	affected := make(map[int]bool)
	if len(changedMatchIDs) > 0 {
		for _, id := range changedMatchIDs {
			if graph.roundOf[id] != roundID {
				return nil, fmt.Errorf("%w: match %d is not in round %d", ErrRoundNotInStageItem, id, roundID)
			}
			affected[id] = true
		}
		return affected, nil
	}
	for _, round := range graph.item.Rounds {
		if round.ID != roundID {
			continue
		}
		for _, match := range round.Matches {
			affected[match.ID] = true
		}
	}
	return affected, nil
}

// propagateFrom pushes the outcomes of the affected matches into the sides
// of matches in strictly later rounds. It mutates the graph in place and
// returns the matches whose resolved inputs changed; the affected matches
// themselves are the cause, never part of the result.
func propagateFrom(graph *matchGraph, roundID int, affected map[int]bool) ([]*models.Match, error) {
	updated := make([]*models.Match, 0)
	for _, round := range graph.item.Rounds {
		if round.ID <= roundID {
			continue
		}
		for _, match := range round.Matches {
			if affected[match.ID] {
				continue
			}
			changed1, err := refreshSide(graph, &match.Side1, affected)
			if err != nil {
				return nil, err
			}
			changed2, err := refreshSide(graph, &match.Side2, affected)
			if err != nil {
				return nil, err
			}
			if changed1 || changed2 {
				updated = append(updated, match)
			}
		}
	}
	return updated, nil
}

// propagateAll runs one scoped pass per round, earliest to latest. A single
// pass only moves results one hop, so walking the rounds in order settles
// the whole stage item.
func propagateAll(graph *matchGraph) ([]*models.Match, error) {
	seen := make(map[int]bool)
	updated := make([]*models.Match, 0)
	for _, round := range graph.item.Rounds {
		affected := make(map[int]bool, len(round.Matches))
		for _, match := range round.Matches {
			affected[match.ID] = true
		}
		roundUpdates, err := propagateFrom(graph, round.ID, affected)
		if err != nil {
			return nil, err
		}
		for _, match := range roundUpdates {
			if !seen[match.ID] {
				seen[match.ID] = true
				updated = append(updated, match)
			}
		}
	}
	return updated, nil
}

func refreshSide(graph *matchGraph, side *models.MatchSide, affected map[int]bool) (bool, error) {
	var resolved *int
	switch {
	case side.WinnerFromMatchID != nil && affected[*side.WinnerFromMatchID]:
		source, ok := graph.byID[*side.WinnerFromMatchID]
		if !ok {
			return false, fmt.Errorf("%w: dangling winner reference to match %d", ErrMalformedBracket, *side.WinnerFromMatchID)
		}
		winner, err := source.WinnerInputID()
		if err != nil {
			return false, fmt.Errorf("match %d: %w", source.ID, err)
		}
		resolved = winner
	case side.LoserFromMatchID != nil && affected[*side.LoserFromMatchID]:
		source, ok := graph.byID[*side.LoserFromMatchID]
		if !ok {
			return false, fmt.Errorf("%w: dangling loser reference to match %d", ErrMalformedBracket, *side.LoserFromMatchID)
		}
		loser, err := source.LoserInputID()
		if err != nil {
			return false, fmt.Errorf("match %d: %w", source.ID, err)
		}
		resolved = loser
	default:
		return false, nil
	}

	if intPtrEqual(side.InputID, resolved) {
		return false, nil
	}
	side.InputID = copyIntPtr(resolved)
	return true, nil
}

// findResolvableBye returns the earliest unresolved match (equal scores,
// covering the 0-0 sentinel and any artificially equal pair) that can no
// longer receive a second entrant: one side holds an input and the other is
// vacant for good, or both sides are dead. Returns nil when none remains.
func findResolvableBye(graph *matchGraph) (*models.Match, error) {
	for _, round := range graph.item.Rounds {
		for _, match := range round.Matches {
			if match.Score1 != match.Score2 {
				continue
			}
			vacant1, err := sideVacant(graph, match.Side1)
			if err != nil {
				return nil, err
			}
			vacant2, err := sideVacant(graph, match.Side2)
			if err != nil {
				return nil, err
			}
			populated1 := match.Side1.Resolved()
			populated2 := match.Side2.Resolved()
			switch {
			case populated1 && !populated2 && vacant2:
				return match, nil
			case populated2 && !populated1 && vacant1:
				return match, nil
			case !populated1 && !populated2 && vacant1 && vacant2:
				return match, nil
			}
		}
	}
	return nil, nil
}

// sideVacant reports whether the side will never hold an input: it has no
// source at all, or its source match is decided and yields nothing (the
// loser of a bye, or the winner of a dead pairing).
func sideVacant(graph *matchGraph, side models.MatchSide) (bool, error) {
	switch side.Kind() {
	case models.SideEmpty:
		return true, nil
	case models.SideDirect:
		return false, nil
	case models.SideWinner:
		source, ok := graph.byID[*side.WinnerFromMatchID]
		if !ok {
			return false, fmt.Errorf("%w: dangling winner reference to match %d", ErrMalformedBracket, *side.WinnerFromMatchID)
		}
		if !source.IsPlayed() {
			return false, nil
		}
		winner, err := source.WinnerInputID()
		if err != nil {
			return false, fmt.Errorf("match %d: %w", source.ID, err)
		}
		return winner == nil, nil
	case models.SideLoser:
		source, ok := graph.byID[*side.LoserFromMatchID]
		if !ok {
			return false, fmt.Errorf("%w: dangling loser reference to match %d", ErrMalformedBracket, *side.LoserFromMatchID)
		}
		if !source.IsPlayed() {
			return false, nil
		}
		loser, err := source.LoserInputID()
		if err != nil {
			return false, fmt.Errorf("match %d: %w", source.ID, err)
		}
		return loser == nil, nil
	}
	return false, nil
}
