package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"github.com/tjjston/sealedleague/brackets"
	"github.com/tjjston/sealedleague/live"
	"github.com/tjjston/sealedleague/models"
	"github.com/tjjston/sealedleague/repositories"
	"github.com/tjjston/sealedleague/storage"
)

// StageService orchestrates bracket construction for a stage item: it lays
// down the round skeleton for the item's format, hands it to the matching
// builder or pairing generator, and settles the initial byes.
type StageService interface {
	BuildBracketForStageItem(ctx context.Context, stageItemID int) (*models.StageItem, error)
}

type stageService struct {
	db            *sql.DB
	stageItemRepo repositories.StageItemRepository
	roundRepo     repositories.RoundRepository
	matchRepo     repositories.MatchRepository
	propagation   PropagationService
	locker        *TournamentLocker

	roundRobin brackets.PairingGenerator
	matchup    brackets.PairingGenerator

	hub      *live.Hub                // optional
	uploader storage.SnapshotUploader // optional
}

func NewStageService(
	db *sql.DB,
	stageItemRepo repositories.StageItemRepository,
	roundRepo repositories.RoundRepository,
	matchRepo repositories.MatchRepository,
	propagation PropagationService,
	locker *TournamentLocker,
	hub *live.Hub,
	uploader storage.SnapshotUploader,
) StageService {
	return &stageService{
		db:            db,
		stageItemRepo: stageItemRepo,
		roundRepo:     roundRepo,
		matchRepo:     matchRepo,
		propagation:   propagation,
		locker:        locker,
		roundRobin:    brackets.NewRoundRobinGenerator(),
		matchup:       brackets.NewMatchupGenerator(),
		hub:           hub,
		uploader:      uploader,
	}
}

// txMatchCreator adapts the match repository to the builders' MatchCreator,
// pinning every insert to one executor.
type txMatchCreator struct {
	repo repositories.MatchRepository
	exec repositories.SQLExecutor
}

func (c *txMatchCreator) CreateMatch(ctx context.Context, match *models.Match) error {
	return c.repo.Create(ctx, c.exec, match)
}

func (s *stageService) BuildBracketForStageItem(ctx context.Context, stageItemID int) (*models.StageItem, error) {
	tournamentID, err := s.stageItemRepo.GetTournamentID(ctx, stageItemID)
	if err != nil {
		return nil, err
	}

	item, err := s.buildLocked(ctx, tournamentID, stageItemID)
	if err != nil {
		return nil, err
	}

	// Elimination brackets may contain byes that resolve immediately; settle
	// them before anyone reads the fresh graph.
	switch item.Type {
	case models.StageItemSingleElimination, models.StageItemDoubleElimination:
		if err := s.propagation.PropagateStageItem(ctx, stageItemID); err != nil {
			return nil, err
		}
		if err := s.propagation.AutoAdvanceByes(ctx, stageItemID); err != nil {
			return nil, err
		}
	}

	built, err := s.stageItemRepo.GetWithGraph(ctx, stageItemID)
	if err != nil {
		return nil, err
	}

	if s.uploader != nil {
		key := fmt.Sprintf("stage-items/%d/bracket.json", built.ID)
		if _, upErr := s.uploader.UploadSnapshot(ctx, key, built); upErr != nil {
			// Snapshot publishing is best effort; the bracket itself is fine.
			log.Printf("Failed to upload bracket snapshot for stage item %d: %v", built.ID, upErr)
		}
	}
	if s.hub != nil {
		s.hub.BroadcastToRoom(fmt.Sprintf("tournament_%d", built.TournamentID), live.Message{
			Type:    live.EventBracketUpdated,
			Payload: built,
		})
	}
	return built, nil
}

// buildLocked loads and validates the stage item under the tournament lock,
// then creates the round skeleton and the matches, inside one transaction
// when a database is attached. All validation runs before the first write so
// a rejected build leaves nothing behind.
func (s *stageService) buildLocked(ctx context.Context, tournamentID, stageItemID int) (item *models.StageItem, err error) {
	defer s.locker.Lock(tournamentID)()

	item, err = s.stageItemRepo.GetWithGraph(ctx, stageItemID)
	if err != nil {
		return nil, err
	}
	if !item.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrStageItemTypeInvalid, item.Type)
	}
	if len(item.Rounds) > 0 {
		return nil, fmt.Errorf("%w: stage item %d has %d rounds", ErrStageItemNotEmpty, stageItemID, len(item.Rounds))
	}
	if err = brackets.ValidateTeamCount(item.Type, item.TeamCount); err != nil {
		return nil, err
	}

	var exec repositories.SQLExecutor
	if s.db != nil {
		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", txErr)
		}
		exec = tx
		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback()
				panic(p)
			}
			if err != nil {
				if rbErr := tx.Rollback(); rbErr != nil {
					log.Printf("Rollback after bracket build failure also failed: %v (build error: %v)", rbErr, err)
				}
				return
			}
			if cErr := tx.Commit(); cErr != nil {
				err = fmt.Errorf("failed to commit bracket build: %w", cErr)
			}
		}()
	}

	rounds, err := s.createRounds(ctx, exec, item)
	if err != nil {
		return nil, err
	}

	params := brackets.BuildParams{StageItem: item, Rounds: rounds}
	creator := &txMatchCreator{repo: s.matchRepo, exec: exec}

	switch item.Type {
	case models.StageItemSingleElimination:
		err = brackets.NewSingleEliminationBuilder().BuildBracket(ctx, params, creator)
	case models.StageItemDoubleElimination:
		err = brackets.NewDoubleEliminationBuilder().BuildBracket(ctx, params, creator)
	case models.StageItemRoundRobin:
		err = s.insertGenerated(ctx, creator, s.roundRobin, params)
	case models.StageItemRegularSeasonMatchup:
		err = s.insertGenerated(ctx, creator, s.matchup, params)
	case models.StageItemSwiss:
		// Swiss starts from an empty draft round; the external pairing flow
		// proposes its matches later.
	default:
		err = fmt.Errorf("%w: %q", ErrStageItemTypeInvalid, item.Type)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("Built %s bracket for stage item %d (%d rounds, %d teams)",
		item.Type, item.ID, len(rounds), item.TeamCount)
	return item, nil
}

func (s *stageService) createRounds(ctx context.Context, exec repositories.SQLExecutor, item *models.StageItem) ([]*models.Round, error) {
	names, drafts := roundPlan(item)
	rounds := make([]*models.Round, 0, len(names))
	for i, name := range names {
		round := &models.Round{StageItemID: item.ID, Name: name, IsDraft: drafts[i]}
		if err := s.roundRepo.Create(ctx, exec, round); err != nil {
			return nil, err
		}
		rounds = append(rounds, round)
	}
	return rounds, nil
}

// roundPlan decides how many rounds a stage item's format needs and how they
// are named. Elimination formats never produce draft rounds.
func roundPlan(item *models.StageItem) (names []string, drafts []bool) {
	switch item.Type {
	case models.StageItemSingleElimination:
		count := brackets.SingleElimRoundCount(item.TeamCount)
		for i := 1; i <= count; i++ {
			names = append(names, fmt.Sprintf("Round %d", i))
		}
	case models.StageItemDoubleElimination:
		winners, losers := brackets.DoubleElimRoundCounts(item.TeamCount)
		for i := 1; i <= winners; i++ {
			names = append(names, fmt.Sprintf("Winners Round %d", i))
		}
		for i := 1; i <= losers; i++ {
			names = append(names, fmt.Sprintf("Losers Round %d", i))
		}
		names = append(names, "Grand Final", "Grand Final Reset")
	case models.StageItemRoundRobin:
		count := brackets.RoundRobinRoundCount(item.TeamCount)
		for i := 1; i <= count; i++ {
			names = append(names, fmt.Sprintf("Round %d", i))
		}
	case models.StageItemRegularSeasonMatchup:
		names = append(names, "Round 1")
	case models.StageItemSwiss:
		names = append(names, "Round 1")
		drafts = make([]bool, 1)
		drafts[0] = true
		return names, drafts
	}
	drafts = make([]bool, len(names))
	return names, drafts
}

func (s *stageService) insertGenerated(ctx context.Context, creator brackets.MatchCreator, generator brackets.PairingGenerator, params brackets.BuildParams) error {
	matches, err := generator.GenerateMatches(ctx, params)
	if err != nil {
		return fmt.Errorf("%s generator failed for stage item %d: %w", generator.Name(), params.StageItem.ID, err)
	}
	for _, match := range matches {
		if err := creator.CreateMatch(ctx, match); err != nil {
			return err
		}
	}
	return nil
}
