package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tjjston/sealedleague/models"
)

var ErrStageItemNotFound = errors.New("stage item not found")

type StageItemRepository interface {
	// GetTournamentID resolves the tournament a stage item belongs to
	// without loading its graph. Services use it to pick the right
	// tournament lock before reading anything mutable.
	GetTournamentID(ctx context.Context, id int) (int, error)

	// GetWithGraph loads a stage item together with its inputs and its
	// rounds (ascending id), each round carrying its matches (ascending id).
	GetWithGraph(ctx context.Context, id int) (*models.StageItem, error)
}

type postgresStageItemRepository struct {
	db *sql.DB
}

func NewPostgresStageItemRepository(db *sql.DB) StageItemRepository {
	return &postgresStageItemRepository{db: db}
}

func (r *postgresStageItemRepository) GetTournamentID(ctx context.Context, id int) (int, error) {
	query := `
		SELECT s.tournament_id
		FROM stage_items si
		JOIN stages s ON s.id = si.stage_id
		WHERE si.id = $1`

	var tournamentID int
	err := r.db.QueryRowContext(ctx, query, id).Scan(&tournamentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrStageItemNotFound
		}
		return 0, fmt.Errorf("failed to resolve tournament for stage item %d: %w", id, err)
	}
	return tournamentID, nil
}

func (r *postgresStageItemRepository) GetWithGraph(ctx context.Context, id int) (*models.StageItem, error) {
	query := `
		SELECT si.id, si.stage_id, si.name, si.type, si.team_count, s.tournament_id
		FROM stage_items si
		JOIN stages s ON s.id = si.stage_id
		WHERE si.id = $1`

	item := &models.StageItem{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&item.ID, &item.StageID, &item.Name, &item.Type, &item.TeamCount, &item.TournamentID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStageItemNotFound
		}
		return nil, fmt.Errorf("failed to scan stage item %d: %w", id, err)
	}

	if item.Inputs, err = r.listInputs(ctx, id); err != nil {
		return nil, err
	}
	if item.Rounds, err = r.listRoundsWithMatches(ctx, id); err != nil {
		return nil, err
	}
	return item, nil
}

func (r *postgresStageItemRepository) listInputs(ctx context.Context, stageItemID int) ([]*models.StageItemInput, error) {
	query := `
		SELECT id, stage_item_id, slot, team_id, winner_from_stage_item_id, winner_position
		FROM stage_item_inputs
		WHERE stage_item_id = $1
		ORDER BY slot ASC`

	rows, err := r.db.QueryContext(ctx, query, stageItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query inputs for stage item %d: %w", stageItemID, err)
	}
	defer rows.Close()

	inputs := make([]*models.StageItemInput, 0)
	for rows.Next() {
		input := &models.StageItemInput{}
		if scanErr := rows.Scan(
			&input.ID, &input.StageItemID, &input.Slot,
			&input.TeamID, &input.WinnerFromStageItemID, &input.WinnerPosition,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan stage item input row: %w", scanErr)
		}
		inputs = append(inputs, input)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during stage item input rows iteration: %w", err)
	}
	return inputs, nil
}

func (r *postgresStageItemRepository) listRoundsWithMatches(ctx context.Context, stageItemID int) ([]*models.Round, error) {
	roundQuery := `
		SELECT id, stage_item_id, name, is_draft
		FROM rounds
		WHERE stage_item_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, roundQuery, stageItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rounds for stage item %d: %w", stageItemID, err)
	}
	defer rows.Close()

	rounds := make([]*models.Round, 0)
	byID := make(map[int]*models.Round)
	for rows.Next() {
		round := &models.Round{Matches: []*models.Match{}}
		if scanErr := rows.Scan(&round.ID, &round.StageItemID, &round.Name, &round.IsDraft); scanErr != nil {
			return nil, fmt.Errorf("failed to scan round row: %w", scanErr)
		}
		rounds = append(rounds, round)
		byID[round.ID] = round
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during round rows iteration: %w", err)
	}

	matchQuery := `
		SELECT` + qualifyMatchColumns("m") + `
		FROM matches m
		JOIN rounds r ON r.id = m.round_id
		WHERE r.stage_item_id = $1
		ORDER BY m.id ASC`

	matchRows, err := r.db.QueryContext(ctx, matchQuery, stageItemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for stage item %d: %w", stageItemID, err)
	}
	defer matchRows.Close()

	for matchRows.Next() {
		match, scanErr := scanMatch(matchRows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		if round, ok := byID[match.RoundID]; ok {
			round.Matches = append(round.Matches, match)
		}
	}
	if err = matchRows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return rounds, nil
}
