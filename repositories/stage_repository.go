package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tjjston/sealedleague/models"
)

type StageRepository interface {
	// ListByTournament returns the tournament's stages in ascending id order,
	// each stage carrying its stage items sorted by name. The items come
	// without their graphs; use StageItemRepository.GetWithGraph for those.
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Stage, error)
}

type postgresStageRepository struct {
	db *sql.DB
}

func NewPostgresStageRepository(db *sql.DB) StageRepository {
	return &postgresStageRepository{db: db}
}

func (r *postgresStageRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Stage, error) {
	stageQuery := `
		SELECT id, tournament_id, name
		FROM stages
		WHERE tournament_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, stageQuery, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stages for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	stages := make([]*models.Stage, 0)
	byID := make(map[int]*models.Stage)
	for rows.Next() {
		stage := &models.Stage{StageItems: []*models.StageItem{}}
		if scanErr := rows.Scan(&stage.ID, &stage.TournamentID, &stage.Name); scanErr != nil {
			return nil, fmt.Errorf("failed to scan stage row: %w", scanErr)
		}
		stages = append(stages, stage)
		byID[stage.ID] = stage
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during stage rows iteration: %w", err)
	}

	itemQuery := `
		SELECT si.id, si.stage_id, si.name, si.type, si.team_count, s.tournament_id
		FROM stage_items si
		JOIN stages s ON s.id = si.stage_id
		WHERE s.tournament_id = $1
		ORDER BY si.name ASC, si.id ASC`

	itemRows, err := r.db.QueryContext(ctx, itemQuery, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query stage items for tournament %d: %w", tournamentID, err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		item := &models.StageItem{}
		if scanErr := itemRows.Scan(
			&item.ID, &item.StageID, &item.Name, &item.Type, &item.TeamCount, &item.TournamentID,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan stage item row: %w", scanErr)
		}
		if stage, ok := byID[item.StageID]; ok {
			stage.StageItems = append(stage.StageItems, item)
		}
	}
	if err = itemRows.Err(); err != nil {
		return nil, fmt.Errorf("error during stage item rows iteration: %w", err)
	}
	return stages, nil
}
