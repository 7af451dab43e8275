package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tjjston/sealedleague/models"
)

type CourtRepository interface {
	// ListByTournament returns courts in ascending id order. That order
	// defines the court index used when batches are spread across courts.
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.Court, error)
}

type postgresCourtRepository struct {
	db *sql.DB
}

func NewPostgresCourtRepository(db *sql.DB) CourtRepository {
	return &postgresCourtRepository{db: db}
}

func (r *postgresCourtRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Court, error) {
	query := `
		SELECT id, tournament_id, name, created_at
		FROM courts
		WHERE tournament_id = $1
		ORDER BY id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query courts for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	courts := make([]*models.Court, 0)
	for rows.Next() {
		court := &models.Court{}
		if scanErr := rows.Scan(&court.ID, &court.TournamentID, &court.Name, &court.CreatedAt); scanErr != nil {
			return nil, fmt.Errorf("failed to scan court row: %w", scanErr)
		}
		courts = append(courts, court)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during court rows iteration: %w", err)
	}
	return courts, nil
}
