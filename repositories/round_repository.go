package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/tjjston/sealedleague/models"
)

var ErrRoundNotFound = errors.New("round not found")

type RoundRepository interface {
	Create(ctx context.Context, exec SQLExecutor, round *models.Round) error
	GetByID(ctx context.Context, id int) (*models.Round, error)
}

type postgresRoundRepository struct {
	db *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) RoundRepository {
	return &postgresRoundRepository{db: db}
}

func (r *postgresRoundRepository) Create(ctx context.Context, exec SQLExecutor, round *models.Round) error {
	query := `
		INSERT INTO rounds (stage_item_id, name, is_draft)
		VALUES ($1, $2, $3)
		RETURNING id`

	if exec == nil {
		exec = r.db
	}
	err := exec.QueryRowContext(ctx, query, round.StageItemID, round.Name, round.IsDraft).Scan(&round.ID)
	if err != nil {
		return fmt.Errorf("failed to insert round %q for stage item %d: %w", round.Name, round.StageItemID, err)
	}
	return nil
}

func (r *postgresRoundRepository) GetByID(ctx context.Context, id int) (*models.Round, error) {
	query := `SELECT id, stage_item_id, name, is_draft FROM rounds WHERE id = $1`

	round := &models.Round{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(&round.ID, &round.StageItemID, &round.Name, &round.IsDraft)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to scan round %d: %w", id, err)
	}
	return round, nil
}
