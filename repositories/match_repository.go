package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tjjston/sealedleague/models"
)

var ErrMatchNotFound = errors.New("match not found")

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	UpdateInputs(ctx context.Context, exec SQLExecutor, matchID int, input1ID, input2ID *int) error
	UpdateScore(ctx context.Context, exec SQLExecutor, matchID int, score1, score2 int) error
	UpdateSchedule(ctx context.Context, exec SQLExecutor, matchID int, courtID *int, startTime *time.Time, position *int) error
	ListScheduledByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `
	id, round_id,
	stage_item_input1_id, winner_from_match1_id, loser_from_match1_id,
	stage_item_input2_id, winner_from_match2_id, loser_from_match2_id,
	score1, score2,
	court_id, start_time, position_in_schedule,
	custom_duration_minutes, custom_margin_minutes`

func scanMatch(scanner interface{ Scan(dest ...interface{}) error }) (*models.Match, error) {
	match := &models.Match{}
	err := scanner.Scan(
		&match.ID,
		&match.RoundID,
		&match.Side1.InputID,
		&match.Side1.WinnerFromMatchID,
		&match.Side1.LoserFromMatchID,
		&match.Side2.InputID,
		&match.Side2.WinnerFromMatchID,
		&match.Side2.LoserFromMatchID,
		&match.Score1,
		&match.Score2,
		&match.CourtID,
		&match.StartTime,
		&match.PositionInSchedule,
		&match.CustomDurationMinutes,
		&match.CustomMarginMinutes,
	)
	if err != nil {
		return nil, err
	}
	return match, nil
}

// exec falls back to the repository's own handle when the caller is not
// running inside a transaction.
func (r *postgresMatchRepository) executor(exec SQLExecutor) SQLExecutor {
	if exec == nil {
		return r.db
	}
	return exec
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	query := `
		INSERT INTO matches
			(round_id,
			 stage_item_input1_id, winner_from_match1_id, loser_from_match1_id,
			 stage_item_input2_id, winner_from_match2_id, loser_from_match2_id,
			 score1, score2,
			 court_id, start_time, position_in_schedule,
			 custom_duration_minutes, custom_margin_minutes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	err := r.executor(exec).QueryRowContext(ctx, query,
		match.RoundID,
		match.Side1.InputID,
		match.Side1.WinnerFromMatchID,
		match.Side1.LoserFromMatchID,
		match.Side2.InputID,
		match.Side2.WinnerFromMatchID,
		match.Side2.LoserFromMatchID,
		match.Score1,
		match.Score2,
		match.CourtID,
		match.StartTime,
		match.PositionInSchedule,
		match.CustomDurationMinutes,
		match.CustomMarginMinutes,
	).Scan(&match.ID)
	if err != nil {
		return fmt.Errorf("failed to insert match for round %d: %w", match.RoundID, err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`

	match, err := scanMatch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) UpdateInputs(ctx context.Context, exec SQLExecutor, matchID int, input1ID, input2ID *int) error {
	query := `UPDATE matches SET stage_item_input1_id = $1, stage_item_input2_id = $2 WHERE id = $3`
	result, err := r.executor(exec).ExecContext(ctx, query, input1ID, input2ID, matchID)
	if err != nil {
		return fmt.Errorf("failed to update inputs of match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateScore(ctx context.Context, exec SQLExecutor, matchID int, score1, score2 int) error {
	query := `UPDATE matches SET score1 = $1, score2 = $2 WHERE id = $3`
	result, err := r.executor(exec).ExecContext(ctx, query, score1, score2, matchID)
	if err != nil {
		return fmt.Errorf("failed to update score of match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateSchedule(ctx context.Context, exec SQLExecutor, matchID int, courtID *int, startTime *time.Time, position *int) error {
	query := `UPDATE matches SET court_id = $1, start_time = $2, position_in_schedule = $3 WHERE id = $4`
	result, err := r.executor(exec).ExecContext(ctx, query, courtID, startTime, position, matchID)
	if err != nil {
		return fmt.Errorf("failed to update schedule of match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) ListScheduledByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	query := `
		SELECT` + qualifyMatchColumns("m") + `
		FROM matches m
		JOIN rounds r ON r.id = m.round_id
		JOIN stage_items si ON si.id = r.stage_item_id
		JOIN stages s ON s.id = si.stage_id
		WHERE s.tournament_id = $1 AND m.court_id IS NOT NULL
		ORDER BY m.position_in_schedule ASC, m.court_id ASC, m.id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		match, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan scheduled match row: %w", scanErr)
		}
		matches = append(matches, match)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during scheduled match rows iteration: %w", err)
	}
	return matches, nil
}

func qualifyMatchColumns(alias string) string {
	return fmt.Sprintf(`
	%[1]s.id, %[1]s.round_id,
	%[1]s.stage_item_input1_id, %[1]s.winner_from_match1_id, %[1]s.loser_from_match1_id,
	%[1]s.stage_item_input2_id, %[1]s.winner_from_match2_id, %[1]s.loser_from_match2_id,
	%[1]s.score1, %[1]s.score2,
	%[1]s.court_id, %[1]s.start_time, %[1]s.position_in_schedule,
	%[1]s.custom_duration_minutes, %[1]s.custom_margin_minutes`, alias)
}
