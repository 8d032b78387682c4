package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/scorekeep/prediction-league/models"
)

var (
	ErrPredictionNotFound     = errors.New("prediction not found")
	ErrPredictionMatchInvalid = errors.New("prediction match conflict or invalid")
)

type PredictionRepository interface {
	// Upsert inserts the prediction or, when the user already has a row for
	// this (match, league) scope, updates the predicted scores and joker flag
	// in place. Computed points are reset on update; scoring re-derives them.
	Upsert(ctx context.Context, exec SQLExecutor, prediction *models.Prediction) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Prediction, error)
	ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.Prediction, error)
	ListByUserAndMatch(ctx context.Context, exec SQLExecutor, userID, matchID int) ([]*models.Prediction, error)
	ListByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) ([]*models.Prediction, error)
	UpdatePoints(ctx context.Context, exec SQLExecutor, id int, points int) error
	LeagueRanking(ctx context.Context, exec SQLExecutor, leagueID int) ([]*models.RankingRow, error)
}

type postgresPredictionRepository struct {
	db *sql.DB
}

func NewPostgresPredictionRepository(db *sql.DB) PredictionRepository {
	return &postgresPredictionRepository{db: db}
}

func (r *postgresPredictionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const predictionColumns = `id, user_id, match_id, league_id, home_goals, away_goals, joker, points, created_at, updated_at`

func (r *postgresPredictionRepository) scanPrediction(rowScanner interface{ Scan(...interface{}) error }) (*models.Prediction, error) {
	p := &models.Prediction{}
	err := rowScanner.Scan(
		&p.ID,
		&p.UserID,
		&p.MatchID,
		&p.LeagueID,
		&p.HomeGoals,
		&p.AwayGoals,
		&p.Joker,
		&p.Points,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPredictionNotFound
		}
		return nil, fmt.Errorf("failed to scan prediction: %w", err)
	}
	return p, nil
}

func (r *postgresPredictionRepository) Upsert(ctx context.Context, exec SQLExecutor, prediction *models.Prediction) error {
	executor := r.getExecutor(exec)

	// league_id is nullable, so the scope match needs IS NOT DISTINCT FROM
	// instead of a plain equality.
	updateQuery := `
		UPDATE predictions
		SET home_goals = $1, away_goals = $2, joker = $3, points = NULL, updated_at = NOW()
		WHERE user_id = $4 AND match_id = $5 AND league_id IS NOT DISTINCT FROM $6
		RETURNING ` + predictionColumns

	row := executor.QueryRowContext(ctx, updateQuery,
		prediction.HomeGoals,
		prediction.AwayGoals,
		prediction.Joker,
		prediction.UserID,
		prediction.MatchID,
		prediction.LeagueID,
	)
	updated, err := r.scanPrediction(row)
	if err == nil {
		*prediction = *updated
		return nil
	}
	if !errors.Is(err, ErrPredictionNotFound) {
		return err
	}

	insertQuery := `
		INSERT INTO predictions (user_id, match_id, league_id, home_goals, away_goals, joker)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err = executor.QueryRowContext(ctx, insertQuery,
		prediction.UserID,
		prediction.MatchID,
		prediction.LeagueID,
		prediction.HomeGoals,
		prediction.AwayGoals,
		prediction.Joker,
	).Scan(&prediction.ID, &prediction.CreatedAt, &prediction.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "predictions_match_id_fkey" {
			return ErrPredictionMatchInvalid
		}
		return fmt.Errorf("failed to insert prediction for user %d match %d: %w", prediction.UserID, prediction.MatchID, err)
	}
	return nil
}

func (r *postgresPredictionRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Prediction, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE id = $1`
	return r.scanPrediction(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresPredictionRepository) queryPredictions(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]*models.Prediction, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	predictions := make([]*models.Prediction, 0)
	for rows.Next() {
		p, scanErr := r.scanPrediction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		predictions = append(predictions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during prediction rows iteration: %w", err)
	}
	return predictions, nil
}

func (r *postgresPredictionRepository) ListByMatch(ctx context.Context, exec SQLExecutor, matchID int) ([]*models.Prediction, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE match_id = $1 ORDER BY id ASC`
	return r.queryPredictions(ctx, executor, query, matchID)
}

func (r *postgresPredictionRepository) ListByUserAndMatch(ctx context.Context, exec SQLExecutor, userID, matchID int) ([]*models.Prediction, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + predictionColumns + ` FROM predictions WHERE user_id = $1 AND match_id = $2 ORDER BY id ASC`
	return r.queryPredictions(ctx, executor, query, userID, matchID)
}

func (r *postgresPredictionRepository) ListByUserAndTournament(ctx context.Context, exec SQLExecutor, userID, tournamentID int) ([]*models.Prediction, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT p.id, p.user_id, p.match_id, p.league_id, p.home_goals, p.away_goals, p.joker, p.points, p.created_at, p.updated_at
		FROM predictions p
		JOIN matches m ON m.id = p.match_id
		WHERE p.user_id = $1 AND m.tournament_id = $2
		ORDER BY p.id ASC`
	return r.queryPredictions(ctx, executor, query, userID, tournamentID)
}

func (r *postgresPredictionRepository) UpdatePoints(ctx context.Context, exec SQLExecutor, id int, points int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE predictions SET points = $1, updated_at = NOW() WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, points, id)
	if err != nil {
		return fmt.Errorf("failed to update points for prediction %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrPredictionNotFound)
}

func (r *postgresPredictionRepository) LeagueRanking(ctx context.Context, exec SQLExecutor, leagueID int) ([]*models.RankingRow, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT user_id, COALESCE(SUM(points), 0) AS total_points
		FROM predictions
		WHERE league_id = $1
		GROUP BY user_id
		ORDER BY total_points DESC, user_id ASC`

	rows, err := executor.QueryContext(ctx, query, leagueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query league ranking %d: %w", leagueID, err)
	}
	defer rows.Close()

	ranking := make([]*models.RankingRow, 0)
	for rows.Next() {
		row := &models.RankingRow{}
		if err := rows.Scan(&row.UserID, &row.TotalPoints); err != nil {
			return nil, fmt.Errorf("failed to scan ranking row: %w", err)
		}
		ranking = append(ranking, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during ranking rows iteration: %w", err)
	}
	return ranking, nil
}
