package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scorekeep/prediction-league/models"
)

var ErrRankingEntryNotFound = errors.New("global ranking entry not found")

type GlobalRankingRepository interface {
	// Upsert writes the single effective entry for (user, match). The unique
	// key is (tournament_id, user_id, match_id).
	Upsert(ctx context.Context, exec SQLExecutor, entry *models.GlobalRankingEntry) error
	DeleteByUserAndMatch(ctx context.Context, exec SQLExecutor, userID, matchID int) error
	GetByUserAndMatch(ctx context.Context, exec SQLExecutor, userID, matchID int) (*models.GlobalRankingEntry, error)
	GlobalRanking(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.RankingRow, error)
	CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
}

type postgresGlobalRankingRepository struct {
	db *sql.DB
}

func NewPostgresGlobalRankingRepository(db *sql.DB) GlobalRankingRepository {
	return &postgresGlobalRankingRepository{db: db}
}

func (r *postgresGlobalRankingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresGlobalRankingRepository) Upsert(ctx context.Context, exec SQLExecutor, entry *models.GlobalRankingEntry) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO global_ranking_entries (tournament_id, user_id, match_id, points, source_prediction_id)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (tournament_id, user_id, match_id)
		DO UPDATE SET points = EXCLUDED.points, source_prediction_id = EXCLUDED.source_prediction_id, updated_at = NOW()
		RETURNING id, updated_at`

	err := executor.QueryRowContext(ctx, query,
		entry.TournamentID,
		entry.UserID,
		entry.MatchID,
		entry.Points,
		entry.SourcePredictionID,
	).Scan(&entry.ID, &entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert ranking entry for user %d match %d: %w", entry.UserID, entry.MatchID, err)
	}
	return nil
}

func (r *postgresGlobalRankingRepository) DeleteByUserAndMatch(ctx context.Context, exec SQLExecutor, userID, matchID int) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM global_ranking_entries WHERE user_id = $1 AND match_id = $2`
	if _, err := executor.ExecContext(ctx, query, userID, matchID); err != nil {
		return fmt.Errorf("failed to delete ranking entry for user %d match %d: %w", userID, matchID, err)
	}
	return nil
}

func (r *postgresGlobalRankingRepository) GetByUserAndMatch(ctx context.Context, exec SQLExecutor, userID, matchID int) (*models.GlobalRankingEntry, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, user_id, match_id, points, source_prediction_id, updated_at
		FROM global_ranking_entries
		WHERE user_id = $1 AND match_id = $2`

	e := &models.GlobalRankingEntry{}
	err := executor.QueryRowContext(ctx, query, userID, matchID).
		Scan(&e.ID, &e.TournamentID, &e.UserID, &e.MatchID, &e.Points, &e.SourcePredictionID, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRankingEntryNotFound
		}
		return nil, fmt.Errorf("failed to scan ranking entry: %w", err)
	}
	return e, nil
}

func (r *postgresGlobalRankingRepository) GlobalRanking(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.RankingRow, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT user_id, COALESCE(SUM(points), 0) AS total_points
		FROM global_ranking_entries
		WHERE tournament_id = $1
		GROUP BY user_id
		ORDER BY total_points DESC, user_id ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query global ranking for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	ranking := make([]*models.RankingRow, 0)
	for rows.Next() {
		row := &models.RankingRow{}
		if err := rows.Scan(&row.UserID, &row.TotalPoints); err != nil {
			return nil, fmt.Errorf("failed to scan global ranking row: %w", err)
		}
		ranking = append(ranking, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during global ranking rows iteration: %w", err)
	}
	return ranking, nil
}

func (r *postgresGlobalRankingRepository) CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	executor := r.getExecutor(exec)
	query := `SELECT COUNT(*) FROM global_ranking_entries WHERE tournament_id = $1`
	var count int
	if err := executor.QueryRowContext(ctx, query, tournamentID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count ranking entries for tournament %d: %w", tournamentID, err)
	}
	return count, nil
}
