package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scorekeep/prediction-league/models"
)

var ErrLeagueNotFound = errors.New("league not found")

type LeagueRepository interface {
	Create(ctx context.Context, exec SQLExecutor, league *models.League) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.League, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.League, error)
}

type postgresLeagueRepository struct {
	db *sql.DB
}

func NewPostgresLeagueRepository(db *sql.DB) LeagueRepository {
	return &postgresLeagueRepository{db: db}
}

func (r *postgresLeagueRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresLeagueRepository) Create(ctx context.Context, exec SQLExecutor, league *models.League) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO leagues (tournament_id, name)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, league.TournamentID, league.Name).
		Scan(&league.ID, &league.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create league %q: %w", league.Name, err)
	}
	return nil
}

func (r *postgresLeagueRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.League, error) {
	executor := r.getExecutor(exec)
	query := `SELECT id, tournament_id, name, created_at FROM leagues WHERE id = $1`
	l := &models.League{}
	err := executor.QueryRowContext(ctx, query, id).
		Scan(&l.ID, &l.TournamentID, &l.Name, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLeagueNotFound
		}
		return nil, fmt.Errorf("failed to scan league by id %d: %w", id, err)
	}
	return l, nil
}

func (r *postgresLeagueRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.League, error) {
	executor := r.getExecutor(exec)
	query := `SELECT id, tournament_id, name, created_at FROM leagues WHERE tournament_id = $1 ORDER BY id ASC`
	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leagues for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	leagues := make([]*models.League, 0)
	for rows.Next() {
		l := &models.League{}
		if err := rows.Scan(&l.ID, &l.TournamentID, &l.Name, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan league row: %w", err)
		}
		leagues = append(leagues, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during league rows iteration: %w", err)
	}
	return leagues, nil
}
