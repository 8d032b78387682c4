package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/scorekeep/prediction-league/models"
)

var ErrPhaseStatusNotFound = errors.New("phase status not found")

type PhaseStatusRepository interface {
	Create(ctx context.Context, exec SQLExecutor, status *models.PhaseStatus) error
	GetByTournamentAndPhase(ctx context.Context, exec SQLExecutor, tournamentID int, phase models.Phase, forUpdate bool) (*models.PhaseStatus, error)
	GetByTournamentAndPosition(ctx context.Context, exec SQLExecutor, tournamentID, position int) (*models.PhaseStatus, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.PhaseStatus, error)
	Update(ctx context.Context, exec SQLExecutor, status *models.PhaseStatus) error
}

type postgresPhaseStatusRepository struct {
	db *sql.DB
}

func NewPostgresPhaseStatusRepository(db *sql.DB) PhaseStatusRepository {
	return &postgresPhaseStatusRepository{db: db}
}

func (r *postgresPhaseStatusRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const phaseStatusColumns = `id, tournament_id, phase, position, unlocked, unlocked_at, all_matches_completed, manually_locked, updated_at`

func (r *postgresPhaseStatusRepository) scanPhaseStatus(rowScanner interface{ Scan(...interface{}) error }) (*models.PhaseStatus, error) {
	ps := &models.PhaseStatus{}
	err := rowScanner.Scan(
		&ps.ID,
		&ps.TournamentID,
		&ps.Phase,
		&ps.Position,
		&ps.Unlocked,
		&ps.UnlockedAt,
		&ps.AllMatchesCompleted,
		&ps.ManuallyLocked,
		&ps.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPhaseStatusNotFound
		}
		return nil, fmt.Errorf("failed to scan phase status: %w", err)
	}
	return ps, nil
}

func (r *postgresPhaseStatusRepository) Create(ctx context.Context, exec SQLExecutor, status *models.PhaseStatus) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO phase_statuses
			(tournament_id, phase, position, unlocked, unlocked_at, all_matches_completed, manually_locked)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, updated_at`

	err := executor.QueryRowContext(ctx, query,
		status.TournamentID,
		status.Phase,
		status.Position,
		status.Unlocked,
		status.UnlockedAt,
		status.AllMatchesCompleted,
		status.ManuallyLocked,
	).Scan(&status.ID, &status.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create phase status %s for tournament %d: %w", status.Phase, status.TournamentID, err)
	}
	return nil
}

func (r *postgresPhaseStatusRepository) GetByTournamentAndPhase(ctx context.Context, exec SQLExecutor, tournamentID int, phase models.Phase, forUpdate bool) (*models.PhaseStatus, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + phaseStatusColumns + ` FROM phase_statuses WHERE tournament_id = $1 AND phase = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return r.scanPhaseStatus(executor.QueryRowContext(ctx, query, tournamentID, phase))
}

func (r *postgresPhaseStatusRepository) GetByTournamentAndPosition(ctx context.Context, exec SQLExecutor, tournamentID, position int) (*models.PhaseStatus, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + phaseStatusColumns + ` FROM phase_statuses WHERE tournament_id = $1 AND position = $2`
	return r.scanPhaseStatus(executor.QueryRowContext(ctx, query, tournamentID, position))
}

func (r *postgresPhaseStatusRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.PhaseStatus, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + phaseStatusColumns + ` FROM phase_statuses WHERE tournament_id = $1 ORDER BY position ASC`
	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query phase statuses for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	statuses := make([]*models.PhaseStatus, 0)
	for rows.Next() {
		ps, scanErr := r.scanPhaseStatus(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		statuses = append(statuses, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during phase status rows iteration: %w", err)
	}
	return statuses, nil
}

func (r *postgresPhaseStatusRepository) Update(ctx context.Context, exec SQLExecutor, status *models.PhaseStatus) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE phase_statuses
		SET unlocked = $1, unlocked_at = $2, all_matches_completed = $3, manually_locked = $4, updated_at = NOW()
		WHERE id = $5`

	result, err := executor.ExecContext(ctx, query,
		status.Unlocked,
		status.UnlockedAt,
		status.AllMatchesCompleted,
		status.ManuallyLocked,
		status.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update phase status %d: %w", status.ID, err)
	}
	return checkAffectedRows(result, ErrPhaseStatusNotFound)
}
