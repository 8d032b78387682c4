package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lib/pq"
	"github.com/scorekeep/prediction-league/models"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchTournamentInvalid = errors.New("match tournament conflict or invalid")
	ErrMatchTeamInvalid       = errors.New("match team conflict or invalid")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int, forUpdate bool) (*models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, phase *models.Phase, status *models.MatchStatus) ([]*models.Match, error)
	ListGroupMatches(ctx context.Context, exec SQLExecutor, tournamentID int, group string, forUpdate bool) ([]*models.Match, error)
	ListDependentsOfMatch(ctx context.Context, exec SQLExecutor, sourceMatchID int) ([]*models.Match, error)
	ListDependentsOfGroup(ctx context.Context, exec SQLExecutor, tournamentID int, group string) ([]*models.Match, error)
	UpdateResult(ctx context.Context, exec SQLExecutor, id int, homeScore, awayScore *int, status models.MatchStatus) error
	UpdateSlotTeam(ctx context.Context, exec SQLExecutor, matchID int, side models.Side, teamID *int) error
	UpdateSlotSource(ctx context.Context, exec SQLExecutor, matchID int, side models.Side, sourceMatchID int) error
	SetManualLock(ctx context.Context, exec SQLExecutor, id int, locked bool) error
	CountNonTerminal(ctx context.Context, exec SQLExecutor, tournamentID int, phase models.Phase) (int, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `id, tournament_id, phase, bracket_pos, group_name,
	home_team_id, away_team_id,
	home_source_match_id, home_source_outcome, home_source_group, home_group_position,
	away_source_match_id, away_source_outcome, away_source_group, away_group_position,
	match_time, status, home_score, away_score, manual_lock, created_at`

func (r *postgresMatchRepository) scanMatch(rowScanner interface{ Scan(...interface{}) error }) (*models.Match, error) {
	m := &models.Match{}
	err := rowScanner.Scan(
		&m.ID,
		&m.TournamentID,
		&m.Phase,
		&m.BracketPos,
		&m.GroupName,
		&m.HomeTeamID,
		&m.AwayTeamID,
		&m.HomeSlot.SourceMatchID,
		&m.HomeSlot.Outcome,
		&m.HomeSlot.SourceGroup,
		&m.HomeSlot.GroupPosition,
		&m.AwaySlot.SourceMatchID,
		&m.AwaySlot.Outcome,
		&m.AwaySlot.SourceGroup,
		&m.AwaySlot.GroupPosition,
		&m.MatchTime,
		&m.Status,
		&m.HomeScore,
		&m.AwayScore,
		&m.ManualLock,
		&m.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}
	return m, nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches
			(tournament_id, phase, bracket_pos, group_name,
			 home_team_id, away_team_id,
			 home_source_match_id, home_source_outcome, home_source_group, home_group_position,
			 away_source_match_id, away_source_outcome, away_source_group, away_group_position,
			 match_time, status, manual_lock)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		match.TournamentID,
		match.Phase,
		match.BracketPos,
		match.GroupName,
		match.HomeTeamID,
		match.AwayTeamID,
		match.HomeSlot.SourceMatchID,
		match.HomeSlot.Outcome,
		match.HomeSlot.SourceGroup,
		match.HomeSlot.GroupPosition,
		match.AwaySlot.SourceMatchID,
		match.AwaySlot.Outcome,
		match.AwaySlot.SourceGroup,
		match.AwaySlot.GroupPosition,
		match.MatchTime,
		match.Status,
		match.ManualLock,
	).Scan(&match.ID, &match.CreatedAt)

	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int, forUpdate bool) (*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return r.scanMatch(executor.QueryRowContext(ctx, query, id))
}

func (r *postgresMatchRepository) queryMatches(ctx context.Context, executor SQLExecutor, query string, args ...interface{}) ([]*models.Match, error) {
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := r.scanMatch(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	return matches, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, phase *models.Phase, status *models.MatchStatus) ([]*models.Match, error) {
	executor := r.getExecutor(exec)

	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1`)

	args := []interface{}{tournamentID}
	placeholderIndex := 2

	if phase != nil {
		queryBuilder.WriteString(" AND phase = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *phase)
		placeholderIndex++
	}
	if status != nil {
		queryBuilder.WriteString(" AND status = $")
		queryBuilder.WriteString(strconv.Itoa(placeholderIndex))
		args = append(args, *status)
	}
	queryBuilder.WriteString(" ORDER BY bracket_pos ASC, id ASC")

	return r.queryMatches(ctx, executor, queryBuilder.String(), args...)
}

// ListGroupMatches orders by id so concurrent resolutions of the same group
// acquire their row locks in a consistent order.
func (r *postgresMatchRepository) ListGroupMatches(ctx context.Context, exec SQLExecutor, tournamentID int, group string, forUpdate bool) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1 AND group_name = $2 ORDER BY id ASC`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return r.queryMatches(ctx, executor, query, tournamentID, group)
}

func (r *postgresMatchRepository) ListDependentsOfMatch(ctx context.Context, exec SQLExecutor, sourceMatchID int) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + matchColumns + ` FROM matches
		WHERE home_source_match_id = $1 OR away_source_match_id = $1
		ORDER BY id ASC`
	return r.queryMatches(ctx, executor, query, sourceMatchID)
}

func (r *postgresMatchRepository) ListDependentsOfGroup(ctx context.Context, exec SQLExecutor, tournamentID int, group string) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + matchColumns + ` FROM matches
		WHERE tournament_id = $1 AND (home_source_group = $2 OR away_source_group = $2)
		ORDER BY id ASC`
	return r.queryMatches(ctx, executor, query, tournamentID, group)
}

func (r *postgresMatchRepository) UpdateResult(ctx context.Context, exec SQLExecutor, id int, homeScore, awayScore *int, status models.MatchStatus) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET home_score = $1, away_score = $2, status = $3 WHERE id = $4`
	result, err := executor.ExecContext(ctx, query, homeScore, awayScore, status, id)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) UpdateSlotTeam(ctx context.Context, exec SQLExecutor, matchID int, side models.Side, teamID *int) error {
	executor := r.getExecutor(exec)
	column := "home_team_id"
	if side == models.SideAway {
		column = "away_team_id"
	}
	query := `UPDATE matches SET ` + column + ` = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, teamID, matchID)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// UpdateSlotSource backfills a knockout dependency edge once the real DB id
// of the source match is known (fixture seeding runs in two passes).
func (r *postgresMatchRepository) UpdateSlotSource(ctx context.Context, exec SQLExecutor, matchID int, side models.Side, sourceMatchID int) error {
	executor := r.getExecutor(exec)
	column := "home_source_match_id"
	if side == models.SideAway {
		column = "away_source_match_id"
	}
	query := `UPDATE matches SET ` + column + ` = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, sourceMatchID, matchID)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) SetManualLock(ctx context.Context, exec SQLExecutor, id int, locked bool) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET manual_lock = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, locked, id)
	if err != nil {
		return fmt.Errorf("failed to set manual lock on match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) CountNonTerminal(ctx context.Context, exec SQLExecutor, tournamentID int, phase models.Phase) (int, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT COUNT(*) FROM matches
		WHERE tournament_id = $1 AND phase = $2 AND status NOT IN ($3, $4)`
	var count int
	err := executor.QueryRowContext(ctx, query, tournamentID, phase, models.MatchStatusFinished, models.MatchStatusCancelled).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open matches for tournament %d phase %s: %w", tournamentID, phase, err)
	}
	return count, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Constraint {
		case "matches_tournament_id_fkey":
			return ErrMatchTournamentInvalid
		case "matches_home_team_id_fkey", "matches_away_team_id_fkey":
			return ErrMatchTeamInvalid
		}
	}
	return err
}
