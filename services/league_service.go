package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/scorekeep/prediction-league/models"
	"github.com/scorekeep/prediction-league/repositories"
)

// LeagueService registers leagues as prediction scopes. The full league
// lifecycle (invites, membership) lives in the league service; only the
// scope records are kept here.
type LeagueService interface {
	CreateLeague(ctx context.Context, tournamentID int, name string) (*models.League, error)
	GetLeague(ctx context.Context, leagueID int) (*models.League, error)
	ListTournamentLeagues(ctx context.Context, tournamentID int) ([]*models.League, error)
}

type leagueService struct {
	leagueRepo     repositories.LeagueRepository
	tournamentRepo repositories.TournamentRepository
	logger         *slog.Logger
}

func NewLeagueService(
	leagueRepo repositories.LeagueRepository,
	tournamentRepo repositories.TournamentRepository,
	logger *slog.Logger,
) LeagueService {
	return &leagueService{
		leagueRepo:     leagueRepo,
		tournamentRepo: tournamentRepo,
		logger:         logger,
	}
}

func (s *leagueService) CreateLeague(ctx context.Context, tournamentID int, name string) (*models.League, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: league name is required", ErrValidationFailed)
	}
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("%w: tournament %d", ErrTournamentNotFound, tournamentID)
		}
		return nil, err
	}

	league := &models.League{TournamentID: tournamentID, Name: name}
	if err := s.leagueRepo.Create(ctx, nil, league); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "league created",
		slog.Int("league_id", league.ID),
		slog.Int("tournament_id", tournamentID))
	return league, nil
}

func (s *leagueService) GetLeague(ctx context.Context, leagueID int) (*models.League, error) {
	league, err := s.leagueRepo.GetByID(ctx, nil, leagueID)
	if err != nil {
		if errors.Is(err, repositories.ErrLeagueNotFound) {
			return nil, fmt.Errorf("%w: league %d", ErrLeagueNotFound, leagueID)
		}
		return nil, err
	}
	return league, nil
}

func (s *leagueService) ListTournamentLeagues(ctx context.Context, tournamentID int) ([]*models.League, error) {
	return s.leagueRepo.ListByTournament(ctx, nil, tournamentID)
}
