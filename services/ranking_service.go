package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/scorekeep/prediction-league/models"
	"github.com/scorekeep/prediction-league/repositories"
	"golang.org/x/sync/errgroup"
)

// RankingService owns the global consolidation and the leaderboard reads.
//
// A user may hold several predictions for the same match (one per league
// plus an optional global-only row). The tournament-wide ranking counts the
// match once: the row with the highest points wins, and a joker row is
// halved back to its raw value so league jokers do not inflate the shared
// leaderboard.
type RankingService interface {
	// ConsolidateUserMatch re-derives the single GlobalRankingEntry for
	// (user, match) from the current prediction rows. Idempotent; called
	// whenever any constituent prediction's points change.
	ConsolidateUserMatch(ctx context.Context, exec repositories.SQLExecutor, tournamentID, userID, matchID int) error

	GetLeagueRanking(ctx context.Context, leagueID int) ([]*models.RankingRow, error)
	GetGlobalRanking(ctx context.Context, tournamentID int) ([]*models.RankingRow, error)
	GetTournamentLeaderboard(ctx context.Context, tournamentID int) (*TournamentLeaderboard, error)
}

// TournamentLeaderboard bundles the global ranking with the phase states
// for the tournament dashboard.
type TournamentLeaderboard struct {
	Tournament *models.Tournament    `json:"tournament"`
	Phases     []*models.PhaseStatus `json:"phases"`
	Ranking    []*models.RankingRow  `json:"ranking"`
	EntryCount int                   `json:"entry_count"`
}

type rankingService struct {
	tournamentRepo repositories.TournamentRepository
	phaseRepo      repositories.PhaseStatusRepository
	predictionRepo repositories.PredictionRepository
	leagueRepo     repositories.LeagueRepository
	rankingRepo    repositories.GlobalRankingRepository
}

func NewRankingService(
	tournamentRepo repositories.TournamentRepository,
	phaseRepo repositories.PhaseStatusRepository,
	predictionRepo repositories.PredictionRepository,
	leagueRepo repositories.LeagueRepository,
	rankingRepo repositories.GlobalRankingRepository,
) RankingService {
	return &rankingService{
		tournamentRepo: tournamentRepo,
		phaseRepo:      phaseRepo,
		predictionRepo: predictionRepo,
		leagueRepo:     leagueRepo,
		rankingRepo:    rankingRepo,
	}
}

func (s *rankingService) ConsolidateUserMatch(ctx context.Context, exec repositories.SQLExecutor, tournamentID, userID, matchID int) error {
	rows, err := s.predictionRepo.ListByUserAndMatch(ctx, exec, userID, matchID)
	if err != nil {
		return fmt.Errorf("failed to load predictions of user %d for match %d: %w", userID, matchID, err)
	}

	var best *models.Prediction
	for _, p := range rows {
		if p.Points == nil {
			continue
		}
		if best == nil || *p.Points > *best.Points {
			best = p
		}
	}

	if best == nil {
		// No scored prediction left; the projection must not keep an entry
		// the source rows no longer support.
		return s.rankingRepo.DeleteByUserAndMatch(ctx, exec, userID, matchID)
	}

	points := *best.Points
	if best.Joker && best.LeagueScoped() {
		points /= JokerMultiplier
	}

	entry := &models.GlobalRankingEntry{
		TournamentID:       tournamentID,
		UserID:             userID,
		MatchID:            matchID,
		Points:             points,
		SourcePredictionID: best.ID,
	}
	return s.rankingRepo.Upsert(ctx, exec, entry)
}

func (s *rankingService) GetLeagueRanking(ctx context.Context, leagueID int) ([]*models.RankingRow, error) {
	if _, err := s.leagueRepo.GetByID(ctx, nil, leagueID); err != nil {
		if errors.Is(err, repositories.ErrLeagueNotFound) {
			return nil, fmt.Errorf("%w: league %d", ErrLeagueNotFound, leagueID)
		}
		return nil, err
	}
	rows, err := s.predictionRepo.LeagueRanking(ctx, nil, leagueID)
	if err != nil {
		return nil, err
	}
	assignRanks(rows)
	return rows, nil
}

func (s *rankingService) GetGlobalRanking(ctx context.Context, tournamentID int) ([]*models.RankingRow, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("%w: tournament %d", ErrTournamentNotFound, tournamentID)
		}
		return nil, err
	}
	rows, err := s.rankingRepo.GlobalRanking(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	assignRanks(rows)
	return rows, nil
}

func (s *rankingService) GetTournamentLeaderboard(ctx context.Context, tournamentID int) (*TournamentLeaderboard, error) {
	leaderboard := &TournamentLeaderboard{}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		tournament, err := s.tournamentRepo.GetByID(gCtx, nil, tournamentID)
		if err != nil {
			if errors.Is(err, repositories.ErrTournamentNotFound) {
				return fmt.Errorf("%w: tournament %d", ErrTournamentNotFound, tournamentID)
			}
			return err
		}
		leaderboard.Tournament = tournament
		return nil
	})
	g.Go(func() error {
		phases, err := s.phaseRepo.ListByTournament(gCtx, nil, tournamentID)
		if err != nil {
			return err
		}
		leaderboard.Phases = phases
		return nil
	})
	g.Go(func() error {
		rows, err := s.rankingRepo.GlobalRanking(gCtx, nil, tournamentID)
		if err != nil {
			return err
		}
		assignRanks(rows)
		leaderboard.Ranking = rows
		return nil
	})
	g.Go(func() error {
		count, err := s.rankingRepo.CountByTournament(gCtx, nil, tournamentID)
		if err != nil {
			return err
		}
		leaderboard.EntryCount = count
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return leaderboard, nil
}

// assignRanks applies standard competition ranking: equal totals share a
// rank, the next distinct total skips the tied positions.
func assignRanks(rows []*models.RankingRow) {
	for i, row := range rows {
		if i > 0 && row.TotalPoints == rows[i-1].TotalPoints {
			row.Rank = rows[i-1].Rank
			continue
		}
		row.Rank = i + 1
	}
}
