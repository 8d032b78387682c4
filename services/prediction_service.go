package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/itbasis/go-clock"
	"github.com/scorekeep/prediction-league/models"
	"github.com/scorekeep/prediction-league/repositories"
)

// LeagueMembershipChecker is the contract consumed from the external
// league/membership service. It is not implemented here; the league service
// also enforces the one-active-joker-per-tournament allowance.
type LeagueMembershipChecker interface {
	IsUserActiveParticipant(ctx context.Context, userID, leagueID int) (bool, error)
}

// PermissiveMembership accepts every user. Stand-in wiring for deployments
// where the league service runs in the same trust boundary and has already
// vetted the request.
type PermissiveMembership struct{}

func (PermissiveMembership) IsUserActiveParticipant(ctx context.Context, userID, leagueID int) (bool, error) {
	return true, nil
}

type SubmitPredictionInput struct {
	UserID    int  `json:"-"`
	MatchID   int  `json:"match_id"`
	LeagueID  *int `json:"league_id,omitempty"`
	HomeGoals int  `json:"home_goals"`
	AwayGoals int  `json:"away_goals"`
	Joker     bool `json:"joker"`
}

// PredictionService accepts and edits predictions while the match is still
// open. The same upsert path serves both; predicted scores freeze at lock
// time and points stay nil until the match finishes.
type PredictionService interface {
	SubmitPrediction(ctx context.Context, input SubmitPredictionInput) (*models.Prediction, error)
	ListUserTournamentPredictions(ctx context.Context, userID, tournamentID int) ([]*models.Prediction, error)
}

type predictionService struct {
	db             *sql.DB
	matchRepo      repositories.MatchRepository
	phaseRepo      repositories.PhaseStatusRepository
	predictionRepo repositories.PredictionRepository
	leagueRepo     repositories.LeagueRepository
	membership     LeagueMembershipChecker
	clock          clock.Clock
	lockBuffer     time.Duration
	logger         *slog.Logger
}

func NewPredictionService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	phaseRepo repositories.PhaseStatusRepository,
	predictionRepo repositories.PredictionRepository,
	leagueRepo repositories.LeagueRepository,
	membership LeagueMembershipChecker,
	clk clock.Clock,
	lockBuffer time.Duration,
	logger *slog.Logger,
) PredictionService {
	if lockBuffer <= 0 {
		lockBuffer = DefaultLockBuffer
	}
	return &predictionService{
		db:             db,
		matchRepo:      matchRepo,
		phaseRepo:      phaseRepo,
		predictionRepo: predictionRepo,
		leagueRepo:     leagueRepo,
		membership:     membership,
		clock:          clk,
		lockBuffer:     lockBuffer,
		logger:         logger,
	}
}

func (s *predictionService) SubmitPrediction(ctx context.Context, input SubmitPredictionInput) (*models.Prediction, error) {
	if input.HomeGoals < 0 || input.AwayGoals < 0 {
		return nil, fmt.Errorf("%w: predicted scores must be non-negative", ErrValidationFailed)
	}

	prediction := &models.Prediction{
		UserID:    input.UserID,
		MatchID:   input.MatchID,
		LeagueID:  input.LeagueID,
		HomeGoals: input.HomeGoals,
		AwayGoals: input.AwayGoals,
		Joker:     input.Joker,
	}

	err := runInTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		// The row lock closes the race against a result landing for the same
		// match: either the result cascade sees this prediction, or this
		// write observes the lock and is rejected.
		match, err := s.matchRepo.GetByID(ctx, tx, input.MatchID, true)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return fmt.Errorf("%w: match %d", ErrMatchNotFound, input.MatchID)
			}
			return err
		}

		if !match.SlotsResolved() {
			return fmt.Errorf("%w: match %d", ErrMatchNotPredictable, match.ID)
		}

		phase, err := s.phaseRepo.GetByTournamentAndPhase(ctx, tx, match.TournamentID, match.Phase, false)
		if err != nil {
			return err
		}
		if !phase.Open() {
			return fmt.Errorf("%w: phase %s of tournament %d", ErrPhaseLocked, match.Phase, match.TournamentID)
		}

		if MatchLocked(match, s.clock.Now(), s.lockBuffer) {
			return fmt.Errorf("%w: match %d", ErrLockViolation, match.ID)
		}

		if input.LeagueID != nil {
			league, err := s.leagueRepo.GetByID(ctx, tx, *input.LeagueID)
			if err != nil {
				if errors.Is(err, repositories.ErrLeagueNotFound) {
					return fmt.Errorf("%w: league %d", ErrLeagueNotFound, *input.LeagueID)
				}
				return err
			}
			if league.TournamentID != match.TournamentID {
				return fmt.Errorf("%w: league %d, match %d", ErrLeagueTournamentMismatch, league.ID, match.ID)
			}
			member, err := s.membership.IsUserActiveParticipant(ctx, input.UserID, *input.LeagueID)
			if err != nil {
				return fmt.Errorf("membership check failed for user %d league %d: %w", input.UserID, *input.LeagueID, err)
			}
			if !member {
				return fmt.Errorf("%w: user %d, league %d", ErrNotLeagueMember, input.UserID, *input.LeagueID)
			}
		}

		return s.predictionRepo.Upsert(ctx, tx, prediction)
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "prediction submitted",
		slog.Int("user_id", input.UserID),
		slog.Int("match_id", input.MatchID),
		slog.Bool("joker", input.Joker))
	return prediction, nil
}

func (s *predictionService) ListUserTournamentPredictions(ctx context.Context, userID, tournamentID int) ([]*models.Prediction, error) {
	return s.predictionRepo.ListByUserAndTournament(ctx, nil, userID, tournamentID)
}
