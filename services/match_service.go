package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/scorekeep/prediction-league/live"
	"github.com/scorekeep/prediction-league/models"
	"github.com/scorekeep/prediction-league/repositories"
)

// DefaultLockBuffer is how long before kick-off a match stops accepting
// predictions.
const DefaultLockBuffer = 10 * time.Minute

// MatchLocked reports whether predictions may no longer be created or
// edited for the match. Pure function: terminal status, the admin's manual
// lock, or the lock buffer before kick-off all lock the match, regardless
// of whether the status has flipped to live yet.
func MatchLocked(m *models.Match, now time.Time, lockBuffer time.Duration) bool {
	if m.Status.Terminal() {
		return true
	}
	if m.ManualLock {
		return true
	}
	return !now.Before(m.MatchTime.Add(-lockBuffer))
}

// MatchService owns result ingestion and the full cascade it triggers:
// match store mutation, placeholder resolution, phase gate re-evaluation,
// prediction scoring and global consolidation run as one transaction. A
// partially applied cascade never commits.
type MatchService interface {
	RecordResult(ctx context.Context, matchID, homeScore, awayScore int) (*models.Match, error)
	CorrectResult(ctx context.Context, matchID, homeScore, awayScore int) (*models.Match, error)
	SetManualLock(ctx context.Context, matchID int, locked bool) (*models.Match, error)
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	ListTournamentMatches(ctx context.Context, tournamentID int, phase *models.Phase) ([]*models.Match, error)
}

type matchService struct {
	db             *sql.DB
	matchRepo      repositories.MatchRepository
	predictionRepo repositories.PredictionRepository
	resolver       ResolverService
	phases         PhaseService
	ranking        RankingService
	hub            *live.Hub
	logger         *slog.Logger
}

func NewMatchService(
	db *sql.DB,
	matchRepo repositories.MatchRepository,
	predictionRepo repositories.PredictionRepository,
	resolver ResolverService,
	phases PhaseService,
	ranking RankingService,
	hub *live.Hub,
	logger *slog.Logger,
) MatchService {
	return &matchService{
		db:             db,
		matchRepo:      matchRepo,
		predictionRepo: predictionRepo,
		resolver:       resolver,
		phases:         phases,
		ranking:        ranking,
		hub:            hub,
		logger:         logger,
	}
}

// cascadeOutcome collects what changed inside the transaction so the
// websocket broadcast can happen after the commit.
type cascadeOutcome struct {
	match          *models.Match
	updatedMatches []*models.Match
	unlockedPhase  *models.PhaseStatus
	affectedUsers  []int
}

func (s *matchService) RecordResult(ctx context.Context, matchID, homeScore, awayScore int) (*models.Match, error) {
	if homeScore < 0 || awayScore < 0 {
		return nil, fmt.Errorf("%w: scores must be non-negative", ErrValidationFailed)
	}

	var outcome *cascadeOutcome
	err := runInTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		// Row lock keyed by match id: concurrent updates for the same match
		// and racing prediction writes serialize here.
		match, err := s.matchRepo.GetByID(ctx, tx, matchID, true)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return fmt.Errorf("%w: match %d", ErrMatchNotFound, matchID)
			}
			return err
		}
		if match.Status.Terminal() {
			return fmt.Errorf("%w: cannot record result on %s match %d", ErrInvalidStateTransition, match.Status, matchID)
		}
		if !match.SlotsResolved() {
			return fmt.Errorf("%w: match %d still has unresolved slots", ErrConsistencyViolation, matchID)
		}

		if err := s.matchRepo.UpdateResult(ctx, tx, matchID, &homeScore, &awayScore, models.MatchStatusFinished); err != nil {
			return err
		}
		match.HomeScore = &homeScore
		match.AwayScore = &awayScore
		match.Status = models.MatchStatusFinished

		outcome, err = s.runCascade(ctx, tx, match)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "result recorded",
		slog.Int("match_id", matchID),
		slog.Int("home_score", homeScore),
		slog.Int("away_score", awayScore))
	s.broadcast(outcome)
	return outcome.match, nil
}

func (s *matchService) CorrectResult(ctx context.Context, matchID, homeScore, awayScore int) (*models.Match, error) {
	if homeScore < 0 || awayScore < 0 {
		return nil, fmt.Errorf("%w: scores must be non-negative", ErrValidationFailed)
	}

	var outcome *cascadeOutcome
	var noop bool
	err := runInTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		match, err := s.matchRepo.GetByID(ctx, tx, matchID, true)
		if err != nil {
			if errors.Is(err, repositories.ErrMatchNotFound) {
				return fmt.Errorf("%w: match %d", ErrMatchNotFound, matchID)
			}
			return err
		}
		if match.Status != models.MatchStatusFinished {
			return fmt.Errorf("%w: can only correct a finished match, match %d is %s", ErrInvalidStateTransition, matchID, match.Status)
		}

		// Correcting to the score already on record is a no-op, not an error.
		if match.HomeScore != nil && *match.HomeScore == homeScore &&
			match.AwayScore != nil && *match.AwayScore == awayScore {
			noop = true
			outcome = &cascadeOutcome{match: match}
			return nil
		}

		if err := s.matchRepo.UpdateResult(ctx, tx, matchID, &homeScore, &awayScore, models.MatchStatusFinished); err != nil {
			return err
		}
		match.HomeScore = &homeScore
		match.AwayScore = &awayScore

		outcome, err = s.runCascade(ctx, tx, match)
		return err
	})
	if err != nil {
		return nil, err
	}
	if noop {
		return outcome.match, nil
	}

	s.logger.InfoContext(ctx, "result corrected",
		slog.Int("match_id", matchID),
		slog.Int("home_score", homeScore),
		slog.Int("away_score", awayScore))
	s.broadcast(outcome)
	return outcome.match, nil
}

// runCascade executes resolver, phase gate, scoring and consolidation for a
// match that just got (or changed) a final score. All writes go through the
// supplied transaction.
func (s *matchService) runCascade(ctx context.Context, tx *sql.Tx, match *models.Match) (*cascadeOutcome, error) {
	outcome := &cascadeOutcome{match: match}

	updated, err := s.resolver.ResolveDependents(ctx, tx, match)
	if err != nil {
		return nil, err
	}
	outcome.updatedMatches = updated

	ps, completed, err := s.phases.Recalculate(ctx, tx, match.TournamentID, match.Phase)
	if err != nil {
		return nil, err
	}
	if completed {
		unlocked, err := s.phases.UnlockNext(ctx, tx, ps)
		if err != nil {
			return nil, err
		}
		outcome.unlockedPhase = unlocked
	}

	predictions, err := s.predictionRepo.ListByMatch(ctx, tx, match.ID)
	if err != nil {
		return nil, err
	}

	users := make(map[int]struct{})
	for _, p := range predictions {
		points, err := ScorePrediction(p, match)
		if err != nil {
			return nil, err
		}
		if err := s.predictionRepo.UpdatePoints(ctx, tx, p.ID, points); err != nil {
			return nil, err
		}
		p.Points = &points
		users[p.UserID] = struct{}{}
	}

	outcome.affectedUsers = make([]int, 0, len(users))
	for userID := range users {
		outcome.affectedUsers = append(outcome.affectedUsers, userID)
	}
	sort.Ints(outcome.affectedUsers)

	for _, userID := range outcome.affectedUsers {
		if err := s.ranking.ConsolidateUserMatch(ctx, tx, match.TournamentID, userID, match.ID); err != nil {
			return nil, err
		}
	}
	return outcome, nil
}

func (s *matchService) SetManualLock(ctx context.Context, matchID int, locked bool) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID, false)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, fmt.Errorf("%w: match %d", ErrMatchNotFound, matchID)
		}
		return nil, err
	}
	if match.ManualLock == locked {
		return match, nil
	}
	if err := s.matchRepo.SetManualLock(ctx, nil, matchID, locked); err != nil {
		return nil, err
	}
	match.ManualLock = locked
	s.logger.InfoContext(ctx, "manual lock changed",
		slog.Int("match_id", matchID),
		slog.Bool("locked", locked))
	return match, nil
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, nil, matchID, false)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, fmt.Errorf("%w: match %d", ErrMatchNotFound, matchID)
		}
		return nil, err
	}
	return match, nil
}

func (s *matchService) ListTournamentMatches(ctx context.Context, tournamentID int, phase *models.Phase) ([]*models.Match, error) {
	matches, err := s.matchRepo.ListByTournament(ctx, nil, tournamentID, phase, nil)
	if err != nil {
		return nil, err
	}
	return matches, nil
}

func (s *matchService) broadcast(outcome *cascadeOutcome) {
	if s.hub == nil || outcome == nil {
		return
	}
	room := live.TournamentRoom(outcome.match.TournamentID)

	s.hub.BroadcastToRoom(room, live.Message{
		Type:    live.EventMatchResult,
		Payload: outcome.match,
		RoomID:  room,
	})
	if len(outcome.updatedMatches) > 0 {
		s.hub.BroadcastToRoom(room, live.Message{
			Type:    live.EventBracketUpdated,
			Payload: outcome.updatedMatches,
			RoomID:  room,
		})
	}
	if outcome.unlockedPhase != nil {
		s.hub.BroadcastToRoom(room, live.Message{
			Type:    live.EventPhaseUnlocked,
			Payload: outcome.unlockedPhase,
			RoomID:  room,
		})
	}
	if len(outcome.affectedUsers) > 0 {
		s.hub.BroadcastToRoom(room, live.Message{
			Type:    live.EventRankingUpdated,
			Payload: map[string]interface{}{"user_ids": outcome.affectedUsers},
			RoomID:  room,
		})
	}
}
