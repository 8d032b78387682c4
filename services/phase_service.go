package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/itbasis/go-clock"
	"github.com/scorekeep/prediction-league/models"
	"github.com/scorekeep/prediction-league/repositories"
)

// PhaseService is the per-(tournament, phase) unlock state machine. A phase
// is LOCKED until its predecessor has completed, UNLOCKED after an explicit
// unlock, and COMPLETE once every match reached a terminal status. The gate
// never skips a phase and never regresses a completed one on its own;
// ReopenPhase is the only way back and does not cascade.
type PhaseService interface {
	// Recalculate refreshes the completion flag of a phase after a match of
	// that phase reached a terminal status. Returns the fresh status and
	// whether the phase completed on this call.
	Recalculate(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, phase models.Phase) (*models.PhaseStatus, bool, error)

	// UnlockNext unlocks the successor of a completed phase, if there is
	// one and it is still locked. Used by the result cascade.
	UnlockNext(ctx context.Context, exec repositories.SQLExecutor, completed *models.PhaseStatus) (*models.PhaseStatus, error)

	UnlockPhase(ctx context.Context, tournamentID int, phase models.Phase) (*models.PhaseStatus, error)
	ReopenPhase(ctx context.Context, tournamentID int, phase models.Phase) (*models.PhaseStatus, error)
	SetPhaseLock(ctx context.Context, tournamentID int, phase models.Phase, locked bool) (*models.PhaseStatus, error)
	ListPhases(ctx context.Context, tournamentID int) ([]*models.PhaseStatus, error)
}

type phaseService struct {
	phaseRepo repositories.PhaseStatusRepository
	matchRepo repositories.MatchRepository
	clock     clock.Clock
	logger    *slog.Logger
}

func NewPhaseService(
	phaseRepo repositories.PhaseStatusRepository,
	matchRepo repositories.MatchRepository,
	clk clock.Clock,
	logger *slog.Logger,
) PhaseService {
	return &phaseService{
		phaseRepo: phaseRepo,
		matchRepo: matchRepo,
		clock:     clk,
		logger:    logger,
	}
}

func (s *phaseService) Recalculate(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, phase models.Phase) (*models.PhaseStatus, bool, error) {
	ps, err := s.phaseRepo.GetByTournamentAndPhase(ctx, exec, tournamentID, phase, true)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseStatusNotFound) {
			return nil, false, fmt.Errorf("%w: phase %s of tournament %d", ErrPhaseNotFound, phase, tournamentID)
		}
		return nil, false, err
	}

	open, err := s.matchRepo.CountNonTerminal(ctx, exec, tournamentID, phase)
	if err != nil {
		return nil, false, err
	}
	allDone := open == 0

	// A phase that was already marked complete stays complete even when a
	// score correction reopens a match underneath it. Regression is an
	// explicit admin decision (ReopenPhase), never a side effect.
	if !allDone || ps.AllMatchesCompleted {
		return ps, false, nil
	}

	ps.AllMatchesCompleted = true
	if err := s.phaseRepo.Update(ctx, exec, ps); err != nil {
		return nil, false, err
	}
	s.logger.InfoContext(ctx, "phase completed",
		slog.Int("tournament_id", tournamentID),
		slog.String("phase", string(phase)))
	return ps, true, nil
}

func (s *phaseService) UnlockNext(ctx context.Context, exec repositories.SQLExecutor, completed *models.PhaseStatus) (*models.PhaseStatus, error) {
	next, err := s.phaseRepo.GetByTournamentAndPosition(ctx, exec, completed.TournamentID, completed.Position+1)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseStatusNotFound) {
			return nil, nil // completed the last phase
		}
		return nil, err
	}
	if next.Unlocked {
		return next, nil
	}
	return s.unlock(ctx, exec, next, completed)
}

func (s *phaseService) UnlockPhase(ctx context.Context, tournamentID int, phase models.Phase) (*models.PhaseStatus, error) {
	ps, err := s.phaseRepo.GetByTournamentAndPhase(ctx, nil, tournamentID, phase, false)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseStatusNotFound) {
			return nil, fmt.Errorf("%w: phase %s of tournament %d", ErrPhaseNotFound, phase, tournamentID)
		}
		return nil, err
	}
	if ps.Unlocked {
		return ps, nil
	}

	var predecessor *models.PhaseStatus
	if ps.Position > 0 {
		predecessor, err = s.phaseRepo.GetByTournamentAndPosition(ctx, nil, tournamentID, ps.Position-1)
		if err != nil {
			return nil, err
		}
	}
	return s.unlock(ctx, nil, ps, predecessor)
}

// unlock performs the LOCKED -> UNLOCKED transition. The predecessor (nil
// only for the first phase) must be complete; phases are never skipped.
func (s *phaseService) unlock(ctx context.Context, exec repositories.SQLExecutor, ps, predecessor *models.PhaseStatus) (*models.PhaseStatus, error) {
	if predecessor != nil && !predecessor.AllMatchesCompleted {
		return nil, fmt.Errorf("%w: cannot unlock phase %s before %s is complete",
			ErrInvalidStateTransition, ps.Phase, predecessor.Phase)
	}

	now := s.clock.Now().UTC()
	ps.Unlocked = true
	ps.UnlockedAt = &now
	if err := s.phaseRepo.Update(ctx, exec, ps); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "phase unlocked",
		slog.Int("tournament_id", ps.TournamentID),
		slog.String("phase", string(ps.Phase)))
	return ps, nil
}

func (s *phaseService) ReopenPhase(ctx context.Context, tournamentID int, phase models.Phase) (*models.PhaseStatus, error) {
	ps, err := s.phaseRepo.GetByTournamentAndPhase(ctx, nil, tournamentID, phase, false)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseStatusNotFound) {
			return nil, fmt.Errorf("%w: phase %s of tournament %d", ErrPhaseNotFound, phase, tournamentID)
		}
		return nil, err
	}
	if !ps.AllMatchesCompleted {
		return nil, fmt.Errorf("%w: phase %s is not complete", ErrInvalidStateTransition, phase)
	}

	ps.AllMatchesCompleted = false
	if err := s.phaseRepo.Update(ctx, nil, ps); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "phase reopened",
		slog.Int("tournament_id", tournamentID),
		slog.String("phase", string(phase)))
	return ps, nil
}

func (s *phaseService) SetPhaseLock(ctx context.Context, tournamentID int, phase models.Phase, locked bool) (*models.PhaseStatus, error) {
	ps, err := s.phaseRepo.GetByTournamentAndPhase(ctx, nil, tournamentID, phase, false)
	if err != nil {
		if errors.Is(err, repositories.ErrPhaseStatusNotFound) {
			return nil, fmt.Errorf("%w: phase %s of tournament %d", ErrPhaseNotFound, phase, tournamentID)
		}
		return nil, err
	}
	if ps.ManuallyLocked == locked {
		return ps, nil
	}
	ps.ManuallyLocked = locked
	if err := s.phaseRepo.Update(ctx, nil, ps); err != nil {
		return nil, err
	}
	return ps, nil
}

func (s *phaseService) ListPhases(ctx context.Context, tournamentID int) ([]*models.PhaseStatus, error) {
	statuses, err := s.phaseRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, fmt.Errorf("%w: tournament %d", ErrTournamentNotFound, tournamentID)
	}
	return statuses, nil
}
