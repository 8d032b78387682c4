package services

import "errors"

// Shared sentinel errors, mapped to HTTP statuses in the handlers layer.
var (
	// Missing resources
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrPredictionNotFound = errors.New("prediction not found")
	ErrLeagueNotFound     = errors.New("league not found")
	ErrPhaseNotFound      = errors.New("phase not found")
	ErrTeamNotFound       = errors.New("team not found")

	// Contract violations
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrLockViolation          = errors.New("match is locked for predictions")
	ErrCyclicDependency       = errors.New("fixture dependency graph contains a cycle")
	ErrConsistencyViolation   = errors.New("data consistency violation")

	// Business rules
	ErrPhaseLocked              = errors.New("phase is not unlocked for predictions")
	ErrMatchNotPredictable      = errors.New("match slots are not resolved yet")
	ErrNotLeagueMember          = errors.New("user is not an active participant of the league")
	ErrTournamentImmutable      = errors.New("tournament fixtures already seeded")
	ErrValidationFailed         = errors.New("validation failed")
	ErrLeagueTournamentMismatch = errors.New("league does not belong to the match tournament")
)
