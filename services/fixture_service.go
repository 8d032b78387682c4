package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/itbasis/go-clock"
	"github.com/scorekeep/prediction-league/models"
	"github.com/scorekeep/prediction-league/repositories"
)

// TeamSeed describes one team of the fixture set. Group is the group-stage
// group the team plays in, if any.
type TeamSeed struct {
	Name  string  `json:"name"`
	Code  *string `json:"code,omitempty"`
	Group *string `json:"group,omitempty"`
}

// SlotSeed describes one side of a seeded match: either a concrete team
// (index into Teams), a knockout edge (index into Matches plus winner or
// loser), or a group-standing edge (group name plus 1-based position).
type SlotSeed struct {
	Team          *int                `json:"team,omitempty"`
	SourceMatch   *int                `json:"source_match,omitempty"`
	Outcome       *models.SlotOutcome `json:"outcome,omitempty"`
	Group         *string             `json:"group,omitempty"`
	GroupPosition *int                `json:"group_position,omitempty"`
}

type MatchSeed struct {
	Phase      models.Phase `json:"phase"`
	BracketPos int          `json:"bracket_pos"`
	Group      *string      `json:"group,omitempty"`
	KickOff    time.Time    `json:"kick_off"`
	Home       SlotSeed     `json:"home"`
	Away       SlotSeed     `json:"away"`
}

// FixtureSeed is the complete fixture set of a tournament, submitted once.
type FixtureSeed struct {
	Code    string         `json:"code"`
	Name    string         `json:"name"`
	Phases  []models.Phase `json:"phases"`
	Teams   []TeamSeed     `json:"teams"`
	Matches []MatchSeed    `json:"matches"`
}

// FixtureService seeds tournaments. The placeholder dependency graph is
// built and validated for acyclicity before anything is persisted; a seed
// that fails validation leaves no rows behind.
type FixtureService interface {
	SeedTournament(ctx context.Context, seed FixtureSeed) (*models.Tournament, error)
	GetTournamentBracket(ctx context.Context, tournamentID int) (*models.Tournament, error)
	ListTournaments(ctx context.Context) ([]*models.Tournament, error)
}

type fixtureService struct {
	db             *sql.DB
	tournamentRepo repositories.TournamentRepository
	teamRepo       repositories.TeamRepository
	matchRepo      repositories.MatchRepository
	phaseRepo      repositories.PhaseStatusRepository
	clock          clock.Clock
	logger         *slog.Logger
}

func NewFixtureService(
	db *sql.DB,
	tournamentRepo repositories.TournamentRepository,
	teamRepo repositories.TeamRepository,
	matchRepo repositories.MatchRepository,
	phaseRepo repositories.PhaseStatusRepository,
	clk clock.Clock,
	logger *slog.Logger,
) FixtureService {
	return &fixtureService{
		db:             db,
		tournamentRepo: tournamentRepo,
		teamRepo:       teamRepo,
		matchRepo:      matchRepo,
		phaseRepo:      phaseRepo,
		clock:          clk,
		logger:         logger,
	}
}

func (s *fixtureService) SeedTournament(ctx context.Context, seed FixtureSeed) (*models.Tournament, error) {
	if err := validateFixtureSeed(seed); err != nil {
		return nil, err
	}

	if existing, err := s.tournamentRepo.GetByCode(ctx, nil, seed.Code); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: tournament %q", ErrTournamentImmutable, seed.Code)
	} else if err != nil && !errors.Is(err, repositories.ErrTournamentNotFound) {
		return nil, err
	}

	tournament := &models.Tournament{Code: seed.Code, Name: seed.Name}

	err := runInTx(ctx, s.db, s.logger, func(tx *sql.Tx) error {
		if err := s.tournamentRepo.Create(ctx, tx, tournament); err != nil {
			if errors.Is(err, repositories.ErrTournamentCodeConflict) {
				return fmt.Errorf("%w: tournament %q", ErrTournamentImmutable, seed.Code)
			}
			return err
		}

		teamIDs := make([]int, len(seed.Teams))
		for i, ts := range seed.Teams {
			team := &models.Team{
				TournamentID: tournament.ID,
				Name:         ts.Name,
				Code:         ts.Code,
				GroupName:    ts.Group,
			}
			if err := s.teamRepo.Create(ctx, tx, team); err != nil {
				return err
			}
			teamIDs[i] = team.ID
		}

		now := s.clock.Now().UTC()
		for i, phase := range seed.Phases {
			ps := &models.PhaseStatus{
				TournamentID: tournament.ID,
				Phase:        phase,
				Position:     i,
			}
			if i == 0 {
				ps.Unlocked = true
				ps.UnlockedAt = &now
			}
			if err := s.phaseRepo.Create(ctx, tx, ps); err != nil {
				return err
			}
			tournament.Phases = append(tournament.Phases, *ps)
		}

		// First pass creates every match; knockout edges still point at seed
		// indices, so the source match ids are backfilled in a second pass
		// once all real ids exist.
		matchIDs := make([]int, len(seed.Matches))
		created := make([]*models.Match, len(seed.Matches))
		for i, ms := range seed.Matches {
			match := &models.Match{
				TournamentID: tournament.ID,
				Phase:        ms.Phase,
				BracketPos:   ms.BracketPos,
				GroupName:    ms.Group,
				MatchTime:    ms.KickOff,
				Status:       models.MatchStatusScheduled,
			}
			applySlotSeed(&match.HomeTeamID, &match.HomeSlot, ms.Home, teamIDs)
			applySlotSeed(&match.AwayTeamID, &match.AwaySlot, ms.Away, teamIDs)

			if err := s.matchRepo.Create(ctx, tx, match); err != nil {
				return err
			}
			matchIDs[i] = match.ID
			created[i] = match
		}

		for i, ms := range seed.Matches {
			if ms.Home.SourceMatch != nil {
				sourceID := matchIDs[*ms.Home.SourceMatch]
				if err := s.matchRepo.UpdateSlotSource(ctx, tx, matchIDs[i], models.SideHome, sourceID); err != nil {
					return err
				}
				created[i].HomeSlot.SourceMatchID = &sourceID
			}
			if ms.Away.SourceMatch != nil {
				sourceID := matchIDs[*ms.Away.SourceMatch]
				if err := s.matchRepo.UpdateSlotSource(ctx, tx, matchIDs[i], models.SideAway, sourceID); err != nil {
					return err
				}
				created[i].AwaySlot.SourceMatchID = &sourceID
			}
		}

		for _, m := range created {
			tournament.Matches = append(tournament.Matches, *m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "tournament seeded",
		slog.String("code", tournament.Code),
		slog.Int("teams", len(seed.Teams)),
		slog.Int("matches", len(seed.Matches)))
	return tournament, nil
}

func applySlotSeed(teamID **int, slot *models.SlotRef, seed SlotSeed, teamIDs []int) {
	switch {
	case seed.Team != nil:
		id := teamIDs[*seed.Team]
		*teamID = &id
	case seed.SourceMatch != nil:
		// Source id backfilled in the second pass; the outcome is known now.
		slot.Outcome = seed.Outcome
	case seed.Group != nil:
		outcome := models.SlotGroupRank
		slot.Outcome = &outcome
		slot.SourceGroup = seed.Group
		slot.GroupPosition = seed.GroupPosition
	}
}

// validateFixtureSeed rejects malformed seeds before anything touches the
// database: unknown references, slots depending on the same or a later
// phase, and cycles in the dependency graph.
func validateFixtureSeed(seed FixtureSeed) error {
	if seed.Code == "" || seed.Name == "" {
		return fmt.Errorf("%w: tournament code and name are required", ErrValidationFailed)
	}
	if len(seed.Phases) == 0 {
		return fmt.Errorf("%w: at least one phase is required", ErrValidationFailed)
	}
	phaseIndex := make(map[models.Phase]int, len(seed.Phases))
	for i, p := range seed.Phases {
		if _, dup := phaseIndex[p]; dup {
			return fmt.Errorf("%w: duplicate phase %s", ErrValidationFailed, p)
		}
		phaseIndex[p] = i
	}

	groups := make(map[string][]int) // group name -> seed indices of its matches
	for i, ms := range seed.Matches {
		if _, ok := phaseIndex[ms.Phase]; !ok {
			return fmt.Errorf("%w: match %d references unknown phase %s", ErrValidationFailed, i, ms.Phase)
		}
		if ms.Group != nil {
			groups[*ms.Group] = append(groups[*ms.Group], i)
		}
	}

	for i, ms := range seed.Matches {
		for _, side := range []SlotSeed{ms.Home, ms.Away} {
			if err := validateSlotSeed(seed, phaseIndex, groups, i, ms, side); err != nil {
				return err
			}
		}
	}

	// Knockout edges already guarantee strictly earlier phases, but the
	// graph check is the authority: group edges enter it too, and a seed
	// that slips past the per-slot checks still cannot create a cycle.
	g := graph.New(graph.IntHash, graph.Directed(), graph.PreventCycles())
	for i := range seed.Matches {
		if err := g.AddVertex(i); err != nil {
			return fmt.Errorf("failed to build dependency graph: %w", err)
		}
	}
	addEdge := func(from, to int) error {
		err := g.AddEdge(from, to)
		if err == nil || errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return nil
		}
		if errors.Is(err, graph.ErrEdgeCreatesCycle) {
			return fmt.Errorf("%w: match %d and match %d", ErrCyclicDependency, from, to)
		}
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}
	for i, ms := range seed.Matches {
		for _, side := range []SlotSeed{ms.Home, ms.Away} {
			switch {
			case side.SourceMatch != nil:
				if err := addEdge(*side.SourceMatch, i); err != nil {
					return err
				}
			case side.Group != nil:
				for _, groupMatch := range groups[*side.Group] {
					if err := addEdge(groupMatch, i); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func validateSlotSeed(seed FixtureSeed, phaseIndex map[models.Phase]int, groups map[string][]int, matchIdx int, ms MatchSeed, slot SlotSeed) error {
	refs := 0
	if slot.Team != nil {
		refs++
	}
	if slot.SourceMatch != nil {
		refs++
	}
	if slot.Group != nil {
		refs++
	}
	if refs != 1 {
		return fmt.Errorf("%w: match %d slot must reference exactly one of team, source match or group", ErrValidationFailed, matchIdx)
	}

	switch {
	case slot.Team != nil:
		if *slot.Team < 0 || *slot.Team >= len(seed.Teams) {
			return fmt.Errorf("%w: match %d references unknown team %d", ErrValidationFailed, matchIdx, *slot.Team)
		}
	case slot.SourceMatch != nil:
		if *slot.SourceMatch < 0 || *slot.SourceMatch >= len(seed.Matches) {
			return fmt.Errorf("%w: match %d references unknown source match %d", ErrValidationFailed, matchIdx, *slot.SourceMatch)
		}
		if slot.Outcome == nil || (*slot.Outcome != models.SlotWinner && *slot.Outcome != models.SlotLoser) {
			return fmt.Errorf("%w: match %d knockout slot needs a winner or loser outcome", ErrValidationFailed, matchIdx)
		}
		source := seed.Matches[*slot.SourceMatch]
		if phaseIndex[source.Phase] >= phaseIndex[ms.Phase] {
			return fmt.Errorf("%w: match %d depends on match %d of the same or a later phase", ErrCyclicDependency, matchIdx, *slot.SourceMatch)
		}
	case slot.Group != nil:
		if slot.GroupPosition == nil || *slot.GroupPosition < 1 {
			return fmt.Errorf("%w: match %d group slot needs a positive standing position", ErrValidationFailed, matchIdx)
		}
		groupMatches, ok := groups[*slot.Group]
		if !ok || len(groupMatches) == 0 {
			return fmt.Errorf("%w: match %d references unknown group %s", ErrValidationFailed, matchIdx, *slot.Group)
		}
		for _, gm := range groupMatches {
			if phaseIndex[seed.Matches[gm].Phase] >= phaseIndex[ms.Phase] {
				return fmt.Errorf("%w: match %d depends on group %s of the same or a later phase", ErrCyclicDependency, matchIdx, *slot.Group)
			}
		}
	}
	return nil
}

func (s *fixtureService) ListTournaments(ctx context.Context) ([]*models.Tournament, error) {
	return s.tournamentRepo.List(ctx, nil)
}

func (s *fixtureService) GetTournamentBracket(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, nil, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, fmt.Errorf("%w: tournament %d", ErrTournamentNotFound, tournamentID)
		}
		return nil, err
	}

	phases, err := s.phaseRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	for _, ps := range phases {
		tournament.Phases = append(tournament.Phases, *ps)
	}

	matches, err := s.matchRepo.ListByTournament(ctx, nil, tournamentID, nil, nil)
	if err != nil {
		return nil, err
	}
	for _, m := range matches {
		tournament.Matches = append(tournament.Matches, *m)
	}
	return tournament, nil
}
