package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/scorekeep/prediction-league/models"
	"github.com/scorekeep/prediction-league/repositories"
)

// ResolverService rewrites placeholder slots of dependent matches once
// their source becomes determinable. Resolution always recomputes the
// target slot from the current source data, so running it again on an
// unchanged state is a no-op and a corrected score re-derives the slot
// instead of patching it.
type ResolverService interface {
	// ResolveDependents processes every dependency edge whose source is the
	// given match: direct winner/loser edges, and group-standing edges when
	// the match belongs to a group. Returns the matches whose slots changed.
	ResolveDependents(ctx context.Context, exec repositories.SQLExecutor, source *models.Match) ([]*models.Match, error)

	// GroupStandings computes the current table of a group from its finished
	// matches, applying the full tie-break ladder.
	GroupStandings(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, group string) ([]*models.GroupStanding, error)
}

type resolverService struct {
	matchRepo repositories.MatchRepository
	teamRepo  repositories.TeamRepository
}

func NewResolverService(matchRepo repositories.MatchRepository, teamRepo repositories.TeamRepository) ResolverService {
	return &resolverService{matchRepo: matchRepo, teamRepo: teamRepo}
}

func (s *resolverService) ResolveDependents(ctx context.Context, exec repositories.SQLExecutor, source *models.Match) ([]*models.Match, error) {
	updated := make([]*models.Match, 0)

	changed, err := s.resolveMatchEdges(ctx, exec, source)
	if err != nil {
		return nil, err
	}
	updated = append(updated, changed...)

	if source.GroupName != nil {
		changed, err = s.resolveGroupEdges(ctx, exec, source.TournamentID, *source.GroupName)
		if err != nil {
			return nil, err
		}
		updated = append(updated, changed...)
	}

	return updated, nil
}

func (s *resolverService) resolveMatchEdges(ctx context.Context, exec repositories.SQLExecutor, source *models.Match) ([]*models.Match, error) {
	dependents, err := s.matchRepo.ListDependentsOfMatch(ctx, exec, source.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependents of match %d: %w", source.ID, err)
	}

	updated := make([]*models.Match, 0)
	for _, dep := range dependents {
		depChanged := false
		for _, side := range []models.Side{models.SideHome, models.SideAway} {
			slot := dep.Slot(side)
			if slot.SourceMatchID == nil || *slot.SourceMatchID != source.ID || slot.Outcome == nil {
				continue
			}

			// Recompute from scratch: an unfinished or drawn source clears
			// the slot instead of keeping a stale team.
			var teamID *int
			switch *slot.Outcome {
			case models.SlotWinner:
				teamID = source.WinnerTeamID()
			case models.SlotLoser:
				teamID = source.LoserTeamID()
			}

			if sideChanged, err := s.writeSlot(ctx, exec, dep, side, teamID); err != nil {
				return nil, err
			} else if sideChanged {
				depChanged = true
			}
		}
		if depChanged {
			updated = append(updated, dep)
		}
	}
	return updated, nil
}

func (s *resolverService) resolveGroupEdges(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, group string) ([]*models.Match, error) {
	// FOR UPDATE: the group table is read as a whole before any downstream
	// slot is written, so concurrent results of the same group serialize.
	groupMatches, err := s.matchRepo.ListGroupMatches(ctx, exec, tournamentID, group, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of group %s: %w", group, err)
	}

	complete := true
	for _, m := range groupMatches {
		if !m.Status.Terminal() {
			complete = false
			break
		}
	}

	// A group position is undetermined until the whole group is played; the
	// standings of an incomplete group clear previously resolved slots so a
	// reopened group never leaves stale teams downstream.
	var standings []*models.GroupStanding
	if complete {
		standings, err = s.computeStandings(ctx, exec, tournamentID, groupMatches)
		if err != nil {
			return nil, err
		}
	}

	dependents, err := s.matchRepo.ListDependentsOfGroup(ctx, exec, tournamentID, group)
	if err != nil {
		return nil, fmt.Errorf("failed to list dependents of group %s: %w", group, err)
	}

	updated := make([]*models.Match, 0)
	for _, dep := range dependents {
		depChanged := false
		for _, side := range []models.Side{models.SideHome, models.SideAway} {
			slot := dep.Slot(side)
			if slot.SourceGroup == nil || *slot.SourceGroup != group || slot.GroupPosition == nil {
				continue
			}

			var teamID *int
			if complete && *slot.GroupPosition >= 1 && *slot.GroupPosition <= len(standings) {
				id := standings[*slot.GroupPosition-1].TeamID
				teamID = &id
			}

			if sideChanged, err := s.writeSlot(ctx, exec, dep, side, teamID); err != nil {
				return nil, err
			} else if sideChanged {
				depChanged = true
			}
		}
		if depChanged {
			updated = append(updated, dep)
		}
	}
	return updated, nil
}

func (s *resolverService) writeSlot(ctx context.Context, exec repositories.SQLExecutor, dep *models.Match, side models.Side, teamID *int) (bool, error) {
	if equalIntPtr(dep.TeamID(side), teamID) {
		return false, nil
	}
	if err := s.matchRepo.UpdateSlotTeam(ctx, exec, dep.ID, side, teamID); err != nil {
		return false, fmt.Errorf("failed to write %s slot of match %d: %w", side, dep.ID, err)
	}
	if side == models.SideHome {
		dep.HomeTeamID = teamID
	} else {
		dep.AwayTeamID = teamID
	}
	return true, nil
}

func (s *resolverService) GroupStandings(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, group string) ([]*models.GroupStanding, error) {
	groupMatches, err := s.matchRepo.ListGroupMatches(ctx, exec, tournamentID, group, false)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches of group %s: %w", group, err)
	}
	return s.computeStandings(ctx, exec, tournamentID, groupMatches)
}

func (s *resolverService) computeStandings(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, groupMatches []*models.Match) ([]*models.GroupStanding, error) {
	teams, err := s.teamRepo.ListByTournament(ctx, exec, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams of tournament %d: %w", tournamentID, err)
	}
	names := make(map[int]string, len(teams))
	for _, t := range teams {
		names[t.ID] = t.Name
	}
	return ComputeGroupStandings(groupMatches, names), nil
}

// ComputeGroupStandings builds a group table from its matches. Only
// finished matches count. The tie-break ladder is applied identically on
// every call so resolution stays idempotent: points, goal difference,
// goals scored, head-to-head, then team name.
func ComputeGroupStandings(groupMatches []*models.Match, teamNames map[int]string) []*models.GroupStanding {
	byTeam := make(map[int]*models.GroupStanding)
	ensure := func(teamID int) *models.GroupStanding {
		if st, ok := byTeam[teamID]; ok {
			return st
		}
		st := &models.GroupStanding{TeamID: teamID, TeamName: teamNames[teamID]}
		byTeam[teamID] = st
		return st
	}

	for _, m := range groupMatches {
		if m.HomeTeamID != nil {
			ensure(*m.HomeTeamID)
		}
		if m.AwayTeamID != nil {
			ensure(*m.AwayTeamID)
		}
		if m.Status != models.MatchStatusFinished || m.HomeTeamID == nil || m.AwayTeamID == nil || m.HomeScore == nil || m.AwayScore == nil {
			continue
		}

		home, away := ensure(*m.HomeTeamID), ensure(*m.AwayTeamID)
		hs, as := *m.HomeScore, *m.AwayScore

		home.Played++
		away.Played++
		home.GoalsFor += hs
		home.GoalsAgainst += as
		away.GoalsFor += as
		away.GoalsAgainst += hs

		switch {
		case hs > as:
			home.Wins++
			home.Points += 3
			away.Losses++
		case hs < as:
			away.Wins++
			away.Points += 3
			home.Losses++
		default:
			home.Draws++
			away.Draws++
			home.Points++
			away.Points++
		}
	}

	standings := make([]*models.GroupStanding, 0, len(byTeam))
	for _, st := range byTeam {
		standings = append(standings, st)
	}

	sort.SliceStable(standings, func(i, j int) bool {
		a, b := standings[i], standings[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		if a.GoalDifference() != b.GoalDifference() {
			return a.GoalDifference() > b.GoalDifference()
		}
		if a.GoalsFor != b.GoalsFor {
			return a.GoalsFor > b.GoalsFor
		}
		if h2h := headToHead(a.TeamID, b.TeamID, groupMatches); h2h != 0 {
			return h2h > 0
		}
		return a.TeamName < b.TeamName
	})
	return standings
}

// headToHead compares two teams by the points taken in their mutual
// finished matches: >0 when a finished ahead of b, <0 the other way,
// 0 when level (or when they have not met).
func headToHead(teamA, teamB int, groupMatches []*models.Match) int {
	pointsA, pointsB := 0, 0
	for _, m := range groupMatches {
		if m.Status != models.MatchStatusFinished || m.HomeTeamID == nil || m.AwayTeamID == nil || m.HomeScore == nil || m.AwayScore == nil {
			continue
		}
		var scoreA, scoreB int
		switch {
		case *m.HomeTeamID == teamA && *m.AwayTeamID == teamB:
			scoreA, scoreB = *m.HomeScore, *m.AwayScore
		case *m.HomeTeamID == teamB && *m.AwayTeamID == teamA:
			scoreB, scoreA = *m.HomeScore, *m.AwayScore
		default:
			continue
		}
		switch {
		case scoreA > scoreB:
			pointsA += 3
		case scoreB > scoreA:
			pointsB += 3
		default:
			pointsA++
			pointsB++
		}
	}
	return pointsA - pointsB
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
