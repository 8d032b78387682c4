package services

import (
	"context"
	"testing"
	"time"

	"github.com/scorekeep/prediction-league/models"
)

func groupMatch(id int, group string, homeTeam, awayTeam int, homeScore, awayScore int) *models.Match {
	m := &models.Match{
		ID:           id,
		TournamentID: 1,
		Phase:        models.PhaseGroup,
		GroupName:    &group,
		HomeTeamID:   &homeTeam,
		AwayTeamID:   &awayTeam,
		Status:       models.MatchStatusFinished,
		HomeScore:    &homeScore,
		AwayScore:    &awayScore,
		MatchTime:    time.Date(2026, 6, 14, 15, 0, 0, 0, time.UTC),
	}
	return m
}

func TestComputeGroupStandingsTieBreakLadder(t *testing.T) {
	names := map[int]string{1: "Atletico", 2: "Borussia", 3: "Celtic", 4: "Dinamo"}

	tests := map[string]struct {
		matches []*models.Match
		want    []int // team ids in table order
	}{
		"points decide": {
			matches: []*models.Match{
				groupMatch(1, "A", 1, 2, 2, 0),
				groupMatch(2, "A", 3, 4, 1, 1),
				groupMatch(3, "A", 1, 3, 1, 0),
				groupMatch(4, "A", 2, 4, 3, 0),
			},
			want: []int{1, 2, 3, 4},
		},
		"goal difference breaks points tie": {
			matches: []*models.Match{
				groupMatch(1, "A", 1, 3, 3, 0),
				groupMatch(2, "A", 2, 4, 1, 0),
			},
			want: []int{1, 2, 4, 3},
		},
		"goals scored break difference tie": {
			matches: []*models.Match{
				groupMatch(1, "A", 1, 3, 3, 2),
				groupMatch(2, "A", 2, 4, 1, 0),
			},
			want: []int{1, 2, 3, 4},
		},
		"head to head breaks full tie": {
			// 1 and 2 finish level on points, goal difference and goals
			// scored; 1 won the mutual match. 3 tops the group on goals
			// scored.
			matches: []*models.Match{
				groupMatch(1, "A", 1, 2, 1, 0),
				groupMatch(2, "A", 2, 3, 3, 2),
				groupMatch(3, "A", 3, 1, 3, 2),
			},
			want: []int{3, 1, 2},
		},
		"alphabetical as final tie-break": {
			matches: []*models.Match{
				groupMatch(1, "A", 1, 2, 1, 1),
				groupMatch(2, "A", 3, 4, 1, 1),
			},
			want: []int{1, 2, 3, 4},
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			standings := ComputeGroupStandings(tt.matches, names)
			if len(standings) != len(tt.want) {
				t.Fatalf("got %d standings, want %d", len(standings), len(tt.want))
			}
			for i, wantTeam := range tt.want {
				if standings[i].TeamID != wantTeam {
					t.Errorf("position %d: got team %d (%s), want team %d",
						i+1, standings[i].TeamID, standings[i].TeamName, wantTeam)
				}
			}
		})
	}
}

func TestComputeGroupStandingsIgnoresUnfinished(t *testing.T) {
	names := map[int]string{1: "Atletico", 2: "Borussia"}
	open := groupMatch(2, "A", 1, 2, 0, 0)
	open.Status = models.MatchStatusScheduled
	open.HomeScore = nil
	open.AwayScore = nil

	standings := ComputeGroupStandings([]*models.Match{
		groupMatch(1, "A", 1, 2, 2, 1),
		open,
	}, names)

	if standings[0].Played != 1 || standings[1].Played != 1 {
		t.Fatalf("unfinished match counted: played = %d/%d", standings[0].Played, standings[1].Played)
	}
	if standings[0].TeamID != 1 {
		t.Errorf("expected team 1 on top, got %d", standings[0].TeamID)
	}
}

func TestResolveDependentsWinnerAndLoserEdges(t *testing.T) {
	matchRepo := newFakeMatchRepo()
	teamRepo := newFakeTeamRepo()
	resolver := NewResolverService(matchRepo, teamRepo)

	semi := matchRepo.add(&models.Match{
		ID: 1, TournamentID: 1, Phase: models.PhaseSemi,
		HomeTeamID: intPtr(10), AwayTeamID: intPtr(20),
		Status: models.MatchStatusFinished, HomeScore: intPtr(2), AwayScore: intPtr(1),
	})
	final := matchRepo.add(&models.Match{
		ID: 2, TournamentID: 1, Phase: models.PhaseFinal,
		HomeSlot: models.SlotRef{SourceMatchID: intPtr(1), Outcome: outcomePtr(models.SlotWinner)},
	})
	thirdPlace := matchRepo.add(&models.Match{
		ID: 3, TournamentID: 1, Phase: models.PhaseThirdPlace,
		AwaySlot: models.SlotRef{SourceMatchID: intPtr(1), Outcome: outcomePtr(models.SlotLoser)},
	})

	updated, err := resolver.ResolveDependents(context.Background(), nil, semi)
	if err != nil {
		t.Fatalf("ResolveDependents returned error: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("got %d updated matches, want 2", len(updated))
	}
	if final.HomeTeamID == nil || *final.HomeTeamID != 10 {
		t.Errorf("final home slot = %v, want winner 10", final.HomeTeamID)
	}
	if thirdPlace.AwayTeamID == nil || *thirdPlace.AwayTeamID != 20 {
		t.Errorf("third place away slot = %v, want loser 20", thirdPlace.AwayTeamID)
	}
}

func TestResolveDependentsIsIdempotent(t *testing.T) {
	matchRepo := newFakeMatchRepo()
	resolver := NewResolverService(matchRepo, newFakeTeamRepo())

	semi := matchRepo.add(&models.Match{
		ID: 1, TournamentID: 1, Phase: models.PhaseSemi,
		HomeTeamID: intPtr(10), AwayTeamID: intPtr(20),
		Status: models.MatchStatusFinished, HomeScore: intPtr(2), AwayScore: intPtr(1),
	})
	matchRepo.add(&models.Match{
		ID: 2, TournamentID: 1, Phase: models.PhaseFinal,
		HomeSlot: models.SlotRef{SourceMatchID: intPtr(1), Outcome: outcomePtr(models.SlotWinner)},
	})

	if _, err := resolver.ResolveDependents(context.Background(), nil, semi); err != nil {
		t.Fatalf("first resolution failed: %v", err)
	}
	updated, err := resolver.ResolveDependents(context.Background(), nil, semi)
	if err != nil {
		t.Fatalf("second resolution failed: %v", err)
	}
	if len(updated) != 0 {
		t.Fatalf("second resolution changed %d matches, want 0", len(updated))
	}
}

func TestResolveDependentsRederivesAfterCorrection(t *testing.T) {
	matchRepo := newFakeMatchRepo()
	resolver := NewResolverService(matchRepo, newFakeTeamRepo())

	semi := matchRepo.add(&models.Match{
		ID: 1, TournamentID: 1, Phase: models.PhaseSemi,
		HomeTeamID: intPtr(10), AwayTeamID: intPtr(20),
		Status: models.MatchStatusFinished, HomeScore: intPtr(2), AwayScore: intPtr(1),
	})
	final := matchRepo.add(&models.Match{
		ID: 2, TournamentID: 1, Phase: models.PhaseFinal,
		HomeSlot: models.SlotRef{SourceMatchID: intPtr(1), Outcome: outcomePtr(models.SlotWinner)},
	})

	if _, err := resolver.ResolveDependents(context.Background(), nil, semi); err != nil {
		t.Fatalf("initial resolution failed: %v", err)
	}

	// The correction flips the winner; resolution must overwrite, not patch.
	semi.HomeScore = intPtr(0)
	semi.AwayScore = intPtr(3)
	updated, err := resolver.ResolveDependents(context.Background(), nil, semi)
	if err != nil {
		t.Fatalf("resolution after correction failed: %v", err)
	}
	if len(updated) != 1 {
		t.Fatalf("got %d updated matches, want 1", len(updated))
	}
	if final.HomeTeamID == nil || *final.HomeTeamID != 20 {
		t.Errorf("final home slot = %v, want corrected winner 20", final.HomeTeamID)
	}
}

func TestResolveDependentsGroupGate(t *testing.T) {
	matchRepo := newFakeMatchRepo()
	teamRepo := newFakeTeamRepo()
	teamRepo.add(&models.Team{ID: 1, TournamentID: 1, Name: "Atletico"})
	teamRepo.add(&models.Team{ID: 2, TournamentID: 1, Name: "Borussia"})
	resolver := NewResolverService(matchRepo, teamRepo)

	first := matchRepo.add(groupMatch(1, "A", 1, 2, 2, 0))
	second := matchRepo.add(groupMatch(2, "A", 2, 1, 0, 0))
	second.Status = models.MatchStatusScheduled
	second.HomeScore = nil
	second.AwayScore = nil

	knockout := matchRepo.add(&models.Match{
		ID: 3, TournamentID: 1, Phase: models.PhaseQuarter,
		HomeSlot: models.SlotRef{
			Outcome:       outcomePtr(models.SlotGroupRank),
			SourceGroup:   strPtr("A"),
			GroupPosition: intPtr(1),
		},
	})

	// Group not complete yet: the slot must stay empty.
	updated, err := resolver.ResolveDependents(context.Background(), nil, first)
	if err != nil {
		t.Fatalf("resolution with open group failed: %v", err)
	}
	if len(updated) != 0 || knockout.HomeTeamID != nil {
		t.Fatalf("incomplete group resolved a slot: %v", knockout.HomeTeamID)
	}

	// Last group match finishes: the winner of group A fills the slot.
	second.Status = models.MatchStatusFinished
	second.HomeScore = intPtr(1)
	second.AwayScore = intPtr(1)
	updated, err = resolver.ResolveDependents(context.Background(), nil, second)
	if err != nil {
		t.Fatalf("resolution with complete group failed: %v", err)
	}
	if len(updated) != 1 {
		t.Fatalf("got %d updated matches, want 1", len(updated))
	}
	if knockout.HomeTeamID == nil || *knockout.HomeTeamID != 1 {
		t.Errorf("knockout home slot = %v, want group winner 1", knockout.HomeTeamID)
	}
}

func TestResolveDependentsClearsSlotWhenGroupReopens(t *testing.T) {
	matchRepo := newFakeMatchRepo()
	teamRepo := newFakeTeamRepo()
	teamRepo.add(&models.Team{ID: 1, TournamentID: 1, Name: "Atletico"})
	teamRepo.add(&models.Team{ID: 2, TournamentID: 1, Name: "Borussia"})
	resolver := NewResolverService(matchRepo, teamRepo)

	gm := matchRepo.add(groupMatch(1, "A", 1, 2, 2, 0))
	knockout := matchRepo.add(&models.Match{
		ID: 2, TournamentID: 1, Phase: models.PhaseQuarter,
		HomeSlot: models.SlotRef{
			Outcome:       outcomePtr(models.SlotGroupRank),
			SourceGroup:   strPtr("A"),
			GroupPosition: intPtr(1),
		},
	})

	if _, err := resolver.ResolveDependents(context.Background(), nil, gm); err != nil {
		t.Fatalf("initial resolution failed: %v", err)
	}
	if knockout.HomeTeamID == nil {
		t.Fatal("expected resolved slot before reopen")
	}

	gm.Status = models.MatchStatusPostponed
	gm.HomeScore = nil
	gm.AwayScore = nil
	updated, err := resolver.ResolveDependents(context.Background(), nil, gm)
	if err != nil {
		t.Fatalf("resolution after reopen failed: %v", err)
	}
	if len(updated) != 1 || knockout.HomeTeamID != nil {
		t.Fatalf("reopened group left stale slot: %v", knockout.HomeTeamID)
	}
}
