package services

import (
	"context"
	"errors"
	"testing"

	"github.com/scorekeep/prediction-league/models"
)

type rankingFixture struct {
	svc            RankingService
	tournamentRepo *fakeTournamentRepo
	phaseRepo      *fakePhaseRepo
	predictionRepo *fakePredictionRepo
	leagueRepo     *fakeLeagueRepo
	rankingRepo    *fakeRankingRepo
}

func newRankingFixture() *rankingFixture {
	f := &rankingFixture{
		tournamentRepo: newFakeTournamentRepo(),
		phaseRepo:      newFakePhaseRepo(),
		predictionRepo: newFakePredictionRepo(),
		leagueRepo:     newFakeLeagueRepo(),
		rankingRepo:    newFakeRankingRepo(),
	}
	f.svc = NewRankingService(f.tournamentRepo, f.phaseRepo, f.predictionRepo, f.leagueRepo, f.rankingRepo)
	return f
}

func TestConsolidateUserMatchPicksBestRowAndHalvesJoker(t *testing.T) {
	f := newRankingFixture()

	// Global row scored 4, league joker row stored with the doubling
	// applied (3 raw -> 6). The joker row wins the comparison on stored
	// points but enters the global table at its raw value.
	f.predictionRepo.add(&models.Prediction{
		ID: 1, UserID: 7, MatchID: 1, HomeGoals: 2, AwayGoals: 1, Points: intPtr(4),
	})
	jokerRow := f.predictionRepo.add(&models.Prediction{
		ID: 2, UserID: 7, MatchID: 1, LeagueID: intPtr(5), Joker: true,
		HomeGoals: 3, AwayGoals: 2, Points: intPtr(6),
	})

	if err := f.svc.ConsolidateUserMatch(context.Background(), nil, 1, 7, 1); err != nil {
		t.Fatalf("ConsolidateUserMatch returned error: %v", err)
	}

	entry, err := f.rankingRepo.GetByUserAndMatch(context.Background(), nil, 7, 1)
	if err != nil {
		t.Fatalf("no consolidated entry: %v", err)
	}
	if entry.Points != 3 {
		t.Errorf("entry points = %d, want joker row halved to 3", entry.Points)
	}
	if entry.SourcePredictionID != jokerRow.ID {
		t.Errorf("entry source = %d, want %d", entry.SourcePredictionID, jokerRow.ID)
	}
}

func TestConsolidateUserMatchGlobalRowWins(t *testing.T) {
	f := newRankingFixture()

	best := f.predictionRepo.add(&models.Prediction{
		ID: 1, UserID: 7, MatchID: 1, HomeGoals: 2, AwayGoals: 1, Points: intPtr(4),
	})
	f.predictionRepo.add(&models.Prediction{
		ID: 2, UserID: 7, MatchID: 1, LeagueID: intPtr(5),
		HomeGoals: 0, AwayGoals: 0, Points: intPtr(0),
	})

	if err := f.svc.ConsolidateUserMatch(context.Background(), nil, 1, 7, 1); err != nil {
		t.Fatalf("ConsolidateUserMatch returned error: %v", err)
	}

	entry, err := f.rankingRepo.GetByUserAndMatch(context.Background(), nil, 7, 1)
	if err != nil {
		t.Fatalf("no consolidated entry: %v", err)
	}
	if entry.Points != 4 || entry.SourcePredictionID != best.ID {
		t.Errorf("entry = %d points from %d, want 4 points from %d", entry.Points, entry.SourcePredictionID, best.ID)
	}
}

func TestConsolidateUserMatchIsIdempotent(t *testing.T) {
	f := newRankingFixture()
	f.predictionRepo.add(&models.Prediction{
		ID: 1, UserID: 7, MatchID: 1, HomeGoals: 2, AwayGoals: 1, Points: intPtr(4),
	})

	for i := 0; i < 3; i++ {
		if err := f.svc.ConsolidateUserMatch(context.Background(), nil, 1, 7, 1); err != nil {
			t.Fatalf("run %d returned error: %v", i, err)
		}
	}

	count, _ := f.rankingRepo.CountByTournament(context.Background(), nil, 1)
	if count != 1 {
		t.Errorf("got %d entries, want exactly 1", count)
	}
}

func TestConsolidateUserMatchRemovesOrphanedEntry(t *testing.T) {
	f := newRankingFixture()
	f.rankingRepo.Upsert(context.Background(), nil, &models.GlobalRankingEntry{
		TournamentID: 1, UserID: 7, MatchID: 1, Points: 4, SourcePredictionID: 1,
	})

	// All predictions lost their points (e.g. correction in progress).
	f.predictionRepo.add(&models.Prediction{ID: 1, UserID: 7, MatchID: 1, HomeGoals: 2, AwayGoals: 1})

	if err := f.svc.ConsolidateUserMatch(context.Background(), nil, 1, 7, 1); err != nil {
		t.Fatalf("ConsolidateUserMatch returned error: %v", err)
	}
	if _, err := f.rankingRepo.GetByUserAndMatch(context.Background(), nil, 7, 1); err == nil {
		t.Error("orphaned entry survived consolidation")
	}
}

func TestGetGlobalRankingAssignsCompetitionRanks(t *testing.T) {
	f := newRankingFixture()
	f.tournamentRepo.add(&models.Tournament{ID: 1, Code: "WC2026", Name: "World Cup"})

	entries := []*models.GlobalRankingEntry{
		{TournamentID: 1, UserID: 1, MatchID: 1, Points: 4},
		{TournamentID: 1, UserID: 2, MatchID: 1, Points: 4},
		{TournamentID: 1, UserID: 3, MatchID: 1, Points: 2},
	}
	for _, e := range entries {
		f.rankingRepo.Upsert(context.Background(), nil, e)
	}

	rows, err := f.svc.GetGlobalRanking(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetGlobalRanking returned error: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	wantRanks := []int{1, 1, 3}
	for i, want := range wantRanks {
		if rows[i].Rank != want {
			t.Errorf("row %d rank = %d, want %d", i, rows[i].Rank, want)
		}
	}
}

func TestGetGlobalRankingUnknownTournament(t *testing.T) {
	f := newRankingFixture()
	if _, err := f.svc.GetGlobalRanking(context.Background(), 42); !errors.Is(err, ErrTournamentNotFound) {
		t.Fatalf("expected ErrTournamentNotFound, got %v", err)
	}
}

func TestGetLeagueRankingSumsStoredPoints(t *testing.T) {
	f := newRankingFixture()
	f.leagueRepo.add(&models.League{ID: 5, TournamentID: 1, Name: "office pool"})

	// User 7's joker row keeps its doubled value inside the league.
	f.predictionRepo.add(&models.Prediction{ID: 1, UserID: 7, MatchID: 1, LeagueID: intPtr(5), Joker: true, Points: intPtr(8)})
	f.predictionRepo.add(&models.Prediction{ID: 2, UserID: 7, MatchID: 2, LeagueID: intPtr(5), Points: intPtr(2)})
	f.predictionRepo.add(&models.Prediction{ID: 3, UserID: 8, MatchID: 1, LeagueID: intPtr(5), Points: intPtr(4)})

	rows, err := f.svc.GetLeagueRanking(context.Background(), 5)
	if err != nil {
		t.Fatalf("GetLeagueRanking returned error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].UserID != 7 || rows[0].TotalPoints != 10 || rows[0].Rank != 1 {
		t.Errorf("top row = %+v, want user 7 with 10 points at rank 1", rows[0])
	}
}

func TestGetTournamentLeaderboard(t *testing.T) {
	f := newRankingFixture()
	f.tournamentRepo.add(&models.Tournament{ID: 1, Code: "WC2026", Name: "World Cup"})
	f.phaseRepo.add(&models.PhaseStatus{TournamentID: 1, Phase: models.PhaseGroup, Position: 0, Unlocked: true})
	f.phaseRepo.add(&models.PhaseStatus{TournamentID: 1, Phase: models.PhaseFinal, Position: 1})
	f.rankingRepo.Upsert(context.Background(), nil, &models.GlobalRankingEntry{TournamentID: 1, UserID: 7, MatchID: 1, Points: 4})

	leaderboard, err := f.svc.GetTournamentLeaderboard(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetTournamentLeaderboard returned error: %v", err)
	}
	if leaderboard.Tournament == nil || leaderboard.Tournament.Code != "WC2026" {
		t.Error("leaderboard missing tournament")
	}
	if len(leaderboard.Phases) != 2 {
		t.Errorf("got %d phases, want 2", len(leaderboard.Phases))
	}
	if len(leaderboard.Ranking) != 1 || leaderboard.EntryCount != 1 {
		t.Errorf("ranking/count mismatch: %d rows, count %d", len(leaderboard.Ranking), leaderboard.EntryCount)
	}
}
