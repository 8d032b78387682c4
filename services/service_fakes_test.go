package services

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/scorekeep/prediction-league/models"
	"github.com/scorekeep/prediction-league/repositories"
)

// In-memory repository fakes. They keep the same contract as the postgres
// implementations (sentinel errors, ordering) so the services cannot tell
// the difference.

type fakeMatchRepo struct {
	matches map[int]*models.Match
	nextID  int
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: make(map[int]*models.Match), nextID: 1}
}

func (f *fakeMatchRepo) add(m *models.Match) *models.Match {
	if m.ID == 0 {
		m.ID = f.nextID
	}
	if m.ID >= f.nextID {
		f.nextID = m.ID + 1
	}
	f.matches[m.ID] = m
	return m
}

func (f *fakeMatchRepo) sorted(keep func(*models.Match) bool) []*models.Match {
	out := make([]*models.Match, 0)
	for _, m := range f.matches {
		if keep(m) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	f.add(match)
	return nil
}

func (f *fakeMatchRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int, _ bool) (*models.Match, error) {
	m, ok := f.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return m, nil
}

func (f *fakeMatchRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int, phase *models.Phase, status *models.MatchStatus) ([]*models.Match, error) {
	return f.sorted(func(m *models.Match) bool {
		if m.TournamentID != tournamentID {
			return false
		}
		if phase != nil && m.Phase != *phase {
			return false
		}
		if status != nil && m.Status != *status {
			return false
		}
		return true
	}), nil
}

func (f *fakeMatchRepo) ListGroupMatches(_ context.Context, _ repositories.SQLExecutor, tournamentID int, group string, _ bool) ([]*models.Match, error) {
	return f.sorted(func(m *models.Match) bool {
		return m.TournamentID == tournamentID && m.GroupName != nil && *m.GroupName == group
	}), nil
}

func (f *fakeMatchRepo) ListDependentsOfMatch(_ context.Context, _ repositories.SQLExecutor, sourceMatchID int) ([]*models.Match, error) {
	return f.sorted(func(m *models.Match) bool {
		return (m.HomeSlot.SourceMatchID != nil && *m.HomeSlot.SourceMatchID == sourceMatchID) ||
			(m.AwaySlot.SourceMatchID != nil && *m.AwaySlot.SourceMatchID == sourceMatchID)
	}), nil
}

func (f *fakeMatchRepo) ListDependentsOfGroup(_ context.Context, _ repositories.SQLExecutor, tournamentID int, group string) ([]*models.Match, error) {
	return f.sorted(func(m *models.Match) bool {
		if m.TournamentID != tournamentID {
			return false
		}
		return (m.HomeSlot.SourceGroup != nil && *m.HomeSlot.SourceGroup == group) ||
			(m.AwaySlot.SourceGroup != nil && *m.AwaySlot.SourceGroup == group)
	}), nil
}

func (f *fakeMatchRepo) UpdateResult(_ context.Context, _ repositories.SQLExecutor, id int, homeScore, awayScore *int, status models.MatchStatus) error {
	m, ok := f.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.HomeScore = homeScore
	m.AwayScore = awayScore
	m.Status = status
	return nil
}

func (f *fakeMatchRepo) UpdateSlotTeam(_ context.Context, _ repositories.SQLExecutor, matchID int, side models.Side, teamID *int) error {
	m, ok := f.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if side == models.SideHome {
		m.HomeTeamID = teamID
	} else {
		m.AwayTeamID = teamID
	}
	return nil
}

func (f *fakeMatchRepo) UpdateSlotSource(_ context.Context, _ repositories.SQLExecutor, matchID int, side models.Side, sourceMatchID int) error {
	m, ok := f.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if side == models.SideHome {
		m.HomeSlot.SourceMatchID = &sourceMatchID
	} else {
		m.AwaySlot.SourceMatchID = &sourceMatchID
	}
	return nil
}

func (f *fakeMatchRepo) SetManualLock(_ context.Context, _ repositories.SQLExecutor, id int, locked bool) error {
	m, ok := f.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.ManualLock = locked
	return nil
}

func (f *fakeMatchRepo) CountNonTerminal(_ context.Context, _ repositories.SQLExecutor, tournamentID int, phase models.Phase) (int, error) {
	count := 0
	for _, m := range f.matches {
		if m.TournamentID == tournamentID && m.Phase == phase && !m.Status.Terminal() {
			count++
		}
	}
	return count, nil
}

type fakePhaseRepo struct {
	statuses []*models.PhaseStatus
	nextID   int
}

func newFakePhaseRepo() *fakePhaseRepo {
	return &fakePhaseRepo{nextID: 1}
}

func (f *fakePhaseRepo) add(ps *models.PhaseStatus) *models.PhaseStatus {
	if ps.ID == 0 {
		ps.ID = f.nextID
	}
	if ps.ID >= f.nextID {
		f.nextID = ps.ID + 1
	}
	f.statuses = append(f.statuses, ps)
	return ps
}

func (f *fakePhaseRepo) Create(_ context.Context, _ repositories.SQLExecutor, status *models.PhaseStatus) error {
	f.add(status)
	return nil
}

func (f *fakePhaseRepo) GetByTournamentAndPhase(_ context.Context, _ repositories.SQLExecutor, tournamentID int, phase models.Phase, _ bool) (*models.PhaseStatus, error) {
	for _, ps := range f.statuses {
		if ps.TournamentID == tournamentID && ps.Phase == phase {
			return ps, nil
		}
	}
	return nil, repositories.ErrPhaseStatusNotFound
}

func (f *fakePhaseRepo) GetByTournamentAndPosition(_ context.Context, _ repositories.SQLExecutor, tournamentID, position int) (*models.PhaseStatus, error) {
	for _, ps := range f.statuses {
		if ps.TournamentID == tournamentID && ps.Position == position {
			return ps, nil
		}
	}
	return nil, repositories.ErrPhaseStatusNotFound
}

func (f *fakePhaseRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.PhaseStatus, error) {
	out := make([]*models.PhaseStatus, 0)
	for _, ps := range f.statuses {
		if ps.TournamentID == tournamentID {
			out = append(out, ps)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (f *fakePhaseRepo) Update(_ context.Context, _ repositories.SQLExecutor, status *models.PhaseStatus) error {
	for i, ps := range f.statuses {
		if ps.ID == status.ID {
			f.statuses[i] = status
			return nil
		}
	}
	return repositories.ErrPhaseStatusNotFound
}

type fakePredictionRepo struct {
	predictions map[int]*models.Prediction
	nextID      int
}

func newFakePredictionRepo() *fakePredictionRepo {
	return &fakePredictionRepo{predictions: make(map[int]*models.Prediction), nextID: 1}
}

func (f *fakePredictionRepo) add(p *models.Prediction) *models.Prediction {
	if p.ID == 0 {
		p.ID = f.nextID
	}
	if p.ID >= f.nextID {
		f.nextID = p.ID + 1
	}
	f.predictions[p.ID] = p
	return p
}

func (f *fakePredictionRepo) sorted(keep func(*models.Prediction) bool) []*models.Prediction {
	out := make([]*models.Prediction, 0)
	for _, p := range f.predictions {
		if keep(p) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sameLeague(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (f *fakePredictionRepo) Upsert(_ context.Context, _ repositories.SQLExecutor, prediction *models.Prediction) error {
	for _, p := range f.predictions {
		if p.UserID == prediction.UserID && p.MatchID == prediction.MatchID && sameLeague(p.LeagueID, prediction.LeagueID) {
			p.HomeGoals = prediction.HomeGoals
			p.AwayGoals = prediction.AwayGoals
			p.Joker = prediction.Joker
			p.Points = nil
			*prediction = *p
			return nil
		}
	}
	f.add(prediction)
	return nil
}

func (f *fakePredictionRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Prediction, error) {
	p, ok := f.predictions[id]
	if !ok {
		return nil, repositories.ErrPredictionNotFound
	}
	return p, nil
}

func (f *fakePredictionRepo) ListByMatch(_ context.Context, _ repositories.SQLExecutor, matchID int) ([]*models.Prediction, error) {
	return f.sorted(func(p *models.Prediction) bool { return p.MatchID == matchID }), nil
}

func (f *fakePredictionRepo) ListByUserAndMatch(_ context.Context, _ repositories.SQLExecutor, userID, matchID int) ([]*models.Prediction, error) {
	return f.sorted(func(p *models.Prediction) bool { return p.UserID == userID && p.MatchID == matchID }), nil
}

func (f *fakePredictionRepo) ListByUserAndTournament(_ context.Context, _ repositories.SQLExecutor, userID, tournamentID int) ([]*models.Prediction, error) {
	return f.sorted(func(p *models.Prediction) bool { return p.UserID == userID }), nil
}

func (f *fakePredictionRepo) UpdatePoints(_ context.Context, _ repositories.SQLExecutor, id int, points int) error {
	p, ok := f.predictions[id]
	if !ok {
		return repositories.ErrPredictionNotFound
	}
	p.Points = &points
	return nil
}

func (f *fakePredictionRepo) LeagueRanking(_ context.Context, _ repositories.SQLExecutor, leagueID int) ([]*models.RankingRow, error) {
	totals := make(map[int]int)
	for _, p := range f.predictions {
		if p.LeagueID == nil || *p.LeagueID != leagueID || p.Points == nil {
			continue
		}
		totals[p.UserID] += *p.Points
	}
	rows := make([]*models.RankingRow, 0, len(totals))
	for userID, total := range totals {
		rows = append(rows, &models.RankingRow{UserID: userID, TotalPoints: total})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalPoints != rows[j].TotalPoints {
			return rows[i].TotalPoints > rows[j].TotalPoints
		}
		return rows[i].UserID < rows[j].UserID
	})
	return rows, nil
}

type fakeRankingRepo struct {
	entries map[[2]int]*models.GlobalRankingEntry // key: user, match
}

func newFakeRankingRepo() *fakeRankingRepo {
	return &fakeRankingRepo{entries: make(map[[2]int]*models.GlobalRankingEntry)}
}

func (f *fakeRankingRepo) Upsert(_ context.Context, _ repositories.SQLExecutor, entry *models.GlobalRankingEntry) error {
	f.entries[[2]int{entry.UserID, entry.MatchID}] = entry
	return nil
}

func (f *fakeRankingRepo) DeleteByUserAndMatch(_ context.Context, _ repositories.SQLExecutor, userID, matchID int) error {
	delete(f.entries, [2]int{userID, matchID})
	return nil
}

func (f *fakeRankingRepo) GetByUserAndMatch(_ context.Context, _ repositories.SQLExecutor, userID, matchID int) (*models.GlobalRankingEntry, error) {
	entry, ok := f.entries[[2]int{userID, matchID}]
	if !ok {
		return nil, repositories.ErrRankingEntryNotFound
	}
	return entry, nil
}

func (f *fakeRankingRepo) GlobalRanking(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.RankingRow, error) {
	totals := make(map[int]int)
	for _, e := range f.entries {
		if e.TournamentID == tournamentID {
			totals[e.UserID] += e.Points
		}
	}
	rows := make([]*models.RankingRow, 0, len(totals))
	for userID, total := range totals {
		rows = append(rows, &models.RankingRow{UserID: userID, TotalPoints: total})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalPoints != rows[j].TotalPoints {
			return rows[i].TotalPoints > rows[j].TotalPoints
		}
		return rows[i].UserID < rows[j].UserID
	})
	return rows, nil
}

func (f *fakeRankingRepo) CountByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) (int, error) {
	count := 0
	for _, e := range f.entries {
		if e.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

type fakeTeamRepo struct {
	teams  map[int]*models.Team
	nextID int
}

func newFakeTeamRepo() *fakeTeamRepo {
	return &fakeTeamRepo{teams: make(map[int]*models.Team), nextID: 1}
}

func (f *fakeTeamRepo) add(t *models.Team) *models.Team {
	if t.ID == 0 {
		t.ID = f.nextID
	}
	if t.ID >= f.nextID {
		f.nextID = t.ID + 1
	}
	f.teams[t.ID] = t
	return t
}

func (f *fakeTeamRepo) Create(_ context.Context, _ repositories.SQLExecutor, team *models.Team) error {
	f.add(team)
	return nil
}

func (f *fakeTeamRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Team, error) {
	t, ok := f.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	return t, nil
}

func (f *fakeTeamRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Team, error) {
	out := make([]*models.Team, 0)
	for _, t := range f.teams {
		if t.TournamentID == tournamentID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeTournamentRepo struct {
	tournaments map[int]*models.Tournament
	nextID      int
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{tournaments: make(map[int]*models.Tournament), nextID: 1}
}

func (f *fakeTournamentRepo) add(t *models.Tournament) *models.Tournament {
	if t.ID == 0 {
		t.ID = f.nextID
	}
	if t.ID >= f.nextID {
		f.nextID = t.ID + 1
	}
	f.tournaments[t.ID] = t
	return t
}

func (f *fakeTournamentRepo) Create(_ context.Context, _ repositories.SQLExecutor, tournament *models.Tournament) error {
	for _, t := range f.tournaments {
		if t.Code == tournament.Code {
			return repositories.ErrTournamentCodeConflict
		}
	}
	f.add(tournament)
	return nil
}

func (f *fakeTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	t, ok := f.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return t, nil
}

func (f *fakeTournamentRepo) GetByCode(_ context.Context, _ repositories.SQLExecutor, code string) (*models.Tournament, error) {
	for _, t := range f.tournaments {
		if t.Code == code {
			return t, nil
		}
	}
	return nil, repositories.ErrTournamentNotFound
}

func (f *fakeTournamentRepo) List(_ context.Context, _ repositories.SQLExecutor) ([]*models.Tournament, error) {
	out := make([]*models.Tournament, 0)
	for _, t := range f.tournaments {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeLeagueRepo struct {
	leagues map[int]*models.League
	nextID  int
}

func newFakeLeagueRepo() *fakeLeagueRepo {
	return &fakeLeagueRepo{leagues: make(map[int]*models.League), nextID: 1}
}

func (f *fakeLeagueRepo) add(l *models.League) *models.League {
	if l.ID == 0 {
		l.ID = f.nextID
	}
	if l.ID >= f.nextID {
		f.nextID = l.ID + 1
	}
	f.leagues[l.ID] = l
	return l
}

func (f *fakeLeagueRepo) Create(_ context.Context, _ repositories.SQLExecutor, league *models.League) error {
	f.add(league)
	return nil
}

func (f *fakeLeagueRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.League, error) {
	l, ok := f.leagues[id]
	if !ok {
		return nil, repositories.ErrLeagueNotFound
	}
	return l, nil
}

func (f *fakeLeagueRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.League, error) {
	out := make([]*models.League, 0)
	for _, l := range f.leagues {
		if l.TournamentID == tournamentID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func mustParseTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("failed to parse time %q: %v", s, err)
	}
	return ts
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func outcomePtr(v models.SlotOutcome) *models.SlotOutcome { return &v }
