package models

import "time"

type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "scheduled"
	MatchStatusLive      MatchStatus = "live"
	MatchStatusFinished  MatchStatus = "finished"
	MatchStatusPostponed MatchStatus = "postponed"
	MatchStatusCancelled MatchStatus = "cancelled"
)

// Terminal reports whether the status can no longer change through result
// ingestion. Corrections of finished matches go through a dedicated path.
func (s MatchStatus) Terminal() bool {
	return s == MatchStatusFinished || s == MatchStatusCancelled
}

// SlotOutcome names which outcome of a source a placeholder slot consumes.
type SlotOutcome string

const (
	SlotWinner    SlotOutcome = "winner"
	SlotLoser     SlotOutcome = "loser"
	SlotGroupRank SlotOutcome = "group_rank"
)

type Side string

const (
	SideHome Side = "home"
	SideAway Side = "away"
)

// SlotRef is the dependency edge of one side of a match, recorded once at
// fixture-seeding time. Either SourceMatchID+Outcome (knockout edge) or
// SourceGroup+GroupPosition (group-standing edge) is set; a slot with no
// edge was seeded with a concrete team.
type SlotRef struct {
	SourceMatchID *int         `json:"source_match_id,omitempty" db:"source_match_id"`
	Outcome       *SlotOutcome `json:"outcome,omitempty" db:"outcome"`
	SourceGroup   *string      `json:"source_group,omitempty" db:"source_group"`
	GroupPosition *int         `json:"group_position,omitempty" db:"group_position"` // 1-based standing
}

func (s SlotRef) IsPlaceholder() bool {
	return s.SourceMatchID != nil || s.SourceGroup != nil
}

type Match struct {
	ID           int    `json:"id" db:"id"`
	TournamentID int    `json:"tournament_id" db:"tournament_id"`
	Phase        Phase  `json:"phase" db:"phase"`
	BracketPos   int    `json:"bracket_pos" db:"bracket_pos"`
	GroupName    *string `json:"group_name,omitempty" db:"group_name"`

	HomeTeamID *int    `json:"home_team_id,omitempty" db:"home_team_id"`
	AwayTeamID *int    `json:"away_team_id,omitempty" db:"away_team_id"`
	HomeSlot   SlotRef `json:"home_slot" db:"-"`
	AwaySlot   SlotRef `json:"away_slot" db:"-"`

	MatchTime  time.Time   `json:"match_time" db:"match_time"`
	Status     MatchStatus `json:"status" db:"status"`
	HomeScore  *int        `json:"home_score,omitempty" db:"home_score"`
	AwayScore  *int        `json:"away_score,omitempty" db:"away_score"`
	ManualLock bool        `json:"manual_lock" db:"manual_lock"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`

	HomeTeam *Team `json:"home_team,omitempty" db:"-"`
	AwayTeam *Team `json:"away_team,omitempty" db:"-"`
}

func (m *Match) Slot(side Side) SlotRef {
	if side == SideHome {
		return m.HomeSlot
	}
	return m.AwaySlot
}

func (m *Match) TeamID(side Side) *int {
	if side == SideHome {
		return m.HomeTeamID
	}
	return m.AwayTeamID
}

// SlotsResolved reports whether both sides reference concrete teams. A
// match with an unresolved slot is not predictable.
func (m *Match) SlotsResolved() bool {
	return m.HomeTeamID != nil && m.AwayTeamID != nil
}

// WinnerTeamID returns the winning team of a finished match, or nil for a
// draw or an unfinished match. Knockout fixtures are expected to carry a
// decided score (after extra time / penalties) by the time they finish.
func (m *Match) WinnerTeamID() *int {
	if m.Status != MatchStatusFinished || m.HomeScore == nil || m.AwayScore == nil {
		return nil
	}
	switch {
	case *m.HomeScore > *m.AwayScore:
		return m.HomeTeamID
	case *m.AwayScore > *m.HomeScore:
		return m.AwayTeamID
	}
	return nil
}

func (m *Match) LoserTeamID() *int {
	if m.Status != MatchStatusFinished || m.HomeScore == nil || m.AwayScore == nil {
		return nil
	}
	switch {
	case *m.HomeScore > *m.AwayScore:
		return m.AwayTeamID
	case *m.AwayScore > *m.HomeScore:
		return m.HomeTeamID
	}
	return nil
}
