package models

import "time"

// Prediction is one user's score tip for one match, optionally scoped to a
// league. A user may hold several rows for the same match (one per league
// plus at most one global-only row with LeagueID nil); the global ranking
// consolidates them into a single effective entry.
//
// Points is nil until the match finishes. For a league-scoped joker the
// stored value already includes the doubling, so league rankings can sum
// the column directly.
type Prediction struct {
	ID        int       `json:"id" db:"id"`
	UserID    int       `json:"user_id" db:"user_id"`
	MatchID   int       `json:"match_id" db:"match_id"`
	LeagueID  *int      `json:"league_id,omitempty" db:"league_id"`
	HomeGoals int       `json:"home_goals" db:"home_goals"`
	AwayGoals int       `json:"away_goals" db:"away_goals"`
	Joker     bool      `json:"joker" db:"joker"`
	Points    *int      `json:"points,omitempty" db:"points"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func (p *Prediction) LeagueScoped() bool {
	return p.LeagueID != nil
}
