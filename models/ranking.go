package models

import "time"

// GlobalRankingEntry is the consolidated tournament-wide score of one user
// for one match. It is a materialized projection over the user's Prediction
// rows and can always be recomputed from them.
type GlobalRankingEntry struct {
	ID                 int       `json:"id" db:"id"`
	TournamentID       int       `json:"tournament_id" db:"tournament_id"`
	UserID             int       `json:"user_id" db:"user_id"`
	MatchID            int       `json:"match_id" db:"match_id"`
	Points             int       `json:"points" db:"points"`
	SourcePredictionID int       `json:"source_prediction_id" db:"source_prediction_id"`
	UpdatedAt          time.Time `json:"updated_at" db:"updated_at"`
}

// RankingRow is one line of a league or global leaderboard.
type RankingRow struct {
	UserID      int `json:"user_id" db:"user_id"`
	TotalPoints int `json:"total_points" db:"total_points"`
	Rank        int `json:"rank" db:"-"`
}
