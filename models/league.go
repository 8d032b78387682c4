package models

import "time"

// League is a named prediction pool inside a tournament. Membership and
// invitation workflows live in the league service; this system only needs
// the league as a scope for predictions and rankings.
type League struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
