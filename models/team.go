package models

import "time"

type Team struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	Code         *string   `json:"code,omitempty" db:"code"` // e.g. "FRA"
	GroupName    *string   `json:"group_name,omitempty" db:"group_name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
