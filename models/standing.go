package models

// GroupStanding is one computed line of a group table. Standings are never
// persisted; they are derived from the group's finished matches whenever a
// group position has to be resolved, so corrections re-derive them too.
type GroupStanding struct {
	TeamID       int    `json:"team_id"`
	TeamName     string `json:"team_name"`
	Played       int    `json:"played"`
	Wins         int    `json:"wins"`
	Draws        int    `json:"draws"`
	Losses       int    `json:"losses"`
	GoalsFor     int    `json:"goals_for"`
	GoalsAgainst int    `json:"goals_against"`
	Points       int    `json:"points"`
}

func (s *GroupStanding) GoalDifference() int {
	return s.GoalsFor - s.GoalsAgainst
}
