package services

import (
	"fmt"

	"github.com/scorekeep/prediction-league/models"
)

// Scoring policy. The tiers are mutually exclusive; the highest applicable
// one wins.
const (
	PointsExactScore     = 4
	PointsGoalDifference = 3
	PointsOutcome        = 2
	PointsMiss           = 0

	JokerMultiplier = 2
)

// ScorePrediction computes the points of a prediction against a finished
// match. It is a pure function of the predicted scores, the actual scores,
// the joker flag and the league scope: league-scoped jokers have their
// points doubled, global-only rows never do.
func ScorePrediction(prediction *models.Prediction, match *models.Match) (int, error) {
	if prediction.MatchID != match.ID {
		return 0, fmt.Errorf("%w: prediction %d does not belong to match %d", ErrConsistencyViolation, prediction.ID, match.ID)
	}
	if match.Status != models.MatchStatusFinished {
		return 0, fmt.Errorf("%w: cannot score prediction against %s match %d", ErrInvalidStateTransition, match.Status, match.ID)
	}
	if match.HomeScore == nil || match.AwayScore == nil {
		return 0, fmt.Errorf("%w: finished match %d has no score", ErrConsistencyViolation, match.ID)
	}

	points := basePoints(prediction.HomeGoals, prediction.AwayGoals, *match.HomeScore, *match.AwayScore)
	if prediction.Joker && prediction.LeagueScoped() {
		points *= JokerMultiplier
	}
	return points, nil
}

func basePoints(predHome, predAway, actualHome, actualAway int) int {
	if predHome == actualHome && predAway == actualAway {
		return PointsExactScore
	}
	if predHome-predAway == actualHome-actualAway {
		return PointsGoalDifference
	}
	if sameOutcome(predHome, predAway, actualHome, actualAway) {
		return PointsOutcome
	}
	return PointsMiss
}

func sameOutcome(predHome, predAway, actualHome, actualAway int) bool {
	switch {
	case actualHome > actualAway:
		return predHome > predAway
	case actualHome < actualAway:
		return predHome < predAway
	default:
		return predHome == predAway
	}
}
