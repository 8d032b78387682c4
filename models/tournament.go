package models

import "time"

// Phase is a named knockout stage of a tournament. Not every tournament
// carries every phase; the set and its order are fixed at seeding time
// and stored as PhaseStatus rows.
type Phase string

const (
	PhaseGroup      Phase = "group"
	PhaseRoundOf32  Phase = "round_32"
	PhaseRoundOf16  Phase = "round_16"
	PhaseQuarter    Phase = "quarter"
	PhaseSemi       Phase = "semi"
	PhaseThirdPlace Phase = "third_place"
	PhaseFinal      Phase = "final"
)

// ParsePhase validates a phase name coming in over the wire.
func ParsePhase(s string) (Phase, bool) {
	switch p := Phase(s); p {
	case PhaseGroup, PhaseRoundOf32, PhaseRoundOf16, PhaseQuarter, PhaseSemi, PhaseThirdPlace, PhaseFinal:
		return p, true
	}
	return "", false
}

// Tournament is immutable once its fixtures are seeded.
type Tournament struct {
	ID        int       `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"` // e.g. "WC2026"
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Optional linked data, populated by services
	Phases  []PhaseStatus `json:"phases,omitempty" db:"-"`
	Matches []Match       `json:"matches,omitempty" db:"-"`
}

// PhaseStatus is the per-(tournament, phase) gate record. Position is the
// index of the phase in the tournament's phase order, starting at 0. The
// first phase is unlocked when the tournament is seeded; every later phase
// starts locked and is unlocked only through the phase gate.
type PhaseStatus struct {
	ID                  int        `json:"id" db:"id"`
	TournamentID        int        `json:"tournament_id" db:"tournament_id"`
	Phase               Phase      `json:"phase" db:"phase"`
	Position            int        `json:"position" db:"position"`
	Unlocked            bool       `json:"unlocked" db:"unlocked"`
	UnlockedAt          *time.Time `json:"unlocked_at,omitempty" db:"unlocked_at"`
	AllMatchesCompleted bool       `json:"all_matches_completed" db:"all_matches_completed"`
	ManuallyLocked      bool       `json:"manually_locked" db:"manually_locked"`
	UpdatedAt           time.Time  `json:"updated_at" db:"updated_at"`
}

// Open reports whether matches of this phase are visible and predictable.
// The manual lock overrides the computed state.
func (ps *PhaseStatus) Open() bool {
	return ps.Unlocked && !ps.ManuallyLocked
}
