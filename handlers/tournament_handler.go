package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scorekeep/prediction-league/services"
)

var errInvalidGroupParam = errors.New("invalid group parameter")

type TournamentHandler struct {
	fixtureService services.FixtureService
	phaseService   services.PhaseService
	standings      services.ResolverService
}

func NewTournamentHandler(
	fixtureService services.FixtureService,
	phaseService services.PhaseService,
	standings services.ResolverService,
) *TournamentHandler {
	return &TournamentHandler{
		fixtureService: fixtureService,
		phaseService:   phaseService,
		standings:      standings,
	}
}

// Seed creates a tournament with its complete fixture set. Admin only;
// repeated seeding of the same code is rejected.
func (h *TournamentHandler) Seed(w http.ResponseWriter, r *http.Request) {
	var seed services.FixtureSeed
	if err := readJSON(w, r, &seed); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.fixtureService.SeedTournament(r.Context(), seed)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) List(w http.ResponseWriter, r *http.Request) {
	tournaments, err := h.fixtureService.ListTournaments(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournaments": tournaments}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GetBracket returns the tournament with all its phases and matches.
func (h *TournamentHandler) GetBracket(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	tournament, err := h.fixtureService.GetTournamentBracket(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"tournament": tournament}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *TournamentHandler) ListPhases(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	phases, err := h.phaseService.ListPhases(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"phases": phases}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GroupStandings returns the current table of one group, tie-breaks applied.
func (h *TournamentHandler) GroupStandings(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	group := chi.URLParam(r, "group")
	if group == "" {
		badRequestResponse(w, r, errInvalidGroupParam)
		return
	}

	standings, err := h.standings.GroupStandings(r.Context(), nil, tournamentID, group)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"standings": standings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
