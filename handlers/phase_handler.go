package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scorekeep/prediction-league/models"
	"github.com/scorekeep/prediction-league/services"
)

// PhaseHandler exposes the admin controls of the phase gate. Organic
// unlocking happens inside the result cascade; these endpoints cover the
// manual overrides.
type PhaseHandler struct {
	phaseService services.PhaseService
}

func NewPhaseHandler(phaseService services.PhaseService) *PhaseHandler {
	return &PhaseHandler{phaseService: phaseService}
}

func phaseParam(r *http.Request) (models.Phase, error) {
	phase, ok := models.ParsePhase(chi.URLParam(r, "phase"))
	if !ok {
		return "", errors.New("invalid phase parameter")
	}
	return phase, nil
}

// Unlock opens a phase for predictions. The predecessor phase must be
// complete; phases never unlock out of order.
func (h *PhaseHandler) Unlock(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	phase, err := phaseParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ps, err := h.phaseService.UnlockPhase(r.Context(), tournamentID, phase)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"phase": ps}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// Reopen clears the completion flag of a phase, typically after a result
// correction reverted its last match.
func (h *PhaseHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	phase, err := phaseParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ps, err := h.phaseService.ReopenPhase(r.Context(), tournamentID, phase)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"phase": ps}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func (h *PhaseHandler) SetLock(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := idParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	phase, err := phaseParam(r)
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	var req lockRequest
	if err := readJSON(w, r, &req); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	ps, err := h.phaseService.SetPhaseLock(r.Context(), tournamentID, phase, req.Locked)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"phase": ps}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
