package handlers

import (
	"net/http"

	"github.com/tjjston/sealedleague/repositories"
	"github.com/tjjston/sealedleague/services"
)

type ScheduleHandler struct {
	schedulingService services.SchedulingService
	matchRepo         repositories.MatchRepository
}

func NewScheduleHandler(schedulingService services.SchedulingService, matchRepo repositories.MatchRepository) *ScheduleHandler {
	return &ScheduleHandler{
		schedulingService: schedulingService,
		matchRepo:         matchRepo,
	}
}

// GetSchedule returns the tournament's scheduled matches in canonical order.
func (h *ScheduleHandler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := readIDParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.matchRepo.ListScheduledByTournament(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// ScheduleAll assigns courts and start times to every unscheduled match of
// the tournament.
func (h *ScheduleHandler) ScheduleAll(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := readIDParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.schedulingService.ScheduleAllUnscheduled(r.Context(), tournamentID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "matches scheduled"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type rescheduleMatchInput struct {
	NewCourtID  int `json:"new_court_id"`
	NewPosition int `json:"new_position"`
}

// RescheduleMatch moves one match to a new court and slot.
func (h *ScheduleHandler) RescheduleMatch(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := readIDParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matchID, err := readIDParam(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input rescheduleMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.schedulingService.RescheduleMatch(r.Context(), tournamentID, matchID, input.NewCourtID, input.NewPosition); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "match rescheduled"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// RenormalizeSchedule recomputes every start time from the canonical slot
// ordering.
func (h *ScheduleHandler) RenormalizeSchedule(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := readIDParam(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.schedulingService.RenormalizeSchedule(r.Context(), tournamentID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "schedule renormalized"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
