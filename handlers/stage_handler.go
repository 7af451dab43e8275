package handlers

import (
	"net/http"

	"github.com/tjjston/sealedleague/repositories"
	"github.com/tjjston/sealedleague/services"
)

type StageHandler struct {
	stageService  services.StageService
	propagation   services.PropagationService
	stageItemRepo repositories.StageItemRepository
}

func NewStageHandler(
	stageService services.StageService,
	propagation services.PropagationService,
	stageItemRepo repositories.StageItemRepository,
) *StageHandler {
	return &StageHandler{
		stageService:  stageService,
		propagation:   propagation,
		stageItemRepo: stageItemRepo,
	}
}

// GetStageItem returns the full graph of one stage item: inputs, rounds,
// matches.
func (h *StageHandler) GetStageItem(w http.ResponseWriter, r *http.Request) {
	stageItemID, err := readIDParam(r, "stageItemID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	item, err := h.stageItemRepo.GetWithGraph(r.Context(), stageItemID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"stage_item": item}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// BuildBracket creates the rounds and matches of an empty stage item.
func (h *StageHandler) BuildBracket(w http.ResponseWriter, r *http.Request) {
	stageItemID, err := readIDParam(r, "stageItemID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	item, err := h.stageService.BuildBracketForStageItem(r.Context(), stageItemID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"stage_item": item}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

type propagateResultsInput struct {
	ChangedMatchIDs []int `json:"changed_match_ids"`
}

// PropagateResults pushes reported results of one round into the matches
// that feed off them.
func (h *StageHandler) PropagateResults(w http.ResponseWriter, r *http.Request) {
	roundID, err := readIDParam(r, "roundID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input propagateResultsInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	changed, err := h.propagation.PropagateResults(r.Context(), roundID, input.ChangedMatchIDs)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"updated_matches": changed}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// AutoAdvanceByes settles every match of a stage item that can no longer
// receive an opponent.
func (h *StageHandler) AutoAdvanceByes(w http.ResponseWriter, r *http.Request) {
	stageItemID, err := readIDParam(r, "stageItemID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.propagation.AutoAdvanceByes(r.Context(), stageItemID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "byes resolved"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// FinalizeGrandFinalReset short-circuits the reset match of a double
// elimination bracket whose grand final went to the winners-bracket side.
func (h *StageHandler) FinalizeGrandFinalReset(w http.ResponseWriter, r *http.Request) {
	stageItemID, err := readIDParam(r, "stageItemID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.propagation.FinalizeGrandFinalReset(r.Context(), stageItemID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"message": "grand final reset finalized"}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
