package services

import "errors"

// Sentinel errors shared between the services and the HTTP error mapping.
var (
	// Validation and business-rule errors. These are detected before any
	// mutation and surfaced to the caller verbatim.
	ErrStageItemTypeInvalid = errors.New("unknown stage item type")
	ErrStageItemNotEmpty    = errors.New("stage item already has rounds")
	ErrNotDoubleElimination = errors.New("stage item is not a double elimination bracket")
	ErrNoCourtsAvailable    = errors.New("tournament has no courts to schedule on")
	ErrCourtNotInTournament = errors.New("court does not belong to this tournament")
	ErrMatchNotScheduled    = errors.New("match is not scheduled yet")
	ErrRoundNotInStageItem  = errors.New("round does not belong to the stage item")

	// Structural invariant violations. These indicate a broken bracket
	// graph and are not recoverable in place.
	ErrMalformedBracket     = errors.New("bracket graph is malformed")
	ErrByeResolutionStalled = errors.New("bye resolution exceeded the iteration guard")

	// Raised by the Swiss round-start flow when a requested anchor time
	// cannot be honored without violating court availability.
	ErrMatchTimingAdjustmentInfeasible = errors.New("requested start time cannot be honored with the available courts")
)
