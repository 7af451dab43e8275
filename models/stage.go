package models

// StageItemType enumerates the supported bracket/pool formats. The stage
// service switches exhaustively over this set; adding a format means adding a
// constant here and a branch there.
type StageItemType string

const (
	StageItemSingleElimination    StageItemType = "SINGLE_ELIMINATION"
	StageItemDoubleElimination    StageItemType = "DOUBLE_ELIMINATION"
	StageItemRoundRobin           StageItemType = "ROUND_ROBIN"
	StageItemRegularSeasonMatchup StageItemType = "REGULAR_SEASON_MATCHUP"
	StageItemSwiss                StageItemType = "SWISS"
)

// Valid reports whether t is one of the known formats.
func (t StageItemType) Valid() bool {
	switch t {
	case StageItemSingleElimination, StageItemDoubleElimination,
		StageItemRoundRobin, StageItemRegularSeasonMatchup, StageItemSwiss:
		return true
	}
	return false
}

// Stage is an ordered phase of a tournament holding one or more stage items.
type Stage struct {
	ID           int    `json:"id" db:"id"`
	TournamentID int    `json:"tournament_id" db:"tournament_id"`
	Name         string `json:"name" db:"name"`

	StageItems []*StageItem `json:"stage_items,omitempty" db:"-"`
}

// StageItem is one bracket or pool within a stage. It owns its rounds
// (ordered by id) and its input slots.
type StageItem struct {
	ID        int           `json:"id" db:"id"`
	StageID   int           `json:"stage_id" db:"stage_id"`
	Name      string        `json:"name" db:"name"`
	Type      StageItemType `json:"type" db:"type"`
	TeamCount int           `json:"team_count" db:"team_count"`

	// TournamentID is resolved through the owning stage when the full graph
	// is loaded; it is not a column of the stage item itself.
	TournamentID int `json:"tournament_id,omitempty" db:"-"`

	Inputs []*StageItemInput `json:"inputs,omitempty" db:"-"`
	Rounds []*Round          `json:"rounds,omitempty" db:"-"`
}

// StageItemInput is a named slot in a stage item: either final (bound to a
// concrete team) or tentative (the team finishing at WinnerPosition in an
// upstream stage item). At most one input exists per (stage item, slot).
type StageItemInput struct {
	ID          int `json:"id" db:"id"`
	StageItemID int `json:"stage_item_id" db:"stage_item_id"`
	Slot        int `json:"slot" db:"slot"`

	TeamID                *int `json:"team_id,omitempty" db:"team_id"`
	WinnerFromStageItemID *int `json:"winner_from_stage_item_id,omitempty" db:"winner_from_stage_item_id"`
	WinnerPosition        *int `json:"winner_position,omitempty" db:"winner_position"`
}

// Final reports whether the input is bound to a concrete team.
func (i *StageItemInput) Final() bool {
	return i.TeamID != nil
}

// Round groups the matches of one bracket level, ordered by ascending id
// within a stage item. IsDraft marks a round whose matches are still being
// proposed; only the Swiss flow produces draft rounds.
type Round struct {
	ID          int    `json:"id" db:"id"`
	StageItemID int    `json:"stage_item_id" db:"stage_item_id"`
	Name        string `json:"name" db:"name"`
	IsDraft     bool   `json:"is_draft" db:"is_draft"`

	Matches []*Match `json:"matches,omitempty" db:"-"`
}
