package models

import (
	"errors"
	"time"
)

// ErrMatchTied is returned when a winner or loser is requested from a played
// match whose scores are equal. Elimination matches must never complete tied.
var ErrMatchTied = errors.New("match is tied, winner is undefined")

// MatchSideKind tags the source a match side draws its team from.
type MatchSideKind int

const (
	SideEmpty MatchSideKind = iota
	SideDirect
	SideWinner
	SideLoser
)

// MatchSide is one input slot of a match. The three source fields are
// mutually exclusive; use the Side* constructors. For SideWinner and
// SideLoser, InputID caches the resolved stage item input once the referenced
// match has been decided, and stays nil until then.
type MatchSide struct {
	InputID           *int `json:"stage_item_input_id,omitempty" db:"stage_item_input_id"`
	WinnerFromMatchID *int `json:"winner_from_match_id,omitempty" db:"winner_from_match_id"`
	LoserFromMatchID  *int `json:"loser_from_match_id,omitempty" db:"loser_from_match_id"`
}

// SideFromInput builds a side bound directly to a stage item input.
func SideFromInput(inputID int) MatchSide {
	id := inputID
	return MatchSide{InputID: &id}
}

// SideFromWinner builds a side fed by the winner of an earlier match.
func SideFromWinner(matchID int) MatchSide {
	id := matchID
	return MatchSide{WinnerFromMatchID: &id}
}

// SideFromLoser builds a side fed by the loser of an earlier match.
func SideFromLoser(matchID int) MatchSide {
	id := matchID
	return MatchSide{LoserFromMatchID: &id}
}

// Kind derives the side's source tag from the populated fields.
func (s MatchSide) Kind() MatchSideKind {
	switch {
	case s.WinnerFromMatchID != nil:
		return SideWinner
	case s.LoserFromMatchID != nil:
		return SideLoser
	case s.InputID != nil:
		return SideDirect
	}
	return SideEmpty
}

// Resolved reports whether the side currently holds a concrete input.
func (s MatchSide) Resolved() bool {
	return s.InputID != nil
}

// Match is one node of the bracket graph. References to earlier matches are
// stable ids into the same stage item, never pointers, so the graph survives
// persistence round-trips.
type Match struct {
	ID      int `json:"id" db:"id"`
	RoundID int `json:"round_id" db:"round_id"`

	Side1 MatchSide `json:"side1"`
	Side2 MatchSide `json:"side2"`

	// 0/0 is the "not yet played" sentinel, not a legitimate result.
	Score1 int `json:"score1" db:"score1"`
	Score2 int `json:"score2" db:"score2"`

	// CourtID and StartTime are both nil or both set.
	CourtID            *int       `json:"court_id,omitempty" db:"court_id"`
	StartTime          *time.Time `json:"start_time,omitempty" db:"start_time"`
	PositionInSchedule *int       `json:"position_in_schedule,omitempty" db:"position_in_schedule"`

	CustomDurationMinutes *int `json:"custom_duration_minutes,omitempty" db:"custom_duration_minutes"`
	CustomMarginMinutes   *int `json:"custom_margin_minutes,omitempty" db:"custom_margin_minutes"`
}

// IsPlayed reports whether a result has been recorded.
func (m *Match) IsPlayed() bool {
	return m.Score1 != 0 || m.Score2 != 0
}

// IsScheduled reports whether the match holds a court and a start time.
func (m *Match) IsScheduled() bool {
	return m.CourtID != nil && m.StartTime != nil
}

// WinnerInputID returns the resolved input of the higher-scoring side, or nil
// when the match has not been played. A winning side that never received an
// input (a bye opponent) also yields nil.
func (m *Match) WinnerInputID() (*int, error) {
	if !m.IsPlayed() {
		return nil, nil
	}
	switch {
	case m.Score1 > m.Score2:
		return m.Side1.InputID, nil
	case m.Score2 > m.Score1:
		return m.Side2.InputID, nil
	}
	return nil, ErrMatchTied
}

// LoserInputID mirrors WinnerInputID for the lower-scoring side.
func (m *Match) LoserInputID() (*int, error) {
	if !m.IsPlayed() {
		return nil, nil
	}
	switch {
	case m.Score1 > m.Score2:
		return m.Side2.InputID, nil
	case m.Score2 > m.Score1:
		return m.Side1.InputID, nil
	}
	return nil, ErrMatchTied
}

// DurationMinutes is the match's effective playing time, falling back to the
// tournament default when no override is set.
func (m *Match) DurationMinutes(t *Tournament) int {
	if m.CustomDurationMinutes != nil {
		return *m.CustomDurationMinutes
	}
	return t.DurationMinutes
}

// MarginMinutes is the gap appended after the match.
func (m *Match) MarginMinutes(t *Tournament) int {
	if m.CustomMarginMinutes != nil {
		return *m.CustomMarginMinutes
	}
	return t.MarginMinutes
}

// SlotMinutes is the full slot the match occupies on a court.
func (m *Match) SlotMinutes(t *Tournament) int {
	return m.DurationMinutes(t) + m.MarginMinutes(t)
}

// SlotDuration is SlotMinutes as a time.Duration.
func (m *Match) SlotDuration(t *Tournament) time.Duration {
	return time.Duration(m.SlotMinutes(t)) * time.Minute
}
