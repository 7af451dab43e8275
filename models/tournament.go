package models

import "time"

// Tournament carries the scheduling defaults every match falls back to.
type Tournament struct {
	ID              int       `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	StartTime       time.Time `json:"start_time" db:"start_time"`
	DurationMinutes int       `json:"duration_minutes" db:"duration_minutes"`
	MarginMinutes   int       `json:"margin_minutes" db:"margin_minutes"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}

// Court is a physical resource matches get assigned to. The order courts are
// listed in (ascending id) defines the court index used by bulk scheduling.
type Court struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	Name         string    `json:"name" db:"name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
