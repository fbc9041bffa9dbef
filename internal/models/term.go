package models

import "time"

// Term is a grading period (Prelim, Midterm, Final) and its global weight in
// the overall grade.
type Term struct {
	ID            string    `db:"id" json:"id"`
	Code          string    `db:"code" json:"code"`
	Name          string    `db:"name" json:"name"`
	AcademicYear  string    `db:"academic_year" json:"academic_year"`
	WeightPercent float64   `db:"weight_percent" json:"weight_percent"`
	Position      int       `db:"position" json:"position"`
	IsActive      bool      `db:"is_active" json:"is_active"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// TermFilter defines filters supported by list endpoints.
type TermFilter struct {
	AcademicYear string
	IsActive     *bool
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}
