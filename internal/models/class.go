package models

import "time"

// Class is a subject section handled by one teacher.
type Class struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	SubjectCode string    `db:"subject_code" json:"subject_code"`
	SubjectName string    `db:"subject_name" json:"subject_name"`
	Section     string    `db:"section" json:"section"`
	SchoolYear  string    `db:"school_year" json:"school_year"`
	TeacherID   *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
